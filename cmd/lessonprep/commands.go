/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"lessonprep/internal/domain"
	"lessonprep/internal/export"
	"lessonprep/internal/extraction"
	"lessonprep/internal/legacy"
	applog "lessonprep/internal/log"
	"lessonprep/internal/server"
	"lessonprep/internal/sheet"
	"lessonprep/internal/storage"
	"lessonprep/internal/textlayout"
	"lessonprep/internal/workspace"
)

// usageError marks bad invocations; the flag set has already reported them.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func exitCode(err error) (int, bool) {
	if errors.Is(err, flag.ErrHelp) {
		return 0, true
	}
	var ue usageError
	if errors.As(err, &ue) {
		return 2, true
	}
	return 0, false
}

// userMessage keeps pipeline failures to their retry hint.
func userMessage(err error) string {
	var pe *export.PipelineError
	if errors.As(err, &pe) {
		return pe.Message
	}
	return err.Error()
}

func (e *env) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

func parse(fs *flag.FlagSet, args []string, nargs int) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return usageError{err.Error()}
	}
	if nargs >= 0 && fs.NArg() != nargs {
		_, _ = fmt.Fprintf(fs.Output(), "%s: expected %d argument(s), got %d\n", fs.Name(), nargs, fs.NArg())
		return usageError{"wrong number of arguments"}
	}
	return nil
}

func (e *env) sheetOptions() (sheet.Options, error) {
	fonts, err := textlayout.Open(e.cfg.Render.FontPath)
	if err != nil {
		return sheet.Options{}, err
	}
	return sheet.Options{
		Fonts:  fonts,
		Images: sheet.NewResolver(e.cfg.Render.FetchRemote, nil),
		Logger: applog.WithComponent("sheet"),
	}, nil
}

func (e *env) preset(name string) (export.Preset, error) {
	if name == "" {
		name = e.cfg.Render.ExportTarget
	}
	p, err := export.LookupPreset(name)
	if err != nil {
		return export.Preset{}, usageError{err.Error()}
	}
	return p.WithPixelRatio(e.cfg.Render.PixelRatio), nil
}

func (e *env) openStore(ctx context.Context) (storage.Store, error) {
	return storage.Open(ctx, e.cfg.Storage)
}

// loadLesson reads a lesson JSON file, or a saved lesson when ref is not a file.
func (e *env) loadLesson(ctx context.Context, ref string) (*domain.LessonDocument, error) {
	if data, err := os.ReadFile(ref); err == nil {
		doc := domain.NewDocument()
		if err := json.Unmarshal(data, doc); err != nil {
			return nil, fmt.Errorf("%s: %w", ref, err)
		}
		e.crash.Document = ref
		return doc, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	st, err := e.openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = st.Close() }()
	doc, err := st.Load(ctx, ref)
	if err != nil {
		return nil, err
	}
	e.crash.Document = doc.ID
	return doc, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func cmdNormalize(_ context.Context, e *env, args []string) error {
	fs := e.flags("normalize")
	out := fs.String("o", "", "write the lesson to this file instead of stdout")
	if err := parse(fs, args, 1); err != nil {
		return err
	}
	var (
		data []byte
		err  error
	)
	if src := fs.Arg(0); src == "-" {
		data, err = io.ReadAll(e.stdin)
	} else {
		data, err = os.ReadFile(src)
	}
	if err != nil {
		return err
	}
	var rec domain.ExtractionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("extraction record: %w", err)
	}
	doc := legacy.SeedDocument(rec)
	if *out == "" {
		return writeJSON(e.stdout, doc)
	}
	f, err := os.Create(*out)
	if err != nil {
		return err
	}
	if err := writeJSON(f, doc); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func cmdExtract(ctx context.Context, e *env, args []string) error {
	fs := e.flags("extract")
	save := fs.Bool("save", false, "save the extracted lesson and print its id")
	if err := parse(fs, args, -1); err != nil {
		return err
	}
	files, err := extraction.ReadFiles(fs.Args())
	if err != nil {
		return err
	}
	client := extraction.NewClient(e.cfg.Extraction.URL, e.token, e.cfg.Extraction.Timeout())
	doc, err := client.ExtractDocument(ctx, files)
	if err != nil {
		return err
	}
	if !*save {
		return writeJSON(e.stdout, doc)
	}
	st, err := e.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	id, err := st.Save(ctx, doc)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(e.stdout, id)
	return err
}

func cmdList(ctx context.Context, e *env, args []string) error {
	fs := e.flags("list")
	q := fs.String("q", "", "search text")
	limit := fs.Int("limit", 0, "maximum number of results")
	if err := parse(fs, args, 0); err != nil {
		return err
	}
	st, err := e.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	var list []storage.Summary
	if *q != "" || *limit > 0 {
		list, err = st.Search(ctx, *q, *limit)
	} else {
		list, err = st.List(ctx)
	}
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	for _, s := range list {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", s.ID, s.UpdatedAt.Local().Format(time.DateTime), s.Title)
	}
	return tw.Flush()
}

func cmdExport(ctx context.Context, e *env, args []string) error {
	fs := e.flags("export")
	presetName := fs.String("preset", "", "compact or print (default from config)")
	outDir := fs.String("o", ".", "output directory")
	if err := parse(fs, args, 1); err != nil {
		return err
	}
	pre, err := e.preset(*presetName)
	if err != nil {
		return err
	}
	doc, err := e.loadLesson(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	so, err := e.sheetOptions()
	if err != nil {
		return err
	}
	sess := workspace.New(doc, workspace.Options{
		Sheet:  so,
		Export: export.Options{Preset: pre, Logger: applog.WithComponent("export")},
	})
	dir, err := filepath.Abs(*outDir)
	if err != nil {
		return err
	}
	path, res, err := sess.ExportTo(applog.WithDocument(ctx, doc.ID), dir)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(e.stdout, "%s (scale %.2f, %dx%d)\n", path, res.Fit.Scale, res.Width, res.Height)
	return err
}

func cmdPrint(ctx context.Context, e *env, args []string) error {
	fs := e.flags("print")
	cmdName := fs.String("cmd", "lp", "print command; the PDF path is appended")
	cmdArgs := fs.String("args", "", "extra space-separated arguments for the print command")
	if err := parse(fs, args, 1); err != nil {
		return err
	}
	doc, err := e.loadLesson(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	so, err := e.sheetOptions()
	if err != nil {
		return err
	}
	pr := export.CommandPrinter{
		Command:    *cmdName,
		Args:       strings.Fields(*cmdArgs),
		PixelRatio: e.cfg.Render.PixelRatio,
	}
	sess := workspace.New(doc, workspace.Options{Sheet: so, Printer: pr})
	res, err := sess.Print(applog.WithDocument(ctx, doc.ID))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(e.stdout, "sent to %s (scale %.2f)\n", *cmdName, res.Fit.Scale)
	return err
}

func cmdServe(ctx context.Context, e *env, args []string) error {
	fs := e.flags("serve")
	addr := fs.String("addr", e.cfg.Server.Addr, "listen address")
	if err := parse(fs, args, 0); err != nil {
		return err
	}
	st, err := e.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	so, err := e.sheetOptions()
	if err != nil {
		return err
	}
	pre, err := e.preset("")
	if err != nil {
		return err
	}
	opts := server.Options{Store: st, Sheet: so, Preset: pre, Logger: applog.WithComponent("server")}
	if e.cfg.Extraction.URL != "" {
		opts.Extractor = extraction.NewClient(e.cfg.Extraction.URL, e.token, e.cfg.Extraction.Timeout())
	}
	return server.New(opts).ListenAndServe(ctx, *addr)
}
