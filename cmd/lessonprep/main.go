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
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"lessonprep/internal/config"
	"lessonprep/internal/crash"
	applog "lessonprep/internal/log"
	"lessonprep/internal/version"
)

func usage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "LessonPrep: lesson preparation sheets")
	_, _ = fmt.Fprintf(w, "Version: %s\n\n", version.String())
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  lessonprep version                               Show version")
	_, _ = fmt.Fprintln(w, "  lessonprep normalize [-o file] <record.json|->      Seed a lesson from an extraction record")
	_, _ = fmt.Fprintln(w, "  lessonprep extract [-save] <file>...              Extract a lesson from uploaded material")
	_, _ = fmt.Fprintln(w, "  lessonprep list [-q text] [-limit n]              List or search saved lessons")
	_, _ = fmt.Fprintln(w, "  lessonprep export [-preset p] [-o dir] <lesson>    Export a lesson to a one-page PDF")
	_, _ = fmt.Fprintln(w, "  lessonprep print [-cmd lp] <lesson>               Fit a lesson to A4 and send it to the printer")
	_, _ = fmt.Fprintln(w, "  lessonprep serve [-addr :8080]                    Run the HTTP API")
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "<lesson> is a lesson JSON file or the id of a saved lesson.")
}

func main() {
	info := &crash.Info{}
	defer crash.Recover(info)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr, info)
	stop()
	if code != 0 {
		os.Exit(code)
	}
}

// env carries what every command needs after configuration is resolved.
type env struct {
	cfg    config.AppConfig
	token  string
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	log    *slog.Logger
	crash  *crash.Info
}

type command func(ctx context.Context, e *env, args []string) error

var commands = map[string]command{
	"normalize": cmdNormalize,
	"extract":   cmdExtract,
	"list":      cmdList,
	"export":    cmdExport,
	"print":     cmdPrint,
	"serve":     cmdServe,
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, info *crash.Info) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	switch args[0] {
	case "version", "--version", "-v":
		_, _ = fmt.Fprintln(stdout, version.String())
		return 0
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	}
	cmd, ok := commands[args[0]]
	if !ok {
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}

	cfg, token, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "Error: config:", err)
		return 1
	}
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	info.Command = args[0]
	info.Dir = cfg.Storage.StorageDir()

	e := &env{cfg: cfg, token: token, stdin: stdin, stdout: stdout, stderr: stderr, log: applog.WithComponent("cli"), crash: info}
	e.log.Debug("start", slog.String("cmd", args[0]), slog.Int("args", len(args)-1))
	if err := cmd(ctx, e, args[1:]); err != nil {
		if code, ok := exitCode(err); ok {
			return code
		}
		e.log.Error("command failed", slog.String("cmd", args[0]), slog.Any("err", err))
		_, _ = fmt.Fprintln(stderr, "Error:", userMessage(err))
		return 1
	}
	return 0
}
