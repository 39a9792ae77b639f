/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"lessonprep/internal/domain"
	"lessonprep/internal/fit"
	"lessonprep/internal/sheet"
)

func longSheet() *sheet.Sheet {
	doc := domain.NewDocument()
	doc.Title = "Fractions"
	doc.Presentation = strings.TrimSpace(strings.Repeat("word ", 2500))
	s := sheet.New(doc, sheet.Options{})
	s.SetWidth(1000)
	return s
}

type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) on(s State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *recorder) get() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func TestExportWritesSinglePagePDF(t *testing.T) {
	rec := &recorder{}
	p := New(Options{OnState: rec.on})
	s := longSheet()
	var buf bytes.Buffer
	res, err := p.Export(context.Background(), s, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatal("not a pdf")
	}
	if res.Width != int(2*fit.ReferenceWidth) || res.Fit.Scale >= 1 {
		t.Fatalf("result %+v", res)
	}
	want := []State{Measuring, Scaling, Rendering, Succeeded, Idle}
	if got := rec.get(); !reflect.DeepEqual(got, want) {
		t.Fatalf("states %v", got)
	}
	if s.Width() != 1000 || s.Scale() != 1 || s.Style() != sheet.LiveStyle() {
		t.Fatal("sheet not restored after export")
	}

	again, err := p.Export(context.Background(), s, &bytes.Buffer{})
	if err != nil || again != res {
		t.Fatalf("repeat export differs: %+v vs %+v (%v)", again, res, err)
	}
}

func TestCompactPresetUsesExportTarget(t *testing.T) {
	p := New(Options{})
	res, err := p.Export(context.Background(), longSheet(), &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	want := fit.ComputeScale(res.Fit.Natural, fit.TargetExport, 0.02)
	if res.Fit.Scale != want {
		t.Fatalf("scale %v want %v", res.Fit.Scale, want)
	}
	pr, _ := LookupPreset("print")
	hi := New(Options{Preset: pr})
	res2, _ := hi.Export(context.Background(), longSheet(), &bytes.Buffer{})
	if res2.Fit.Scale <= res.Fit.Scale {
		t.Fatalf("print preset should allow a larger scale: %v <= %v", res2.Fit.Scale, res.Fit.Scale)
	}
}

// blockingPrinter records the sheet geometry it saw and waits for release.
type blockingPrinter struct {
	called  chan struct{}
	release chan error
	width   float64
	scale   float64
}

func (b *blockingPrinter) Print(_ context.Context, s *sheet.Sheet) (<-chan error, error) {
	b.width, b.scale = s.Width(), s.Scale()
	close(b.called)
	return b.release, nil
}

func TestPrintRestoresAfterCompletionAndBlocksReentry(t *testing.T) {
	p := New(Options{})
	s := longSheet()
	pr := &blockingPrinter{called: make(chan struct{}), release: make(chan error, 1)}

	type out struct {
		res Result
		err error
	}
	done := make(chan out, 1)
	go func() {
		res, err := p.Print(context.Background(), s, pr)
		done <- out{res, err}
	}()
	<-pr.called

	if pr.width != fit.ReferenceWidth || pr.scale >= 1 {
		t.Fatalf("printer saw %v @ %v", pr.width, pr.scale)
	}
	if s.Scale() != pr.scale {
		t.Fatal("styling restored before the print dialog closed")
	}
	if p.State() != Rendering {
		t.Fatalf("state %v", p.State())
	}
	if _, err := p.Export(context.Background(), s, &bytes.Buffer{}); !errors.Is(err, ErrBusy) {
		t.Fatalf("want ErrBusy, got %v", err)
	}

	pr.release <- nil
	o := <-done
	if o.err != nil {
		t.Fatal(o.err)
	}
	if s.Width() != 1000 || s.Scale() != 1 {
		t.Fatal("not restored after completion")
	}
	if p.State() != Idle {
		t.Fatalf("state %v", p.State())
	}
}

type failingPrinter struct{ err error }

func (f failingPrinter) Print(context.Context, *sheet.Sheet) (<-chan error, error) {
	return nil, f.err
}

func TestPrintFailureSurfacesPipelineError(t *testing.T) {
	rec := &recorder{}
	p := New(Options{OnState: rec.on})
	s := longSheet()
	cause := errors.New("no printer")
	_, err := p.Print(context.Background(), s, failingPrinter{err: cause})
	var pe *PipelineError
	if !errors.As(err, &pe) || !errors.Is(err, cause) {
		t.Fatalf("err %v", err)
	}
	if pe.Stage != Rendering || pe.Message != UserMessage {
		t.Fatalf("pipeline error %+v", pe)
	}
	states := rec.get()
	if states[len(states)-2] != Failed || states[len(states)-1] != Idle {
		t.Fatalf("states %v", states)
	}
	if s.Width() != 1000 || s.Scale() != 1 {
		t.Fatal("failure must restore styling")
	}
}

func TestExportFileIsAtomic(t *testing.T) {
	dir := t.TempDir()
	p := New(Options{})
	path := filepath.Join(dir, "out", FileName("Fractions"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.ExportFile(ctx, longSheet(), path); err == nil {
		t.Fatal("cancelled export succeeded")
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 0 {
		t.Fatalf("failed export left files: %v", entries)
	}

	if _, err := p.ExportFile(context.Background(), longSheet(), path); err != nil {
		t.Fatal(err)
	}
	entries, _ = os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 || entries[0].Name() != "Fractions.pdf" {
		t.Fatalf("entries %v", entries)
	}
}

func TestWritePDFRejectsEmptyImage(t *testing.T) {
	if err := WritePDF(&bytes.Buffer{}, image.NewRGBA(image.Rect(0, 0, 0, 0)), PDFOptions{}); err == nil {
		t.Fatal("empty image accepted")
	}
	tall := image.NewRGBA(image.Rect(0, 0, 100, 1000))
	var buf bytes.Buffer
	if err := WritePDF(&buf, tall, PDFOptions{Title: "درس"}); err != nil {
		t.Fatal(err)
	}
}

func TestPresetsAndFileName(t *testing.T) {
	p, err := LookupPreset("")
	if err != nil || p.Name != PresetCompact || p.Target != fit.TargetExport {
		t.Fatalf("default preset %+v %v", p, err)
	}
	if _, err := LookupPreset("poster"); err == nil {
		t.Fatal("unknown preset accepted")
	}
	if p.WithPixelRatio(3).PixelRatio != 3 || p.WithPixelRatio(0).PixelRatio != 2 {
		t.Fatal("pixel ratio override")
	}
	cases := map[string]string{"": "تحضير.pdf", " درس/أول ": "درس_أول.pdf"}
	for in, want := range cases {
		if got := FileName(in); got != want {
			t.Errorf("FileName(%q) = %q", in, got)
		}
	}
}
