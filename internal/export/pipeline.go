/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package export fits a sheet onto one page and either hands it to a printer or
// captures it into a single-page PDF.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"lessonprep/internal/fit"
	applog "lessonprep/internal/log"
	"lessonprep/internal/sheet"
)

// State is the pipeline's observable phase.
type State int

const (
	Idle State = iota
	Measuring
	Scaling
	Rendering
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Measuring:
		return "measuring"
	case Scaling:
		return "scaling"
	case Rendering:
		return "rendering"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ErrBusy is returned when a second run starts while one is in flight.
var ErrBusy = errors.New("export or print already in progress")

// UserMessage is what a person sees when a run fails.
const UserMessage = "حدث خطأ أثناء محاولة إنشاء ملف PDF. يرجى المحاولة مرة أخرى."

// PipelineError wraps the cause of a failed run with the phase it failed in.
type PipelineError struct {
	Stage   State
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("export failed while %s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Printer is the platform print facility. Print returns once the job is handed
// over; the channel yields when the print interaction has concluded.
type Printer interface {
	Print(ctx context.Context, s *sheet.Sheet) (<-chan error, error)
}

// Options selects the output preset and the state observer.
type Options struct {
	Preset  Preset
	OnState func(State)
	Logger  *slog.Logger
}

// Result describes a finished run.
type Result struct {
	Fit           fit.Result
	Width, Height int // raster pixels; zero for print
}

// Pipeline fits a sheet to its preset and writes or prints it, one run at a time.
type Pipeline struct {
	opts Options
	log  *slog.Logger
	busy atomic.Bool

	mu    sync.Mutex
	state State
}

// New returns an idle pipeline, using the default preset when none is set.
func New(opts Options) *Pipeline {
	if opts.Preset.Target == 0 {
		opts.Preset, _ = LookupPreset("")
	}
	l := opts.Logger
	if l == nil {
		l = applog.WithComponent("export")
	}
	return &Pipeline{opts: opts, log: l}
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) set(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
	if p.opts.OnState != nil {
		p.opts.OnState(s)
	}
}

// run holds the busy flag for one invocation and maps failures.
func (p *Pipeline) run(op string, body func(l *slog.Logger) (Result, error)) (Result, error) {
	if !p.busy.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}
	defer p.busy.Store(false)
	l := applog.WithOperation(p.log, op)
	res, err := body(l)
	if err != nil {
		stage := p.State()
		p.set(Failed)
		l.Error("run failed", slog.String("stage", stage.String()), slog.Any("err", err))
		p.set(Idle)
		return Result{}, &PipelineError{Stage: stage, Message: UserMessage, Err: err}
	}
	p.set(Succeeded)
	l.Info("run finished", slog.Float64("scale", res.Fit.Scale), slog.Float64("natural", res.Fit.Natural))
	p.set(Idle)
	return res, nil
}

// fitSheet measures and scales s. The returned restore must be called on every path.
func (p *Pipeline) fitSheet(ctx context.Context, s *sheet.Sheet, target, eps float64) (fit.Result, fit.Restore, error) {
	p.set(Measuring)
	if err := s.Prepare(ctx); err != nil {
		return fit.Result{}, nil, err
	}
	res, restore, err := fit.Fit(s, fit.Options{Target: target, Epsilon: eps})
	if err != nil {
		return fit.Result{}, nil, err
	}
	p.set(Scaling)
	return res, restore, nil
}

// Print fits s to the full page and hands it to pr. Styling is restored only after
// the printer signals completion.
func (p *Pipeline) Print(ctx context.Context, s *sheet.Sheet, pr Printer) (Result, error) {
	return p.run("print", func(l *slog.Logger) (Result, error) {
		fr, restore, err := p.fitSheet(ctx, s, fit.TargetPrint, fit.DefaultEpsilon)
		if err != nil {
			return Result{}, err
		}
		defer restore()
		p.set(Rendering)
		done, err := pr.Print(ctx, s)
		if err != nil {
			return Result{}, fmt.Errorf("start print: %w", err)
		}
		l.Debug("waiting for print dialog", slog.Float64("scale", fr.Scale))
		select {
		case err := <-done:
			if err != nil {
				return Result{}, fmt.Errorf("print: %w", err)
			}
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
		return Result{Fit: fr}, nil
	})
}

// Export fits s with the preset target, captures a styled clone and writes a
// single-page PDF to w.
func (p *Pipeline) Export(ctx context.Context, s *sheet.Sheet, w io.Writer) (Result, error) {
	return p.run("export", func(l *slog.Logger) (Result, error) {
		return p.export(ctx, s, w)
	})
}

func (p *Pipeline) export(ctx context.Context, s *sheet.Sheet, w io.Writer) (Result, error) {
	pre := p.opts.Preset
	fr, restore, err := p.fitSheet(ctx, s, pre.Target, pre.Epsilon)
	if err != nil {
		return Result{}, err
	}
	defer restore()

	p.set(Rendering)
	clone := s.Clone()
	clone.SetStyle(sheet.CaptureStyle())
	img, err := clone.Rasterize(pre.PixelRatio)
	if err != nil {
		return Result{}, fmt.Errorf("rasterize: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	b := img.Bounds()
	opt := PDFOptions{Title: s.Document().DisplayTitle(), MarginMM: pre.MarginMM, Quality: pre.JPEGQual}
	if err := WritePDF(w, img, opt); err != nil {
		return Result{}, err
	}
	return Result{Fit: fr, Width: b.Dx(), Height: b.Dy()}, nil
}

// ExportFile writes the PDF to path through a temporary file in the same directory,
// so a failed run never leaves a partial document behind.
func (p *Pipeline) ExportFile(ctx context.Context, s *sheet.Sheet, path string) (Result, error) {
	return p.run("export_file", func(l *slog.Logger) (Result, error) {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Result{}, fmt.Errorf("ensure out dir: %w", err)
		}
		tmp, err := os.CreateTemp(dir, ".lessonprep-*.pdf.tmp")
		if err != nil {
			return Result{}, fmt.Errorf("create temp: %w", err)
		}
		committed := false
		defer func() {
			if !committed {
				_ = tmp.Close()
				_ = os.Remove(tmp.Name())
			}
		}()
		res, err := p.export(ctx, s, tmp)
		if err != nil {
			return Result{}, err
		}
		if err := tmp.Sync(); err != nil {
			return Result{}, fmt.Errorf("sync pdf: %w", err)
		}
		if err := tmp.Close(); err != nil {
			return Result{}, fmt.Errorf("close pdf: %w", err)
		}
		if err := os.Rename(tmp.Name(), path); err != nil {
			return Result{}, fmt.Errorf("replace pdf: %w", err)
		}
		committed = true
		l.Debug("written", slog.String("path", path))
		return res, nil
	})
}
