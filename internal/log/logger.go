/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package log configures the process-wide slog logger for lessonprep: a console
// or JSON handler on stderr, an optional rotating JSON file, and context-carried
// document and run ids added to every record.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	lj "gopkg.in/natefinch/lumberjack.v2"

	"lessonprep/internal/version"
)

// Options controls Init. FromEnv reads them from LP_LOG_LEVEL (debug|info|warn|error),
// LP_LOG_FORMAT (console|json), LP_LOG_FILE and LP_LOG_SOURCE.
type Options struct {
	Level     string
	Format    string // "console" or "json"
	AddSource bool
	// File enables an additional rotated JSON log.
	File string
	// MaxSizeMB caps a single rotated log file; 0 means 10.
	MaxSizeMB int
	// Writer replaces stderr for the console/JSON output.
	Writer io.Writer
}

type ctxKey int

const (
	docKey ctxKey = iota
	runKey
)

// WithDocument returns a context whose log records carry the lesson document id.
func WithDocument(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, docKey, id)
}

// WithRun tags records with an invocation id (HTTP request, export run).
func WithRun(ctx context.Context, run string) context.Context {
	if run == "" {
		return ctx
	}
	return context.WithValue(ctx, runKey, run)
}

var (
	mu      sync.RWMutex
	current *slog.Logger
	closer  io.Closer
)

// L returns the application logger, configuring it from the environment on first use.
func L() *slog.Logger {
	mu.RLock()
	l := current
	mu.RUnlock()
	if l != nil {
		return l
	}
	Init(FromEnv())
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Init replaces the application logger and slog's default.
func Init(opts Options) {
	lvl := parseLevel(opts.Level)
	out := opts.Writer
	if out == nil {
		out = os.Stderr
	}
	ho := &slog.HandlerOptions{Level: lvl, AddSource: opts.AddSource}

	var primary slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		primary = slog.NewJSONHandler(out, ho)
	} else {
		primary = newConsoleHandler(out, lvl, opts.AddSource)
	}
	handlers := fanout{withContext(primary)}

	var rotated *lj.Logger
	if f := strings.TrimSpace(opts.File); f != "" {
		size := opts.MaxSizeMB
		if size <= 0 {
			size = 10
		}
		rotated = &lj.Logger{Filename: f, MaxSize: size, MaxBackups: 3, MaxAge: 28, Compress: true}
		handlers = append(handlers, withContext(slog.NewJSONHandler(rotated, ho)))
	}

	var h slog.Handler = handlers
	if len(handlers) == 1 {
		h = handlers[0]
	}
	logger := slog.New(h).With(
		slog.String("app", "lessonprep"),
		slog.String("ver", version.Version),
	)

	mu.Lock()
	if closer != nil {
		_ = closer.Close()
		closer = nil
	}
	if rotated != nil {
		closer = rotated
	}
	current = logger
	mu.Unlock()
	slog.SetDefault(logger)
}

// FromEnv builds Options from environment variables.
func FromEnv() Options {
	return Options{
		Level:     getenv("LP_LOG_LEVEL", "info"),
		Format:    getenv("LP_LOG_FORMAT", "console"),
		AddSource: strings.EqualFold(getenv("LP_LOG_SOURCE", "false"), "true"),
		File:      os.Getenv("LP_LOG_FILE"),
	}
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// WithComponent returns a logger with the component attribute pre-set.
func WithComponent(name string) *slog.Logger { return L().With(slog.String("component", name)) }

// WithOperation annotates the logger with an operation name.
func WithOperation(l *slog.Logger, op string) *slog.Logger { return l.With(slog.String("op", op)) }

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// ctxHandler copies the document and run ids from the context onto each record.
type ctxHandler struct{ next slog.Handler }

func withContext(h slog.Handler) slog.Handler { return ctxHandler{next: h} }

func (h ctxHandler) Enabled(ctx context.Context, l slog.Level) bool { return h.next.Enabled(ctx, l) }

func (h ctxHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		if id, ok := ctx.Value(docKey).(string); ok {
			r.AddAttrs(slog.String("doc", id))
		}
		if run, ok := ctx.Value(runKey).(string); ok {
			r.AddAttrs(slog.String("run", run))
		}
	}
	return h.next.Handle(ctx, r)
}

func (h ctxHandler) WithAttrs(as []slog.Attr) slog.Handler {
	return ctxHandler{next: h.next.WithAttrs(as)}
}

func (h ctxHandler) WithGroup(name string) slog.Handler {
	return ctxHandler{next: h.next.WithGroup(name)}
}

// fanout sends each record to every handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f fanout) WithAttrs(as []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(as)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
