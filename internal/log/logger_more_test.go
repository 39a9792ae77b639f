/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestFromEnv(t *testing.T) {
	t.Setenv("LP_LOG_LEVEL", "warn")
	t.Setenv("LP_LOG_FORMAT", "json")
	t.Setenv("LP_LOG_SOURCE", "true")
	t.Setenv("LP_LOG_FILE", "")

	opts := FromEnv()
	if opts.Level != "warn" || opts.Format != "json" || !opts.AddSource || opts.File != "" {
		t.Fatalf("FromEnv mismatch: %+v", opts)
	}
	if v := getenv("LP_LOG_SURELY_UNSET", "fallback"); v != "fallback" {
		t.Fatalf("getenv fallback failed: %q", v)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestConsoleHandler(t *testing.T) {
	var buf bytes.Buffer
	h := newConsoleHandler(&buf, slog.LevelWarn, false)

	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info should not be enabled at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("error should be enabled at warn level")
	}

	l := slog.New(h).With(slog.String("component", "export"), slog.String("k", "v")).WithGroup("fit")
	l.Error("fit failed",
		slog.Int("n", 42),
		slog.Float64("scale", 0.78),
		slog.String("title", "درس جديد"),
		slog.Any("err", errors.New("boom")),
	)

	out := buf.String()
	for _, want := range []string{
		"ERR [export] fit failed",
		" k=v",
		" fit.n=42",
		" fit.scale=0.78",
		` fit.title="درس جديد"`,
		` fit.err="boom"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q: %q", want, out)
		}
	}
	if strings.Contains(out, "component=") {
		t.Errorf("component should be lifted into the prefix: %q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Error("line not terminated")
	}
}

func TestConsoleHandlerUsesRecordTime(t *testing.T) {
	var buf bytes.Buffer
	h := newConsoleHandler(&buf, slog.LevelDebug, false)
	ts := time.Date(2025, 3, 1, 9, 30, 15, 250e6, time.UTC)
	r := slog.NewRecord(ts, slog.LevelDebug, "tick", 0)
	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "09:30:15.250 DBG tick\n" {
		t.Fatalf("got %q", got)
	}
}

func TestContextAttributes(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(withContext(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	ctx := WithRun(WithDocument(context.Background(), "lesson-1"), "run-7")
	l.InfoContext(ctx, "export done")
	out := buf.String()
	if !strings.Contains(out, `"doc":"lesson-1"`) || !strings.Contains(out, `"run":"run-7"`) {
		t.Fatalf("context attrs missing: %q", out)
	}

	ctx = context.Background()
	if WithDocument(ctx, "") != ctx || WithRun(ctx, "") != ctx {
		t.Fatal("empty ids should return the original context")
	}
}

func TestFanoutRespectsLevels(t *testing.T) {
	var loud, quiet bytes.Buffer
	f := fanout{
		slog.NewTextHandler(&loud, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&quiet, &slog.HandlerOptions{Level: slog.LevelError}),
	}
	l := slog.New(f).With(slog.String("component", "sheet"))
	l.Debug("measured")
	l.Error("layout failed")
	if !strings.Contains(loud.String(), "measured") || !strings.Contains(loud.String(), "layout failed") {
		t.Fatalf("debug sink: %q", loud.String())
	}
	if strings.Contains(quiet.String(), "measured") || !strings.Contains(quiet.String(), "component=sheet") {
		t.Fatalf("error sink: %q", quiet.String())
	}
}

func TestInitWritesToConfiguredWriter(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "debug", Writer: &buf})
	t.Cleanup(func() { Init(Options{Level: "error"}) })
	WithOperation(WithComponent("storage"), "save").Debug("saved")
	out := buf.String()
	if !strings.Contains(out, "DBG [storage] saved") || !strings.Contains(out, "op=save") || !strings.Contains(out, "app=lessonprep") {
		t.Fatalf("got %q", out)
	}
}
