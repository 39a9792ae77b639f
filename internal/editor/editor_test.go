/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package editor

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"lessonprep/internal/richtext"
)

type recorder struct{ got []string }

func (r *recorder) fn(v string) { r.got = append(r.got, v) }

const oneImage = `a<img src="http://h/1.png" style="width: 100px; height: 80px;">`

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestResizeScenarioSouthEast(t *testing.T) {
	rec := &recorder{}
	hub := &ViewportHub{}
	e := New(oneImage, rec.fn, Options{Viewport: hub})
	if err := e.SelectImage(0); err != nil {
		t.Fatal(err)
	}
	if e.Mode() != ModeImage || hub.Subscribers() != 1 {
		t.Fatalf("mode=%v subscribers=%d", e.Mode(), hub.Subscribers())
	}
	ov, ok := e.Overlay()
	if !ok || ov.Box != (Box{X: 8, Y: 0, W: 100, H: 80}) {
		t.Fatalf("overlay = %#v ok=%v", ov.Box, ok)
	}
	if len(ov.Handles) != 8 || ov.Handles[HandleSE] != (Point{108, 80}) || ov.Handles[HandleN] != (Point{58, 0}) {
		t.Fatalf("handles = %#v", ov.Handles)
	}
	if err := e.BeginResize(HandleSE); err != nil {
		t.Fatal(err)
	}
	e.DragTo(20, 10)
	e.DragTo(50, 30)
	if len(rec.got) != 0 {
		t.Fatalf("change fired during drag: %v", rec.got)
	}
	e.EndResize()
	if len(rec.got) != 1 {
		t.Fatalf("want exactly one change on release, got %d", len(rec.got))
	}
	if w, h, _ := e.ImageSize(0); w != 150 || h != 110 {
		t.Fatalf("size = %vx%v, want 150x110", w, h)
	}
	if !strings.Contains(rec.got[0], "width: 150px; height: 110px;") {
		t.Fatalf("markup = %q", rec.got[0])
	}
	if e.Mode() != ModeImage {
		t.Fatalf("selection should survive the resize")
	}
}

func TestResizeFloorPerAxis(t *testing.T) {
	cases := []struct {
		handle Handle
		dx, dy float64
		w, h   float64
	}{
		{HandleSE, -90, 30, 100, 110},
		{HandleNW, 10, 10, 90, 70},
		{HandleNW, 90, 10, 100, 70},
		{HandleE, 10, 999, 110, 80},
		{HandleN, 999, -20, 100, 100},
		{HandleW, 80, 0, 20, 80},
		{HandleSW, 81, -61, 100, 80},
	}
	for _, tc := range cases {
		e := New(oneImage, nil, Options{})
		_ = e.SelectImage(0)
		_ = e.BeginResize(tc.handle)
		e.DragTo(tc.dx, tc.dy)
		e.EndResize()
		if w, h, _ := e.ImageSize(0); w != tc.w || h != tc.h {
			t.Fatalf("%s drag (%v,%v): size = %vx%v, want %vx%v", tc.handle, tc.dx, tc.dy, w, h, tc.w, tc.h)
		}
	}
}

func TestResizeKeepsLastValidSize(t *testing.T) {
	e := New(oneImage, nil, Options{})
	_ = e.SelectImage(0)
	_ = e.BeginResize(HandleSE)
	e.DragTo(50, 30)
	e.DragTo(-95, -75)
	e.EndResize()
	if w, h, _ := e.ImageSize(0); w != 150 || h != 110 {
		t.Fatalf("size = %vx%v, want last valid 150x110", w, h)
	}
}

func TestResizeWithoutChangeDoesNotFire(t *testing.T) {
	rec := &recorder{}
	e := New(oneImage, rec.fn, Options{})
	_ = e.SelectImage(0)
	_ = e.BeginResize(HandleE)
	e.EndResize()
	if len(rec.got) != 0 {
		t.Fatalf("unexpected change: %v", rec.got)
	}
}

func TestDetachedImageClearsSelection(t *testing.T) {
	rec := &recorder{}
	e := New(oneImage, rec.fn, Options{})
	_ = e.SelectImage(0)
	_ = e.BeginResize(HandleSE)
	if !e.SetValue("plain text") {
		t.Fatalf("unfocused surface should reconcile")
	}
	if e.Mode() != ModeToolbar || e.Selected() != -1 {
		t.Fatalf("selection not cleared")
	}
	if _, ok := e.Overlay(); ok {
		t.Fatalf("overlay produced for a detached image")
	}
	e.DragTo(10, 10)
	e.EndResize()
	if err := e.DeleteSelectedImage(); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("expected ErrNoSelection, got %v", err)
	}
	if len(rec.got) != 0 {
		t.Fatalf("no change expected, got %v", rec.got)
	}
}

type vanishing struct {
	FlowGeometry
	gone bool
}

func (v *vanishing) ImageRect(d *richtext.Doc, i int) (Box, bool) {
	if v.gone {
		return Box{}, false
	}
	return v.FlowGeometry.ImageRect(d, i)
}

func TestViewportSignalRecomputesOverlay(t *testing.T) {
	hub := &ViewportHub{}
	geo := &vanishing{FlowGeometry: FlowGeometry{Surface: Box{X: 10, Y: 20, W: 500}}}
	e := New(oneImage, nil, Options{Viewport: hub, Geometry: geo})
	_ = e.SelectImage(0)
	ov, _ := e.Overlay()
	if ov.Box.X != 8 || ov.Box.Y != 0 {
		t.Fatalf("overlay before scroll = %#v", ov.Box)
	}
	geo.ScrollY = 40
	hub.Emit(SignalScroll)
	ov, ok := e.Overlay()
	if !ok || ov.Box.Y != 40 {
		t.Fatalf("overlay after scroll = %#v", ov.Box)
	}
	geo.gone = true
	hub.Emit(SignalResize)
	if e.Mode() != ModeToolbar || hub.Subscribers() != 0 {
		t.Fatalf("selection should clear and unsubscribe: mode=%v subs=%d", e.Mode(), hub.Subscribers())
	}
}

func TestImageModeBlocksToolbar(t *testing.T) {
	e := New(oneImage, nil, Options{OnRequestShape: func() {}})
	_ = e.SelectImage(0)
	for name, fn := range map[string]func() error{
		"bold":   e.Bold,
		"clear":  e.Clear,
		"shape":  e.RequestShape,
		"font":   func() error { return e.Font("Cairo") },
		"insert": func() error { return e.InsertImage(pngBytes(t), "image/png") },
	} {
		if err := fn(); !errors.Is(err, ErrImageMode) {
			t.Fatalf("%s: expected ErrImageMode, got %v", name, err)
		}
	}
	e.ClickElsewhere()
	if e.Mode() != ModeToolbar {
		t.Fatalf("click elsewhere should deselect")
	}
	if err := e.SelectImage(3); !errors.Is(err, richtext.ErrNoSuchImage) {
		t.Fatalf("expected ErrNoSuchImage, got %v", err)
	}
}

func TestDeleteSelectedImage(t *testing.T) {
	rec := &recorder{}
	e := New(oneImage, rec.fn, Options{})
	_ = e.SelectImage(0)
	if err := e.DeleteSelectedImage(); err != nil {
		t.Fatal(err)
	}
	if len(rec.got) != 1 || rec.got[0] != "a" || e.Mode() != ModeToolbar {
		t.Fatalf("changes = %v mode = %v", rec.got, e.Mode())
	}
}

func TestReconcileRule(t *testing.T) {
	rec := &recorder{}
	e := New("abc", rec.fn, Options{})
	e.Focus()
	if e.SetValue("xyz") || e.HTML() != "abc" {
		t.Fatalf("focused surface must not be overwritten")
	}
	e.Blur()
	if e.SetValue("abc") {
		t.Fatalf("identical value must not reconcile")
	}
	if !e.SetValue("<b>xyz</b>") || e.HTML() != "<b>xyz</b>" {
		t.Fatalf("unfocused surface should take the external value: %q", e.HTML())
	}
	if len(rec.got) != 0 {
		t.Fatalf("SetValue must not fire change: %v", rec.got)
	}
}

func TestCommandsFireChangeAndUndo(t *testing.T) {
	rec := &recorder{}
	e := New("abc", rec.fn, Options{})
	if err := e.Bold(); err != nil {
		t.Fatal(err)
	}
	if len(rec.got) != 0 {
		t.Fatalf("caret bold should not change content: %v", rec.got)
	}
	e.SelectAll()
	if err := e.Bold(); err != nil {
		t.Fatal(err)
	}
	if err := e.Align(richtext.AlignCenter); err != nil {
		t.Fatal(err)
	}
	if got := rec.got[len(rec.got)-1]; got != `<div style="text-align: center;"><b>abc</b></div>` {
		t.Fatalf("last change = %q", got)
	}
	if !e.Undo() || e.HTML() != "<b>abc</b>" {
		t.Fatalf("undo align = %q", e.HTML())
	}
	if !e.Undo() || e.HTML() != "abc" {
		t.Fatalf("undo bold = %q", e.HTML())
	}
	if e.Undo() {
		t.Fatalf("history should be exhausted")
	}
	if !e.Redo() || e.HTML() != "<b>abc</b>" {
		t.Fatalf("redo = %q", e.HTML())
	}
	if got := rec.got[len(rec.got)-1]; got != "<b>abc</b>" {
		t.Fatalf("redo change = %q", got)
	}
}

func TestClearFiresEmpty(t *testing.T) {
	rec := &recorder{}
	e := New("abc", rec.fn, Options{})
	if err := e.Clear(); err != nil {
		t.Fatal(err)
	}
	if len(rec.got) != 1 || rec.got[0] != "" {
		t.Fatalf("changes = %#v", rec.got)
	}
}

func TestInsertImage(t *testing.T) {
	rec := &recorder{}
	e := New("ab", rec.fn, Options{})
	e.SetSelection(richtext.Caret(1))
	if err := e.InsertImage(pngBytes(t), "image/png"); err != nil {
		t.Fatal(err)
	}
	html := e.HTML()
	if !strings.HasPrefix(html, `a<img src="data:image/png;base64,`) || !strings.Contains(html, "width: 200px; max-width: 100%;") {
		t.Fatalf("inserted = %q", html)
	}
	if err := e.InsertImage([]byte("hello"), ""); !errors.Is(err, ErrNotImage) {
		t.Fatalf("expected ErrNotImage, got %v", err)
	}
	if err := e.InsertImage(pngBytes(t), "text/plain"); !errors.Is(err, ErrNotImage) {
		t.Fatalf("expected ErrNotImage for declared type, got %v", err)
	}
	if len(rec.got) != 1 {
		t.Fatalf("only the valid insert should fire: %d", len(rec.got))
	}
}

func TestInsertShapeAppends(t *testing.T) {
	e := New("ab", nil, Options{})
	e.SetSelection(richtext.Caret(0))
	if err := e.InsertShape("data:image/png;base64,AAAA"); err != nil {
		t.Fatal(err)
	}
	want := `ab<img src="data:image/png;base64,AAAA" style="width: 300px; max-width: 100%; display: inline-block; cursor: pointer;">`
	if e.HTML() != want {
		t.Fatalf("shape = %q", e.HTML())
	}
}

func TestRequestShape(t *testing.T) {
	if err := New("", nil, Options{}).RequestShape(); !errors.Is(err, ErrNoShapeHandler) {
		t.Fatalf("expected ErrNoShapeHandler, got %v", err)
	}
	called := false
	if err := New("", nil, Options{OnRequestShape: func() { called = true }}).RequestShape(); err != nil || !called {
		t.Fatalf("handler not called: %v", err)
	}
}

func TestReadOnly(t *testing.T) {
	e := New(`<b onclick="x()">hi</b><script>alert(1)</script>`, nil, Options{ReadOnly: true})
	if got := e.Render(); got != "<b>hi</b>" {
		t.Fatalf("render = %q", got)
	}
	if err := e.Bold(); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
	if err := e.SelectImage(0); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
	if err := e.Input("x"); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
}

func TestInputParsesSurface(t *testing.T) {
	rec := &recorder{}
	e := New("a", rec.fn, Options{})
	e.Focus()
	if err := e.Input("ab<i>c</i>"); err != nil {
		t.Fatal(err)
	}
	if len(rec.got) != 1 || rec.got[0] != "ab<i>c</i>" {
		t.Fatalf("changes = %v", rec.got)
	}
	if err := e.Type("d"); err != nil {
		t.Fatal(err)
	}
	if !e.Undo() || e.HTML() != "a" {
		t.Fatalf("typing burst should undo in one step, got %q", e.HTML())
	}
}
