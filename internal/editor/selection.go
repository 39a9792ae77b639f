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
	"log/slog"
	"strings"
	"time"

	"lessonprep/internal/richtext"
	"lessonprep/internal/undo"
)

// MinImageSize is the per-axis floor for drag resizing, in CSS pixels.
const MinImageSize = 20.0

// Handle names one of the eight resize grips.
type Handle string

const (
	HandleNW Handle = "nw"
	HandleN  Handle = "n"
	HandleNE Handle = "ne"
	HandleE  Handle = "e"
	HandleSE Handle = "se"
	HandleS  Handle = "s"
	HandleSW Handle = "sw"
	HandleW  Handle = "w"
)

// Handles lists the grips clockwise from the top-left corner.
var Handles = []Handle{HandleNW, HandleN, HandleNE, HandleE, HandleSE, HandleS, HandleSW, HandleW}

// Point is a position in surface content coordinates.
type Point struct{ X, Y float64 }

// Overlay is the selection frame drawn over the selected image.
type Overlay struct {
	Box     Box
	Handles map[Handle]Point
}

type resizeState struct {
	handle        Handle
	startW, lastW float64
	startH, lastH float64
	before        string
	beforeSel     [2]int
}

// SelectImage enters image mode for the i-th image and starts tracking the viewport.
func (e *Editor) SelectImage(i int) error {
	if e.opts.ReadOnly {
		return ErrReadOnly
	}
	imgs := e.doc.Images()
	if i < 0 || i >= len(imgs) {
		return richtext.ErrNoSuchImage
	}
	e.resizing = nil
	e.mode = ModeImage
	e.selected = i
	e.selSrc = imgs[i].Src
	if e.unsub == nil && e.opts.Viewport != nil {
		e.unsub = e.opts.Viewport.Subscribe(e.onViewport)
	}
	e.refreshOverlay()
	return nil
}

// Selected returns the selected image index, or -1.
func (e *Editor) Selected() int { return e.selected }

// Deselect returns to toolbar mode and stops tracking the viewport.
func (e *Editor) Deselect() {
	e.mode = ModeToolbar
	e.selected = -1
	e.selSrc = ""
	e.resizing = nil
	e.overlay = Overlay{}
	if e.unsub != nil {
		e.unsub()
		e.unsub = nil
	}
}

// ClickElsewhere is a click on anything but the selected image or its grips.
func (e *Editor) ClickElsewhere() { e.Deselect() }

// DeleteSelectedImage removes the selected image and fires the change callback.
func (e *Editor) DeleteSelectedImage() error {
	if e.opts.ReadOnly {
		return ErrReadOnly
	}
	if e.mode != ModeImage || !e.attached() {
		e.Deselect()
		return ErrNoSelection
	}
	out, err := e.doc.DeleteImage(e.selected)
	if err != nil {
		e.Deselect()
		return err
	}
	e.record(false)
	e.doc = out
	e.SetSelection(e.sel)
	e.Deselect()
	e.emit()
	return nil
}

// attached reports whether the selected image is still part of the document.
func (e *Editor) attached() bool {
	if e.selected < 0 {
		return false
	}
	imgs := e.doc.Images()
	return e.selected < len(imgs) && imgs[e.selected].Src == e.selSrc
}

// checkSelection drops a selection whose image left the document.
func (e *Editor) checkSelection() {
	if e.mode == ModeImage && !e.attached() {
		e.log.Debug("selected image detached", slog.Int("index", e.selected))
		e.Deselect()
	}
}

// Overlay returns the resize frame for the selected image. The second result is false
// in toolbar mode or when the image is no longer laid out.
func (e *Editor) Overlay() (Overlay, bool) {
	if e.mode != ModeImage {
		return Overlay{}, false
	}
	if !e.refreshOverlay() {
		return Overlay{}, false
	}
	return e.overlay, true
}

func (e *Editor) onViewport(sig Signal) {
	if e.mode != ModeImage {
		return
	}
	if !e.refreshOverlay() {
		e.log.Debug("overlay cleared on viewport change", slog.String("signal", sig.String()))
	}
}

// refreshOverlay recomputes the frame from current geometry, clearing the selection when
// the image is gone.
func (e *Editor) refreshOverlay() bool {
	if !e.attached() {
		e.Deselect()
		return false
	}
	g := e.opts.Geometry
	img, ok := g.ImageRect(e.doc, e.selected)
	if !ok {
		e.Deselect()
		return false
	}
	surf := g.SurfaceRect()
	sx, sy := g.Scroll()
	b := Box{X: img.X - surf.X + sx, Y: img.Y - surf.Y + sy, W: img.W, H: img.H}
	e.overlay = Overlay{Box: b, Handles: handlePoints(b)}
	return true
}

func handlePoints(b Box) map[Handle]Point {
	cx, cy := b.X+b.W/2, b.Y+b.H/2
	r, btm := b.X+b.W, b.Y+b.H
	return map[Handle]Point{
		HandleNW: {b.X, b.Y}, HandleN: {cx, b.Y}, HandleNE: {r, b.Y}, HandleE: {r, cy},
		HandleSE: {r, btm}, HandleS: {cx, btm}, HandleSW: {b.X, btm}, HandleW: {b.X, cy},
	}
}

// BeginResize starts a drag on one of the grips. Without an attached selection it is a no-op.
func (e *Editor) BeginResize(h Handle) error {
	if e.opts.ReadOnly {
		return ErrReadOnly
	}
	if !validHandle(h) {
		return ErrNoSelection
	}
	if e.mode != ModeImage || !e.attached() {
		return nil
	}
	img := e.doc.Images()[e.selected]
	w, ht := img.Width, img.Height
	if w <= 0 || ht <= 0 {
		if box, ok := e.opts.Geometry.ImageRect(e.doc, e.selected); ok {
			if w <= 0 {
				w = box.W
			}
			if ht <= 0 {
				ht = box.H
			}
		}
	}
	e.resizing = &resizeState{
		handle: h,
		startW: w, lastW: w,
		startH: ht, lastH: ht,
		before:    e.doc.HTML(),
		beforeSel: [2]int{e.sel.Start, e.sel.End},
	}
	return nil
}

func (rs *resizeState) snapshot(field string, ts time.Time) undo.Snapshot {
	return undo.Snapshot{Field: field, HTML: rs.before, SelStart: rs.beforeSel[0], SelEnd: rs.beforeSel[1], TS: ts}
}

func validHandle(h Handle) bool {
	for _, x := range Handles {
		if x == h {
			return true
		}
	}
	return false
}

// DragTo moves the active grip by (dx, dy) from where the drag began. Each axis keeps its
// last valid size when the candidate falls below MinImageSize.
func (e *Editor) DragTo(dx, dy float64) {
	rs := e.resizing
	if rs == nil {
		return
	}
	if !e.attached() {
		e.resizing = nil
		e.Deselect()
		return
	}
	dir := string(rs.handle)
	w, h := rs.lastW, rs.lastH
	switch {
	case strings.Contains(dir, "e"):
		w = candidate(rs.startW+dx, rs.lastW)
	case strings.Contains(dir, "w"):
		w = candidate(rs.startW-dx, rs.lastW)
	}
	switch {
	case strings.Contains(dir, "s"):
		h = candidate(rs.startH+dy, rs.lastH)
	case strings.Contains(dir, "n"):
		h = candidate(rs.startH-dy, rs.lastH)
	}
	if w == rs.lastW && h == rs.lastH {
		return
	}
	out, err := e.doc.ResizeImage(e.selected, w, h)
	if err != nil {
		return
	}
	e.doc = out
	rs.lastW, rs.lastH = w, h
	e.refreshOverlay()
}

func candidate(v, last float64) float64 {
	if v < MinImageSize {
		return last
	}
	return v
}

// EndResize finishes the drag and fires the change callback once.
func (e *Editor) EndResize() {
	rs := e.resizing
	if rs == nil {
		return
	}
	e.resizing = nil
	if rs.lastW == rs.startW && rs.lastH == rs.startH {
		return
	}
	e.opts.History.Push(rs.snapshot(e.opts.Field, e.opts.Clock()))
	e.emit()
}

// Resizing reports whether a drag is in progress.
func (e *Editor) Resizing() bool { return e.resizing != nil }

// ImageSize returns the model size of the i-th image.
func (e *Editor) ImageSize(i int) (w, h float64, ok bool) {
	imgs := e.doc.Images()
	if i < 0 || i >= len(imgs) {
		return 0, 0, false
	}
	return imgs[i].Width, imgs[i].Height, true
}
