/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package editor binds one long-form field to a richtext model. The model is the source
// of truth while editing; markup flows out through the change callback and back in
// through SetValue, which never overwrites a focused surface.
//
// An Editor is owned by a single goroutine. Viewport signals must be delivered on it.
package editor

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/vincent-petithory/dataurl"

	applog "lessonprep/internal/log"
	"lessonprep/internal/richtext"
	"lessonprep/internal/undo"
)

// Mode is the toolbar state of an editor. Exactly one is active.
type Mode int

const (
	ModeToolbar Mode = iota
	ModeImage
)

func (m Mode) String() string {
	if m == ModeImage {
		return "image"
	}
	return "toolbar"
}

var (
	ErrReadOnly       = errors.New("editor is read-only")
	ErrImageMode      = errors.New("command unavailable while an image is selected")
	ErrNoShapeHandler = errors.New("no shape handler configured")
	ErrNotImage       = errors.New("content is not an image")
	ErrNoSelection    = errors.New("no image selected")
)

// Options configure an Editor. Zero values give an editable surface with a private
// history, no viewport and flow geometry.
type Options struct {
	ReadOnly       bool
	OnRequestShape func()
	Viewport       Viewport
	Geometry       Geometry
	History        *undo.Manager
	// Field keys the history; defaults to "field".
	Field  string
	Clock  func() time.Time
	Logger *slog.Logger
}

// Editor is the binding between a field value and its editable surface.
type Editor struct {
	opts     Options
	onChange func(string)
	log      *slog.Logger

	value   string // last value seen from the host or emitted to it
	doc     *richtext.Doc
	sel     richtext.Range
	focused bool

	mode     Mode
	selected int
	selSrc   string
	unsub    func()
	overlay  Overlay
	resizing *resizeState
}

// New creates an editor over value. onChange may be nil.
func New(value string, onChange func(string), opts Options) *Editor {
	if opts.Field == "" {
		opts.Field = "field"
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.History == nil {
		opts.History = undo.NewManager(undo.Config{})
	}
	if opts.Geometry == nil {
		opts.Geometry = &FlowGeometry{}
	}
	l := opts.Logger
	if l == nil {
		l = applog.WithComponent("editor")
	}
	e := &Editor{
		opts:     opts,
		onChange: onChange,
		log:      l.With(slog.String("field", opts.Field)),
		value:    value,
		selected: -1,
	}
	e.doc = e.parse(value)
	e.sel = richtext.Caret(e.doc.Len())
	return e
}

func (e *Editor) parse(v string) *richtext.Doc {
	d, err := richtext.Parse(v)
	if err != nil {
		e.log.Debug("unparseable markup replaced by empty content", slog.Any("err", err))
		return &richtext.Doc{}
	}
	return d
}

// ReadOnly reports whether the editor renders static content only.
func (e *Editor) ReadOnly() bool { return e.opts.ReadOnly }

// Render returns the markup to display: sanitised static HTML when read-only,
// the live surface otherwise.
func (e *Editor) Render() string {
	if e.opts.ReadOnly {
		return richtext.Sanitize(e.value)
	}
	return e.doc.HTML()
}

// HTML returns the current surface markup.
func (e *Editor) HTML() string { return e.doc.HTML() }

// Doc returns a copy of the live model.
func (e *Editor) Doc() *richtext.Doc { return e.doc.Clone() }

// Mode returns the active toolbar mode.
func (e *Editor) Mode() Mode { return e.mode }

func (e *Editor) Focus()        { e.focused = true }
func (e *Editor) Blur()         { e.focused = false }
func (e *Editor) Focused() bool { return e.focused }

// Selection returns the text selection.
func (e *Editor) Selection() richtext.Range { return e.sel }

// SetSelection moves the text selection; it is clamped to the document.
func (e *Editor) SetSelection(r richtext.Range) {
	n := e.doc.Len()
	r.Start = min(max(r.Start, 0), n)
	r.End = min(max(r.End, 0), n)
	e.sel = r
}

// SelectAll selects the whole document.
func (e *Editor) SelectAll() { e.sel = richtext.Range{Start: 0, End: e.doc.Len()} }

// SetValue reconciles an externally supplied value. The surface is replaced only when
// it does not hold focus and v differs from the current surface markup. It never fires
// the change callback.
func (e *Editor) SetValue(v string) bool {
	if e.opts.ReadOnly {
		e.value = v
		return true
	}
	if e.focused || v == e.doc.HTML() {
		return false
	}
	e.value = v
	e.doc = e.parse(v)
	e.SetSelection(e.sel)
	e.checkSelection()
	return true
}

// Input applies surface markup typed by the user.
func (e *Editor) Input(markup string) error {
	if e.opts.ReadOnly {
		return ErrReadOnly
	}
	d, err := richtext.Parse(markup)
	if err != nil {
		e.log.Debug("input ignored", slog.Any("err", err))
		return err
	}
	e.record(true)
	e.doc = d
	e.SetSelection(e.sel)
	e.checkSelection()
	e.emit()
	return nil
}

// Type inserts text at the selection as keyboard input would.
func (e *Editor) Type(text string) error {
	if e.opts.ReadOnly {
		return ErrReadOnly
	}
	return e.apply(richtext.InsertText{Text: text}, true)
}

func (e *Editor) command(c richtext.Command) error {
	if e.opts.ReadOnly {
		return ErrReadOnly
	}
	if e.mode == ModeImage {
		return ErrImageMode
	}
	return e.apply(c, false)
}

func (e *Editor) apply(c richtext.Command, typing bool) error {
	out, sel, err := c.Apply(e.doc, e.sel)
	if err != nil {
		return err
	}
	if out.HTML() == e.doc.HTML() {
		e.sel = sel
		return nil
	}
	e.record(typing)
	e.doc, e.sel = out, sel
	e.checkSelection()
	e.emit()
	return nil
}

func (e *Editor) Bold() error      { return e.command(richtext.ToggleBold{}) }
func (e *Editor) Italic() error    { return e.command(richtext.ToggleItalic{}) }
func (e *Editor) Underline() error { return e.command(richtext.ToggleUnderline{}) }

// Align sets the paragraph alignment (right, center, left).
func (e *Editor) Align(a richtext.Align) error { return e.command(richtext.SetAlign{Align: a}) }

// Font applies a FontCatalog entry.
func (e *Editor) Font(name string) error { return e.command(richtext.SetFont{Name: name}) }

// FontSize applies a named size step 1..7.
func (e *Editor) FontSize(step int) error { return e.command(richtext.SetFontSize{Step: step}) }

// Color applies a text color.
func (e *Editor) Color(c string) error { return e.command(richtext.SetColor{Color: c}) }

// Clear empties the field; the change callback receives "".
func (e *Editor) Clear() error { return e.command(richtext.Clear{}) }

// InsertImage embeds raw image bytes at the selection as a data URL. declared is the
// picker's MIME type and may be empty; the content itself must sniff as an image.
func (e *Editor) InsertImage(data []byte, declared string) error {
	if e.opts.ReadOnly {
		return ErrReadOnly
	}
	if e.mode == ModeImage {
		return ErrImageMode
	}
	src, err := ImageDataURL(data, declared)
	if err != nil {
		e.log.Debug("image insert ignored", slog.String("declared", declared), slog.Any("err", err))
		return err
	}
	return e.apply(richtext.InsertImage{Image: richtext.NewImage(src)}, false)
}

// InsertShape appends a composer result to the end of the field.
func (e *Editor) InsertShape(src string) error {
	if e.opts.ReadOnly {
		return ErrReadOnly
	}
	e.sel = richtext.Caret(e.doc.Len())
	return e.apply(richtext.InsertImage{Image: richtext.ShapeImage(src)}, false)
}

// RequestShape asks the host to open the shape composer.
func (e *Editor) RequestShape() error {
	if e.opts.ReadOnly {
		return ErrReadOnly
	}
	if e.mode == ModeImage {
		return ErrImageMode
	}
	if e.opts.OnRequestShape == nil {
		return ErrNoShapeHandler
	}
	e.opts.OnRequestShape()
	return nil
}

// Undo restores the state before the last edit.
func (e *Editor) Undo() bool {
	if e.opts.ReadOnly {
		return false
	}
	s, ok := e.opts.History.Undo(e.opts.Field, e.snapshot(false))
	if !ok {
		return false
	}
	e.restore(s)
	return true
}

// Redo re-applies the last undone edit.
func (e *Editor) Redo() bool {
	if e.opts.ReadOnly {
		return false
	}
	s, ok := e.opts.History.Redo(e.opts.Field, e.snapshot(false))
	if !ok {
		return false
	}
	e.restore(s)
	return true
}

func (e *Editor) restore(s undo.Snapshot) {
	e.doc = e.parse(s.HTML)
	e.SetSelection(richtext.Range{Start: s.SelStart, End: s.SelEnd})
	e.checkSelection()
	e.emit()
}

func (e *Editor) snapshot(typing bool) undo.Snapshot {
	return undo.Snapshot{
		Field:    e.opts.Field,
		HTML:     e.doc.HTML(),
		SelStart: e.sel.Start,
		SelEnd:   e.sel.End,
		TS:       e.opts.Clock(),
		Coalesce: typing,
	}
}

func (e *Editor) record(typing bool) { e.opts.History.Push(e.snapshot(typing)) }

// emit fires the change callback when the markup differs from the last known value.
func (e *Editor) emit() {
	html := e.doc.HTML()
	if html == e.value {
		return
	}
	e.value = html
	if e.onChange != nil {
		e.onChange(html)
	}
}

// ImageDataURL validates image bytes and encodes them as a base64 data URL.
func ImageDataURL(data []byte, declared string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty", ErrNotImage)
	}
	if declared != "" && !strings.HasPrefix(strings.ToLower(declared), "image/") {
		return "", fmt.Errorf("%w: declared %s", ErrNotImage, declared)
	}
	mt := mimetype.Detect(data)
	// svg can carry script
	if !strings.HasPrefix(mt.String(), "image/") || mt.Is("image/svg+xml") {
		return "", fmt.Errorf("%w: detected %s", ErrNotImage, mt.String())
	}
	return dataurl.New(data, mt.String()).String(), nil
}
