/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package richtext

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoSuchImage  = errors.New("no such image")
	ErrInvalidAlign = errors.New("invalid alignment")
	ErrUnknownFont  = errors.New("font not in catalog")
	ErrFontSize     = errors.New("font size step out of range")
	ErrInvalidColor = errors.New("invalid color")
)

// Command is a pure transform: it never mutates d and returns the new document together
// with the selection that should follow it.
type Command interface {
	Apply(d *Doc, r Range) (*Doc, Range, error)
}

// ToggleBold sets bold over the range, or clears it when every character already has it.
type ToggleBold struct{}

// ToggleItalic is ToggleBold for italics.
type ToggleItalic struct{}

// ToggleUnderline is ToggleBold for underline.
type ToggleUnderline struct{}

func (ToggleBold) Apply(d *Doc, r Range) (*Doc, Range, error) {
	return toggle(d, r, func(m *Marks) *bool { return &m.Bold })
}

func (ToggleItalic) Apply(d *Doc, r Range) (*Doc, Range, error) {
	return toggle(d, r, func(m *Marks) *bool { return &m.Italic })
}

func (ToggleUnderline) Apply(d *Doc, r Range) (*Doc, Range, error) {
	return toggle(d, r, func(m *Marks) *bool { return &m.Underline })
}

func toggle(d *Doc, r Range, field func(*Marks) *bool) (*Doc, Range, error) {
	f := flatten(d)
	r = r.clamp(len(f.units))
	all, found := true, false
	for _, u := range f.units[r.Start:r.End] {
		if u.kind != unitRune {
			continue
		}
		found = true
		if !*field(&u.marks) {
			all = false
		}
	}
	if !found {
		return f.doc(), r, nil
	}
	for i := r.Start; i < r.End; i++ {
		if f.units[i].kind == unitRune {
			*field(&f.units[i].marks) = !all
		}
	}
	return f.doc(), r, nil
}

// restyle applies fn to every character in the range.
func restyle(d *Doc, r Range, fn func(*Marks)) (*Doc, Range, error) {
	f := flatten(d)
	r = r.clamp(len(f.units))
	for i := r.Start; i < r.End; i++ {
		if f.units[i].kind == unitRune {
			fn(&f.units[i].marks)
		}
	}
	return f.doc(), r, nil
}

// SetAlign aligns every block the range touches; a caret aligns its own block.
type SetAlign struct {
	Align Align
}

func (c SetAlign) Apply(d *Doc, r Range) (*Doc, Range, error) {
	switch c.Align {
	case AlignDefault, AlignRight, AlignCenter, AlignLeft, AlignJustify:
	default:
		return nil, r, fmt.Errorf("%w: %q", ErrInvalidAlign, c.Align)
	}
	f := flatten(d)
	r = r.clamp(len(f.units))
	for bi := f.blockIndex(r.Start); bi <= f.blockIndex(r.End); bi++ {
		f.setBlockAlign(bi, c.Align)
	}
	out := f.doc()
	if out.Empty() && c.Align != AlignDefault {
		out = &Doc{Blocks: []Block{{Align: c.Align}}}
	}
	return out, r, nil
}

// SetFont applies a catalog font; "inherit" resets it.
type SetFont struct {
	Name string
}

func (c SetFont) Apply(d *Doc, r Range) (*Doc, Range, error) {
	font, ok := LookupFont(c.Name)
	if !ok {
		return nil, r, fmt.Errorf("%w: %q", ErrUnknownFont, c.Name)
	}
	key := font.Key
	if key == "inherit" {
		key = ""
	}
	return restyle(d, r, func(m *Marks) { m.Font = key })
}

// SetFontSize applies one of the seven named steps.
type SetFontSize struct {
	Step int
}

func (c SetFontSize) Apply(d *Doc, r Range) (*Doc, Range, error) {
	if c.Step < 1 || c.Step > len(FontSizeSteps) {
		return nil, r, fmt.Errorf("%w: %d", ErrFontSize, c.Step)
	}
	return restyle(d, r, func(m *Marks) { m.Size = c.Step })
}

// SetColor applies a text color.
type SetColor struct {
	Color string
}

func (c SetColor) Apply(d *Doc, r Range) (*Doc, Range, error) {
	col := NormalizeColor(c.Color)
	if col == "" {
		return nil, r, fmt.Errorf("%w: %q", ErrInvalidColor, c.Color)
	}
	return restyle(d, r, func(m *Marks) { m.Color = col })
}

// InsertImage replaces the range with an image and puts the caret after it.
type InsertImage struct {
	Image Image
}

// NewImage is the default toolbar image: 200px wide, never wider than the field.
func NewImage(src string) Image {
	return Image{Src: src, Width: 200, MaxWidth: "100%", Cursor: "pointer"}
}

// ShapeImage is the composer result: 300px wide, inline.
func ShapeImage(src string) Image {
	return Image{Src: src, Width: 300, MaxWidth: "100%", Display: "inline-block", Cursor: "pointer"}
}

func (c InsertImage) Apply(d *Doc, r Range) (*Doc, Range, error) {
	if strings.TrimSpace(c.Image.Src) == "" {
		return nil, r, fmt.Errorf("%w: empty source", ErrNoSuchImage)
	}
	f := flatten(d)
	r = r.clamp(len(f.units))
	f.units = splice(f.units, r, []unit{{kind: unitImage, img: c.Image}})
	return f.doc(), Caret(r.Start + 1), nil
}

// InsertText replaces the range with text. Newlines become line breaks and the new
// characters take the marks of the character before the caret.
type InsertText struct {
	Text string
}

func (c InsertText) Apply(d *Doc, r Range) (*Doc, Range, error) {
	f := flatten(d)
	r = r.clamp(len(f.units))
	marks := f.marksAt(r.Start)
	var ins []unit
	for _, ch := range strings.ReplaceAll(c.Text, "\r\n", "\n") {
		if ch == '\n' {
			ins = append(ins, unit{kind: unitBreak})
			continue
		}
		ins = append(ins, unit{kind: unitRune, r: ch, marks: marks})
	}
	f.units = splice(f.units, r, ins)
	return f.doc(), Caret(r.Start + len(ins)), nil
}

// DeleteRange removes the selected content; crossing a block boundary merges blocks.
type DeleteRange struct{}

func (DeleteRange) Apply(d *Doc, r Range) (*Doc, Range, error) {
	f := flatten(d)
	r = r.clamp(len(f.units))
	f.units = splice(f.units, r, nil)
	return f.doc(), Caret(r.Start), nil
}

// Clear empties the document.
type Clear struct{}

func (Clear) Apply(*Doc, Range) (*Doc, Range, error) {
	return &Doc{}, Caret(0), nil
}

func splice(units []unit, r Range, ins []unit) []unit {
	out := make([]unit, 0, len(units)-(r.End-r.Start)+len(ins))
	out = append(out, units[:r.Start]...)
	out = append(out, ins...)
	return append(out, units[r.End:]...)
}

// marksAt returns the marks a character typed at p would take.
func (f flat) marksAt(p int) Marks {
back:
	for i := p - 1; i >= 0; i-- {
		switch f.units[i].kind {
		case unitRune:
			return f.units[i].marks
		case unitBlock:
			break back
		}
	}
	if p < len(f.units) && f.units[p].kind == unitRune {
		return f.units[p].marks
	}
	return Marks{}
}

// Apply runs a sequence of commands over the same starting selection.
func Apply(d *Doc, r Range, cmds ...Command) (*Doc, Range, error) {
	var err error
	for _, c := range cmds {
		if d, r, err = c.Apply(d, r); err != nil {
			return nil, r, err
		}
	}
	return d, r, nil
}
