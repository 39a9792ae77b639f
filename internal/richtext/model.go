/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package richtext is the structured model behind a long-form field: blocks of styled
// text runs, inline images and line breaks. Every toolbar action is a pure Command over
// this model; HTML is only an import/export format.
//
// Positions are linear offsets: each rune, image and break counts 1, and every block
// boundary counts 1.
package richtext

import "unicode/utf8"

// Align is a block's paragraph alignment. The zero value inherits the surface direction.
type Align string

const (
	AlignDefault Align = ""
	AlignRight   Align = "right"
	AlignCenter  Align = "center"
	AlignLeft    Align = "left"
	AlignJustify Align = "justify"
)

// Marks are the character-level formats of a text run.
type Marks struct {
	Bold      bool
	Italic    bool
	Underline bool
	Font      string // catalog key or raw family; "" inherits
	Size      int    // 1..7, 0 inherits
	Color     string // "#rrggbb" or a CSS color name; "" inherits
}

// Inline is one of Text, Image or Break.
type Inline interface {
	inlineLen() int
}

// Text is a run of characters sharing the same marks.
type Text struct {
	Text  string
	Marks Marks
}

// Image is an embedded raster. Width/Height are CSS pixels, 0 means unset.
type Image struct {
	Src      string
	Width    float64
	Height   float64
	MaxWidth string
	Display  string
	VAlign   string
	Cursor   string
}

// Break is a line break inside a block.
type Break struct{}

func (t Text) inlineLen() int { return utf8.RuneCountInString(t.Text) }
func (Image) inlineLen() int  { return 1 }
func (Break) inlineLen() int  { return 1 }

// Block is a paragraph.
type Block struct {
	Align   Align
	Inlines []Inline
}

// Doc is a rich-text document. The zero value is empty.
type Doc struct {
	Blocks []Block
}

// Range is a half-open span of linear offsets. Start == End is a caret.
type Range struct {
	Start, End int
}

// Caret returns a collapsed range at p.
func Caret(p int) Range { return Range{Start: p, End: p} }

// Collapsed reports whether the range selects nothing.
func (r Range) Collapsed() bool { return r.Start == r.End }

// clamp orders the range and bounds it to [0, n].
func (r Range) clamp(n int) Range {
	if r.Start > r.End {
		r.Start, r.End = r.End, r.Start
	}
	r.Start = min(max(r.Start, 0), n)
	r.End = min(max(r.End, 0), n)
	return r
}

// Len is the number of addressable positions minus one.
func (d *Doc) Len() int {
	if d == nil || len(d.Blocks) == 0 {
		return 0
	}
	n := len(d.Blocks) - 1
	for _, b := range d.Blocks {
		for _, in := range b.Inlines {
			n += in.inlineLen()
		}
	}
	return n
}

// Empty reports whether the document holds no content and no formatting.
func (d *Doc) Empty() bool {
	return d == nil || len(d.Blocks) == 0
}

// Clone returns a deep copy.
func (d *Doc) Clone() *Doc {
	if d == nil {
		return &Doc{}
	}
	return flatten(d).doc()
}

// PlainText returns the text content with breaks and block boundaries as newlines
// and images as U+FFFC.
func (d *Doc) PlainText() string {
	f := flatten(d)
	out := make([]rune, 0, len(f.units))
	for _, u := range f.units {
		switch u.kind {
		case unitRune:
			out = append(out, u.r)
		case unitImage:
			out = append(out, '￼')
		default:
			out = append(out, '\n')
		}
	}
	return string(out)
}

// Images lists the embedded images in document order.
func (d *Doc) Images() []Image {
	if d == nil {
		return nil
	}
	var imgs []Image
	for _, b := range d.Blocks {
		for _, in := range b.Inlines {
			if img, ok := in.(Image); ok {
				imgs = append(imgs, img)
			}
		}
	}
	return imgs
}

// ImageOffset returns the linear offset of the i-th image.
func (d *Doc) ImageOffset(i int) (int, bool) {
	f := flatten(d)
	if p := f.imagePos(i); p >= 0 {
		return p, true
	}
	return 0, false
}

// DeleteImage removes the i-th image.
func (d *Doc) DeleteImage(i int) (*Doc, error) {
	f := flatten(d)
	p := f.imagePos(i)
	if p < 0 {
		return nil, ErrNoSuchImage
	}
	f.units = append(f.units[:p:p], f.units[p+1:]...)
	return f.doc(), nil
}

// ResizeImage sets the rendered size of the i-th image.
func (d *Doc) ResizeImage(i int, w, h float64) (*Doc, error) {
	f := flatten(d)
	p := f.imagePos(i)
	if p < 0 {
		return nil, ErrNoSuchImage
	}
	f.units[p].img.Width = w
	f.units[p].img.Height = h
	return f.doc(), nil
}

type unitKind uint8

const (
	unitRune unitKind = iota
	unitImage
	unitBreak
	unitBlock // boundary; align belongs to the block that follows
)

type unit struct {
	kind  unitKind
	r     rune
	marks Marks
	img   Image
	align Align
}

// flat is the one-unit-per-position form every edit operates on.
type flat struct {
	first Align
	units []unit
}

func flatten(d *Doc) flat {
	var f flat
	if d == nil {
		return f
	}
	for bi, b := range d.Blocks {
		if bi == 0 {
			f.first = b.Align
		} else {
			f.units = append(f.units, unit{kind: unitBlock, align: b.Align})
		}
		for _, in := range b.Inlines {
			switch v := in.(type) {
			case Text:
				for _, r := range v.Text {
					f.units = append(f.units, unit{kind: unitRune, r: r, marks: v.Marks})
				}
			case Image:
				f.units = append(f.units, unit{kind: unitImage, img: v})
			case Break:
				f.units = append(f.units, unit{kind: unitBreak})
			}
		}
	}
	return f
}

func (f flat) doc() *Doc {
	blocks := []Block{{Align: f.first}}
	cur := &blocks[0]
	for _, u := range f.units {
		switch u.kind {
		case unitBlock:
			blocks = append(blocks, Block{Align: u.align})
			cur = &blocks[len(blocks)-1]
		case unitImage:
			cur.Inlines = append(cur.Inlines, u.img)
		case unitBreak:
			cur.Inlines = append(cur.Inlines, Break{})
		case unitRune:
			if n := len(cur.Inlines); n > 0 {
				if t, ok := cur.Inlines[n-1].(Text); ok && t.Marks == u.marks {
					t.Text += string(u.r)
					cur.Inlines[n-1] = t
					continue
				}
			}
			cur.Inlines = append(cur.Inlines, Text{Text: string(u.r), Marks: u.marks})
		}
	}
	if len(blocks) == 1 && blocks[0].Align == AlignDefault && len(blocks[0].Inlines) == 0 {
		return &Doc{}
	}
	return &Doc{Blocks: blocks}
}

func (f flat) imagePos(i int) int {
	if i < 0 {
		return -1
	}
	n := 0
	for p, u := range f.units {
		if u.kind != unitImage {
			continue
		}
		if n == i {
			return p
		}
		n++
	}
	return -1
}

// blockIndex returns the index of the block containing position p.
func (f flat) blockIndex(p int) int {
	n := 0
	for _, u := range f.units[:p] {
		if u.kind == unitBlock {
			n++
		}
	}
	return n
}

func (f *flat) setBlockAlign(bi int, a Align) {
	if bi == 0 {
		f.first = a
		return
	}
	n := 0
	for i := range f.units {
		if f.units[i].kind != unitBlock {
			continue
		}
		n++
		if n == bi {
			f.units[i].align = a
			return
		}
	}
}
