/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package sheet

import (
	"fmt"
	"image"
	"strings"

	"lessonprep/internal/domain"
	"lessonprep/internal/richtext"
	tl "lessonprep/internal/textlayout"
	"lessonprep/internal/vector"
)

// Page metrics in layout units.
const (
	pagePad    = 32.0
	sectionGap = 16.0
	sectionPad = 16.0
	cellPad    = 6.0
	minCellH   = 28.0
	minFieldH  = 80.0
	checkSize  = 14.0

	// unsized images fall back to this width and a 4:3 box
	defaultImageW = 200.0

	untitled = "بدون عنوان"
	noValue  = "---"
)

var (
	ink       = vector.MustHex("#0f172a")
	muted     = vector.MustHex("#64748b")
	faint     = vector.MustHex("#94a3b8")
	panelFill = vector.MustHex("#f8fafc")
	headFill  = vector.MustHex("#f1f5f9")
	accent    = vector.MustHex("#4f46e5")
)

type ItemKind uint8

const (
	ItemFrame ItemKind = iota
	ItemText
)

// Item is one drawing instruction in layout units.
type Item struct {
	Kind   ItemKind
	Rect   vector.Rect
	Fill   vector.Fill
	Stroke vector.Stroke
	Radius float64

	// text lines are right-to-left: the first item sits at the right edge
	Line  tl.Line
	Color vector.Color
}

// Layout is the page laid out at one width. The watermark is painted behind the
// items and takes no room in the flow.
type Layout struct {
	Width, Height float64
	Items         []Item
	Watermark     string
}

// Watermark grid geometry in layout units.
const (
	watermarkStepX = 240.0
	watermarkStepY = 150.0
	watermarkAngle = -30.0 // degrees
	watermarkAlpha = 40
)

// WatermarkTiles returns the centres of the repeated watermark labels covering
// the page. Alternate rows are offset by half a step. Empty without a label.
func (l *Layout) WatermarkTiles() []vector.Pt {
	if l.Watermark == "" || l.Width <= 0 || l.Height <= 0 {
		return nil
	}
	var out []vector.Pt
	for row, y := 0, watermarkStepY/2; y < l.Height; row, y = row+1, y+watermarkStepY {
		x := watermarkStepX / 2
		if row%2 == 1 {
			x = 0
		}
		for ; x <= l.Width; x += watermarkStepX {
			out = append(out, vector.Pt{X: x, Y: y})
		}
	}
	return out
}

// Images lists the inline image references in drawing order.
func (l *Layout) Images() []ImageRef {
	var out []ImageRef
	for _, it := range l.Items {
		for _, li := range it.Line.Items {
			if ref, ok := li.Run.Ref.(ImageRef); ok {
				out = append(out, ref)
			}
		}
	}
	return out
}

// ImageRef rides on an inline box run.
type ImageRef struct {
	Src   string
	Image image.Image // nil when unresolved
}

type checkRef struct{ checked bool }

type markRef struct {
	color     vector.Color
	hasColor  bool
	underline bool
}

// Layout returns the cached layout, building it when needed.
func (s *Sheet) Layout() (*Layout, error) {
	if s.cached != nil {
		return s.cached, nil
	}
	b := &builder{s: s, fonts: s.opts.Fonts, x: pagePad, w: s.width - 2*pagePad, y: pagePad}
	if b.w <= 0 {
		return nil, fmt.Errorf("sheet width %v too small", s.width)
	}
	if err := b.build(s.doc); err != nil {
		return nil, err
	}
	s.cached = &Layout{
		Width:     s.width,
		Height:    b.y + pagePad - sectionGap,
		Items:     b.items,
		Watermark: s.doc.Watermark.Label(),
	}
	return s.cached, nil
}

type builder struct {
	s     *Sheet
	fonts tl.Provider
	x, w  float64
	y     float64
	items []Item
}

func (b *builder) build(d *domain.LessonDocument) error {
	b.schedule(d)
	b.titleSection(d)
	b.objectives(d)
	b.strategies(d)
	for _, key := range domain.LongFormFields {
		html, _ := d.Field(key)
		if err := b.field(domain.FieldLabels[key], html); err != nil {
			return fmt.Errorf("lay out %s: %w", key, err)
		}
	}
	if strings.TrimSpace(d.Homework) != "" {
		b.panel(func(x, w float64) float64 {
			runs := []tl.Run{tl.MustStyle(tl.StyleHeading).Run(domain.LabelHomework), {Break: true}}
			runs = append(runs, plainRuns(tl.MustStyle(tl.StyleBody), d.Homework)...)
			return b.text(x, b.y, w, runs, richtext.AlignDefault, ink)
		})
	}
	return nil
}

// schedule draws the 3x7 grid with row captions in the right-most column.
func (b *builder) schedule(d *domain.LessonDocument) {
	cols := domain.ScheduleCols + 1
	colW := b.w / float64(cols)
	cell := tl.MustStyle(tl.StyleCell)
	head := cell
	head.Font.Bold = true
	for r := 0; r < domain.ScheduleRows; r++ {
		boxes := make([]tl.TextBox, cols)
		rowH := minCellH
		for c := 0; c < cols; c++ {
			var run tl.Run
			if c == 0 {
				run = head.Run(domain.ScheduleRowLabels[r])
			} else {
				run = cell.Run(d.Schedule.Cell(r, c-1))
			}
			boxes[c] = tl.Layout(b.fonts, []tl.Run{run}, colW-2*cellPad)
			rowH = max(rowH, boxes[c].Height+2*cellPad)
		}
		for c := 0; c < cols; c++ {
			x := b.x + b.w - float64(c+1)*colW
			f := vector.NoFill
			if c == 0 {
				f = vector.Solid(headFill)
			}
			b.items = append(b.items, Item{Kind: ItemFrame, Rect: vector.R(x, b.y, colW, rowH), Fill: f, Stroke: vector.Pen(ink, 1)})
			top := b.y + (rowH-boxes[c].Height)/2
			b.lines(x+cellPad, top, colW-2*cellPad, boxes[c], richtext.AlignCenter, ink)
		}
		b.y += rowH
	}
	b.y += sectionGap
}

func (b *builder) titleSection(d *domain.LessonDocument) {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		title = untitled
	}
	h := tl.MustStyle(tl.StyleHeading)
	t := tl.MustStyle(tl.StyleTitle)
	b.panel(func(x, w float64) float64 {
		return b.text(x, b.y, w, []tl.Run{h.Run(domain.LabelTitle + " "), t.Run(title)}, richtext.AlignDefault, ink)
	})
}

func (b *builder) objectives(d *domain.LessonDocument) {
	h := tl.MustStyle(tl.StyleHeading)
	body := tl.MustStyle(tl.StyleBody)
	intro := body
	intro.Font.SizePx = 14
	b.panel(func(x, w float64) float64 {
		runs := []tl.Run{h.Run(domain.LabelObjectives + " "), withColor(intro.Run(domain.LabelObjIntro), muted)}
		for i := 0; i < domain.MaxObjectives; i++ {
			o := strings.TrimSpace(d.Objective(i))
			if o == "" {
				o = noValue
			}
			runs = append(runs, tl.Run{Break: true, Font: body.Font}, body.Run(fmt.Sprintf("%d. %s", i+1, o)))
		}
		return b.text(x, b.y, w, runs, richtext.AlignDefault, ink)
	})
}

func (b *builder) strategies(d *domain.LessonDocument) {
	h := tl.MustStyle(tl.StyleHeading)
	body := tl.MustStyle(tl.StyleCell)
	b.panel(func(x, w float64) float64 {
		runs := []tl.Run{h.Run(domain.LabelStrategies), {Break: true, Font: h.Font}}
		for i, s := range domain.StrategyCatalog {
			on := d.HasStrategy(s)
			if i > 0 {
				runs = append(runs, body.Run("   "))
			}
			st := body
			st.Font.Bold = on
			r := st.Run(s)
			if !on {
				r = withColor(r, muted)
			}
			runs = append(runs, tl.Run{Box: &tl.Box{W: checkSize, H: checkSize}, Ref: checkRef{checked: on}}, body.Run(" "), r)
		}
		return b.text(x, b.y, w, runs, richtext.AlignDefault, ink)
	})
}

// field lays out one long-form slot: caption, then the rich content block by block.
func (b *builder) field(label, html string) error {
	doc, err := richtext.Parse(html)
	if err != nil {
		return err
	}
	b.panel(func(x, w float64) float64 {
		y := b.y
		y += b.text(x, y, w, []tl.Run{tl.MustStyle(tl.StyleHeading).Run(label)}, richtext.AlignDefault, ink)
		y += cellPad
		content := y
		for _, blk := range doc.Blocks {
			y += b.text(x, y, w, b.richRuns(blk, w), blk.Align, ink)
		}
		if y-content < minFieldH {
			y = content + minFieldH
		}
		return y - b.y
	})
	return nil
}

func (b *builder) richRuns(blk richtext.Block, avail float64) []tl.Run {
	body := tl.MustStyle(tl.StyleBody)
	var runs []tl.Run
	for _, in := range blk.Inlines {
		switch v := in.(type) {
		case richtext.Text:
			runs = append(runs, textRun(body, v))
		case richtext.Image:
			ref := ImageRef{Src: v.Src}
			ref.Image, _ = b.s.opts.Images.Cached(v.Src)
			w, h := imageSize(v, ref.Image, avail)
			runs = append(runs, tl.Run{Box: &tl.Box{W: w, H: h}, Ref: ref})
		case richtext.Break:
			runs = append(runs, tl.Run{Break: true, Font: body.Font, Leading: body.Leading})
		}
	}
	return runs
}

func textRun(base tl.TextStyle, t richtext.Text) tl.Run {
	r := base.Run(t.Text)
	m := t.Marks
	r.Font.Bold = m.Bold
	r.Font.Italic = m.Italic
	if px := richtext.StepPx(m.Size); px > 0 {
		r.Font.SizePx = px
	}
	if m.Font != "" {
		r.Font.Family = m.Font
	}
	ref := markRef{underline: m.Underline}
	if m.Color != "" {
		if c, err := vector.ParseHex(m.Color); err == nil {
			ref.color, ref.hasColor = c, true
		}
	}
	r.Ref = ref
	return r
}

func withColor(r tl.Run, c vector.Color) tl.Run {
	r.Ref = markRef{color: c, hasColor: true}
	return r
}

// imageSize applies explicit dimensions, the intrinsic aspect ratio and the
// max-width clamp.
func imageSize(img richtext.Image, decoded image.Image, avail float64) (float64, float64) {
	w, h := img.Width, img.Height
	var iw, ih float64
	if decoded != nil {
		bb := decoded.Bounds()
		iw, ih = float64(bb.Dx()), float64(bb.Dy())
	}
	switch {
	case w <= 0 && h <= 0 && iw > 0:
		w, h = iw, ih
	case w <= 0 && h <= 0:
		w, h = defaultImageW, defaultImageW*3/4
	case h <= 0 && iw > 0:
		h = w * ih / iw
	case h <= 0:
		h = w * 3 / 4
	case w <= 0 && ih > 0:
		w = h * iw / ih
	case w <= 0:
		w = h * 4 / 3
	}
	if img.MaxWidth != "" && w > avail {
		h = h * avail / w
		w = avail
	}
	return w, h
}

func plainRuns(st tl.TextStyle, text string) []tl.Run {
	var runs []tl.Run
	for i, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if i > 0 {
			runs = append(runs, tl.Run{Break: true, Font: st.Font, Leading: st.Leading})
		}
		if line != "" {
			runs = append(runs, st.Run(line))
		}
	}
	return runs
}

// panel wraps content in a rounded, lightly filled frame. fill lays out the content
// at (x, b.y) within width w and returns its height.
func (b *builder) panel(fill func(x, w float64) float64) {
	top := b.y
	frame := len(b.items)
	b.items = append(b.items, Item{})
	b.y += sectionPad
	h := fill(b.x+sectionPad, b.w-2*sectionPad)
	b.y = top + h + 2*sectionPad
	b.items[frame] = Item{
		Kind:   ItemFrame,
		Rect:   vector.R(b.x, top, b.w, b.y-top),
		Fill:   vector.Solid(panelFill),
		Stroke: vector.Pen(ink, 2),
		Radius: 12,
	}
	b.y += sectionGap
}

// text lays runs out at (x, y) within w and returns the height used.
func (b *builder) text(x, y, w float64, runs []tl.Run, align richtext.Align, c vector.Color) float64 {
	box := tl.Layout(b.fonts, runs, w)
	b.lines(x, y, w, box, align, c)
	return box.Height
}

func (b *builder) lines(x, y, w float64, box tl.TextBox, align richtext.Align, c vector.Color) {
	for _, ln := range box.Lines {
		lx := x + w - ln.Width
		switch align {
		case richtext.AlignCenter:
			lx = x + (w-ln.Width)/2
		case richtext.AlignLeft:
			lx = x
		}
		b.items = append(b.items, Item{Kind: ItemText, Rect: vector.R(lx, y, ln.Width, ln.Height()), Line: ln, Color: c})
		y += ln.Height()
	}
}
