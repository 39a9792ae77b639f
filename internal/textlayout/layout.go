/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package textlayout

// Line breaking and measurement behind a Provider, so a sheet lays out the same way
// with a real font or the fixed test face.

import (
	"strings"
	"unicode"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// FontSpec describes a requested face. Sizes are CSS pixels.
type FontSpec struct {
	Family string
	SizePx float64
	Bold   bool
	Italic bool
}

// DefaultSizePx is used when a spec has no size.
const DefaultSizePx = 16

// Metrics are in pixels for the resolved face.
type Metrics struct {
	Ascent, Descent, LineGap float64
}

func (m Metrics) Height() float64 { return m.Ascent + m.Descent + m.LineGap }

// Provider maps a FontSpec to a concrete face.
type Provider interface {
	Resolve(FontSpec) (font.Face, Metrics)
}

// BasicProvider serves basicfont's 7x13 face at every size. Widths are exact
// multiples of 7, which keeps tests stable.
type BasicProvider struct{}

func (BasicProvider) Resolve(FontSpec) (font.Face, Metrics) {
	f := basicfont.Face7x13
	return f, metricsOf(f)
}

func metricsOf(f font.Face) Metrics {
	m := f.Metrics()
	asc, desc := px(m.Ascent), px(m.Descent)
	gap := px(m.Height) - asc - desc
	if gap < 0 {
		gap = 0
	}
	return Metrics{Ascent: asc, Descent: desc, LineGap: gap}
}

func px(v fixed.Int26_6) float64 { return float64(v) / 64 }

// Box is an inline object such as an image.
type Box struct{ W, H float64 }

// Run is a piece of inline content: styled text, an inline box or a forced break.
type Run struct {
	Text    string
	Font    FontSpec
	Box     *Box
	Break   bool
	Leading float64 // extra px added to each line the run touches
	Ref     any     // carried through to the placed Item
}

// Item is a placed word, space or box. X is relative to the line start.
type Item struct {
	Run   Run
	X, W  float64
	Space bool
}

// Line is one laid-out line. Baseline is Ascent below the line top.
type Line struct {
	Items   []Item
	Width   float64
	Ascent  float64
	Descent float64
	Gap     float64
}

func (l Line) Height() float64 { return l.Ascent + l.Descent + l.Gap }

// TextBox is the result of laying runs into a width.
type TextBox struct {
	Lines  []Line
	Width  float64
	Height float64
}

// Layout breaks runs into lines no wider than maxWidth (unbounded when <= 0). A word
// wider than the line is placed alone and may overflow; a box wider than the line is
// left to the caller to shrink first.
func Layout(p Provider, runs []Run, maxWidth float64) TextBox {
	if p == nil {
		p = BasicProvider{}
	}
	var (
		box TextBox
		cur Line
	)
	start := func(spec FontSpec, lead float64) {
		_, m := p.Resolve(spec)
		cur.Ascent = max(cur.Ascent, m.Ascent)
		cur.Descent = max(cur.Descent, m.Descent)
		cur.Gap = max(cur.Gap, m.LineGap+lead)
	}
	flush := func(spec FontSpec) {
		if cur.Ascent == 0 && cur.Descent == 0 {
			start(spec, 0)
		}
		// trailing spaces do not count toward the width
		for n := len(cur.Items); n > 0 && cur.Items[n-1].Space; n-- {
			cur.Width -= cur.Items[n-1].W
			cur.Items = cur.Items[:n-1]
		}
		box.Lines = append(box.Lines, cur)
		box.Width = max(box.Width, cur.Width)
		box.Height += cur.Height()
		cur = Line{}
	}
	place := func(it Item, lead float64) {
		if maxWidth > 0 && cur.Width > 0 && !it.Space && cur.Width+it.W > maxWidth {
			flush(it.Run.Font)
		}
		if it.Space && cur.Width == 0 && len(box.Lines) > 0 {
			// no leading spaces on wrapped lines
			return
		}
		if it.Run.Box != nil {
			cur.Ascent = max(cur.Ascent, it.Run.Box.H)
		} else {
			start(it.Run.Font, lead)
		}
		it.X = cur.Width
		cur.Items = append(cur.Items, it)
		cur.Width += it.W
	}

	last := FontSpec{}
	for _, r := range runs {
		switch {
		case r.Break:
			start(r.Font, r.Leading)
			flush(r.Font)
			last = r.Font
		case r.Box != nil:
			place(Item{Run: r, W: r.Box.W}, 0)
		default:
			if r.Text == "" {
				continue
			}
			face, _ := p.Resolve(r.Font)
			for _, w := range splitWords(r.Text) {
				space := strings.TrimFunc(w, unicode.IsSpace) == ""
				wr := r
				wr.Text = w
				if space {
					wr.Text = " "
				}
				place(Item{Run: wr, W: px(font.MeasureString(face, wr.Text)), Space: space}, r.Leading)
			}
			last = r.Font
		}
	}
	if len(cur.Items) > 0 || len(box.Lines) == 0 {
		flush(last)
	}
	return box
}

// splitWords splits s into alternating words and whitespace runs.
func splitWords(s string) []string {
	var out []string
	start := 0
	inSpace := false
	for i, r := range s {
		sp := unicode.IsSpace(r)
		if i > start && sp != inSpace {
			out = append(out, s[start:i])
			start = i
		}
		inSpace = sp
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

// Measure returns the single-line size of runs.
func Measure(p Provider, runs []Run) (w, h float64) {
	b := Layout(p, runs, 0)
	return b.Width, b.Height
}
