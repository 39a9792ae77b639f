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
	"math"
	"unicode"

	"github.com/fogleman/gg"

	tl "lessonprep/internal/textlayout"
	"lessonprep/internal/vector"
)

// Rasterize draws the page at its current scale times ratio. The canvas keeps the
// full page width; scaled content is centred horizontally and anchored at the top.
func (s *Sheet) Rasterize(ratio float64) (image.Image, error) {
	if ratio <= 0 {
		ratio = 1
	}
	l, err := s.Layout()
	if err != nil {
		return nil, err
	}
	k := s.scale * ratio
	w := int(math.Ceil(s.width * ratio))
	h := int(math.Ceil(l.Height * k))
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("empty raster %dx%d", w, h)
	}
	dc := gg.NewContext(w, h)
	dc.SetColor(vector.White.NRGBA())
	dc.Clear()

	p := painter{dc: dc, fonts: s.opts.Fonts, k: k, ox: (s.width - s.width*s.scale) / 2 * ratio}
	st := s.style
	frame := vector.R(0, 0, l.Width, l.Height)
	p.roundRect(frame, st.Radius)
	dc.SetColor(st.Background.NRGBA())
	if st.ClipOverflow {
		dc.FillPreserve()
		dc.Clip()
	} else {
		dc.Fill()
	}
	p.watermark(l)
	for _, it := range l.Items {
		switch it.Kind {
		case ItemFrame:
			p.frame(it)
		case ItemText:
			p.line(it)
		}
	}
	dc.ResetClip()
	if st.Border.Enabled {
		half := st.Border.Width / 2
		p.roundRect(frame.Inset(half, half), st.Radius)
		p.stroke(st.Border)
	}
	return dc.Image(), nil
}

// painter maps layout units to device pixels by hand rather than through the gg
// matrix, so glyphs are rendered from a face at device size instead of resampled.
type painter struct {
	dc    *gg.Context
	fonts tl.Provider
	k, ox float64
}

func (p painter) X(v float64) float64 { return p.ox + v*p.k }
func (p painter) Y(v float64) float64 { return v * p.k }

func (p painter) roundRect(r vector.Rect, radius float64) {
	if radius > 0 {
		p.dc.DrawRoundedRectangle(p.X(r.X), p.Y(r.Y), r.W*p.k, r.H*p.k, radius*p.k)
		return
	}
	p.dc.DrawRectangle(p.X(r.X), p.Y(r.Y), r.W*p.k, r.H*p.k)
}

func (p painter) stroke(s vector.Stroke) {
	p.dc.SetColor(s.Color.NRGBA())
	p.dc.SetLineWidth(s.Width * p.k)
	p.dc.Stroke()
}

func (p painter) frame(it Item) {
	p.roundRect(it.Rect, it.Radius)
	if it.Fill.Enabled {
		p.dc.SetColor(it.Fill.Color.NRGBA())
		p.dc.FillPreserve()
	}
	if it.Stroke.Enabled {
		p.stroke(it.Stroke)
		return
	}
	p.dc.ClearPath()
}

func (p painter) line(it Item) {
	ln := it.Line
	base := it.Rect.Y + ln.Ascent
	for _, li := range ln.Items {
		// right-to-left: logical start at the right edge
		x := it.Rect.X + ln.Width - li.X - li.W
		if box := li.Run.Box; box != nil {
			p.inlineBox(li.Run.Ref, vector.R(x, base-box.H, box.W, box.H))
			continue
		}
		if li.Space {
			continue
		}
		spec := li.Run.Font
		if spec.SizePx <= 0 {
			spec.SizePx = tl.DefaultSizePx
		}
		spec.SizePx *= p.k
		face, _ := p.fonts.Resolve(spec)
		c := it.Color
		mr, _ := li.Run.Ref.(markRef)
		if mr.hasColor {
			c = mr.color
		}
		p.dc.SetFontFace(face)
		p.dc.SetColor(c.NRGBA())
		p.dc.DrawString(visual(li.Run.Text), p.X(x), p.Y(base))
		if mr.underline {
			p.dc.DrawLine(p.X(x), p.Y(base+2), p.X(x+li.W), p.Y(base+2))
			p.dc.SetLineWidth(math.Max(1, p.k))
			p.dc.Stroke()
		}
	}
}

// watermark paints the label grid faintly and rotated, underneath the content.
func (p painter) watermark(l *Layout) {
	tiles := l.WatermarkTiles()
	if len(tiles) == 0 {
		return
	}
	spec := tl.MustStyle(tl.StyleWatermark).Font
	spec.SizePx *= p.k
	face, _ := p.fonts.Resolve(spec)
	c := faint
	c.A = watermarkAlpha
	text := visual(l.Watermark)
	p.dc.Push()
	defer p.dc.Pop()
	// the grid never spills past the page frame, clipped or not
	p.roundRect(vector.R(0, 0, l.Width, l.Height), 0)
	p.dc.Clip()
	p.dc.SetFontFace(face)
	p.dc.SetColor(c.NRGBA())
	for _, t := range tiles {
		p.dc.Push()
		p.dc.RotateAbout(vector.Radians(watermarkAngle), p.X(t.X), p.Y(t.Y))
		p.dc.DrawStringAnchored(text, p.X(t.X), p.Y(t.Y), 0.5, 0.5)
		p.dc.Pop()
	}
}

func (p painter) inlineBox(ref any, r vector.Rect) {
	switch v := ref.(type) {
	case ImageRef:
		if v.Image == nil {
			p.roundRect(r, 0)
			p.dc.SetColor(headFill.NRGBA())
			p.dc.FillPreserve()
			p.stroke(vector.Pen(faint, 1))
			return
		}
		b := v.Image.Bounds()
		if b.Dx() == 0 || b.Dy() == 0 {
			return
		}
		p.dc.Push()
		p.dc.Translate(p.X(r.X), p.Y(r.Y))
		p.dc.Scale(r.W*p.k/float64(b.Dx()), r.H*p.k/float64(b.Dy()))
		p.dc.DrawImage(v.Image, -b.Min.X, -b.Min.Y)
		p.dc.Pop()
	case checkRef:
		p.roundRect(r, 3)
		if v.checked {
			p.dc.SetColor(accent.NRGBA())
			p.dc.FillPreserve()
			p.stroke(vector.Pen(accent, 2))
			return
		}
		p.stroke(vector.Pen(faint, 2))
	}
}

// visual reverses words written in a right-to-left script so that glyphs drawn
// left to right read correctly. Contextual shaping is not applied.
func visual(s string) string {
	rtl := false
	for _, r := range s {
		if unicode.In(r, unicode.Arabic, unicode.Hebrew) {
			rtl = true
			break
		}
	}
	if !rtl {
		return s
	}
	rs := []rune(s)
	for i, j := 0, len(rs)-1; i < j; i, j = i+1, j-1 {
		rs[i], rs[j] = rs[j], rs[i]
	}
	return string(rs)
}
