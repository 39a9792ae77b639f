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
	"sync"

	"lessonprep/internal/richtext"
)

// Signal is a viewport change that can move the selected image on screen.
type Signal int

const (
	SignalScroll Signal = iota
	SignalResize
)

func (s Signal) String() string {
	if s == SignalResize {
		return "resize"
	}
	return "scroll"
}

// Viewport delivers scroll/resize signals relevant to one editor's surface.
// Subscribe returns the function that ends the subscription.
type Viewport interface {
	Subscribe(fn func(Signal)) (cancel func())
}

// ViewportHub is a Viewport fed by the host. It is safe for concurrent use; handlers run
// on the goroutine calling Emit.
type ViewportHub struct {
	mu   sync.Mutex
	next int
	subs map[int]func(Signal)
}

func (h *ViewportHub) Subscribe(fn func(Signal)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs == nil {
		h.subs = map[int]func(Signal){}
	}
	id := h.next
	h.next++
	h.subs[id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Emit delivers sig to every subscriber.
func (h *ViewportHub) Emit(sig Signal) {
	h.mu.Lock()
	fns := make([]func(Signal), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn(sig)
	}
}

// Subscribers returns the number of live subscriptions.
func (h *ViewportHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Box is a rectangle in CSS pixels.
type Box struct{ X, Y, W, H float64 }

// Geometry reports where the surface and its images are rendered. Image rectangles and
// the surface rectangle share one coordinate space; Scroll is the surface scroll offset.
type Geometry interface {
	SurfaceRect() Box
	ImageRect(doc *richtext.Doc, i int) (Box, bool)
	Scroll() (x, y float64)
}

// FlowGeometry is a headless layout estimate: text advances at a fixed character width,
// images sit inline on the baseline and lines wrap at the surface width.
type FlowGeometry struct {
	Surface    Box
	CharWidth  float64
	LineHeight float64
	ScrollX    float64
	ScrollY    float64
}

const (
	defaultSurfaceWidth = 794
	defaultImageWidth   = 200
)

func (g *FlowGeometry) SurfaceRect() Box {
	s := g.Surface
	if s.W <= 0 {
		s.W = defaultSurfaceWidth
	}
	return s
}

func (g *FlowGeometry) Scroll() (float64, float64) { return g.ScrollX, g.ScrollY }

func (g *FlowGeometry) ImageRect(doc *richtext.Doc, i int) (Box, bool) {
	if doc == nil || i < 0 {
		return Box{}, false
	}
	surf := g.SurfaceRect()
	cw, lh := g.CharWidth, g.LineHeight
	if cw <= 0 {
		cw = 8
	}
	if lh <= 0 {
		lh = 24
	}
	x, y, lineH, n := 0.0, 0.0, lh, 0
	newline := func() { x, y, lineH = 0, y+lineH, lh }
	for bi, b := range doc.Blocks {
		if bi > 0 {
			newline()
		}
		for _, in := range b.Inlines {
			switch v := in.(type) {
			case richtext.Text:
				for range v.Text {
					if x+cw > surf.W {
						newline()
					}
					x += cw
				}
			case richtext.Break:
				newline()
			case richtext.Image:
				w, h := ImageBox(v, surf.W)
				if x > 0 && x+w > surf.W {
					newline()
				}
				if n == i {
					return Box{X: surf.X + x, Y: surf.Y + y, W: w, H: h}, true
				}
				n++
				x += w
				lineH = max(lineH, h)
			}
		}
	}
	return Box{}, false
}

// ImageBox resolves the rendered size of an image inside a surface of the given width.
// Missing heights default to three quarters of the width.
func ImageBox(img richtext.Image, surfaceW float64) (float64, float64) {
	w, h := img.Width, img.Height
	if w <= 0 {
		w = defaultImageWidth
	}
	if h <= 0 {
		h = w * 3 / 4
	}
	if img.MaxWidth == "100%" && w > surfaceW && surfaceW > 0 {
		h = h * surfaceW / w
		w = surfaceW
	}
	return w, h
}
