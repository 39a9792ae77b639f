/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package sheet lays a lesson document out as the printable page and rasterises it.
// A Sheet is measured at a width and drawn at a uniform scale, which is what the
// fitter and the export pipeline drive.
package sheet

import (
	"context"
	"log/slog"

	"lessonprep/internal/domain"
	applog "lessonprep/internal/log"
	"lessonprep/internal/richtext"
	"lessonprep/internal/textlayout"
	"lessonprep/internal/vector"
)

// DefaultWidth is A4 width at 96 DPI.
const DefaultWidth = 794.0

// Style is the outer frame of the page.
type Style struct {
	Background   vector.Color
	Border       vector.Stroke
	Radius       float64
	ClipOverflow bool
}

// LiveStyle is the on-screen frame.
func LiveStyle() Style {
	return Style{Background: vector.White, Border: vector.Pen(vector.MustHex("#f1f5f9"), 1), Radius: 32, ClipOverflow: true}
}

// CaptureStyle is asserted on clones before rasterising so borders and rounded
// corners survive the capture.
func CaptureStyle() Style {
	return Style{Background: vector.White, Border: vector.Pen(vector.MustHex("#0f172a"), 2), Radius: 12, ClipOverflow: true}
}

type Options struct {
	Fonts  textlayout.Provider
	Images *Resolver
	Logger *slog.Logger
}

type Sheet struct {
	doc   *domain.LessonDocument
	opts  Options
	log   *slog.Logger
	width float64
	scale float64
	style Style

	cached *Layout
}

func New(doc *domain.LessonDocument, opts Options) *Sheet {
	if opts.Fonts == nil {
		opts.Fonts = textlayout.BasicProvider{}
	}
	if opts.Images == nil {
		opts.Images = NewResolver(false, nil)
	}
	l := opts.Logger
	if l == nil {
		l = applog.WithComponent("sheet")
	}
	if doc == nil {
		doc = domain.NewDocument()
	}
	return &Sheet{doc: doc, opts: opts, log: l, width: DefaultWidth, scale: 1, style: LiveStyle()}
}

// Document returns the document being laid out. Call Invalidate after mutating it.
func (s *Sheet) Document() *domain.LessonDocument { return s.doc }

func (s *Sheet) SetDocument(doc *domain.LessonDocument) {
	s.doc = doc
	s.Invalidate()
}

// Invalidate drops the cached layout.
func (s *Sheet) Invalidate() { s.cached = nil }

func (s *Sheet) Width() float64 { return s.width }

func (s *Sheet) SetWidth(w float64) {
	if w <= 0 || w == s.width {
		return
	}
	s.width = w
	s.Invalidate()
}

func (s *Sheet) Scale() float64 { return s.scale }

func (s *Sheet) SetScale(v float64) {
	if v <= 0 {
		v = 1
	}
	s.scale = v
}

func (s *Sheet) Style() Style      { return s.style }
func (s *Sheet) SetStyle(st Style) { s.style = st }

func (s *Sheet) Fonts() textlayout.Provider { return s.opts.Fonts }

// NaturalHeight is the unscaled page height at the current width.
func (s *Sheet) NaturalHeight() (float64, error) {
	l, err := s.Layout()
	if err != nil {
		return 0, err
	}
	return l.Height, nil
}

// Clone copies the document, geometry and style. Fonts and the image cache are shared.
func (s *Sheet) Clone() *Sheet {
	return &Sheet{doc: s.doc.Clone(), opts: s.opts, log: s.log, width: s.width, scale: s.scale, style: s.style}
}

// Prepare resolves every embedded image so layout and drawing need no I/O.
// Unresolvable images are logged and drawn as placeholders; only a cancelled
// context is an error.
func (s *Sheet) Prepare(ctx context.Context) error {
	for _, key := range domain.LongFormFields {
		html, _ := s.doc.Field(key)
		doc, err := richtext.Parse(html)
		if err != nil {
			continue
		}
		for _, img := range doc.Images() {
			if _, err := s.opts.Images.Resolve(ctx, img.Src); err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
	s.Invalidate()
	return nil
}
