/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package workspace ties one lesson document to its editors, the shape composer, the
// printable sheet and the persistence store. A Session is driven from a single goroutine.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"lessonprep/internal/composer"
	"lessonprep/internal/domain"
	"lessonprep/internal/editor"
	"lessonprep/internal/export"
	applog "lessonprep/internal/log"
	"lessonprep/internal/sheet"
	"lessonprep/internal/storage"
	"lessonprep/internal/undo"
)

var (
	ErrNoStore      = errors.New("no store configured")
	ErrNoPrinter    = errors.New("no printer configured")
	ErrComposerOpen = errors.New("shape composer already open")
	ErrViewMode     = errors.New("document is in view mode")
)

type Options struct {
	Store   storage.Store
	Printer export.Printer
	Sheet   sheet.Options
	Export  export.Options
	// Editing opens the session in edit mode.
	Editing bool
	Logger  *slog.Logger
}

// Session is one open lesson.
type Session struct {
	opts Options
	log  *slog.Logger

	doc     *domain.LessonDocument
	editing bool
	dirty   bool

	history *undo.Manager
	editors map[domain.FieldKey]*editor.Editor
	focused domain.FieldKey

	composer *composer.Composer
	target   domain.FieldKey

	sheet *sheet.Sheet
	pipe  *export.Pipeline
}

// New opens doc. A nil doc starts an empty lesson.
func New(doc *domain.LessonDocument, opts Options) *Session {
	if doc == nil {
		doc = domain.NewDocument()
	}
	l := opts.Logger
	if l == nil {
		l = applog.WithComponent("workspace")
	}
	s := &Session{
		opts:    opts,
		log:     l,
		doc:     doc,
		editing: opts.Editing,
		history: undo.NewManager(undo.Config{}),
	}
	s.composer = composer.New(composer.Options{OnSave: s.onShape, OnClose: s.onComposerClose, Logger: l})
	s.sheet = sheet.New(doc, opts.Sheet)
	s.pipe = export.New(opts.Export)
	s.buildEditors()
	return s
}

func (s *Session) Document() *domain.LessonDocument { return s.doc }
func (s *Session) Sheet() *sheet.Sheet              { return s.sheet }
func (s *Session) Composer() *composer.Composer     { return s.composer }
func (s *Session) Pipeline() *export.Pipeline       { return s.pipe }

// Dirty reports unsaved changes.
func (s *Session) Dirty() bool   { return s.dirty }
func (s *Session) Editing() bool { return s.editing }

// SetEditing toggles between edit and view mode. Editors are rebuilt from the document so
// view mode renders sanitised static markup.
func (s *Session) SetEditing(on bool) {
	if on == s.editing {
		return
	}
	s.editing = on
	if !on && s.composer.IsOpen() {
		s.composer.Close()
	}
	s.buildEditors()
}

func (s *Session) buildEditors() {
	s.editors = make(map[domain.FieldKey]*editor.Editor, len(domain.LongFormFields))
	s.focused = ""
	for _, key := range domain.LongFormFields {
		html, _ := s.doc.Field(key)
		s.editors[key] = editor.New(html, func(v string) { s.onField(key, v) }, editor.Options{
			ReadOnly:       !s.editing,
			OnRequestShape: func() { _ = s.OpenComposer(key) },
			History:        s.history,
			Field:          string(key),
			Logger:         s.log,
		})
	}
}

func (s *Session) onField(key domain.FieldKey, html string) {
	if err := s.doc.SetField(key, html); err != nil {
		s.log.Debug("field change dropped", slog.String("field", string(key)), slog.Any("err", err))
		return
	}
	s.touch()
}

func (s *Session) touch() {
	s.dirty = true
	s.sheet.Invalidate()
}

// Editor returns the editor bound to key.
func (s *Session) Editor(key domain.FieldKey) (*editor.Editor, error) {
	e, ok := s.editors[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownField, key)
	}
	return e, nil
}

// Focus gives key the focus and blurs every other editor.
func (s *Session) Focus(key domain.FieldKey) error {
	e, err := s.Editor(key)
	if err != nil {
		return err
	}
	for k, other := range s.editors {
		if k != key {
			other.Blur()
		}
	}
	e.Focus()
	s.focused = key
	return nil
}

// Blur removes focus from every editor.
func (s *Session) Blur() {
	for _, e := range s.editors {
		e.Blur()
	}
	s.focused = ""
}

// Focused is the key of the focused editor or "".
func (s *Session) Focused() domain.FieldKey { return s.focused }

// OpenComposer opens the shape composer for field key. Its result is appended to that field.
func (s *Session) OpenComposer(key domain.FieldKey) error {
	if !s.editing {
		return ErrViewMode
	}
	if _, err := s.Editor(key); err != nil {
		return err
	}
	if s.composer.IsOpen() {
		return ErrComposerOpen
	}
	s.target = key
	s.composer.Open()
	return nil
}

func (s *Session) onShape(res composer.Result) {
	e, ok := s.editors[s.target]
	if !ok {
		return
	}
	if err := e.InsertShape(res.DataURL); err != nil {
		s.log.Warn("shape insert failed", slog.String("field", string(s.target)), slog.Any("err", err))
	}
}

func (s *Session) onComposerClose() { s.target = "" }

// ComposerTarget is the field the open composer writes to.
func (s *Session) ComposerTarget() domain.FieldKey { return s.target }

func (s *Session) SetTitle(t string) error {
	if !s.editing {
		return ErrViewMode
	}
	s.doc.Title = t
	s.touch()
	return nil
}

func (s *Session) SetObjective(i int, text string) error {
	if !s.editing {
		return ErrViewMode
	}
	if err := s.doc.SetObjective(i, text); err != nil {
		return err
	}
	s.touch()
	return nil
}

func (s *Session) ToggleStrategy(key string) error {
	if !s.editing {
		return ErrViewMode
	}
	if err := s.doc.ToggleStrategy(key); err != nil {
		return err
	}
	s.touch()
	return nil
}

func (s *Session) SetScheduleCell(row, col int, text string) error {
	if !s.editing {
		return ErrViewMode
	}
	if err := s.doc.Schedule.SetCell(row, col, text); err != nil {
		return err
	}
	s.touch()
	return nil
}

func (s *Session) SetWatermark(w domain.Watermark) error {
	if !s.editing {
		return ErrViewMode
	}
	s.doc.Watermark = w
	s.touch()
	return nil
}

// Save persists the document. The first save assigns the ID.
func (s *Session) Save(ctx context.Context) (string, error) {
	if s.opts.Store == nil {
		return "", ErrNoStore
	}
	l := applog.WithOperation(s.log, "save")
	id, err := s.opts.Store.Save(ctx, s.doc)
	if err != nil {
		l.Error("save failed", slog.Any("err", err))
		return "", err
	}
	s.dirty = false
	l.Info("saved", slog.String("id", id))
	return id, nil
}

// Print fits the sheet to one page and hands it to the printer.
func (s *Session) Print(ctx context.Context) (export.Result, error) {
	if s.opts.Printer == nil {
		return export.Result{}, ErrNoPrinter
	}
	return s.pipe.Print(ctx, s.sheet, s.opts.Printer)
}

// Export writes the single-page PDF to w.
func (s *Session) Export(ctx context.Context, w io.Writer) (export.Result, error) {
	return s.pipe.Export(ctx, s.sheet, w)
}

// ExportTo writes the PDF into dir under a name derived from the title and returns its path.
func (s *Session) ExportTo(ctx context.Context, dir string) (string, export.Result, error) {
	path := filepath.Join(dir, export.FileName(s.doc.Title))
	res, err := s.pipe.ExportFile(ctx, s.sheet, path)
	if err != nil {
		return "", res, err
	}
	return path, res, nil
}
