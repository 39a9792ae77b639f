/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"lessonprep/internal/domain"
	"lessonprep/internal/export"
	"lessonprep/internal/extraction"
	applog "lessonprep/internal/log"
	"lessonprep/internal/sheet"
	"lessonprep/internal/storage"
	"lessonprep/internal/version"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) error {
	if s.opts.Store == nil {
		return &httpError{Code: http.StatusServiceUnavailable, Message: "store not configured"}
	}
	if p, ok := s.opts.Store.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(r.Context()); err != nil {
			return &httpError{Code: http.StatusServiceUnavailable, Message: "db not ready", Err: err}
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ready"))
	return nil
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(version.String()))
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) error {
	if s.opts.Extractor == nil {
		return &httpError{Code: http.StatusServiceUnavailable, Message: "extraction not configured"}
	}
	r.Body = http.MaxBytesReader(w, r.Body, extraction.MaxUploadBytes)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		return badRequest("invalid multipart upload", err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()
	var files []extraction.File
	for _, fh := range r.MultipartForm.File["files"] {
		f, err := fh.Open()
		if err != nil {
			return badRequest("unreadable upload", err)
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return badRequest("unreadable upload", err)
		}
		files = append(files, extraction.File{Name: fh.Filename, Data: data})
	}
	doc, err := s.opts.Extractor.ExtractDocument(r.Context(), files)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, doc)
	return nil
}

func (s *Server) store() (storage.Store, error) {
	if s.opts.Store == nil {
		return nil, &httpError{Code: http.StatusServiceUnavailable, Message: "store not configured"}
	}
	return s.opts.Store, nil
}

func decodeDocument(w http.ResponseWriter, r *http.Request) (*domain.LessonDocument, error) {
	body := http.MaxBytesReader(w, r.Body, maxDocumentBytes)
	doc := domain.NewDocument()
	dec := json.NewDecoder(body)
	if err := dec.Decode(doc); err != nil {
		return nil, badRequest("invalid lesson document", err)
	}
	return doc, nil
}

func (s *Server) handleListLessons(w http.ResponseWriter, r *http.Request) error {
	st, err := s.store()
	if err != nil {
		return err
	}
	q := r.URL.Query()
	var list []storage.Summary
	if text := q.Get("q"); text != "" || q.Get("limit") != "" {
		limit, _ := strconv.Atoi(q.Get("limit"))
		list, err = st.Search(r.Context(), text, limit)
	} else {
		list, err = st.List(r.Context())
	}
	if err != nil {
		return err
	}
	if list == nil {
		list = []storage.Summary{}
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

func (s *Server) handleCreateLesson(w http.ResponseWriter, r *http.Request) error {
	st, err := s.store()
	if err != nil {
		return err
	}
	doc, err := decodeDocument(w, r)
	if err != nil {
		return err
	}
	if doc.ID != "" {
		return badRequest("id is assigned by the server; use PUT to update", nil)
	}
	id, err := st.Save(r.Context(), doc)
	if err != nil {
		return err
	}
	s.log.InfoContext(applog.WithDocument(r.Context(), id), "lesson created")
	w.Header().Set("Location", apiBasePath+lessonsBasePath+"/"+id)
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
	return nil
}

func (s *Server) handleUpdateLesson(w http.ResponseWriter, r *http.Request) error {
	st, err := s.store()
	if err != nil {
		return err
	}
	id := chi.URLParam(r, paramID)
	if _, err := st.Load(r.Context(), id); err != nil {
		return err
	}
	doc, err := decodeDocument(w, r)
	if err != nil {
		return err
	}
	if doc.ID != "" && doc.ID != id {
		return badRequest("id in body does not match path", nil)
	}
	doc.ID = id
	if _, err := st.Save(r.Context(), doc); err != nil {
		return err
	}
	s.log.InfoContext(applog.WithDocument(r.Context(), id), "lesson updated")
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
	return nil
}

func (s *Server) handleGetLesson(w http.ResponseWriter, r *http.Request) error {
	st, err := s.store()
	if err != nil {
		return err
	}
	doc, err := st.Load(r.Context(), chi.URLParam(r, paramID))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, doc)
	return nil
}

func (s *Server) handleExportLesson(w http.ResponseWriter, r *http.Request) error {
	st, err := s.store()
	if err != nil {
		return err
	}
	doc, err := st.Load(r.Context(), chi.URLParam(r, paramID))
	if err != nil {
		return err
	}
	return s.writePDF(w, r, doc)
}

func (s *Server) handleExportDocument(w http.ResponseWriter, r *http.Request) error {
	doc, err := decodeDocument(w, r)
	if err != nil {
		return err
	}
	return s.writePDF(w, r, doc)
}

// writePDF renders into memory first so a failed export still answers with JSON.
func (s *Server) writePDF(w http.ResponseWriter, r *http.Request, doc *domain.LessonDocument) error {
	preset := s.opts.Preset
	if name := r.URL.Query().Get("preset"); name != "" {
		p, err := export.LookupPreset(name)
		if err != nil {
			return badRequest(err.Error(), err)
		}
		preset = p.WithPixelRatio(s.opts.Preset.PixelRatio)
	}
	pipe := export.New(export.Options{Preset: preset, Logger: s.log})
	var buf bytes.Buffer
	res, err := pipe.Export(r.Context(), sheet.New(doc, s.opts.Sheet), &buf)
	if err != nil {
		return err
	}
	name := export.FileName(doc.Title)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="lesson.pdf"; filename*=UTF-8''%s`, url.PathEscape(name)))
	w.Header().Set("X-Fit-Scale", strconv.FormatFloat(res.Fit.Scale, 'f', -1, 64))
	if _, err := w.Write(buf.Bytes()); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Debug("pdf write aborted", slog.Any("err", err))
	}
	return nil
}
