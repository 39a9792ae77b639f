/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package server exposes lessons over HTTP: extraction, persistence and PDF export.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"lessonprep/internal/domain"
	"lessonprep/internal/export"
	"lessonprep/internal/extraction"
	applog "lessonprep/internal/log"
	"lessonprep/internal/sheet"
	"lessonprep/internal/storage"
)

const (
	apiBasePath     = "/api"
	lessonsBasePath = "/lessons"
	paramID         = "id"

	// maxDocumentBytes bounds a lesson body; embedded images are data URLs.
	maxDocumentBytes = 16 << 20
)

// Extractor turns uploaded material into a seeded document.
type Extractor interface {
	ExtractDocument(ctx context.Context, files []extraction.File) (*domain.LessonDocument, error)
}

type Options struct {
	Store     storage.Store
	Extractor Extractor
	Sheet     sheet.Options
	// Preset is the default export preset; requests may pick another with ?preset=.
	Preset  export.Preset
	Timeout time.Duration
	Logger  *slog.Logger
}

type Server struct {
	opts Options
	log  *slog.Logger
}

func New(opts Options) *Server {
	if opts.Preset.Target == 0 {
		opts.Preset, _ = export.LookupPreset("")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Minute
	}
	l := opts.Logger
	if l == nil {
		l = applog.WithComponent("server")
	}
	return &Server{opts: opts, log: l}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.opts.Timeout))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handle(s.handleReady))
	r.Get("/version", s.handleVersion)

	r.Route(apiBasePath, func(r chi.Router) {
		r.Post("/extract", s.handle(s.handleExtract))
		r.Post("/export", s.handle(s.handleExportDocument))
		r.Route(lessonsBasePath, func(r chi.Router) {
			r.Get("/", s.handle(s.handleListLessons))
			r.Post("/", s.handle(s.handleCreateLesson))
			r.Get("/{"+paramID+"}", s.handle(s.handleGetLesson))
			r.Put("/{"+paramID+"}", s.handle(s.handleUpdateLesson))
			r.Get("/{"+paramID+"}/pdf", s.handle(s.handleExportLesson))
		})
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", slog.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// requestLogger logs one line per request through slog and tags the context with the
// request id.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ctx := applog.WithRun(r.Context(), middleware.GetReqID(r.Context()))
		next.ServeHTTP(ww, r.WithContext(ctx))
		s.log.LogAttrs(ctx, slog.LevelInfo, "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("took", time.Since(start)),
		)
	})
}
