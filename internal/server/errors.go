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
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"lessonprep/internal/export"
	"lessonprep/internal/extraction"
	"lessonprep/internal/storage"
)

// httpError is an error with a status and a message safe to show the client.
type httpError struct {
	Code    int
	Message string
	Err     error
}

func (e *httpError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *httpError) Unwrap() error { return e.Err }

func badRequest(msg string, err error) error {
	return &httpError{Code: http.StatusBadRequest, Message: msg, Err: err}
}

type appHandler func(w http.ResponseWriter, r *http.Request) error

// handle adapts an appHandler and writes returned errors as {"error": msg}.
func (s *Server) handle(h appHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}
		code, msg := classify(err)
		level := slog.LevelWarn
		if code >= 500 {
			level = slog.LevelError
		}
		s.log.LogAttrs(r.Context(), level, "request failed",
			slog.String("path", r.URL.Path),
			slog.Int("code", code),
			slog.Any("err", err),
		)
		writeJSON(w, code, map[string]string{"error": msg})
	}
}

func classify(err error) (int, string) {
	var (
		he  *httpError
		pe  *export.PipelineError
		api *extraction.APIError
	)
	switch {
	case errors.As(err, &he):
		return he.Code, he.Message
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "lesson not found"
	case errors.Is(err, storage.ErrPermissionDenied):
		return http.StatusForbidden, "permission denied"
	case errors.Is(err, storage.ErrInvalidDocument):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, extraction.ErrNoFiles), errors.Is(err, extraction.ErrUnsupportedFile):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &api):
		if api.Status == http.StatusTooManyRequests || api.Status == http.StatusPaymentRequired {
			return api.Status, api.Message
		}
		return http.StatusBadGateway, api.Message
	case errors.Is(err, export.ErrBusy):
		return http.StatusConflict, err.Error()
	case errors.As(err, &pe):
		return http.StatusInternalServerError, pe.Message
	}
	return http.StatusInternalServerError, "internal server error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
