/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package extraction uploads lesson material to the remote extraction function and turns
// its answer into a seeded LessonDocument.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"lessonprep/internal/domain"
	"lessonprep/internal/legacy"
	applog "lessonprep/internal/log"
)

var (
	ErrNoFiles         = errors.New("no files provided")
	ErrUnsupportedFile = errors.New("unsupported file type")
	ErrRateLimited     = errors.New("extraction rate limited")
	ErrPaymentRequired = errors.New("extraction credit exhausted")
)

// AcceptedExtensions are the file types the extraction function understands.
var AcceptedExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".txt", ".md", ".pdf", ".doc", ".docx"}

// MaxUploadBytes bounds the whole multipart body.
const MaxUploadBytes = 32 << 20

// File is one upload.
type File struct {
	Name string
	Data []byte
}

// ReadFiles loads paths from disk.
func ReadFiles(paths []string) ([]File, error) {
	out := make([]File, 0, len(paths))
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		out = append(out, File{Name: filepath.Base(p), Data: b})
	}
	return out, nil
}

// CheckFile rejects names outside AcceptedExtensions and content that does not match an
// image or PDF extension.
func CheckFile(f File) error {
	ext := strings.ToLower(filepath.Ext(f.Name))
	if !slices.Contains(AcceptedExtensions, ext) {
		return fmt.Errorf("%w: %s", ErrUnsupportedFile, f.Name)
	}
	mt := mimetype.Detect(f.Data)
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		if !strings.HasPrefix(mt.String(), "image/") || mt.Is("image/svg+xml") {
			return fmt.Errorf("%w: %s is %s", ErrUnsupportedFile, f.Name, mt.String())
		}
	case ".pdf":
		if !mt.Is("application/pdf") {
			return fmt.Errorf("%w: %s is %s", ErrUnsupportedFile, f.Name, mt.String())
		}
	}
	return nil
}

// APIError is a non-2xx answer carrying the function's {error} envelope.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("extraction failed: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("extraction failed: %d: %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	case ErrPaymentRequired:
		return e.Status == http.StatusPaymentRequired
	}
	return false
}

// Client talks to the extraction function.
type Client struct {
	URL   string
	Token string // bearer token
	hc    *http.Client
	log   *slog.Logger
}

// NewClient creates a client. timeout <= 0 means two minutes; vision extraction is slow.
func NewClient(url, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		URL:   strings.TrimSpace(url),
		Token: token,
		hc:    &http.Client{Timeout: timeout},
		log:   applog.WithComponent("extraction"),
	}
}

// Extract uploads files as multipart field "files" and decodes the returned record.
// Input errors are reported before any request is made.
func (c *Client) Extract(ctx context.Context, files []File) (domain.ExtractionRecord, error) {
	var rec domain.ExtractionRecord
	if len(files) == 0 {
		return rec, ErrNoFiles
	}
	for _, f := range files {
		if err := CheckFile(f); err != nil {
			return rec, err
		}
	}
	l := applog.WithOperation(c.log, "extract").With(slog.Int("files", len(files)))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.Name)
		if err != nil {
			return rec, fmt.Errorf("build upload: %w", err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return rec, fmt.Errorf("build upload: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return rec, fmt.Errorf("build upload: %w", err)
	}
	if body.Len() > MaxUploadBytes {
		return rec, fmt.Errorf("upload too large: %d bytes", body.Len())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, &body)
	if err != nil {
		return rec, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		l.Error("request failed", slog.Any("err", err))
		return rec, fmt.Errorf("extraction request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return rec, fmt.Errorf("read extraction response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var env struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &env)
		apiErr := &APIError{Status: resp.StatusCode, Message: env.Error}
		l.Warn("extraction rejected", slog.Int("status", resp.StatusCode), slog.String("msg", env.Error))
		return rec, apiErr
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return rec, fmt.Errorf("decode extraction record: %w", err)
	}
	l.Info("extracted", slog.String("title", rec.Title), slog.Duration("took", time.Since(start)))
	return rec, nil
}

// ExtractDocument runs Extract and seeds a new document from the record. This is the only
// place legacy content is normalized.
func (c *Client) ExtractDocument(ctx context.Context, files []File) (*domain.LessonDocument, error) {
	rec, err := c.Extract(ctx, files)
	if err != nil {
		return nil, err
	}
	return legacy.SeedDocument(rec), nil
}
