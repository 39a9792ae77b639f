/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"lessonprep/internal/config"
	"lessonprep/internal/domain"
	"lessonprep/internal/richtext"
)

var (
	ErrNotFound = errors.New("lesson not found")
	// ErrPermissionDenied is returned when the backend refuses the write, e.g. a row-level
	// security policy or a read-only directory.
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidDocument  = errors.New("invalid lesson document")
	ErrUnknownDriver    = errors.New("unknown storage driver")
)

// Summary is one row of a listing or search.
type Summary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists lesson documents.
type Store interface {
	// Save creates or updates doc and returns its ID. On create, doc.ID is set.
	Save(ctx context.Context, doc *domain.LessonDocument) (string, error)
	Load(ctx context.Context, id string) (*domain.LessonDocument, error)
	// List returns all documents, most recently updated first.
	List(ctx context.Context) ([]Summary, error)
	// Search matches text against titles and document bodies.
	Search(ctx context.Context, text string, limit int) ([]Summary, error)
	Close() error
}

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "file":
		return NewFileStore(cfg.StorageDir())
	case "sqlite":
		return OpenSQLite(ctx, cfg.StorageDir())
	case "postgres", "pg":
		return OpenPostgres(ctx, cfg.DSN)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
}

// record is the persisted form of a save.
type record struct {
	ID      string
	Title   string
	Body    []byte // document JSON
	Text    string // plain text for search
	Created bool
}

// prepare picks the ID for a save and renders the persisted form. The caller's
// document is not touched; drivers call commit once the write has landed.
func prepare(doc *domain.LessonDocument) (record, error) {
	if doc == nil {
		return record{}, fmt.Errorf("%w: nil document", ErrInvalidDocument)
	}
	rec := record{ID: strings.TrimSpace(doc.ID)}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
		rec.Created = true
	} else if _, err := uuid.Parse(rec.ID); err != nil {
		return record{}, fmt.Errorf("%w: id %q: %v", ErrInvalidDocument, rec.ID, err)
	}
	cp := doc.Clone()
	cp.ID = rec.ID
	cp.Title = doc.DisplayTitle()
	rec.Title = cp.Title

	b, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return record{}, fmt.Errorf("marshal lesson: %w", err)
	}
	rec.Body = append(b, '\n')
	rec.Text = plainText(cp)
	return rec, nil
}

// commit hands the stored ID back to the caller's document.
func (r record) commit(doc *domain.LessonDocument) string {
	doc.ID = r.ID
	return r.ID
}

func decode(data []byte) (*domain.LessonDocument, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	doc := domain.NewDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return doc, nil
}

// plainText flattens everything a teacher would search for into one string.
func plainText(d *domain.LessonDocument) string {
	parts := []string{d.Title}
	parts = append(parts, d.Objectives...)
	parts = append(parts, d.Strategies...)
	for _, key := range domain.LongFormFields {
		html, _ := d.Field(key)
		if rd, err := richtext.Parse(html); err == nil {
			parts = append(parts, strings.ReplaceAll(rd.PlainText(), "￼", " "))
		}
	}
	parts = append(parts, d.Homework)
	var sb strings.Builder
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(p)
		}
	}
	return sb.String()
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return 50
	}
	return n
}
