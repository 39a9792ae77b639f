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
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"lessonprep/internal/domain"
	applog "lessonprep/internal/log"
	"lessonprep/internal/version"
)

const (
	SQLiteFileName = "lessons.sqlite"

	// sqliteSchemaVersion tracks the local schema. Bump it and add a migration step for
	// breaking changes.
	sqliteSchemaVersion = 2

	// tsLayout is fixed-width so text ordering matches time ordering.
	tsLayout = "2006-01-02T15:04:05.000000000Z"
)

// SQLiteStore keeps lessons in an embedded database with a contentless FTS5 index over
// their plain text.
type SQLiteStore struct {
	db   *sql.DB
	path string
	log  *slog.Logger
}

// OpenSQLite opens or creates <dir>/lessons.sqlite, enables WAL and brings the schema up
// to date.
func OpenSQLite(ctx context.Context, dir string) (*SQLiteStore, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "sqlite_open").With(slog.String("dir", dir))
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("storage dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, mapFSError(fmt.Errorf("create storage dir: %w", err))
	}
	path := filepath.Join(dir, SQLiteFileName)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, mapSQLiteError(fmt.Errorf("enable WAL: %w", err))
	}
	steps := []func(context.Context, *sql.DB) error{ensureMetaAndVersion, ensureLessonSchema, runMigrations}
	for _, step := range steps {
		if err := step(ctx, db); err != nil {
			_ = db.Close()
			l.Error("prepare schema failed", slog.Any("err", err))
			return nil, mapSQLiteError(err)
		}
	}
	l.Info("store ready", slog.String("path", path))
	return &SQLiteStore{db: db, path: path, log: applog.WithComponent("storage")}, nil
}

// Path is the database file.
func (s *SQLiteStore) Path() string { return s.path }

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// fresh database starts at schema 1 and migrates forward
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, 1, ?, ?, ?)`, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

func ensureLessonSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS lessons (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL,
			body       TEXT NOT NULL,
			text       TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_lessons USING fts5(
			title,
			text,
			content='',
			tokenize = 'unicode61'
		);`,
		`CREATE TRIGGER IF NOT EXISTS lessons_ai AFTER INSERT ON lessons BEGIN
			INSERT INTO fts_lessons(rowid, title, text) VALUES (new.rowid, new.title, new.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS lessons_ad AFTER DELETE ON lessons BEGIN
			INSERT INTO fts_lessons(fts_lessons, rowid, title, text) VALUES ('delete', old.rowid, old.title, old.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS lessons_au AFTER UPDATE OF title, text ON lessons BEGIN
			INSERT INTO fts_lessons(fts_lessons, rowid, title, text) VALUES ('delete', old.rowid, old.title, old.text);
			INSERT INTO fts_lessons(rowid, title, text) VALUES (new.rowid, new.title, new.text);
		END;`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure lesson schema: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to sqliteSchemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for cur < sqliteSchemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			stmts = []string{`CREATE INDEX IF NOT EXISTS idx_lessons_updated ON lessons(updated_at);`}
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

// SchemaVersion reports the applied schema version.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&v)
	return v, err
}

func (s *SQLiteStore) Save(ctx context.Context, doc *domain.LessonDocument) (string, error) {
	rec, err := prepare(doc)
	if err != nil {
		return "", err
	}
	now := time.Now().UTC().Format(tsLayout)
	_, err = s.db.ExecContext(ctx, `INSERT INTO lessons (id, title, body, text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, body=excluded.body, text=excluded.text, updated_at=excluded.updated_at`,
		rec.ID, rec.Title, string(rec.Body), rec.Text, now, now)
	if err != nil {
		return "", mapSQLiteError(fmt.Errorf("save lesson: %w", err))
	}
	s.log.Info("saved", slog.String("id", rec.ID), slog.Bool("created", rec.Created))
	return rec.commit(doc), nil
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (*domain.LessonDocument, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM lessons WHERE id=?`, id).Scan(&body)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case err != nil:
		return nil, mapSQLiteError(fmt.Errorf("load lesson: %w", err))
	}
	return decode([]byte(body))
}

func (s *SQLiteStore) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, updated_at FROM lessons ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, mapSQLiteError(fmt.Errorf("list lessons: %w", err))
	}
	return scanSummaries(rows)
}

// Search runs text as an FTS5 phrase query. Empty text lists everything.
func (s *SQLiteStore) Search(ctx context.Context, text string, limit int) ([]Summary, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		rows, err := s.db.QueryContext(ctx, `SELECT id, title, updated_at FROM lessons ORDER BY updated_at DESC, id LIMIT ?`, limitOrDefault(limit))
		if err != nil {
			return nil, mapSQLiteError(fmt.Errorf("search lessons: %w", err))
		}
		return scanSummaries(rows)
	}
	q := `"` + strings.ReplaceAll(text, `"`, `""`) + `"`
	rows, err := s.db.QueryContext(ctx, `SELECT l.id, l.title, l.updated_at
		FROM fts_lessons JOIN lessons l ON fts_lessons.rowid = l.rowid
		WHERE fts_lessons MATCH ?
		ORDER BY rank
		LIMIT ?`, q, limitOrDefault(limit))
	if err != nil {
		return nil, mapSQLiteError(fmt.Errorf("search lessons: %w", err))
	}
	return scanSummaries(rows)
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func scanSummaries(rows *sql.Rows) ([]Summary, error) {
	defer rows.Close()
	var out []Summary
	for rows.Next() {
		var (
			sum Summary
			ts  string
		)
		if err := rows.Scan(&sum.ID, &sum.Title, &ts); err != nil {
			return nil, err
		}
		sum.UpdatedAt, _ = time.Parse(tsLayout, ts)
		out = append(out, sum)
	}
	return out, rows.Err()
}

func mapSQLiteError(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_READONLY, sqlite3.SQLITE_PERM, sqlite3.SQLITE_AUTH:
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
	}
	return mapFSError(err)
}
