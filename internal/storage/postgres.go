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
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"lessonprep/internal/domain"
	applog "lessonprep/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// pgInsufficientPrivilege is raised by row-level security and missing grants.
const pgInsufficientPrivilege = "42501"

// PostgresStore is the server-side store.
type PostgresStore struct {
	db  *sql.DB
	log *slog.Logger
}

// OpenPostgres connects, pings and applies the embedded migrations.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	l := applog.WithComponent("storage")
	if err := applyMigrations(ctx, db, l); err != nil {
		_ = db.Close()
		return nil, mapPgError(fmt.Errorf("migrate: %w", err))
	}
	return &PostgresStore{db: db, log: l}, nil
}

// Ping checks the connection.
func (s *PostgresStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// applyMigrations applies embedded SQL migrations in filename order and records each one.
func applyMigrations(ctx context.Context, db *sql.DB, l *slog.Logger) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied := map[int64]bool{}
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("select schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return err
		}
		applied[v] = true
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, fname := range files {
		v, err := parseVersion(fname)
		if err != nil {
			return err
		}
		if applied[v] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", fname))
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(b)) == "" {
			continue
		}
		l.Info("applying migration", slog.String("file", fname))
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin %s: %w", fname, err)
		}
		if _, err := tx.ExecContext(ctx, string(b)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", fname, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, name) VALUES($1, $2)`, v, fname); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", fname, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", fname, err)
		}
	}
	return nil
}

func parseVersion(name string) (int64, error) {
	base := path.Base(name)
	prefix, _, ok := strings.Cut(base, "_")
	if !ok {
		return 0, errors.New("invalid migration filename: " + name)
	}
	v, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return v, nil
}

func (s *PostgresStore) Save(ctx context.Context, doc *domain.LessonDocument) (string, error) {
	rec, err := prepare(doc)
	if err != nil {
		return "", err
	}
	if rec.Created {
		_, err = s.db.ExecContext(ctx, `INSERT INTO lessons (id, title, body, text) VALUES ($1, $2, $3, $4)`,
			rec.ID, rec.Title, string(rec.Body), rec.Text)
	} else {
		var res sql.Result
		res, err = s.db.ExecContext(ctx, `UPDATE lessons SET title=$2, body=$3, text=$4, updated_at=now() WHERE id=$1`,
			rec.ID, rec.Title, string(rec.Body), rec.Text)
		if err == nil {
			if n, _ := res.RowsAffected(); n == 0 {
				// a row hidden by a security policy looks the same as a missing row
				_, err = s.db.ExecContext(ctx, `INSERT INTO lessons (id, title, body, text) VALUES ($1, $2, $3, $4)`,
					rec.ID, rec.Title, string(rec.Body), rec.Text)
			}
		}
	}
	if err != nil {
		return "", mapPgError(fmt.Errorf("save lesson: %w", err))
	}
	s.log.Info("saved", slog.String("id", rec.ID), slog.Bool("created", rec.Created))
	return rec.commit(doc), nil
}

func (s *PostgresStore) Load(ctx context.Context, id string) (*domain.LessonDocument, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM lessons WHERE id=$1`, id).Scan(&body)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case err != nil:
		return nil, mapPgError(fmt.Errorf("load lesson: %w", err))
	}
	return decode(body)
}

func (s *PostgresStore) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id::text, title, updated_at FROM lessons ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, mapPgError(fmt.Errorf("list lessons: %w", err))
	}
	return scanPgSummaries(rows)
}

// Search matches the plainto_tsquery of text against title and body text.
func (s *PostgresStore) Search(ctx context.Context, text string, limit int) ([]Summary, error) {
	text = strings.TrimSpace(text)
	var (
		rows *sql.Rows
		err  error
	)
	if text == "" {
		rows, err = s.db.QueryContext(ctx, `SELECT id::text, title, updated_at FROM lessons ORDER BY updated_at DESC, id LIMIT $1`, limitOrDefault(limit))
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT id::text, title, updated_at FROM lessons
			WHERE to_tsvector('simple', title || ' ' || text) @@ plainto_tsquery('simple', $1)
			ORDER BY ts_rank(to_tsvector('simple', title || ' ' || text), plainto_tsquery('simple', $1)) DESC, updated_at DESC
			LIMIT $2`, text, limitOrDefault(limit))
	}
	if err != nil {
		return nil, mapPgError(fmt.Errorf("search lessons: %w", err))
	}
	return scanPgSummaries(rows)
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func scanPgSummaries(rows *sql.Rows) ([]Summary, error) {
	defer rows.Close()
	var out []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.UpdatedAt); err != nil {
			return nil, err
		}
		sum.UpdatedAt = sum.UpdatedAt.UTC()
		out = append(out, sum)
	}
	return out, rows.Err()
}

func mapPgError(err error) error {
	var pe *pgconn.PgError
	if errors.As(err, &pe) && pe.Code == pgInsufficientPrivilege {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return err
}
