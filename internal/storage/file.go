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
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"lessonprep/internal/domain"
	applog "lessonprep/internal/log"
)

const (
	LessonsDirName = "lessons"
	BackupsDirName = "backups"
	// KeepBackups is how many backups per lesson survive a save.
	KeepBackups = 10
)

// FileStore keeps one JSON file per lesson under <dir>/lessons. Every save copies the
// previous version to <dir>/backups first and replaces the file through a synced temp file.
type FileStore struct {
	Dir string

	mu  sync.Mutex
	log *slog.Logger
}

// NewFileStore creates the directory layout under dir.
func NewFileStore(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("storage dir is required")
	}
	for _, d := range []string{LessonsDirName, BackupsDirName} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return nil, mapFSError(fmt.Errorf("create %s dir: %w", d, err))
		}
	}
	return &FileStore{Dir: dir, log: applog.WithComponent("storage")}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.Dir, LessonsDirName, id+".json")
}

func (s *FileStore) Save(ctx context.Context, doc *domain.LessonDocument) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rec, err := prepare(doc)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l := applog.WithOperation(s.log, "file_save").With(slog.String("id", rec.ID))

	target := s.path(rec.ID)
	if _, statErr := os.Stat(target); statErr == nil {
		stamp := time.Now().UTC().Format("20060102-150405.000000000")
		bpath := filepath.Join(s.Dir, BackupsDirName, fmt.Sprintf("%s.json.%s.bak", rec.ID, stamp))
		if cerr := copyFile(target, bpath); cerr != nil {
			return "", mapFSError(fmt.Errorf("backup current lesson: %w", cerr))
		}
		s.pruneBackups(rec.ID)
	}

	temp := filepath.Join(filepath.Dir(target), fmt.Sprintf(".%s.tmp-%d-%d", rec.ID, os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, rec.Body); werr != nil {
		_ = os.Remove(temp)
		return "", mapFSError(fmt.Errorf("write temp lesson: %w", werr))
	}
	if rerr := os.Rename(temp, target); rerr != nil {
		_ = os.Remove(temp)
		return "", mapFSError(fmt.Errorf("replace lesson: %w", rerr))
	}
	l.Info("saved", slog.Bool("created", rec.Created))
	return rec.commit(doc), nil
}

// Load reads a lesson. A missing or corrupt file falls back to the latest backup.
func (s *FileStore) Load(ctx context.Context, id string) (*domain.LessonDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path(id))
	if err == nil {
		doc, derr := decode(b)
		if derr == nil {
			return doc, nil
		}
		err = derr
	} else if errors.Is(err, fs.ErrPermission) {
		return nil, mapFSError(err)
	}
	doc, berr := s.latestBackup(id)
	if berr != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("open lesson: %w; backup attempt: %v", err, berr)
	}
	s.log.Warn("lesson restored from backup", slog.String("id", id), slog.Any("err", err))
	return doc, nil
}

func (s *FileStore) List(ctx context.Context) ([]Summary, error) {
	docs, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Summary)
	}
	return out, nil
}

// Search is a case-insensitive substring scan; the file store keeps no index.
func (s *FileStore) Search(ctx context.Context, text string, limit int) ([]Summary, error) {
	docs, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(text))
	var out []Summary
	for _, d := range docs {
		if q == "" || strings.Contains(strings.ToLower(d.text), q) {
			out = append(out, d.Summary)
			if len(out) == limitOrDefault(limit) {
				break
			}
		}
	}
	return out, nil
}

func (s *FileStore) Close() error { return nil }

type scanned struct {
	Summary
	text string
}

func (s *FileStore) scan(ctx context.Context) ([]scanned, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dir := filepath.Join(s.Dir, LessonsDirName)
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, mapFSError(fmt.Errorf("read lessons dir: %w", err))
	}
	var out []scanned
	for _, e := range ents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			s.log.Warn("skip unreadable lesson", slog.String("file", name), slog.Any("err", err))
			continue
		}
		doc, err := decode(b)
		if err != nil {
			s.log.Warn("skip invalid lesson", slog.String("file", name), slog.Any("err", err))
			continue
		}
		out = append(out, scanned{
			Summary: Summary{ID: doc.ID, Title: doc.Title, UpdatedAt: info.ModTime().UTC()},
			text:    plainText(doc),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *FileStore) backups(id string) []string {
	bdir := filepath.Join(s.Dir, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil
	}
	var candidates []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, id+".json.") && strings.HasSuffix(name, ".bak") {
			candidates = append(candidates, filepath.Join(bdir, name))
		}
	}
	sort.Strings(candidates) // timestamp in name yields lexicographic order
	return candidates
}

func (s *FileStore) pruneBackups(id string) {
	c := s.backups(id)
	for len(c) > KeepBackups {
		if err := os.Remove(c[0]); err != nil {
			s.log.Debug("prune backup failed", slog.String("file", c[0]), slog.Any("err", err))
		}
		c = c[1:]
	}
}

func (s *FileStore) latestBackup(id string) (*domain.LessonDocument, error) {
	c := s.backups(id)
	if len(c) == 0 {
		return nil, errors.New("no backups found")
	}
	b, err := os.ReadFile(c[len(c)-1])
	if err != nil {
		return nil, fmt.Errorf("read latest backup: %w", err)
	}
	return decode(b)
}

func mapFSError(err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return err
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sf.Close()
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
