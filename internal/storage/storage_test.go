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
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"lessonprep/internal/config"
	"lessonprep/internal/domain"
)

func sampleLesson() *domain.LessonDocument {
	d := domain.NewDocument()
	d.Title = "Photosynthesis"
	_ = d.SetObjective(0, "explain how plants make food")
	_ = d.ToggleStrategy(domain.StrategyCatalog[1])
	_ = d.Schedule.SetCell(0, 2, "2025-03-01")
	d.Preparation = "<p>Plants use sunlight</p>"
	d.Evaluation = `<p dir="rtl">سؤال ختامي</p>`
	d.Homework = "page 12"
	d.Watermark = domain.Watermark{Name: "Ahmad", Phone: "0501234567", ShowName: true}
	return d
}

func TestPrepareAssignsIDAndDefaultsTitle(t *testing.T) {
	d := domain.NewDocument()
	rec, err := prepare(d)
	if err != nil {
		t.Fatal(err)
	}
	if !rec.Created || rec.ID == "" || d.ID != "" {
		t.Fatalf("create did not pick an id, or touched the caller: %+v / %q", rec, d.ID)
	}
	if rec.Title != domain.DefaultTitle || d.Title != "" {
		t.Fatalf("title %q caller %q", rec.Title, d.Title)
	}
	if err := Validate(rec.Body); err != nil {
		t.Fatalf("persisted form invalid: %v", err)
	}

	rec.commit(d)
	again, err := prepare(d)
	if err != nil || again.Created || again.ID != rec.ID {
		t.Fatalf("update changed id: %+v %v", again, err)
	}

	d.ID = "../../etc/passwd"
	if _, err := prepare(d); !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("bad id accepted: %v", err)
	}
}

func TestValidateRejectsMalformedDocuments(t *testing.T) {
	cases := map[string]string{
		"not json":        `{`,
		"missing title":   `{"id":"0b8f3c9e-3c1a-4d7e-9a51-2f4c6d8e0a11","schedule":{},"preparation":"","presentation":"","evaluation":"","watermark":{}}`,
		"bad cell key":    `{"id":"0b8f3c9e-3c1a-4d7e-9a51-2f4c6d8e0a11","title":"x","schedule":{"r9_c0":"x"},"preparation":"","presentation":"","evaluation":"","watermark":{}}`,
		"four objectives": `{"id":"0b8f3c9e-3c1a-4d7e-9a51-2f4c6d8e0a11","title":"x","objectives":["a","b","c","d"],"schedule":{},"preparation":"","presentation":"","evaluation":"","watermark":{}}`,
	}
	for name, body := range cases {
		if err := Validate([]byte(body)); !errors.Is(err, ErrInvalidDocument) {
			t.Errorf("%s: want ErrInvalidDocument, got %v", name, err)
		}
	}
}

func TestPlainTextCoversAllFields(t *testing.T) {
	got := plainText(sampleLesson())
	for _, want := range []string{"Photosynthesis", "explain how plants", "Plants use sunlight", "سؤال ختامي", "page 12"} {
		if !strings.Contains(got, want) {
			t.Errorf("plain text missing %q:\n%s", want, got)
		}
	}
}

// storeContract runs the behaviour every backend must share.
func storeContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	d := sampleLesson()
	id, err := s.Save(ctx, d)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if d.ID != id {
		t.Fatalf("caller id %q, returned %q", d.ID, id)
	}
	got, err := s.Load(ctx, id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got, d) {
		t.Fatalf("round trip differs:\n got %+v\nwant %+v", got, d)
	}

	d.Title = ""
	d.Homework = "page 13"
	id2, err := s.Save(ctx, d)
	if err != nil || id2 != id {
		t.Fatalf("update: %q %v", id2, err)
	}
	got, _ = s.Load(ctx, id)
	if got.Title != domain.DefaultTitle || got.Homework != "page 13" {
		t.Fatalf("update not persisted: %+v", got)
	}

	other := domain.NewDocument()
	other.Title = "Fractions"
	if _, err := s.Save(ctx, other); err != nil {
		t.Fatal(err)
	}
	list, err := s.List(ctx)
	if err != nil || len(list) != 2 {
		t.Fatalf("list %v %v", list, err)
	}

	hits, err := s.Search(ctx, "sunlight", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != id {
		t.Fatalf("search hits %+v", hits)
	}
	if all, _ := s.Search(ctx, "", 1); len(all) != 1 {
		t.Fatalf("limit ignored: %+v", all)
	}

	if _, err := s.Load(ctx, "0b8f3c9e-3c1a-4d7e-9a51-2f4c6d8e0a11"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing lesson: %v", err)
	}
	if _, err := s.Load(ctx, "not-an-id"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("malformed id: %v", err)
	}
}

func TestFileStoreContract(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	storeContract(t, s)
}

func TestFileStoreWritesSchemaValidJSON(t *testing.T) {
	s, _ := NewFileStore(t.TempDir())
	id, err := s.Save(context.Background(), sampleLesson())
	if err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(s.path(id))
	if err != nil {
		t.Fatal(err)
	}
	if err := Validate(b); err != nil {
		t.Fatal(err)
	}
	ents, _ := os.ReadDir(filepath.Join(s.Dir, LessonsDirName))
	if len(ents) != 1 {
		t.Fatalf("temp files left behind: %v", ents)
	}
}

func TestFileStoreFallsBackToBackup(t *testing.T) {
	ctx := context.Background()
	s, _ := NewFileStore(t.TempDir())
	d := sampleLesson()
	id, _ := s.Save(ctx, d)
	d.Homework = "second"
	if _, err := s.Save(ctx, d); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.path(id), []byte("{corrupt"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load(ctx, id)
	if err != nil {
		t.Fatalf("backup fallback: %v", err)
	}
	if got.Homework != "page 12" {
		t.Fatalf("restored %q, want the previous version", got.Homework)
	}
	list, _ := s.List(ctx)
	if len(list) != 0 {
		t.Fatalf("corrupt file listed: %+v", list)
	}
}

func TestFileStorePrunesBackups(t *testing.T) {
	ctx := context.Background()
	s, _ := NewFileStore(t.TempDir())
	d := sampleLesson()
	for i := 0; i < KeepBackups+5; i++ {
		if _, err := s.Save(ctx, d); err != nil {
			t.Fatal(err)
		}
	}
	if n := len(s.backups(d.ID)); n != KeepBackups {
		t.Fatalf("%d backups kept", n)
	}
}

func TestFileStoreListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s, _ := NewFileStore(t.TempDir())
	a, b := domain.NewDocument(), domain.NewDocument()
	a.Title, b.Title = "A", "B"
	idA, _ := s.Save(ctx, a)
	idB, _ := s.Save(ctx, b)
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(s.path(idB), old, old); err != nil {
		t.Fatal(err)
	}
	list, err := s.List(ctx)
	if err != nil || len(list) != 2 || list[0].ID != idA || list[1].ID != idB {
		t.Fatalf("order %+v %v", list, err)
	}
}

func TestFileStorePermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	s, _ := NewFileStore(t.TempDir())
	dir := filepath.Join(s.Dir, LessonsDirName)
	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(dir, 0o755)
	if _, err := s.Save(context.Background(), sampleLesson()); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("want ErrPermissionDenied, got %v", err)
	}
}

func TestFailedSaveLeavesDocumentUnchanged(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(fs.Dir, LessonsDirName)
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dir, []byte("not a directory"), 0o644); err != nil {
		t.Fatal(err)
	}
	doc := sampleLesson()
	if _, err := fs.Save(context.Background(), doc); err == nil {
		t.Fatal("save into a regular file should fail")
	}
	if doc.ID != "" {
		t.Fatalf("failed file save assigned id %q", doc.ID)
	}

	sq, err := OpenSQLite(context.Background(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	_ = sq.Close()
	doc = sampleLesson()
	if _, err := sq.Save(context.Background(), doc); err == nil {
		t.Fatal("save on a closed database should fail")
	}
	if doc.ID != "" {
		t.Fatalf("failed sqlite save assigned id %q", doc.ID)
	}

	// a successful retry then creates the lesson
	if err := os.Remove(dir); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	id, err := fs.Save(context.Background(), doc)
	if err != nil || id == "" || doc.ID != id {
		t.Fatalf("retry: id %q doc %q err %v", id, doc.ID, err)
	}
}

func TestSQLiteStoreContract(t *testing.T) {
	s, err := OpenSQLite(context.Background(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	storeContract(t, s)
}

func TestSQLiteStoreReopensAtCurrentSchema(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := OpenSQLite(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	id, _ := s.Save(ctx, sampleLesson())
	_ = s.Close()

	s, err = OpenSQLite(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if v, err := s.SchemaVersion(ctx); err != nil || v != sqliteSchemaVersion {
		t.Fatalf("schema %d %v", v, err)
	}
	if _, err := s.Load(ctx, id); err != nil {
		t.Fatalf("reload after reopen: %v", err)
	}
	// the index follows updates
	d, _ := s.Load(ctx, id)
	d.Preparation = "<p>chlorophyll</p>"
	if _, err := s.Save(ctx, d); err != nil {
		t.Fatal(err)
	}
	if hits, _ := s.Search(ctx, "sunlight", 5); len(hits) != 0 {
		t.Fatalf("stale index hit %+v", hits)
	}
	if hits, _ := s.Search(ctx, "chlorophyll", 5); len(hits) != 1 {
		t.Fatalf("updated text not indexed: %+v", hits)
	}
	if hits, err := s.Search(ctx, `say "hi`, 5); err != nil || len(hits) != 0 {
		t.Fatalf("quotes must not break the query: %+v %v", hits, err)
	}
}

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := Open(ctx, config.StorageConfig{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*FileStore); !ok {
		t.Fatalf("default driver %T", s)
	}
	s, err = Open(ctx, config.StorageConfig{Driver: "sqlite", Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*SQLiteStore); !ok {
		t.Fatalf("sqlite driver %T", s)
	}
	_ = s.Close()
	if _, err := Open(ctx, config.StorageConfig{Driver: "mongo"}); !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("unknown driver: %v", err)
	}
}

func TestMapPgError(t *testing.T) {
	denied := &pgconn.PgError{Code: "42501", Message: "new row violates row-level security policy"}
	if err := mapPgError(denied); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("42501 not mapped: %v", err)
	}
	other := &pgconn.PgError{Code: "23505"}
	if err := mapPgError(other); errors.Is(err, ErrPermissionDenied) {
		t.Fatal("unique violation mapped to permission denied")
	}
}

func TestParseMigrationVersion(t *testing.T) {
	if v, err := parseVersion("migrations/0002_lessons_search.sql"); err != nil || v != 2 {
		t.Fatalf("%d %v", v, err)
	}
	if _, err := parseVersion("lessons.sql"); err == nil {
		t.Fatal("filename without version accepted")
	}
}

func TestPostgresStoreContract(t *testing.T) {
	dsn := os.Getenv("LP_PG_DSN")
	if dsn == "" {
		t.Skip("LP_PG_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := OpenPostgres(ctx, dsn)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	defer s.Close()
	if _, err := s.db.ExecContext(ctx, `TRUNCATE lessons`); err != nil {
		t.Fatal(err)
	}
	storeContract(t, s)
}
