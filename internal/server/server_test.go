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
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"lessonprep/internal/domain"
	"lessonprep/internal/extraction"
	"lessonprep/internal/storage"
)

type fakeExtractor struct {
	got []extraction.File
	err error
}

func (f *fakeExtractor) ExtractDocument(_ context.Context, files []extraction.File) (*domain.LessonDocument, error) {
	f.got = files
	if f.err != nil {
		return nil, f.err
	}
	if len(files) == 0 {
		return nil, extraction.ErrNoFiles
	}
	d := domain.NewDocument()
	d.Title = "من " + files[0].Name
	return d, nil
}

func newTestServer(t *testing.T, ex Extractor) *httptest.Server {
	t.Helper()
	st, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(New(Options{Store: st, Extractor: ex}).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatal(err)
	}
}

func TestHealthAndVersion(t *testing.T) {
	srv := newTestServer(t, nil)
	for _, path := range []string{"/healthz", "/readyz", "/version"} {
		if resp := do(t, http.MethodGet, srv.URL+path, nil); resp.StatusCode != http.StatusOK {
			t.Errorf("%s: %d", path, resp.StatusCode)
		}
	}
	bare := httptest.NewServer(New(Options{}).Routes())
	defer bare.Close()
	if resp := do(t, http.MethodGet, bare.URL+"/readyz", nil); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("readyz without store: %d", resp.StatusCode)
	}
}

func TestLessonLifecycle(t *testing.T) {
	srv := newTestServer(t, nil)
	base := srv.URL + "/api/lessons"

	doc := domain.NewDocument()
	doc.Preparation = "<p>warm up</p>"
	resp := do(t, http.MethodPost, base, doc)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d", resp.StatusCode)
	}
	var created struct{ ID string }
	decodeBody(t, resp, &created)
	if created.ID == "" || resp.Header.Get("Location") != "/api/lessons/"+created.ID {
		t.Fatalf("created %+v location %q", created, resp.Header.Get("Location"))
	}

	var got domain.LessonDocument
	resp = do(t, http.MethodGet, base+"/"+created.ID, nil)
	decodeBody(t, resp, &got)
	if got.ID != created.ID || got.Title != domain.DefaultTitle || got.Preparation != "<p>warm up</p>" {
		t.Fatalf("get %+v", got)
	}

	got.Title = "Fractions"
	got.ID = ""
	if resp := do(t, http.MethodPut, base+"/"+created.ID, got); resp.StatusCode != http.StatusOK {
		t.Fatalf("update: %d", resp.StatusCode)
	}
	var again domain.LessonDocument
	decodeBody(t, do(t, http.MethodGet, base+"/"+created.ID, nil), &again)
	if again.Title != "Fractions" || again.ID != created.ID {
		t.Fatalf("after update %+v", again)
	}

	var list []storage.Summary
	decodeBody(t, do(t, http.MethodGet, base, nil), &list)
	if len(list) != 1 || list[0].Title != "Fractions" {
		t.Fatalf("list %+v", list)
	}
	decodeBody(t, do(t, http.MethodGet, base+"?q=warm", nil), &list)
	if len(list) != 1 {
		t.Fatalf("search %+v", list)
	}
	decodeBody(t, do(t, http.MethodGet, base+"?q=absent", nil), &list)
	if len(list) != 0 {
		t.Fatalf("search miss %+v", list)
	}
}

func TestLessonErrors(t *testing.T) {
	srv := newTestServer(t, nil)
	base := srv.URL + "/api/lessons"
	missing := "0b8f3c9e-3c1a-4d7e-9a51-2f4c6d8e0a11"

	cases := []struct {
		name   string
		method string
		url    string
		body   any
		code   int
	}{
		{"get missing", http.MethodGet, base + "/" + missing, nil, http.StatusNotFound},
		{"update missing", http.MethodPut, base + "/" + missing, domain.NewDocument(), http.StatusNotFound},
		{"bad json", http.MethodPost, base, "{", http.StatusBadRequest},
		{"client id", http.MethodPost, base, map[string]string{"id": missing, "title": "x"}, http.StatusBadRequest},
		{"extract unconfigured", http.MethodPost, srv.URL + "/api/extract", nil, http.StatusServiceUnavailable},
	}
	for _, c := range cases {
		resp := do(t, c.method, c.url, c.body)
		if resp.StatusCode != c.code {
			t.Errorf("%s: status %d want %d", c.name, resp.StatusCode, c.code)
			continue
		}
		var env struct{ Error string }
		decodeBody(t, resp, &env)
		if env.Error == "" {
			t.Errorf("%s: empty error envelope", c.name)
		}
	}
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = part.Write([]byte(content))
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func postMultipart(t *testing.T, url string, files map[string]string) *http.Response {
	t.Helper()
	body, ct := multipartBody(t, files)
	resp, err := http.Post(url, ct, body)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestExtract(t *testing.T) {
	ex := &fakeExtractor{}
	srv := newTestServer(t, ex)
	url := srv.URL + "/api/extract"

	resp := postMultipart(t, url, map[string]string{"notes.txt": "hello"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("extract: %d", resp.StatusCode)
	}
	var doc domain.LessonDocument
	decodeBody(t, resp, &doc)
	if doc.Title != "من notes.txt" || len(ex.got) != 1 || string(ex.got[0].Data) != "hello" {
		t.Fatalf("doc %+v files %+v", doc, ex.got)
	}

	resp = postMultipart(t, url, map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("no files: %d", resp.StatusCode)
	}

	ex.err = &extraction.APIError{Status: http.StatusTooManyRequests, Message: "تم تجاوز حد الطلبات"}
	resp = postMultipart(t, url, map[string]string{"a.txt": "x"})
	var env struct{ Error string }
	decodeBody(t, resp, &env)
	if resp.StatusCode != http.StatusTooManyRequests || env.Error != "تم تجاوز حد الطلبات" {
		t.Fatalf("rate limit: %d %q", resp.StatusCode, env.Error)
	}

	ex.err = &extraction.APIError{Status: http.StatusInternalServerError, Message: "boom"}
	if resp := postMultipart(t, url, map[string]string{"a.txt": "x"}); resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("upstream failure: %d", resp.StatusCode)
	}
}

func TestExportPDF(t *testing.T) {
	srv := newTestServer(t, nil)
	doc := domain.NewDocument()
	doc.Title = "الكسور"

	resp := do(t, http.MethodPost, srv.URL+"/api/export", doc)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "application/pdf" {
		t.Fatalf("export: %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
		t.Fatal("body is not a pdf")
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "filename*=UTF-8''") {
		t.Fatalf("disposition %q", cd)
	}

	created := do(t, http.MethodPost, srv.URL+"/api/lessons", doc)
	var c struct{ ID string }
	decodeBody(t, created, &c)
	resp = do(t, http.MethodGet, srv.URL+"/api/lessons/"+c.ID+"/pdf?preset=print", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stored export: %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodGet, srv.URL+"/api/lessons/"+c.ID+"/pdf?preset=poster", nil); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown preset: %d", resp.StatusCode)
	}
}
