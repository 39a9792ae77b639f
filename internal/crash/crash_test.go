/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package crash

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteReportCreatesFileInTemp(t *testing.T) {
	path, err := writeReport(nil, "boom", []byte("stacktrace"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	t.Cleanup(func() { _ = os.Remove(path) })
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, "LessonPrep Crash Report") {
		t.Fatalf("report header missing")
	}
	if !strings.Contains(s, "Panic: boom") || !strings.Contains(s, "stacktrace") {
		t.Fatalf("panic content missing: %s", s)
	}
}

func TestWriteReportUsesStorageDir(t *testing.T) {
	root := t.TempDir()
	info := &Info{Dir: root, Command: "export", Document: "9b2e"}

	path, err := writeReport(info, "kaboom", []byte("stack"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	if filepath.Dir(path) != filepath.Join(root, ReportsDirName) {
		t.Fatalf("expected crash report under %s, got %s", ReportsDirName, path)
	}
	b, _ := os.ReadFile(path)
	for _, want := range []string{"Command: export", "Document: 9b2e"} {
		if !strings.Contains(string(b), want) {
			t.Errorf("report lacks %q", want)
		}
	}
}

func TestRecoverWritesReportAndExits(t *testing.T) {
	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w
	defer func() {
		_ = w.Close()
		os.Stderr = oldStderr
		_, _ = io.Copy(io.Discard, r)
	}()

	code := 0
	oldExit := exitFn
	exitFn = func(c int) { code = c }
	defer func() { exitFn = oldExit }()

	info := &Info{}
	root := t.TempDir()
	func() {
		defer Recover(info)
		info.Dir = root
		panic("boom")
	}()

	if code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
	files, _ := os.ReadDir(filepath.Join(root, ReportsDirName))
	if len(files) != 1 || !strings.HasPrefix(files[0].Name(), "lessonprep-crash-") {
		t.Fatalf("reports %v", files)
	}
}

func TestRecoverIgnoresNormalReturn(t *testing.T) {
	oldExit := exitFn
	exitFn = func(int) { t.Fatal("exit called without panic") }
	defer func() { exitFn = oldExit }()
	func() {
		defer Recover(nil)
	}()
}
