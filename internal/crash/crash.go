/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic in the command line tool into a report file and a
// non-zero exit.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "lessonprep/internal/log"
	"lessonprep/internal/version"
)

// ReportsDirName is created under Info.Dir for crash reports.
const ReportsDirName = "crash"

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// Info describes what the process was doing. Fields may be filled in after the
// deferred Recover is registered.
type Info struct {
	// Dir is the storage directory; reports go to os.TempDir when empty.
	Dir      string
	Command  string
	Document string
}

// Recover captures a panic, logs it with its stack, writes a report file and
// exits with code 2.
//
// Usage: defer crash.Recover(&info)
func Recover(info *Info) {
	r := recover()
	if r == nil {
		return
	}
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	reportPath, err := writeReport(info, r, stack)
	if err != nil {
		l.Error("crash report not written", slog.Any("err", err))
	}
	if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
		l.Error("failed to write crash message to stderr", slog.Any("err", err))
	}
	_, _ = fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
	exitFn(2)
}

func writeReport(info *Info, panicVal any, stack []byte) (string, error) {
	dir := os.TempDir()
	if info != nil && info.Dir != "" {
		dir = filepath.Join(info.Dir, ReportsDirName)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			dir = os.TempDir()
		}
	}
	now := time.Now()
	path := filepath.Join(dir, fmt.Sprintf("lessonprep-crash-%s-%d.log", now.Format("20060102-150405"), os.Getpid()))

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "LessonPrep Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", now.Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if info != nil {
		if info.Command != "" {
			_, _ = fmt.Fprintf(&buf, "Command: %s\n", info.Command)
		}
		if info.Document != "" {
			_, _ = fmt.Fprintf(&buf, "Document: %s\n", info.Document)
		}
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", stack)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return path, err
	}
	_ = f.Sync()
	return path, f.Close()
}
