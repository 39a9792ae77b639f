/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import (
	"strings"
	"testing"
	"time"
)

func TestUndoRedoBasic(t *testing.T) {
	m := NewManager(Config{MaxBytes: 1024 * 1024, MaxPerField: 10, MinInterval: 10 * time.Millisecond})
	f := "preparation"
	t0 := time.Now()
	m.Push(Snapshot{Field: f, HTML: "a", TS: t0})
	m.Push(Snapshot{Field: f, HTML: "ab", TS: t0.Add(20 * time.Millisecond)})
	if _, fields, total := m.Stats(); fields != 1 || total != 2 {
		t.Fatalf("expected 1 field and 2 snapshots, got fields=%d total=%d", fields, total)
	}
	s, ok := m.Undo(f, Snapshot{HTML: "abc"})
	if !ok || s.HTML != "ab" {
		t.Fatalf("undo expected 'ab', got ok=%v html=%q", ok, s.HTML)
	}
	if !m.CanRedo(f) {
		t.Fatalf("redo stack should hold the current state")
	}
	s, ok = m.Redo(f, Snapshot{HTML: "ab"})
	if !ok || s.HTML != "abc" {
		t.Fatalf("redo expected 'abc', got ok=%v html=%q", ok, s.HTML)
	}
	s, ok = m.Undo(f, Snapshot{HTML: "abc"})
	if !ok || s.HTML != "ab" {
		t.Fatalf("second undo expected 'ab', got %q", s.HTML)
	}
}

func TestPushClearsRedo(t *testing.T) {
	m := NewManager(Config{})
	m.Push(Snapshot{Field: "f", HTML: "1", TS: time.Now()})
	m.Undo("f", Snapshot{HTML: "2"})
	m.Push(Snapshot{Field: "f", HTML: "1", TS: time.Now()})
	if m.CanRedo("f") {
		t.Fatalf("a new edit must invalidate redo")
	}
}

func TestCoalesceKeepsFirstOfBurst(t *testing.T) {
	m := NewManager(Config{MaxBytes: 1024 * 1024, MaxPerField: 10, MinInterval: 50 * time.Millisecond})
	t0 := time.Now()
	m.Push(Snapshot{Field: "f", HTML: "1", TS: t0, Coalesce: true})
	m.Push(Snapshot{Field: "f", HTML: "12", TS: t0.Add(10 * time.Millisecond), Coalesce: true})
	m.Push(Snapshot{Field: "f", HTML: "123", TS: t0.Add(55 * time.Millisecond), Coalesce: true})
	if _, _, total := m.Stats(); total != 1 {
		t.Fatalf("expected coalesced to 1 snapshot, got %d", total)
	}
	s, ok := m.Undo("f", Snapshot{HTML: "1234"})
	if !ok || s.HTML != "1" {
		t.Fatalf("expected burst start '1', got ok=%v html=%q", ok, s.HTML)
	}
}

func TestCommandsDoNotCoalesce(t *testing.T) {
	m := NewManager(Config{MinInterval: time.Hour})
	t0 := time.Now()
	m.Push(Snapshot{Field: "f", HTML: "a", TS: t0})
	m.Push(Snapshot{Field: "f", HTML: "<b>a</b>", TS: t0})
	if _, _, total := m.Stats(); total != 2 {
		t.Fatalf("toolbar snapshots must stay separate, got %d", total)
	}
}

func TestCaps(t *testing.T) {
	m := NewManager(Config{MaxBytes: 1 << 20, MaxPerField: 2, MinInterval: time.Millisecond})
	for i := 0; i < 10; i++ {
		m.Push(Snapshot{Field: "f", HTML: "xxxxx", TS: time.Now().Add(time.Duration(i) * time.Millisecond)})
	}
	if _, _, total := m.Stats(); total != 2 {
		t.Fatalf("expected MaxPerField cap to limit to 2, got %d", total)
	}
}

func TestGlobalPruneAcrossFields(t *testing.T) {
	m := NewManager(Config{MaxBytes: 12, MaxPerField: 10, MinInterval: time.Millisecond})
	t0 := time.Now()
	m.Push(Snapshot{Field: "a", HTML: "xxxx", TS: t0})
	m.Push(Snapshot{Field: "a", HTML: "xxxx", TS: t0.Add(time.Second)})
	m.Push(Snapshot{Field: "b", HTML: "yyyy", TS: t0.Add(2 * time.Second)})
	m.Push(Snapshot{Field: "b", HTML: "zzzz", TS: t0.Add(3 * time.Second)})
	tb, _, total := m.Stats()
	if tb > 12 || total != 3 {
		t.Fatalf("expected oldest snapshot pruned: bytes=%d total=%d", tb, total)
	}
	if !m.CanUndo("a") || !m.CanUndo("b") {
		t.Fatalf("every field keeps its newest state")
	}
}

func TestClearFieldAndStats(t *testing.T) {
	m := NewManager(Config{})
	m.Push(Snapshot{Field: "f", HTML: strings.Repeat("x", 6), TS: time.Now()})
	m.Undo("f", Snapshot{HTML: "y"})
	m.Push(Snapshot{Field: "f", HTML: "abcdef", TS: time.Now()})
	m.ClearField("f")
	tb, fields, total := m.Stats()
	if tb != 0 || fields != 0 || total != 0 {
		t.Fatalf("expected cleared stats to be zero, got tb=%d fields=%d total=%d", tb, fields, total)
	}
}
