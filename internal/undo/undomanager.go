/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package undo keeps per-field undo/redo history for the editors. Snapshots hold the
// state from before an edit; the caller hands in its current state on Undo/Redo so it
// can be restored from the opposite stack.
package undo

import (
	"sync"
	"time"
)

// Snapshot is one recorded state of a field.
// Size is estimated as len(HTML).
type Snapshot struct {
	Field string
	HTML  string
	// Sel is the selection to restore with the state.
	SelStart, SelEnd int
	TS               time.Time
	// Coalesce marks a typing snapshot: a run of them within MinInterval keeps only
	// the first, so one undo reverts the whole burst.
	Coalesce bool
}

func (s Snapshot) size() int { return len(s.HTML) }

// Config controls memory and depth caps and coalescing behavior.
type Config struct {
	// MaxBytes is a soft cap; older entries are pruned when exceeded.
	MaxBytes int
	// MaxPerField limits number of snapshots per field (0 means unlimited).
	MaxPerField int
	// MinInterval is the coalescing window for typing snapshots.
	MinInterval time.Duration
}

// Manager provides an in-memory undo/redo stack per field with memory safeguards.
// It is safe for concurrent use.
type Manager struct {
	cfg        Config
	mu         sync.Mutex
	undo       map[string][]Snapshot
	redo       map[string][]Snapshot
	totalBytes int // undo and redo
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 32 * 1024 * 1024 // inline images are large
	}
	if cfg.MaxPerField <= 0 {
		cfg.MaxPerField = 100
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 500 * time.Millisecond
	}
	return &Manager{cfg: cfg, undo: make(map[string][]Snapshot), redo: make(map[string][]Snapshot)}
}

// Push records the state before an edit and clears the redo stack of that field.
func (m *Manager) Push(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropRedoLocked(s.Field)
	stack := m.undo[s.Field]
	if n := len(stack); n > 0 && s.Coalesce {
		last := stack[n-1]
		if last.Coalesce && s.TS.Sub(last.TS) < m.cfg.MinInterval {
			// keep the burst's first state, extend its window
			stack[n-1].TS = s.TS
			return
		}
	}
	m.undo[s.Field] = append(stack, s)
	m.totalBytes += s.size()
	m.enforceCapsLocked(s.Field)
}

// Undo pops the last recorded state of field and pushes current onto the redo stack.
func (m *Manager) Undo(field string, current Snapshot) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.undo[field]
	if len(stack) == 0 {
		return Snapshot{}, false
	}
	s := stack[len(stack)-1]
	m.undo[field] = stack[:len(stack)-1]
	m.totalBytes -= s.size()
	current.Field, current.Coalesce = field, false
	m.redo[field] = append(m.redo[field], current)
	m.totalBytes += current.size()
	return s, true
}

// Redo pops the last undone state and pushes current back onto the undo stack.
func (m *Manager) Redo(field string, current Snapshot) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.redo[field]
	if len(r) == 0 {
		return Snapshot{}, false
	}
	s := r[len(r)-1]
	m.redo[field] = r[:len(r)-1]
	m.totalBytes -= s.size()
	current.Field, current.Coalesce = field, false
	m.undo[field] = append(m.undo[field], current)
	m.totalBytes += current.size()
	m.enforceCapsLocked(field)
	return s, true
}

// CanUndo reports whether field has history.
func (m *Manager) CanUndo(field string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo[field]) > 0
}

// CanRedo reports whether field has undone states.
func (m *Manager) CanRedo(field string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo[field]) > 0
}

// ClearField drops the history of a field.
func (m *Manager) ClearField(field string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.undo[field] {
		m.totalBytes -= s.size()
	}
	m.dropRedoLocked(field)
	delete(m.undo, field)
	if m.totalBytes < 0 {
		m.totalBytes = 0
	}
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (totalBytes int, fields int, totalSnapshots int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fields = len(m.undo)
	for _, v := range m.undo {
		totalSnapshots += len(v)
	}
	return m.totalBytes, fields, totalSnapshots
}

func (m *Manager) dropRedoLocked(field string) {
	for _, s := range m.redo[field] {
		m.totalBytes -= s.size()
	}
	delete(m.redo, field)
}

func (m *Manager) enforceCapsLocked(field string) {
	if stack := m.undo[field]; len(stack) > m.cfg.MaxPerField {
		toDrop := len(stack) - m.cfg.MaxPerField
		for i := 0; i < toDrop; i++ {
			m.totalBytes -= stack[i].size()
		}
		m.undo[field] = append([]Snapshot{}, stack[toDrop:]...)
	}
	// Global memory cap: prune oldest across all fields, never the newest entry of any.
	for m.totalBytes > m.cfg.MaxBytes {
		oldestField := ""
		var oldestTS time.Time
		for f, stack := range m.undo {
			if len(stack) < 2 {
				continue
			}
			if oldestField == "" || stack[0].TS.Before(oldestTS) {
				oldestField = f
				oldestTS = stack[0].TS
			}
		}
		if oldestField == "" {
			break
		}
		stack := m.undo[oldestField]
		m.totalBytes -= stack[0].size()
		m.undo[oldestField] = stack[1:]
	}
}
