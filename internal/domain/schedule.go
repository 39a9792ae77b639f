/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	ScheduleRows = 3
	ScheduleCols = 7
)

// ScheduleRowLabels are the row headings of the schedule table (date, period, class).
var ScheduleRowLabels = [ScheduleRows]string{"التاريخ", "الحصة", "الفصل"}

var ErrCellOutOfRange = errors.New("schedule cell out of range")

// ScheduleGrid holds the short texts of the 3x7 schedule table.
// JSON form is an object keyed "r<row>_c<col>"; empty cells are omitted.
type ScheduleGrid struct {
	cells [ScheduleRows][ScheduleCols]string
}

// Cell returns the text at (row, col) or "" when out of range.
func (g *ScheduleGrid) Cell(row, col int) string {
	if !inGrid(row, col) {
		return ""
	}
	return g.cells[row][col]
}

// SetCell writes the text at (row, col).
func (g *ScheduleGrid) SetCell(row, col int, text string) error {
	if !inGrid(row, col) {
		return fmt.Errorf("%w: r%d c%d", ErrCellOutOfRange, row, col)
	}
	g.cells[row][col] = text
	return nil
}

func inGrid(row, col int) bool {
	return row >= 0 && row < ScheduleRows && col >= 0 && col < ScheduleCols
}

// CellKey is the map key used in the JSON form.
func CellKey(row, col int) string { return fmt.Sprintf("r%d_c%d", row, col) }

// ParseCellKey accepts "r<row>_c<col>" with or without the legacy "schedule_" prefix.
func ParseCellKey(key string) (int, int, bool) {
	key = strings.TrimPrefix(key, "schedule_")
	rs, cs, ok := strings.Cut(key, "_")
	if !ok || !strings.HasPrefix(rs, "r") || !strings.HasPrefix(cs, "c") {
		return 0, 0, false
	}
	row, err1 := strconv.Atoi(rs[1:])
	col, err2 := strconv.Atoi(cs[1:])
	if err1 != nil || err2 != nil || !inGrid(row, col) {
		return 0, 0, false
	}
	return row, col, true
}

// Map returns the non-empty cells keyed by CellKey.
func (g ScheduleGrid) Map() map[string]string {
	m := map[string]string{}
	for r := 0; r < ScheduleRows; r++ {
		for c := 0; c < ScheduleCols; c++ {
			if v := g.cells[r][c]; v != "" {
				m[CellKey(r, c)] = v
			}
		}
	}
	return m
}

// Keys returns the non-empty cell keys in row-major order.
func (g ScheduleGrid) Keys() []string {
	m := g.Map()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, ci, _ := ParseCellKey(keys[i])
		rj, cj, _ := ParseCellKey(keys[j])
		return ri*ScheduleCols+ci < rj*ScheduleCols+cj
	})
	return keys
}

func (g ScheduleGrid) MarshalJSON() ([]byte, error) { return json.Marshal(g.Map()) }

func (g *ScheduleGrid) UnmarshalJSON(b []byte) error {
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*g = ScheduleGrid{}
	for k, v := range m {
		if r, c, ok := ParseCellKey(k); ok {
			g.cells[r][c] = v
		}
	}
	return nil
}

// FromFlatFields copies legacy flat "schedule_r<row>_c<col>" entries into the grid.
// Keys that are not schedule cells are ignored.
func (g *ScheduleGrid) FromFlatFields(fields map[string]string) {
	for k, v := range fields {
		if !strings.HasPrefix(k, "schedule_") {
			continue
		}
		if r, c, ok := ParseCellKey(k); ok {
			g.cells[r][c] = v
		}
	}
}
