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
	"strings"
	"testing"
)

func TestObjectivesGrowAndBound(t *testing.T) {
	d := NewDocument()
	if got := d.Objective(2); got != "" {
		t.Fatalf("absent objective = %q", got)
	}
	if err := d.SetObjective(2, "third"); err != nil {
		t.Fatalf("SetObjective: %v", err)
	}
	if len(d.Objectives) != 3 || d.Objective(0) != "" || d.Objective(2) != "third" {
		t.Fatalf("objectives = %#v", d.Objectives)
	}
	if err := d.SetObjective(MaxObjectives, "x"); !errors.Is(err, ErrObjectiveIndex) {
		t.Fatalf("expected ErrObjectiveIndex, got %v", err)
	}
}

func TestToggleStrategy(t *testing.T) {
	d := NewDocument()
	for _, s := range []string{StrategyCatalog[1], StrategyCatalog[3]} {
		if err := d.ToggleStrategy(s); err != nil {
			t.Fatalf("toggle %q: %v", s, err)
		}
	}
	if err := d.ToggleStrategy(StrategyCatalog[1]); err != nil {
		t.Fatal(err)
	}
	if len(d.Strategies) != 1 || d.Strategies[0] != StrategyCatalog[3] {
		t.Fatalf("strategies = %#v", d.Strategies)
	}
	if err := d.ToggleStrategy("bogus"); !errors.Is(err, ErrUnknownStrategy) {
		t.Fatalf("expected ErrUnknownStrategy, got %v", err)
	}
}

func TestFieldAccess(t *testing.T) {
	d := NewDocument()
	for _, k := range LongFormFields {
		if err := d.SetField(k, "<b>"+string(k)+"</b>"); err != nil {
			t.Fatalf("SetField(%s): %v", k, err)
		}
	}
	if d.Evaluation != "<b>evaluation</b>" {
		t.Fatalf("evaluation = %q", d.Evaluation)
	}
	if _, err := d.Field("homework"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
	if k, err := ParseFieldKey(" Presentation "); err != nil || k != FieldPresentation {
		t.Fatalf("ParseFieldKey = %q, %v", k, err)
	}
}

func TestScheduleJSON(t *testing.T) {
	d := NewDocument()
	if err := d.Schedule.SetCell(0, 6, "الأحد"); err != nil {
		t.Fatal(err)
	}
	if err := d.Schedule.SetCell(2, 0, "5/1"); err != nil {
		t.Fatal(err)
	}
	if err := d.Schedule.SetCell(3, 0, "x"); !errors.Is(err, ErrCellOutOfRange) {
		t.Fatalf("expected ErrCellOutOfRange, got %v", err)
	}
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"schedule":{"r0_c6":"الأحد","r2_c0":"5/1"}`) {
		t.Fatalf("schedule JSON = %s", b)
	}
	var got LessonDocument
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if got.Schedule.Cell(2, 0) != "5/1" || got.Schedule.Cell(1, 1) != "" {
		t.Fatalf("schedule lost: %v", got.Schedule.Map())
	}
	if keys := got.Schedule.Keys(); len(keys) != 2 || keys[0] != "r0_c6" {
		t.Fatalf("keys = %v", keys)
	}
}

func TestScheduleFromFlatFields(t *testing.T) {
	var g ScheduleGrid
	g.FromFlatFields(map[string]string{
		"schedule_r1_c3": "2",
		"schedule_r9_c0": "ignored",
		"title":          "ignored",
	})
	if g.Cell(1, 3) != "2" || len(g.Map()) != 1 {
		t.Fatalf("grid = %v", g.Map())
	}
}

func TestWatermarkLegacyForm(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want Watermark
	}{
		{"structured defaults flags", `{"name":"أ. سارة","phone":"0550"}`, Watermark{"أ. سارة", "0550", true, true}},
		{"structured explicit", `{"name":"A","phone":"1","showName":false,"showPhone":true}`, Watermark{"A", "1", false, true}},
		{"legacy visible", `{"text":"أ. سارة - 0550","visible":true}`, Watermark{"أ. سارة", "0550", true, true}},
		{"legacy hidden", `{"text":"A - 1","visible":false}`, Watermark{"A", "1", false, false}},
		{"legacy no separator", `{"text":"A"}`, Watermark{"A", "", true, true}},
		{"legacy lossy split", `{"text":"Al - Amin - 1"}`, Watermark{"Al", "Amin - 1", true, true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var w Watermark
			if err := json.Unmarshal([]byte(tc.in), &w); err != nil {
				t.Fatal(err)
			}
			if w != tc.want {
				t.Fatalf("got %#v want %#v", w, tc.want)
			}
		})
	}
}

func TestWatermarkLabel(t *testing.T) {
	w := Watermark{Name: "A", Phone: "1", ShowName: true, ShowPhone: true}
	if w.Label() != "A - 1" {
		t.Fatalf("label = %q", w.Label())
	}
	w.ShowPhone = false
	if w.Label() != "A" {
		t.Fatalf("label = %q", w.Label())
	}
	w.ShowName = false
	if w.Label() != "" {
		t.Fatalf("label = %q", w.Label())
	}
}

func TestCloneIsDeep(t *testing.T) {
	d := NewDocument()
	_ = d.SetObjective(0, "a")
	_ = d.ToggleStrategy(StrategyCatalog[0])
	_ = d.Schedule.SetCell(0, 0, "x")
	c := d.Clone()
	c.Objectives[0] = "b"
	c.Strategies[0] = "z"
	_ = c.Schedule.SetCell(0, 0, "y")
	if d.Objective(0) != "a" || d.Strategies[0] != StrategyCatalog[0] || d.Schedule.Cell(0, 0) != "x" {
		t.Fatalf("clone shares state with original")
	}
}

func TestDisplayTitle(t *testing.T) {
	d := NewDocument()
	if d.DisplayTitle() != DefaultTitle {
		t.Fatalf("title = %q", d.DisplayTitle())
	}
	d.Title = "  الكسور  "
	if d.DisplayTitle() != "الكسور" {
		t.Fatalf("title = %q", d.DisplayTitle())
	}
}
