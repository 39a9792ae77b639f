/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package domain holds the lesson-preparation sheet model: one LessonDocument per editing
// session, mutated field by field by the editors and handed whole to the persistence store.
package domain

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// MaxObjectives is the number of objective rows printed on the sheet.
const MaxObjectives = 3

// DefaultTitle is used when a document is saved without a title.
const DefaultTitle = "درس جديد"

// FieldKey names one of the three long-form HTML slots.
type FieldKey string

const (
	FieldPreparation  FieldKey = "preparation"
	FieldPresentation FieldKey = "presentation"
	FieldEvaluation   FieldKey = "evaluation"
)

// LongFormFields lists the long-form slots in sheet order.
var LongFormFields = []FieldKey{FieldPreparation, FieldPresentation, FieldEvaluation}

// Section captions printed on the sheet.
const (
	LabelTitle      = "موضوع الدرس:"
	LabelObjectives = "نواتج التعليم والتعلم:"
	LabelObjIntro   = "في نهاية الدرس ينبغي أن يكون الطالب قادرًا على أن:"
	LabelStrategies = "استراتيجيات التعليم والتعلم المتبعة:"
	LabelHomework   = "الواجب:"
)

// FieldLabels captions each long-form slot.
var FieldLabels = map[FieldKey]string{
	FieldPreparation:  "التهيئة ومقدمة الدرس:",
	FieldPresentation: "عرض الدرس والأنشطة:",
	FieldEvaluation:   "التقويم والتحقق من النواتج:",
}

// StrategyCatalog is the fixed set of teaching strategies a sheet may select.
var StrategyCatalog = []string{
	"التعليم والتعلم",
	"عصف ذهني",
	"تعلم تعاوني",
	"حوار ومناقشة",
	"الاستنباط",
	"لعب الأدوار",
	"أخرى",
}

var (
	ErrUnknownField    = errors.New("unknown long-form field")
	ErrUnknownStrategy = errors.New("strategy not in catalog")
	ErrObjectiveIndex  = errors.New("objective index out of range")
)

// ParseFieldKey validates a long-form field name.
func ParseFieldKey(s string) (FieldKey, error) {
	k := FieldKey(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(LongFormFields, k) {
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// LessonDocument is the unit of work. ID stays empty until the first save.
type LessonDocument struct {
	ID           string       `json:"id,omitempty"`
	Title        string       `json:"title"`
	Objectives   []string     `json:"objectives,omitempty"`
	Strategies   []string     `json:"strategies,omitempty"`
	Schedule     ScheduleGrid `json:"schedule"`
	Preparation  string       `json:"preparation"`
	Presentation string       `json:"presentation"`
	Evaluation   string       `json:"evaluation"`
	Homework     string       `json:"homework,omitempty"`
	Watermark    Watermark    `json:"watermark"`
}

// NewDocument returns an empty sheet with watermark flags on.
func NewDocument() *LessonDocument {
	return &LessonDocument{Watermark: Watermark{ShowName: true, ShowPhone: true}}
}

// Objective returns the i-th objective or "" when absent.
func (d *LessonDocument) Objective(i int) string {
	if i < 0 || i >= len(d.Objectives) {
		return ""
	}
	return d.Objectives[i]
}

// SetObjective writes the i-th objective, growing the list with empty entries as needed.
func (d *LessonDocument) SetObjective(i int, text string) error {
	if i < 0 || i >= MaxObjectives {
		return fmt.Errorf("%w: %d", ErrObjectiveIndex, i)
	}
	for len(d.Objectives) <= i {
		d.Objectives = append(d.Objectives, "")
	}
	d.Objectives[i] = text
	return nil
}

// HasStrategy reports whether key is selected.
func (d *LessonDocument) HasStrategy(key string) bool {
	return slices.Contains(d.Strategies, key)
}

// ToggleStrategy selects or deselects a catalog entry.
func (d *LessonDocument) ToggleStrategy(key string) error {
	if !slices.Contains(StrategyCatalog, key) {
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, key)
	}
	if i := slices.Index(d.Strategies, key); i >= 0 {
		d.Strategies = slices.Delete(d.Strategies, i, i+1)
		return nil
	}
	d.Strategies = append(d.Strategies, key)
	return nil
}

// Field returns the HTML held by a long-form slot.
func (d *LessonDocument) Field(key FieldKey) (string, error) {
	switch key {
	case FieldPreparation:
		return d.Preparation, nil
	case FieldPresentation:
		return d.Presentation, nil
	case FieldEvaluation:
		return d.Evaluation, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, key)
}

// SetField replaces the HTML held by a long-form slot.
func (d *LessonDocument) SetField(key FieldKey, html string) error {
	switch key {
	case FieldPreparation:
		d.Preparation = html
	case FieldPresentation:
		d.Presentation = html
	case FieldEvaluation:
		d.Evaluation = html
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, key)
	}
	return nil
}

// DisplayTitle is the title used when persisting.
func (d *LessonDocument) DisplayTitle() string {
	if t := strings.TrimSpace(d.Title); t != "" {
		return t
	}
	return DefaultTitle
}

// Clone returns a deep copy.
func (d *LessonDocument) Clone() *LessonDocument {
	if d == nil {
		return nil
	}
	c := *d
	c.Objectives = slices.Clone(d.Objectives)
	c.Strategies = slices.Clone(d.Strategies)
	return &c
}

// ExtractionRecord is the shape produced by the remote extraction function. Long-form
// values arrive in the legacy plain-text format.
type ExtractionRecord struct {
	Title        string   `json:"title"`
	Objectives   []string `json:"objectives"`
	Strategies   []string `json:"strategies"`
	Preparation  string   `json:"preparation"`
	Presentation string   `json:"presentation"`
	Evaluation   string   `json:"evaluation"`
	Homework     string   `json:"homework"`
}
