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
	"strings"
)

// WatermarkSeparator joins name and phone in the legacy single-string form.
const WatermarkSeparator = " - "

// Watermark identifies the teacher in a grid repeated behind the sheet content.
type Watermark struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	ShowName  bool   `json:"showName"`
	ShowPhone bool   `json:"showPhone"`
}

// Label is the text repeated in the grid. Empty means no grid.
func (w Watermark) Label() string {
	var parts []string
	if w.ShowName && strings.TrimSpace(w.Name) != "" {
		parts = append(parts, strings.TrimSpace(w.Name))
	}
	if w.ShowPhone && strings.TrimSpace(w.Phone) != "" {
		parts = append(parts, strings.TrimSpace(w.Phone))
	}
	return strings.Join(parts, WatermarkSeparator)
}

type watermarkWire struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	ShowName  *bool  `json:"showName"`
	ShowPhone *bool  `json:"showPhone"`
	// legacy
	Text    *string `json:"text"`
	Visible *bool   `json:"visible"`
}

// UnmarshalJSON accepts both the structured form and the legacy {text, visible} form.
// Legacy text is split on the first separator; a value containing the separator itself
// is split there as well.
func (w *Watermark) UnmarshalJSON(b []byte) error {
	var in watermarkWire
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	out := Watermark{Name: in.Name, Phone: in.Phone, ShowName: true, ShowPhone: true}
	if in.Text != nil && in.Name == "" && in.Phone == "" {
		out = LegacyWatermark(*in.Text, in.Visible == nil || *in.Visible)
	}
	if in.ShowName != nil {
		out.ShowName = *in.ShowName
	}
	if in.ShowPhone != nil {
		out.ShowPhone = *in.ShowPhone
	}
	*w = out
	return nil
}

// LegacyWatermark converts the combined "name - phone" form.
func LegacyWatermark(text string, visible bool) Watermark {
	name, phone, _ := strings.Cut(text, WatermarkSeparator)
	return Watermark{
		Name:      strings.TrimSpace(name),
		Phone:     strings.TrimSpace(phone),
		ShowName:  visible,
		ShowPhone: visible,
	}
}
