/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package textlayout

// TextStyle is a named preset for one kind of sheet text.
type TextStyle struct {
	Name    string
	Font    FontSpec
	Leading float64 // extra px per line
}

const (
	StyleTitle     = "title"
	StyleHeading   = "heading"
	StyleBody      = "body"
	StyleCell      = "cell"
	StyleWatermark = "watermark"
)

var builtinStyles = map[string]TextStyle{
	StyleTitle:     {Name: StyleTitle, Font: FontSpec{SizePx: 24, Bold: true}, Leading: 4},
	StyleHeading:   {Name: StyleHeading, Font: FontSpec{SizePx: 18, Bold: true}, Leading: 2},
	StyleBody:      {Name: StyleBody, Font: FontSpec{SizePx: 16}, Leading: 4},
	StyleCell:      {Name: StyleCell, Font: FontSpec{SizePx: 14}, Leading: 2},
	StyleWatermark: {Name: StyleWatermark, Font: FontSpec{SizePx: 12}},
}

// GetStyle returns a preset by name.
func GetStyle(name string) (TextStyle, bool) { s, ok := builtinStyles[name]; return s, ok }

// MustStyle is GetStyle for the fixed preset names above.
func MustStyle(name string) TextStyle {
	s, ok := builtinStyles[name]
	if !ok {
		panic("textlayout: unknown style " + name)
	}
	return s
}

// ListStyles lists the preset names in sheet order.
func ListStyles() []string {
	return []string{StyleTitle, StyleHeading, StyleBody, StyleCell, StyleWatermark}
}

// Run returns a text run in this style.
func (s TextStyle) Run(text string) Run { return Run{Text: text, Font: s.Font, Leading: s.Leading} }
