/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"strings"

	"lessonprep/internal/fit"
)

// PresetName selects how a sheet is fitted and captured.
type PresetName string

const (
	// PresetCompact leaves headroom below the page for printer margins.
	PresetCompact PresetName = "compact"
	// PresetPrint fills the full A4 height.
	PresetPrint PresetName = "print"
)

// Preset is the fit and capture recipe for one export mode.
type Preset struct {
	Name       PresetName
	Target     float64
	Epsilon    float64
	PixelRatio float64
	MarginMM   float64
	JPEGQual   int
}

var presets = map[PresetName]Preset{
	PresetCompact: {Name: PresetCompact, Target: fit.TargetExport, Epsilon: 0.02, PixelRatio: 2, MarginMM: 2, JPEGQual: 98},
	PresetPrint:   {Name: PresetPrint, Target: fit.TargetPrint, Epsilon: 0.01, PixelRatio: 2, MarginMM: 0, JPEGQual: 98},
}

// LookupPreset resolves a preset name; empty means compact.
func LookupPreset(name string) (Preset, error) {
	n := PresetName(strings.ToLower(strings.TrimSpace(name)))
	if n == "" {
		n = PresetCompact
	}
	p, ok := presets[n]
	if !ok {
		return Preset{}, fmt.Errorf("unknown export preset: %q", name)
	}
	return p, nil
}

// WithPixelRatio overrides the capture density when r is positive.
func (p Preset) WithPixelRatio(r float64) Preset {
	if r > 0 {
		p.PixelRatio = r
	}
	return p
}
