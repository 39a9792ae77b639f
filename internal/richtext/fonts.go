/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package richtext

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Font is an entry of the toolbar font list.
type Font struct {
	Key    string // stored in Marks.Font
	Label  string // toolbar caption
	Family string // CSS font-family value
}

// FontCatalog spans Arabic calligraphic/display faces and two Latin faces.
// The first entry resets to the surface font.
var FontCatalog = []Font{
	{Key: "inherit", Label: "العادي", Family: "inherit"},
	{Key: "Aref Ruqaa", Label: "خط اليد (رقعة)", Family: "'Aref Ruqaa', serif"},
	{Key: "Marhey", Label: "خط فني (مرحي)", Family: "'Marhey', sans-serif"},
	{Key: "Cairo", Label: "القاهرة (Cairo)", Family: "'Cairo', sans-serif"},
	{Key: "Tajawal", Label: "تاجوال (Tajawal)", Family: "'Tajawal', sans-serif"},
	{Key: "Almarai", Label: "المراعي (Almarai)", Family: "'Almarai', sans-serif"},
	{Key: "Amiri", Label: "الأميري (Amiri)", Family: "'Amiri', serif"},
	{Key: "Noto Naskh Arabic", Label: "خط نسخ (Naskh)", Family: "'Noto Naskh Arabic', serif"},
	{Key: "Arial", Label: "Arial", Family: "Arial"},
	{Key: "Times New Roman", Label: "Times New Roman", Family: "Times New Roman"},
}

// FontSizeStep is one of the seven named size steps.
type FontSizeStep struct {
	Step  int
	Label string
	Px    float64
}

var FontSizeSteps = []FontSizeStep{
	{1, "صغير جداً", 10},
	{2, "صغير", 13},
	{3, "عادي", 16},
	{4, "متوسط", 18},
	{5, "كبير", 24},
	{6, "كبير جداً", 32},
	{7, "ضخم", 48},
}

// LookupFont resolves a catalog key, label or CSS family list.
func LookupFont(name string) (Font, bool) {
	n := strings.TrimSpace(name)
	if n == "" {
		return Font{}, false
	}
	first := firstFamily(n)
	for _, f := range FontCatalog {
		if strings.EqualFold(n, f.Key) || n == f.Label || strings.EqualFold(n, f.Family) || strings.EqualFold(first, f.Key) {
			return f, true
		}
	}
	return Font{}, false
}

// familyFor returns the CSS family list for a Marks.Font value.
func familyFor(key string) string {
	if f, ok := LookupFont(key); ok {
		return f.Family
	}
	return key
}

// normalizeFont maps a CSS family value to the Marks.Font form.
func normalizeFont(v string) string {
	if f, ok := LookupFont(v); ok {
		if f.Key == "inherit" {
			return ""
		}
		return f.Key
	}
	return firstFamily(v)
}

func firstFamily(v string) string {
	first, _, _ := strings.Cut(v, ",")
	return strings.Trim(strings.TrimSpace(first), `'"`)
}

// StepPx returns the pixel size of a step, or 0 when out of range.
func StepPx(step int) float64 {
	if step < 1 || step > len(FontSizeSteps) {
		return 0
	}
	return FontSizeSteps[step-1].Px
}

var cssSizeKeywords = map[string]int{
	"xx-small": 1, "x-small": 1, "small": 2, "medium": 3,
	"large": 4, "x-large": 5, "xx-large": 6, "xxx-large": 7,
}

// sizeStep maps a <font size> or CSS font-size value to a step.
func sizeStep(v string) int {
	v = strings.ToLower(strings.TrimSpace(v))
	if s, ok := cssSizeKeywords[v]; ok {
		return s
	}
	if n, err := strconv.Atoi(v); err == nil {
		return min(max(n, 1), 7)
	}
	px, ok := parsePx(v)
	if !ok {
		return 0
	}
	best, diff := 0, 1e9
	for _, s := range FontSizeSteps {
		if d := abs(s.Px - px); d < diff {
			best, diff = s.Step, d
		}
	}
	return best
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func parsePx(v string) (float64, bool) {
	v = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "px"))
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return f, true
}

var (
	hexColorRE  = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
	rgbColorRE  = regexp.MustCompile(`^rgba?\(\s*(\d{1,3})\s*,\s*(\d{1,3})\s*,\s*(\d{1,3})\s*(?:,\s*[\d.]+\s*)?\)$`)
	nameColorRE = regexp.MustCompile(`^[a-zA-Z]{3,20}$`)
)

// NormalizeColor returns "#rrggbb" (or a lower-case CSS color name), "" if invalid.
func NormalizeColor(v string) string {
	v = strings.TrimSpace(v)
	switch {
	case hexColorRE.MatchString(v):
		v = strings.ToLower(v)
		if len(v) == 4 {
			return "#" + strings.Repeat(v[1:2], 2) + strings.Repeat(v[2:3], 2) + strings.Repeat(v[3:4], 2)
		}
		return v
	case rgbColorRE.MatchString(v):
		m := rgbColorRE.FindStringSubmatch(v)
		var c [3]int
		for i := range c {
			n, _ := strconv.Atoi(m[i+1])
			c[i] = min(n, 255)
		}
		return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
	case nameColorRE.MatchString(v):
		return strings.ToLower(v)
	}
	return ""
}
