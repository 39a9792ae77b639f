/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package vector

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Styles and paint definitions.

type Color struct{ R, G, B, A uint8 }

var (
	Black       = Color{0, 0, 0, 255}
	White       = Color{255, 255, 255, 255}
	Transparent = Color{0, 0, 0, 0}
)

// ParseHex parses "#rgb" or "#rrggbb"; "transparent" yields Transparent.
func ParseHex(s string) (Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "transparent" {
		return Transparent, nil
	}
	if !strings.HasPrefix(s, "#") {
		return Color{}, fmt.Errorf("invalid color %q", s)
	}
	h := s[1:]
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return Color{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q", s)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// MustHex is ParseHex for constants.
func MustHex(s string) Color {
	c, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Hex formats an opaque color as "#rrggbb"; fully transparent colors as "transparent".
func (c Color) Hex() string {
	if c.A == 0 {
		return "transparent"
	}
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// NRGBA converts to the standard library color type.
func (c Color) NRGBA() color.NRGBA { return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A} }

type LineCap uint8

const (
	CapButt LineCap = iota
	CapRound
	CapSquare
)

type Fill struct {
	Color   Color
	Enabled bool
}

// NoFill is the "transparent" fill.
var NoFill = Fill{}

// Solid returns an enabled fill.
func Solid(c Color) Fill { return Fill{Color: c, Enabled: c.A > 0} }

type Stroke struct {
	Color   Color
	Width   float64
	Cap     LineCap
	Enabled bool
}

// Pen returns an enabled stroke.
func Pen(c Color, w float64) Stroke { return Stroke{Color: c, Width: w, Enabled: w > 0} }
