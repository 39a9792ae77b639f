/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package fit computes the uniform scale that makes a rendered sheet fit one fixed-height page.
package fit

import (
	"fmt"
	"math"
)

// Page geometry in CSS pixels (A4 at 96 DPI).
const (
	ReferenceWidth = 794.0
	TargetPrint    = 1123.0
	TargetExport   = 1080.0

	DefaultEpsilon = 0.01
)

// Surface is something laid out at a width and drawn at a uniform scale.
type Surface interface {
	Width() float64
	SetWidth(float64)
	Scale() float64
	SetScale(float64)
	// NaturalHeight is the unscaled content height at the current width.
	NaturalHeight() (float64, error)
}

// ComputeScale returns 1 when natural fits in target, otherwise floor100(target/natural)
// minus epsilon. The result is always in (0, 1] and, when shrinking, strictly below
// target/natural.
func ComputeScale(natural, target, epsilon float64) float64 {
	if !finite(natural) || !finite(target) || natural <= 0 || target <= 0 || natural <= target {
		return 1
	}
	ratio := target / natural
	s := math.Floor(100*ratio)/100 - math.Max(epsilon, 0)
	if s <= 0 || s >= ratio {
		// floor100 hit zero or epsilon was too small to step below ratio
		s = ratio * (1 - math.Max(epsilon, 0.01))
	}
	return s
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Options sets the fit target, tolerance and measuring width.
type Options struct {
	Target  float64 // zero means TargetPrint
	Epsilon float64 // zero means DefaultEpsilon
	// Width is the layout width to measure at; zero means ReferenceWidth.
	Width float64
}

// Result describes one fit.
type Result struct {
	Natural float64
	Scale   float64
}

// Restore puts back the width and scale a surface had before Fit.
type Restore func()

// Fit lays s out at the reference width and scale 1, measures it and applies the
// computed scale. The caller must invoke Restore once the scaled layout is no longer
// needed. On error the surface is already restored.
func Fit(s Surface, opts Options) (Result, Restore, error) {
	if opts.Target <= 0 {
		opts.Target = TargetPrint
	}
	if opts.Epsilon <= 0 {
		opts.Epsilon = DefaultEpsilon
	}
	if opts.Width <= 0 {
		opts.Width = ReferenceWidth
	}
	origW, origS := s.Width(), s.Scale()
	restore := func() {
		s.SetWidth(origW)
		s.SetScale(origS)
	}

	s.SetWidth(opts.Width)
	s.SetScale(1)
	h, err := s.NaturalHeight()
	if err != nil {
		restore()
		return Result{}, nil, fmt.Errorf("measure: %w", err)
	}
	res := Result{Natural: h, Scale: ComputeScale(h, opts.Target, opts.Epsilon)}
	s.SetScale(res.Scale)
	return res, restore, nil
}
