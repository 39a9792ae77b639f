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

// Snapping for dragged nodes. Deterministic so tests can pin the output.

import "math"

// SnapOptions controls which features align and how close they must be.
type SnapOptions struct {
	// Threshold is the maximum distance at which snapping occurs. Zero means 6.
	Threshold     float64
	SnapToEdges   bool
	SnapToCenters bool
}

// Anchor is a static reference box: the canvas or another node.
// Higher Weight wins ties.
type Anchor struct {
	Rect   Rect
	Weight float64
}

type Orientation string

const (
	Vertical   Orientation = "vertical"
	Horizontal Orientation = "horizontal"
)

// GuideLine is a visual hint for one snapped axis. Position is the x of a
// vertical guide or the y of a horizontal one.
type GuideLine struct {
	Orientation Orientation
	Kind        string // "edge" or "center"
	Position    float64
	From, To    Pt
}

// edges lists min, centre, max along one axis.
func edges(lo, size float64) [3]float64 { return [3]float64{lo, lo + size/2, lo + size} }

type axisBest struct {
	delta, score float64
	pos          float64
	kind        string
	anchor      Rect
	ok          bool
}

func (b *axisBest) consider(delta, threshold, weight, pos float64, kind string, anchor Rect) {
	dist := math.Abs(delta)
	if dist > threshold {
		return
	}
	score := dist / math.Max(1, weight)
	if b.ok && score >= b.score {
		return
	}
	*b = axisBest{delta: delta, score: score, pos: pos, kind: kind, anchor: anchor, ok: true}
}

// ComputeSmartGuides snaps moving against anchors on each axis independently.
func ComputeSmartGuides(moving Rect, anchors []Anchor, opts SnapOptions) (Rect, []GuideLine) {
	if opts.Threshold <= 0 {
		opts.Threshold = 6
	}
	var bx, by axisBest
	mx, my := edges(moving.X, moving.W), edges(moving.Y, moving.H)
	for _, a := range anchors {
		ax, ay := edges(a.Rect.X, a.Rect.W), edges(a.Rect.Y, a.Rect.H)
		for _, pair := range snapPairs(opts) {
			bx.consider(mx[pair.m]-ax[pair.a], opts.Threshold, a.Weight, ax[pair.a], pair.kind, a.Rect)
			by.consider(my[pair.m]-ay[pair.a], opts.Threshold, a.Weight, ay[pair.a], pair.kind, a.Rect)
		}
	}

	out := moving
	var guides []GuideLine
	if bx.ok {
		out.X = FloatRound(moving.X-bx.delta, 3)
		lo := math.Min(moving.Y, bx.anchor.Y)
		hi := math.Max(moving.Y+moving.H, bx.anchor.Y+bx.anchor.H)
		x := FloatRound(bx.pos, 3)
		guides = append(guides, GuideLine{Orientation: Vertical, Kind: bx.kind, Position: x,
			From: Pt{x, FloatRound(lo, 3)}, To: Pt{x, FloatRound(hi, 3)}})
	}
	if by.ok {
		out.Y = FloatRound(moving.Y-by.delta, 3)
		lo := math.Min(moving.X, by.anchor.X)
		hi := math.Max(moving.X+moving.W, by.anchor.X+by.anchor.W)
		y := FloatRound(by.pos, 3)
		guides = append(guides, GuideLine{Orientation: Horizontal, Kind: by.kind, Position: y,
			From: Pt{FloatRound(lo, 3), y}, To: Pt{FloatRound(hi, 3), y}})
	}
	return out, guides
}

type snapPair struct {
	m, a int
	kind string
}

func snapPairs(opts SnapOptions) []snapPair {
	var ps []snapPair
	if opts.SnapToEdges {
		// same-side alignment first, then abutting edges
		ps = append(ps, snapPair{0, 0, "edge"}, snapPair{2, 2, "edge"}, snapPair{0, 2, "edge"}, snapPair{2, 0, "edge"})
	}
	if opts.SnapToCenters {
		ps = append(ps, snapPair{1, 1, "center"})
	}
	return ps
}
