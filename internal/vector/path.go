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

import "math"

// Path commands and shapes.

type PathOp uint8

const (
	MoveTo PathOp = iota
	LineTo
	QuadTo  // quadratic bezier (cx, cy, x, y)
	CubicTo // cubic bezier (cx1, cy1, cx2, cy2, x, y)
	Close
)

type PathCmd struct {
	Op   PathOp
	Data [6]float64 // enough for cubic; unused slots are zero
}

type Path struct{ Cmds []PathCmd }

func (p *Path) MoveTo(x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: MoveTo, Data: [6]float64{x, y}})
}
func (p *Path) LineTo(x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: LineTo, Data: [6]float64{x, y}})
}
func (p *Path) QuadTo(cx, cy, x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: QuadTo, Data: [6]float64{cx, cy, x, y}})
}
func (p *Path) CubicTo(cx1, cy1, cx2, cy2, x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: CubicTo, Data: [6]float64{cx1, cy1, cx2, cy2, x, y}})
}
func (p *Path) Close() { p.Cmds = append(p.Cmds, PathCmd{Op: Close}) }

// Points returns every end and control point in order.
func (p *Path) Points() []Pt {
	var pts []Pt
	for _, c := range p.Cmds {
		switch c.Op {
		case MoveTo, LineTo:
			pts = append(pts, Pt{c.Data[0], c.Data[1]})
		case QuadTo:
			pts = append(pts, Pt{c.Data[0], c.Data[1]}, Pt{c.Data[2], c.Data[3]})
		case CubicTo:
			pts = append(pts, Pt{c.Data[0], c.Data[1]}, Pt{c.Data[2], c.Data[3]}, Pt{c.Data[4], c.Data[5]})
		}
	}
	return pts
}

// Bounds approximates the path box by its control points.
func (p *Path) Bounds() Rect { return BoundsOf(p.Points()...) }

// Polygon builds a closed path through pts.
func Polygon(pts []Pt) Path {
	var p Path
	for i, pt := range pts {
		if i == 0 {
			p.MoveTo(pt.X, pt.Y)
			continue
		}
		p.LineTo(pt.X, pt.Y)
	}
	if len(pts) > 0 {
		p.Close()
	}
	return p
}

// StarPoints returns 2n vertices alternating between outer and inner radius, at
// π/n steps starting from the top (-90°), centred on the origin.
func StarPoints(n int, outer, inner float64) []Pt {
	if n < 2 {
		n = 2
	}
	pts := make([]Pt, 0, 2*n)
	for i := 0; i < 2*n; i++ {
		r := outer
		if i%2 == 1 {
			r = inner
		}
		a := math.Pi/float64(n)*float64(i) - math.Pi/2
		pts = append(pts, Pt{X: r * math.Cos(a), Y: r * math.Sin(a)})
	}
	return pts
}

// ArrowPoints is the seven-vertex block arrow pointing right, 140x60.
func ArrowPoints() []Pt {
	return []Pt{{0, 20}, {100, 20}, {100, 0}, {140, 30}, {100, 60}, {100, 40}, {0, 40}}
}

// TrianglePoints is an isosceles triangle with its apex at the top.
func TrianglePoints(w, h float64) []Pt {
	return []Pt{{0, h}, {w / 2, 0}, {w, h}}
}

// PointInPolygon uses the even-odd rule.
func PointInPolygon(p Pt, poly []Pt) bool {
	in := false
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		a, b := poly[i], poly[j]
		if (a.Y > p.Y) != (b.Y > p.Y) && p.X < (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y)+a.X {
			in = !in
		}
	}
	return in
}

// DistToSegment is the distance from p to the segment ab.
func DistToSegment(p, a, b Pt) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	t := math.Max(0, math.Min(1, ((p.X-a.X)*dx+(p.Y-a.Y)*dy)/l2))
	return math.Hypot(p.X-(a.X+t*dx), p.Y-(a.Y+t*dy))
}
