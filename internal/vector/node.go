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
	"image"
	"math"
)

// Node is a placed shape. Position is the top-left of the unrotated box (fabric's
// left/top); rotation is about the box centre.
type Node interface {
	Kind() string
	// Local is the untransformed box of the geometry.
	Local() Rect
	Position() Pt
	SetPosition(Pt)
	Angle() float64 // degrees
	SetAngle(float64)
	Transform() Affine2D
	Bounds() Rect
	Fill() Fill
	Stroke() Stroke
	SetFill(Fill)
	SetStroke(Stroke)
	Hit(p Pt) bool
}

type baseNode struct {
	kind   string
	local  Rect
	pos    Pt
	angle  float64
	fill   Fill
	stroke Stroke
}

func (b *baseNode) Kind() string       { return b.kind }
func (b *baseNode) Local() Rect        { return b.local }
func (b *baseNode) Position() Pt       { return b.pos }
func (b *baseNode) SetPosition(p Pt)   { b.pos = p }
func (b *baseNode) Angle() float64     { return b.angle }
func (b *baseNode) SetAngle(a float64) { b.angle = normalizeAngle(a) }
func (b *baseNode) Fill() Fill         { return b.fill }
func (b *baseNode) Stroke() Stroke     { return b.stroke }
func (b *baseNode) SetFill(f Fill)     { b.fill = f }
func (b *baseNode) SetStroke(s Stroke) { b.stroke = s }

// Transform maps local coordinates to surface coordinates.
func (b *baseNode) Transform() Affine2D {
	move := Translate(b.pos.X-b.local.X, b.pos.Y-b.local.Y)
	if b.angle == 0 {
		return move
	}
	return move.Mul(RotateAbout(Radians(b.angle), b.local.Center()))
}

// Bounds is the surface box of the transformed local box.
func (b *baseNode) Bounds() Rect {
	m := b.Transform()
	l := b.local
	return BoundsOf(
		m.Apply(Pt{l.X, l.Y}), m.Apply(Pt{l.X + l.W, l.Y}),
		m.Apply(Pt{l.X, l.Y + l.H}), m.Apply(Pt{l.X + l.W, l.Y + l.H}),
	)
}

// toLocal maps a surface point into local coordinates.
func (b *baseNode) toLocal(p Pt) Pt { return b.Transform().Invert().Apply(p) }

func normalizeAngle(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	return a
}

// RectNode is an axis-aligned rectangle before rotation.
type RectNode struct{ baseNode }

func NewRect(w, h float64, f Fill, s Stroke) *RectNode {
	return &RectNode{baseNode{kind: "rect", local: R(0, 0, w, h), fill: f, stroke: s}}
}

func (n *RectNode) Hit(p Pt) bool { return n.local.Contains(n.toLocal(p)) }

// EllipseNode is an ellipse inscribed in its local box.
type EllipseNode struct{ baseNode }

func NewEllipse(rx, ry float64, f Fill, s Stroke) *EllipseNode {
	return &EllipseNode{baseNode{kind: "ellipse", local: R(0, 0, 2*rx, 2*ry), fill: f, stroke: s}}
}

// NewCircle returns a circle of radius r.
func NewCircle(r float64, f Fill, s Stroke) *EllipseNode {
	n := NewEllipse(r, r, f, s)
	n.kind = "circle"
	return n
}

func (n *EllipseNode) Hit(p Pt) bool {
	q := n.toLocal(p)
	c := n.local.Center()
	rx, ry := n.local.W/2, n.local.H/2
	if rx == 0 || ry == 0 {
		return false
	}
	dx, dy := (q.X-c.X)/rx, (q.Y-c.Y)/ry
	return dx*dx+dy*dy <= 1
}

// PathNode is a polygon or polyline in local coordinates.
type PathNode struct {
	baseNode
	path   Path
	closed bool
}

// NewPolygon returns a closed shape through pts.
func NewPolygon(kind string, pts []Pt, f Fill, s Stroke) *PathNode {
	return &PathNode{baseNode: baseNode{kind: kind, local: BoundsOf(pts...), fill: f, stroke: s}, path: Polygon(pts), closed: true}
}

// NewLine returns an open segment; it carries no fill.
func NewLine(a, b Pt, s Stroke) *PathNode {
	var p Path
	p.MoveTo(a.X, a.Y)
	p.LineTo(b.X, b.Y)
	return &PathNode{baseNode: baseNode{kind: "line", local: BoundsOf(a, b), stroke: s}, path: p}
}

// Path returns the local geometry.
func (n *PathNode) Path() Path { return n.path }

// Closed reports whether the path is a polygon.
func (n *PathNode) Closed() bool { return n.closed }

func (n *PathNode) Hit(p Pt) bool {
	q := n.toLocal(p)
	pts := n.path.Points()
	if n.closed && PointInPolygon(q, pts) {
		return true
	}
	tol := math.Max(n.stroke.Width/2, 3)
	for i := 1; i < len(pts); i++ {
		if DistToSegment(q, pts[i-1], pts[i]) <= tol {
			return true
		}
	}
	return false
}

// ImageNode is a raster drawn at Scale into its local box.
type ImageNode struct {
	baseNode
	img   image.Image
	scale float64
}

// NewImage places img scaled uniformly by scale.
func NewImage(img image.Image, scale float64) *ImageNode {
	b := img.Bounds()
	return &ImageNode{
		baseNode: baseNode{kind: "image", local: R(0, 0, float64(b.Dx())*scale, float64(b.Dy())*scale)},
		img:      img,
		scale:    scale,
	}
}

func (n *ImageNode) Image() image.Image { return n.img }
func (n *ImageNode) Scale() float64     { return n.scale }
func (n *ImageNode) Hit(p Pt) bool      { return n.local.Contains(n.toLocal(p)) }
