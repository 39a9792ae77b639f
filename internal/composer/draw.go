/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package composer

import (
	"github.com/fogleman/gg"

	"lessonprep/internal/vector"
)

// drawNode paints n in surface units scaled by s. gg transforms geometry but not
// line widths, so the stroke width is scaled by hand.
func drawNode(dc *gg.Context, n vector.Node, s float64) {
	dc.Push()
	defer dc.Pop()

	local := n.Local()
	pos := n.Position()
	dc.Scale(s, s)
	dc.Translate(pos.X-local.X, pos.Y-local.Y)
	if a := n.Angle(); a != 0 {
		c := local.Center()
		dc.RotateAbout(gg.Radians(a), c.X, c.Y)
	}

	switch v := n.(type) {
	case *vector.ImageNode:
		dc.Scale(v.Scale(), v.Scale())
		dc.DrawImage(v.Image(), 0, 0)
		return
	case *vector.RectNode:
		dc.DrawRectangle(local.X, local.Y, local.W, local.H)
	case *vector.EllipseNode:
		c := local.Center()
		dc.DrawEllipse(c.X, c.Y, local.W/2, local.H/2)
	case *vector.PathNode:
		tracePath(dc, v.Path())
	default:
		return
	}

	if f := n.Fill(); f.Enabled {
		dc.SetColor(f.Color.NRGBA())
		dc.FillPreserve()
	}
	if st := n.Stroke(); st.Enabled {
		dc.SetColor(st.Color.NRGBA())
		dc.SetLineWidth(st.Width * s)
		switch st.Cap {
		case vector.CapRound:
			dc.SetLineCapRound()
		case vector.CapSquare:
			dc.SetLineCapSquare()
		default:
			dc.SetLineCapButt()
		}
		dc.StrokePreserve()
	}
	dc.ClearPath()
}

func tracePath(dc *gg.Context, p vector.Path) {
	for _, cmd := range p.Cmds {
		d := cmd.Data
		switch cmd.Op {
		case vector.MoveTo:
			dc.MoveTo(d[0], d[1])
		case vector.LineTo:
			dc.LineTo(d[0], d[1])
		case vector.QuadTo:
			dc.QuadraticTo(d[0], d[1], d[2], d[3])
		case vector.CubicTo:
			dc.CubicTo(d[0], d[1], d[2], d[3], d[4], d[5])
		case vector.Close:
			dc.ClosePath()
		}
	}
}
