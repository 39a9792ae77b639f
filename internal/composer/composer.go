/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package composer is a small vector drawing surface for building diagrams that end up
// as images inside a lesson field. It keeps a z-ordered list of nodes, a selection and
// the active paint defaults, and rasterises to PNG on save.
package composer

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"slices"
	"strings"

	// decoders for pasted and picked images
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/fogleman/gg"
	"github.com/gabriel-vasile/mimetype"
	"github.com/vincent-petithory/dataurl"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	applog "lessonprep/internal/log"
	"lessonprep/internal/vector"
)

const (
	Width      = 700
	Height     = 400
	Multiplier = 2

	// placement of new nodes
	originX = 100
	originY = 100

	maxImageW = 300
	maxImageH = 200
)

var (
	ErrClosed      = errors.New("composer is not open")
	ErrUnknownKind = errors.New("unknown shape kind")
)

// Kind names a primitive the toolbar can add.
type Kind string

const (
	KindRect     Kind = "rect"
	KindCircle   Kind = "circle"
	KindTriangle Kind = "triangle"
	KindLine     Kind = "line"
	KindArrow    Kind = "arrow"
	KindStar     Kind = "star"
)

// Kinds in toolbar order.
var Kinds = []Kind{KindRect, KindCircle, KindTriangle, KindLine, KindArrow, KindStar}

var defaultFill = map[Kind]string{
	KindRect:     "#3b82f6",
	KindCircle:   "#22c55e",
	KindTriangle: "#eab308",
	KindArrow:    "#ef4444",
	KindStar:     "#f59e0b",
}

// Result is a committed composition.
type Result struct {
	PNG     []byte
	DataURL string
}

// PasteItem is one entry of a clipboard payload.
type PasteItem struct {
	Type string
	Data []byte
}

// Options carries the save and close callbacks of a composer session.
type Options struct {
	OnSave  func(Result)
	OnClose func()
	Logger  *slog.Logger
}

// Composer edits one vector drawing at a time and hands the result to OnSave.
type Composer struct {
	opts Options
	log  *slog.Logger

	open     bool
	nodes    []vector.Node
	selected []vector.Node
	fill     vector.Fill
	stroke   vector.Color
	bg       vector.Color
}

// New returns a closed composer; call Open to start drawing.
func New(opts Options) *Composer {
	l := opts.Logger
	if l == nil {
		l = applog.WithComponent("composer")
	}
	return &Composer{opts: opts, log: l, bg: vector.White, stroke: vector.Black}
}

// Open starts a fresh surface with default paints.
func (c *Composer) Open() {
	c.nodes, c.selected = nil, nil
	c.fill = vector.NoFill
	c.stroke = vector.Black
	c.bg = vector.White
	c.open = true
	c.log.Debug("opened")
}

// Close discards the surface and notifies the host.
func (c *Composer) Close() {
	if !c.open {
		return
	}
	c.open = false
	c.nodes, c.selected = nil, nil
	if c.opts.OnClose != nil {
		c.opts.OnClose()
	}
}

func (c *Composer) IsOpen() bool { return c.open }

// Nodes returns the nodes bottom to top.
func (c *Composer) Nodes() []vector.Node { return slices.Clone(c.nodes) }

// Selection returns the selected nodes.
func (c *Composer) Selection() []vector.Node { return slices.Clone(c.selected) }

// ActiveFill is the fill used for new shapes; a disabled fill means "no fill".
func (c *Composer) ActiveFill() vector.Fill { return c.fill }

func (c *Composer) ActiveStroke() vector.Color { return c.stroke }

func (c *Composer) Background() vector.Color { return c.bg }

// AddShape places a new primitive at the default origin and selects it.
func (c *Composer) AddShape(k Kind) (vector.Node, error) {
	if !c.open {
		return nil, ErrClosed
	}
	n, err := c.build(k)
	if err != nil {
		return nil, err
	}
	c.add(n)
	return n, nil
}

func (c *Composer) build(k Kind) (vector.Node, error) {
	if k == KindLine {
		n := vector.NewLine(vector.Pt{X: 50, Y: 100}, vector.Pt{X: 200, Y: 100}, vector.Pen(c.stroke, 4))
		n.SetPosition(vector.Pt{X: 50, Y: 100})
		return n, nil
	}
	hex, ok := defaultFill[k]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, k)
	}
	fill := c.fill
	if !fill.Enabled {
		fill = vector.Solid(vector.MustHex(hex))
	}
	var n vector.Node
	switch k {
	case KindRect:
		n = vector.NewRect(100, 80, fill, vector.Pen(c.stroke, 2))
	case KindCircle:
		n = vector.NewCircle(50, fill, vector.Pen(c.stroke, 2))
	case KindTriangle:
		n = vector.NewPolygon(string(k), vector.TrianglePoints(100, 87), fill, vector.Pen(c.stroke, 2))
	case KindArrow:
		n = vector.NewPolygon(string(k), vector.ArrowPoints(), fill, vector.Pen(c.stroke, 1))
	case KindStar:
		n = vector.NewPolygon(string(k), vector.StarPoints(5, 50, 25), fill, vector.Pen(c.stroke, 2))
	}
	n.SetPosition(vector.Pt{X: originX, Y: originY})
	return n, nil
}

func (c *Composer) add(n vector.Node) {
	c.nodes = append(c.nodes, n)
	c.selected = []vector.Node{n}
}

// AddImage decodes data and places it scaled to fit 300x200. Unreadable content is
// logged and ignored.
func (c *Composer) AddImage(data []byte) (vector.Node, bool) {
	l := applog.WithOperation(c.log, "add_image")
	if !c.open {
		l.Debug("ignored: composer closed")
		return nil, false
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") || mt.Is("image/svg+xml") {
		l.Warn("not a raster image", slog.String("mime", mt.String()))
		return nil, false
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		l.Warn("decode failed", slog.String("mime", mt.String()), slog.Any("err", err))
		return nil, false
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		l.Warn("empty image")
		return nil, false
	}
	n := vector.NewImage(img, ImageScale(b.Dx(), b.Dy()))
	n.SetPosition(vector.Pt{X: originX, Y: originY})
	c.add(n)
	return n, true
}

// ImageScale fits w x h into 300x200 without enlarging.
func ImageScale(w, h int) float64 {
	return math.Min(math.Min(maxImageW/float64(w), maxImageH/float64(h)), 1)
}

// Paste adds the first image item of a clipboard payload.
func (c *Composer) Paste(items []PasteItem) bool {
	for _, it := range items {
		if strings.HasPrefix(it.Type, "image/") {
			_, ok := c.AddImage(it.Data)
			return ok
		}
	}
	return false
}

func (c *Composer) Select(nodes ...vector.Node) {
	c.selected = c.selected[:0]
	for _, n := range nodes {
		if slices.Contains(c.nodes, n) && !slices.Contains(c.selected, n) {
			c.selected = append(c.selected, n)
		}
	}
}

// SelectAt selects the top-most node under p, or clears the selection.
func (c *Composer) SelectAt(p vector.Pt) vector.Node {
	for i := len(c.nodes) - 1; i >= 0; i-- {
		if c.nodes[i].Hit(p) {
			c.selected = []vector.Node{c.nodes[i]}
			return c.nodes[i]
		}
	}
	c.selected = nil
	return nil
}

func (c *Composer) Deselect() { c.selected = nil }

// Move drags the selection by (dx, dy). A single node snaps to the surface and
// to the other nodes; the guides describe what it aligned with.
func (c *Composer) Move(dx, dy float64) []vector.GuideLine {
	if len(c.selected) == 0 {
		return nil
	}
	if len(c.selected) > 1 {
		for _, n := range c.selected {
			p := n.Position()
			n.SetPosition(vector.Pt{X: p.X + dx, Y: p.Y + dy})
		}
		return nil
	}
	n := c.selected[0]
	b := n.Bounds()
	want := vector.R(b.X+dx, b.Y+dy, b.W, b.H)
	anchors := []vector.Anchor{{Rect: vector.R(0, 0, Width, Height), Weight: 2}}
	for _, o := range c.nodes {
		if o != n {
			anchors = append(anchors, vector.Anchor{Rect: o.Bounds(), Weight: 1})
		}
	}
	got, guides := vector.ComputeSmartGuides(want, anchors, vector.SnapOptions{SnapToEdges: true, SnapToCenters: true})
	p := n.Position()
	n.SetPosition(vector.Pt{X: p.X + got.X - b.X, Y: p.Y + got.Y - b.Y})
	return guides
}

// DeleteSelected removes the selected nodes and returns how many went.
func (c *Composer) DeleteSelected() int {
	before := len(c.nodes)
	c.nodes = slices.DeleteFunc(c.nodes, func(n vector.Node) bool { return slices.Contains(c.selected, n) })
	c.selected = nil
	return before - len(c.nodes)
}

// Rotate turns every selected node by deg degrees.
func (c *Composer) Rotate(deg float64) {
	for _, n := range c.selected {
		n.SetAngle(n.Angle() + deg)
	}
}

// BringForward moves each selected node one step up the stack.
func (c *Composer) BringForward() {
	for i := len(c.nodes) - 2; i >= 0; i-- {
		if c.isSelected(c.nodes[i]) && !c.isSelected(c.nodes[i+1]) {
			c.nodes[i], c.nodes[i+1] = c.nodes[i+1], c.nodes[i]
		}
	}
}

// SendBackward moves each selected node one step down the stack.
func (c *Composer) SendBackward() {
	for i := 1; i < len(c.nodes); i++ {
		if c.isSelected(c.nodes[i]) && !c.isSelected(c.nodes[i-1]) {
			c.nodes[i], c.nodes[i-1] = c.nodes[i-1], c.nodes[i]
		}
	}
}

func (c *Composer) isSelected(n vector.Node) bool { return slices.Contains(c.selected, n) }

// SetFill accepts "#rrggbb" or "transparent". The selection is repainted and the
// value becomes the default for new shapes.
func (c *Composer) SetFill(s string) error {
	col, err := vector.ParseHex(s)
	if err != nil {
		return err
	}
	f := vector.Solid(col)
	for _, n := range c.selected {
		if n.Kind() == string(KindLine) || n.Kind() == "image" {
			continue
		}
		n.SetFill(f)
	}
	c.fill = f
	return nil
}

// SetStroke repaints the selection's outline and sets the default stroke colour.
func (c *Composer) SetStroke(s string) error {
	col, err := vector.ParseHex(s)
	if err != nil {
		return err
	}
	for _, n := range c.selected {
		if n.Kind() == "image" {
			continue
		}
		st := n.Stroke()
		st.Color = col
		n.SetStroke(st)
	}
	c.stroke = col
	return nil
}

// Clear removes every node and resets the background.
func (c *Composer) Clear() {
	c.nodes, c.selected = nil, nil
	c.bg = vector.White
}

// Render rasterises the surface at the given pixel multiplier.
func (c *Composer) Render(scale float64) image.Image { return c.render(scale).Image() }

func (c *Composer) render(scale float64) *gg.Context {
	if scale <= 0 {
		scale = 1
	}
	dc := gg.NewContext(int(math.Round(Width*scale)), int(math.Round(Height*scale)))
	dc.SetColor(c.bg.NRGBA())
	dc.Clear()
	for _, n := range c.nodes {
		drawNode(dc, n, scale)
	}
	return dc
}

// Save renders at the export multiplier, hands the PNG to the host and closes.
func (c *Composer) Save() (Result, error) {
	if !c.open {
		return Result{}, ErrClosed
	}
	var buf bytes.Buffer
	if err := c.render(Multiplier).EncodePNG(&buf); err != nil {
		c.log.Error("encode failed", slog.Any("err", err))
		return Result{}, fmt.Errorf("encode png: %w", err)
	}
	res := Result{PNG: buf.Bytes(), DataURL: dataurl.New(buf.Bytes(), "image/png").String()}
	c.log.Info("saved", slog.Int("nodes", len(c.nodes)), slog.Int("bytes", len(res.PNG)))
	if c.opts.OnSave != nil {
		c.opts.OnSave(res)
	}
	c.Close()
	return res, nil
}
