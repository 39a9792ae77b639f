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
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	lengthRE = regexp.MustCompile(`^\d+(\.\d+)?(px|%)?$`)
	familyRE = regexp.MustCompile(`^[\p{L}\p{N}\s'",\-]+$`)
	colorRE  = regexp.MustCompile(`^(#[0-9a-fA-F]{3}|#[0-9a-fA-F]{6}|rgba?\([\d\s.,]+\)|[a-zA-Z]{3,20})$`)
	sizeRE   = regexp.MustCompile(`^([1-7]|\d+(\.\d+)?px|(xx?-|xxx-)?(small|large)|medium)$`)
	weightRE = regexp.MustCompile(`^(normal|bold|bolder|lighter|[1-9]00)$`)
	decorRE  = regexp.MustCompile(`^(none|underline)(\s+[a-z\-#0-9()., ]+)?$`)
)

// policy is the allow-list shared by Sanitize and Parse.
var policy = sync.OnceValue(func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("b", "strong", "i", "em", "u", "font", "span", "div", "p", "br", "img")
	p.AllowStandardURLs()
	p.AllowRelativeURLs(true)
	p.AllowDataURIImages()
	p.AllowAttrs("src").OnElements("img")
	p.AllowAttrs("width", "height").Matching(lengthRE).OnElements("img")
	p.AllowAttrs("face").Matching(familyRE).OnElements("font")
	p.AllowAttrs("size").Matching(regexp.MustCompile(`^[1-7]$`)).OnElements("font")
	p.AllowAttrs("color").Matching(colorRE).OnElements("font")
	p.AllowAttrs("align").Matching(regexp.MustCompile(`(?i)^(left|right|center|justify)$`)).OnElements("div", "p")

	p.AllowStyles("text-align").MatchingEnum("left", "right", "center", "justify").OnElements("div", "p")
	p.AllowStyles("font-family").Matching(familyRE).Globally()
	p.AllowStyles("color").Matching(colorRE).Globally()
	p.AllowStyles("font-size").Matching(sizeRE).Globally()
	p.AllowStyles("font-weight").Matching(weightRE).Globally()
	p.AllowStyles("font-style").MatchingEnum("normal", "italic", "oblique").Globally()
	p.AllowStyles("text-decoration", "text-decoration-line").Matching(decorRE).Globally()
	p.AllowStyles("width", "height", "max-width").Matching(lengthRE).OnElements("img")
	p.AllowStyles("display").MatchingEnum("inline", "inline-block", "block").OnElements("img")
	p.AllowStyles("vertical-align").MatchingEnum("baseline", "middle", "top", "bottom", "text-top", "text-bottom").OnElements("img")
	p.AllowStyles("cursor").MatchingEnum("pointer", "default").OnElements("img")
	return p
})

// Sanitize strips everything the editor cannot represent. It is the read-only rendering path.
func Sanitize(s string) string {
	return policy().Sanitize(s)
}

// Parse sanitises s and builds the structured document from what remains.
func Parse(s string) (*Doc, error) {
	if strings.TrimSpace(s) == "" {
		return &Doc{}, nil
	}
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(Sanitize(s)), body)
	if err != nil {
		return nil, fmt.Errorf("parse rich text: %w", err)
	}
	b := &builder{}
	for _, n := range nodes {
		b.walk(n, Marks{}, AlignDefault)
	}
	return b.f.doc(), nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) *Doc {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// builder turns a node tree into the flat form, opening a block per div/p.
type builder struct {
	f          flat
	started    bool
	curEmpty   bool
	afterClose bool
}

func (b *builder) emit(u unit) {
	if b.afterClose {
		b.f.units = append(b.f.units, unit{kind: unitBlock})
		b.afterClose = false
	}
	b.f.units = append(b.f.units, u)
	b.started = true
	b.curEmpty = false
}

func (b *builder) openBlock(a Align) {
	switch {
	case b.afterClose || (b.started && !b.curEmpty):
		b.f.units = append(b.f.units, unit{kind: unitBlock, align: a})
	case len(b.f.units) == 0:
		b.f.first = a
	default:
		b.f.units[len(b.f.units)-1].align = a
	}
	b.started = true
	b.curEmpty = true
	b.afterClose = false
}

func (b *builder) closeBlock() {
	if b.started {
		b.afterClose = true
	}
}

func (b *builder) walk(n *html.Node, m Marks, a Align) {
	switch n.Type {
	case html.TextNode:
		text := n.Data
		if strings.TrimSpace(text) == "" && strings.ContainsAny(text, "\r\n") {
			return
		}
		text = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ").Replace(text)
		for _, r := range text {
			b.emit(unit{kind: unitRune, r: r, marks: m})
		}
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Br:
			b.emit(unit{kind: unitBreak})
			return
		case atom.Img:
			if img, ok := imageFrom(n); ok {
				b.emit(unit{kind: unitImage, img: img})
			}
			return
		}
		m = marksFor(n, m)
		block := n.DataAtom == atom.Div || n.DataAtom == atom.P
		if block {
			if own := blockAlign(n); own != AlignDefault {
				a = own
			}
			b.openBlock(a)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			b.walk(c, m, a)
		}
		if block {
			b.closeBlock()
		}
	default:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			b.walk(c, m, a)
		}
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func styles(n *html.Node) map[string]string {
	out := map[string]string{}
	for _, decl := range strings.Split(attr(n, "style"), ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return out
}

func blockAlign(n *html.Node) Align {
	v := styles(n)["text-align"]
	if v == "" {
		v = attr(n, "align")
	}
	switch Align(strings.ToLower(strings.TrimSpace(v))) {
	case AlignRight:
		return AlignRight
	case AlignCenter:
		return AlignCenter
	case AlignLeft:
		return AlignLeft
	case AlignJustify:
		return AlignJustify
	}
	return AlignDefault
}

func marksFor(n *html.Node, m Marks) Marks {
	switch n.DataAtom {
	case atom.B, atom.Strong:
		m.Bold = true
	case atom.I, atom.Em:
		m.Italic = true
	case atom.U:
		m.Underline = true
	case atom.Font:
		if v := attr(n, "face"); v != "" {
			m.Font = normalizeFont(v)
		}
		if s := sizeStep(attr(n, "size")); s > 0 {
			m.Size = s
		}
		if c := NormalizeColor(attr(n, "color")); c != "" {
			m.Color = c
		}
	}
	st := styles(n)
	if v, ok := st["font-weight"]; ok {
		w, err := strconv.Atoi(v)
		m.Bold = v == "bold" || v == "bolder" || (err == nil && w >= 600)
	}
	if v, ok := st["font-style"]; ok {
		m.Italic = v == "italic" || v == "oblique"
	}
	for _, k := range []string{"text-decoration", "text-decoration-line"} {
		if v, ok := st[k]; ok {
			m.Underline = strings.Contains(v, "underline")
		}
	}
	if v, ok := st["font-family"]; ok {
		m.Font = normalizeFont(v)
	}
	if v, ok := st["font-size"]; ok {
		if s := sizeStep(v); s > 0 {
			m.Size = s
		}
	}
	if v, ok := st["color"]; ok {
		if c := NormalizeColor(v); c != "" {
			m.Color = c
		}
	}
	return m
}

func imageFrom(n *html.Node) (Image, bool) {
	img := Image{Src: strings.TrimSpace(attr(n, "src"))}
	if img.Src == "" {
		return img, false
	}
	st := styles(n)
	img.Width = length(st["width"], attr(n, "width"))
	img.Height = length(st["height"], attr(n, "height"))
	img.MaxWidth = st["max-width"]
	img.Display = st["display"]
	img.VAlign = st["vertical-align"]
	img.Cursor = st["cursor"]
	return img, true
}

// length prefers the style value and accepts only pixel lengths.
func length(style, attrVal string) float64 {
	for _, v := range []string{style, attrVal} {
		if v == "" || strings.HasSuffix(v, "%") {
			continue
		}
		if px, ok := parsePx(v); ok {
			return px
		}
	}
	return 0
}

// HTML serialises the document canonically. A single unaligned block is written
// without a wrapper.
func (d *Doc) HTML() string {
	if d.Empty() {
		return ""
	}
	var sb strings.Builder
	if len(d.Blocks) == 1 && d.Blocks[0].Align == AlignDefault {
		writeInlines(&sb, d.Blocks[0].Inlines)
		return sb.String()
	}
	for _, b := range d.Blocks {
		if b.Align == AlignDefault {
			sb.WriteString("<div>")
		} else {
			fmt.Fprintf(&sb, `<div style="text-align: %s;">`, b.Align)
		}
		writeInlines(&sb, b.Inlines)
		sb.WriteString("</div>")
	}
	return sb.String()
}

func writeInlines(sb *strings.Builder, inlines []Inline) {
	for _, in := range inlines {
		switch v := in.(type) {
		case Text:
			writeText(sb, v)
		case Image:
			sb.WriteString(`<img src="`)
			sb.WriteString(html.EscapeString(v.Src))
			sb.WriteString(`"`)
			if st := v.Style(); st != "" {
				sb.WriteString(` style="`)
				sb.WriteString(st)
				sb.WriteString(`"`)
			}
			sb.WriteString(">")
		case Break:
			sb.WriteString("<br>")
		}
	}
}

func writeText(sb *strings.Builder, t Text) {
	m := t.Marks
	var closers []string
	if m.Font != "" || m.Size != 0 || m.Color != "" {
		sb.WriteString("<font")
		if m.Font != "" {
			sb.WriteString(` face="` + html.EscapeString(familyFor(m.Font)) + `"`)
		}
		if m.Size != 0 {
			sb.WriteString(` size="` + strconv.Itoa(m.Size) + `"`)
		}
		if m.Color != "" {
			sb.WriteString(` color="` + html.EscapeString(m.Color) + `"`)
		}
		sb.WriteString(">")
		closers = append(closers, "</font>")
	}
	for _, tag := range []struct {
		on   bool
		name string
	}{{m.Bold, "b"}, {m.Italic, "i"}, {m.Underline, "u"}} {
		if tag.on {
			sb.WriteString("<" + tag.name + ">")
			closers = append(closers, "</"+tag.name+">")
		}
	}
	sb.WriteString(html.EscapeString(t.Text))
	for i := len(closers) - 1; i >= 0; i-- {
		sb.WriteString(closers[i])
	}
}

// Style returns the inline CSS of the image.
func (img Image) Style() string {
	var parts []string
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, k+": "+v+";")
		}
	}
	add("width", px(img.Width))
	add("height", px(img.Height))
	add("max-width", img.MaxWidth)
	add("display", img.Display)
	add("vertical-align", img.VAlign)
	add("cursor", img.Cursor)
	return strings.Join(parts, " ")
}

func px(v float64) string {
	if v <= 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64) + "px"
}
