/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestWordWrapBreaksOnSpaces(t *testing.T) {
	box := Layout(BasicProvider{}, []Run{{Text: "Hello world from Go"}}, 50)
	if len(box.Lines) != 3 {
		t.Fatalf("want 3 lines, got %d", len(box.Lines))
	}
	// 7px per glyph; trailing spaces trimmed
	if box.Lines[0].Width != 35 || box.Lines[2].Width != 49 {
		t.Fatalf("widths %v %v", box.Lines[0].Width, box.Lines[2].Width)
	}
	if box.Height != 39 || box.Width != 49 {
		t.Fatalf("box %vx%v", box.Width, box.Height)
	}
	if box.Lines[1].Items[0].Run.Text != "world" || box.Lines[1].Items[0].X != 0 {
		t.Fatalf("second line starts with %+v", box.Lines[1].Items[0])
	}
}

func TestArabicWordsMeasureByRune(t *testing.T) {
	w, h := Measure(BasicProvider{}, []Run{{Text: "درس جديد"}})
	if w != 56 || h != 13 {
		t.Fatalf("measure %v x %v", w, h)
	}
}

func TestMeasureIsAdditive(t *testing.T) {
	w1, h1 := Measure(BasicProvider{}, []Run{{Text: "ABC"}})
	w2, h2 := Measure(BasicProvider{}, []Run{{Text: "A"}, {Text: "BC"}})
	if w1 != w2 || h1 != h2 {
		t.Fatalf("w1=%v h1=%v vs w2=%v h2=%v", w1, h1, w2, h2)
	}
}

func TestBreaksAndEmptyLines(t *testing.T) {
	runs := []Run{{Text: "a"}, {Break: true}, {Break: true}, {Text: "b"}}
	box := Layout(BasicProvider{}, runs, 0)
	if len(box.Lines) != 3 || len(box.Lines[1].Items) != 0 {
		t.Fatalf("lines %+v", box.Lines)
	}
	if box.Height != 39 {
		t.Fatalf("height %v", box.Height)
	}
	if empty := Layout(BasicProvider{}, nil, 100); len(empty.Lines) != 1 || empty.Height != 13 {
		t.Fatalf("empty layout %+v", empty)
	}
}

func TestInlineBoxesGrowTheLine(t *testing.T) {
	runs := []Run{{Text: "ab "}, {Box: &Box{W: 40, H: 30}, Ref: "img"}, {Text: " cd"}}
	box := Layout(BasicProvider{}, runs, 0)
	if len(box.Lines) != 1 {
		t.Fatalf("lines %d", len(box.Lines))
	}
	l := box.Lines[0]
	if l.Ascent != 30 || l.Height() != 32 || l.Width != 14+7+40+7+14 {
		t.Fatalf("line %+v", l)
	}
	var ref any
	for _, it := range l.Items {
		if it.Run.Box != nil {
			ref = it.Run.Ref
			if it.X != 21 {
				t.Fatalf("box at %v", it.X)
			}
		}
	}
	if ref != "img" {
		t.Fatal("box ref lost")
	}
	wrapped := Layout(BasicProvider{}, runs, 50)
	if len(wrapped.Lines) != 3 {
		t.Fatalf("wrapped lines %d", len(wrapped.Lines))
	}
}

func TestLeadingIncreasesHeight(t *testing.T) {
	b0 := Layout(BasicProvider{}, []Run{{Text: "Hello world from Go"}}, 50)
	b1 := Layout(BasicProvider{}, []Run{{Text: "Hello world from Go", Leading: 4}}, 50)
	if b1.Height != b0.Height+12 {
		t.Fatalf("h0=%v h1=%v", b0.Height, b1.Height)
	}
}

func TestSplitWords(t *testing.T) {
	got := splitWords("  ab cd\t\tef ")
	want := []string{"  ", "ab", " ", "cd", "\t\t", "ef", " "}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q", got)
	}
}

func TestLibraryProviderFallsBack(t *testing.T) {
	p := &LibraryProvider{Lib: NewFontLibrary()}
	w, h := Measure(p, []Run{{Text: "Hello", Font: FontSpec{Family: "Nonexistent", SizePx: 12}}})
	if w != 35 || h != 13 {
		t.Fatalf("fallback measure %v x %v", w, h)
	}
}

func TestOpenPicksProvider(t *testing.T) {
	p, err := Open("")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(BasicProvider); !ok {
		t.Fatalf("empty path gave %T", p)
	}
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err = Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	lp, ok := p.(*LibraryProvider)
	if !ok || lp.Lib.Len() != 0 {
		t.Fatalf("dir gave %T", p)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.ttf"), []byte("not a font"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(filepath.Join(dir, "broken.ttf")); err == nil {
		t.Fatal("broken font accepted")
	}
	if _, err := Open(filepath.Join(dir, "missing")); err == nil {
		t.Fatal("missing path accepted")
	}
}

func TestStylesInSheetOrder(t *testing.T) {
	names := ListStyles()
	if names[0] != StyleTitle || len(names) != 5 {
		t.Fatalf("names %v", names)
	}
	for _, n := range names {
		if _, ok := GetStyle(n); !ok {
			t.Fatalf("%s missing", n)
		}
	}
	r := MustStyle(StyleBody).Run("x")
	if r.Font.SizePx != 16 || r.Leading != 4 {
		t.Fatalf("body run %+v", r)
	}
}
