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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
)

// FontLibrary holds parsed OpenType fonts keyed by family and style.
type FontLibrary struct {
	fonts map[fontKey]*opentype.Font
}

type fontKey struct {
	family       string
	bold, italic bool
}

func NewFontLibrary() *FontLibrary { return &FontLibrary{fonts: make(map[fontKey]*opentype.Font)} }

// LoadFile registers one font file.
func (fl *FontLibrary) LoadFile(family string, bold, italic bool, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read font %s: %w", path, err)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("parse font %s: %w", path, err)
	}
	if fl.fonts == nil {
		fl.fonts = make(map[fontKey]*opentype.Font)
	}
	fl.fonts[fontKey{family: strings.ToLower(family), bold: bold, italic: italic}] = f
	return nil
}

// LoadDir registers every .ttf/.otf file in dir. File names follow
// "<family>[-bold][-italic].ttf"; the family is matched case-insensitively.
func (fl *FontLibrary) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read font dir: %w", err)
	}
	n := 0
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".ttf" && ext != ".otf") {
			continue
		}
		stem := strings.ToLower(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		italic := strings.HasSuffix(stem, "-italic")
		stem = strings.TrimSuffix(stem, "-italic")
		bold := strings.HasSuffix(stem, "-bold")
		stem = strings.TrimSuffix(stem, "-bold")
		if err := fl.LoadFile(stem, bold, italic, filepath.Join(dir, e.Name())); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Len reports how many faces are registered.
func (fl *FontLibrary) Len() int { return len(fl.fonts) }

func (fl *FontLibrary) find(spec FontSpec) *opentype.Font {
	if fl == nil || len(fl.fonts) == 0 {
		return nil
	}
	fam := strings.ToLower(spec.Family)
	if f, ok := fl.fonts[fontKey{fam, spec.Bold, spec.Italic}]; ok {
		return f
	}
	if f, ok := fl.fonts[fontKey{family: fam}]; ok {
		return f
	}
	return nil
}

type faceKey struct {
	spec FontSpec
}

// faceCache memoises faces per spec; faces are not cheap to build.
type faceCache struct {
	mu    sync.Mutex
	faces map[faceKey]cachedFace
}

type cachedFace struct {
	face font.Face
	m    Metrics
}

func (c *faceCache) get(spec FontSpec, build func() (font.Face, error)) (font.Face, Metrics, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cf, ok := c.faces[faceKey{spec}]; ok {
		return cf.face, cf.m, true
	}
	f, err := build()
	if err != nil || f == nil {
		return nil, Metrics{}, false
	}
	if c.faces == nil {
		c.faces = make(map[faceKey]cachedFace)
	}
	cf := cachedFace{face: f, m: metricsOf(f)}
	c.faces[faceKey{spec}] = cf
	return cf.face, cf.m, true
}

func sizeOf(spec FontSpec) float64 {
	if spec.SizePx <= 0 {
		return DefaultSizePx
	}
	return spec.SizePx
}

// LibraryProvider resolves families from a FontLibrary and falls back when a family
// is missing. Sizes are pixels, so faces are built at 72 DPI with size = px.
type LibraryProvider struct {
	Lib      *FontLibrary
	Fallback Provider
	cache    faceCache
}

func (p *LibraryProvider) Resolve(spec FontSpec) (font.Face, Metrics) {
	spec.SizePx = sizeOf(spec)
	if f := p.Lib.find(spec); f != nil {
		face, m, ok := p.cache.get(spec, func() (font.Face, error) {
			return opentype.NewFace(f, &opentype.FaceOptions{Size: spec.SizePx, DPI: 72, Hinting: font.HintingFull})
		})
		if ok {
			return face, m
		}
	}
	fb := p.Fallback
	if fb == nil {
		fb = BasicProvider{}
	}
	return fb.Resolve(spec)
}

// TrueTypeProvider serves a single TrueType font at every requested size.
type TrueTypeProvider struct {
	Font  *truetype.Font
	cache faceCache
}

// LoadTrueType parses a .ttf file.
func LoadTrueType(path string) (*TrueTypeProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font %s: %w", path, err)
	}
	f, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font %s: %w", path, err)
	}
	return &TrueTypeProvider{Font: f}, nil
}

func (p *TrueTypeProvider) Resolve(spec FontSpec) (font.Face, Metrics) {
	size := sizeOf(spec)
	// one face per size; family and style are ignored
	face, m, ok := p.cache.get(FontSpec{SizePx: size}, func() (font.Face, error) {
		return truetype.NewFace(p.Font, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingFull}), nil
	})
	if !ok {
		return BasicProvider{}.Resolve(spec)
	}
	return face, m
}

// Open picks a provider for path: a directory becomes a FontLibrary, a file a
// TrueTypeProvider, and an empty path the basic face.
func Open(path string) (Provider, error) {
	if path == "" {
		return BasicProvider{}, nil
	}
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("font path: %w", err)
	}
	if st.IsDir() {
		lib := NewFontLibrary()
		if _, err := lib.LoadDir(path); err != nil {
			return nil, err
		}
		return &LibraryProvider{Lib: lib}, nil
	}
	return LoadTrueType(path)
}
