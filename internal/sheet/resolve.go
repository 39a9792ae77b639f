/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package sheet

import (
	"bytes"
	"container/list"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	"github.com/vincent-petithory/dataurl"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	applog "lessonprep/internal/log"
)

var (
	ErrRemoteDisabled    = errors.New("remote images are disabled")
	ErrUnsupportedSource = errors.New("unsupported image source")
	ErrImageTooLarge     = errors.New("image dimensions too large")
)

const (
	// maxImageBytes bounds a single fetched image.
	maxImageBytes = 16 << 20
	// maxImagePixels bounds the declared size of an image before it is decoded.
	maxImagePixels = 40 << 20
	// DefaultCacheSize is the number of decoded images a Resolver keeps.
	DefaultCacheSize = 64
)

// Resolver turns image sources into decoded images. Successful results are kept
// in a least recently used cache of CacheSize entries; failures are not kept, so
// a broken remote source is retried on the next Prepare.
type Resolver struct {
	Client      *http.Client
	FetchRemote bool
	Logger      *slog.Logger
	CacheSize   int // DefaultCacheSize when zero

	mu    sync.Mutex
	order *list.List // front is most recent
	cache map[string]*list.Element
}

type cached struct {
	src string
	img image.Image
}

func NewResolver(fetchRemote bool, client *http.Client) *Resolver {
	return &Resolver{FetchRemote: fetchRemote, Client: client}
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return applog.WithComponent("sheet")
}

// Cached returns a previously resolved image without doing any I/O.
func (r *Resolver) Cached(src string) (image.Image, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookup(src)
}

// Len reports how many images are cached.
func (r *Resolver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}

// Resolve decodes a data: URL or, when enabled, fetches an http(s) URL.
func (r *Resolver) Resolve(ctx context.Context, src string) (image.Image, error) {
	r.mu.Lock()
	img, ok := r.lookup(src)
	r.mu.Unlock()
	if ok {
		return img, nil
	}

	img, err := r.load(ctx, src)
	if err != nil {
		r.logger().Warn("image unresolved", slog.String("src", abbreviate(src)), slog.Any("err", err))
		return nil, err
	}
	r.mu.Lock()
	r.store(src, img)
	r.mu.Unlock()
	return img, nil
}

// lookup and store expect r.mu to be held.
func (r *Resolver) lookup(src string) (image.Image, bool) {
	el, ok := r.cache[src]
	if !ok {
		return nil, false
	}
	r.order.MoveToFront(el)
	return el.Value.(cached).img, true
}

func (r *Resolver) store(src string, img image.Image) {
	if r.cache == nil {
		r.cache = make(map[string]*list.Element)
		r.order = list.New()
	}
	if el, ok := r.cache[src]; ok {
		el.Value = cached{src: src, img: img}
		r.order.MoveToFront(el)
		return
	}
	r.cache[src] = r.order.PushFront(cached{src: src, img: img})
	limit := r.CacheSize
	if limit <= 0 {
		limit = DefaultCacheSize
	}
	for r.order.Len() > limit {
		old := r.order.Back()
		r.order.Remove(old)
		delete(r.cache, old.Value.(cached).src)
	}
}

func (r *Resolver) load(ctx context.Context, src string) (image.Image, error) {
	switch {
	case strings.HasPrefix(src, "data:"):
		du, err := dataurl.DecodeString(src)
		if err != nil {
			return nil, fmt.Errorf("decode data url: %w", err)
		}
		return decode(du.Data)
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		if !r.FetchRemote {
			return nil, ErrRemoteDisabled
		}
		return r.fetch(ctx, src)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, abbreviate(src))
	}
}

func (r *Resolver) fetch(ctx context.Context, src string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c := r.Client
	if c == nil {
		c = http.DefaultClient
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return decode(data)
}

func decode(data []byte) (image.Image, error) {
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") || mt.Is("image/svg+xml") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, mt.String())
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > maxImagePixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

func abbreviate(s string) string {
	if len(s) > 64 {
		return s[:64] + "..."
	}
	return s
}
