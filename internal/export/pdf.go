/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// A4 portrait in millimetres.
const (
	pageWmm = 210.0
	pageHmm = 297.0
)

// PDFOptions controls the single-image document.
type PDFOptions struct {
	Title    string
	MarginMM float64
	Quality  int // JPEG quality, 1..100
}

// WritePDF embeds img as the only content of one A4 page, scaled to the printable
// width and anchored at the top. Images taller than the page are scaled to fit
// its height instead.
func WritePDF(w io.Writer, img image.Image, opt PDFOptions) error {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return fmt.Errorf("empty image")
	}
	q := opt.Quality
	if q <= 0 || q > 100 {
		q = 98
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	if opt.Title != "" {
		pdf.SetTitle(opt.Title, true)
	}
	pdf.SetCreator("lessonprep", false)
	pdf.AddPage()

	m := opt.MarginMM
	availW, availH := pageWmm-2*m, pageHmm-2*m
	wmm := availW
	hmm := wmm * float64(b.Dy()) / float64(b.Dx())
	if hmm > availH {
		hmm = availH
		wmm = hmm * float64(b.Dx()) / float64(b.Dy())
	}
	x := m + (availW-wmm)/2

	const name = "sheet"
	opts := gofpdf.ImageOptions{ImageType: "JPG"}
	pdf.RegisterImageOptionsReader(name, opts, &buf)
	pdf.ImageOptions(name, x, m, wmm, hmm, false, opts, 0, "")
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("build pdf: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// FileName is the download name for a document title.
func FileName(title string) string {
	t := strings.TrimSpace(title)
	if t == "" {
		t = "تحضير"
	}
	t = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, t)
	return t + ".pdf"
}
