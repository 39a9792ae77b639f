/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package legacy

import (
	"strings"
	"testing"

	"lessonprep/internal/domain"
)

func TestToHTMLScenario(t *testing.T) {
	got := ToHTML("سطر1\n[صورة:http://x/img.png]")
	if strings.Count(got, "<br>") != 1 {
		t.Fatalf("want one <br>, got %q", got)
	}
	if !strings.Contains(got, `<img src="http://x/img.png"`) {
		t.Fatalf("missing image element: %q", got)
	}
	if strings.Contains(got, "\n") {
		t.Fatalf("literal newline left: %q", got)
	}
}

func TestToHTMLCounts(t *testing.T) {
	cases := []string{
		"",
		"no images here",
		"[صورة:a.png][صورة:b.png]",
		"x\r\n[صورة: https://h/p.jpg ]\ny\n[صورة:c]",
		"[صورة:]",
		"[image:a.png] is not a placeholder",
	}
	for _, in := range cases {
		out := ToHTML(in)
		if n, got := CountPlaceholders(in), strings.Count(out, "<img "); n != got {
			t.Fatalf("%q: %d placeholders but %d images in %q", in, n, got, out)
		}
		for _, u := range PlaceholderURLs(in) {
			if !strings.Contains(out, `src="`+u+`"`) {
				t.Fatalf("%q: image for %q missing in %q", in, u, out)
			}
		}
		if strings.Contains(out, "\n") || strings.Contains(out, "\r\n") {
			t.Fatalf("%q: newline survived: %q", in, out)
		}
	}
}

func TestToHTMLEscapesURL(t *testing.T) {
	got := ToHTML(`[صورة:http://x/a.png" onerror="x]`)
	if strings.Contains(got, `" onerror="`) {
		t.Fatalf("attribute injection not escaped: %q", got)
	}
}

func TestEmptyYieldsEmpty(t *testing.T) {
	if ToHTML("") != "" {
		t.Fatal("empty input should yield empty output")
	}
}

func TestSeedDocument(t *testing.T) {
	d := SeedDocument(domain.ExtractionRecord{
		Title:       " الكسور ",
		Objectives:  []string{"a", "b", "c", "d"},
		Strategies:  []string{"عصف ذهني", "غير معروف", "عصف ذهني"},
		Preparation: "line\n[صورة:http://x/1.png]",
		Homework:    "hw",
	})
	if d.Title != "الكسور" || len(d.Objectives) != 3 || d.Objective(2) != "c" {
		t.Fatalf("seed header = %#v", d)
	}
	if len(d.Strategies) != 1 || d.Strategies[0] != "عصف ذهني" {
		t.Fatalf("strategies = %#v", d.Strategies)
	}
	if !strings.Contains(d.Preparation, "<br>") || !strings.Contains(d.Preparation, "<img") {
		t.Fatalf("preparation not normalised: %q", d.Preparation)
	}
	if d.ID != "" || !d.Watermark.ShowName {
		t.Fatalf("unexpected defaults: %#v", d)
	}
}
