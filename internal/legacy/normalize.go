/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package legacy converts the plain-text long-form format produced by the extraction
// function into editor HTML. It runs once when a document is seeded from extraction
// output and never on persisted or edited content: applying it twice is not a no-op.
package legacy

import (
	"html"
	"regexp"
	"strings"

	"lessonprep/internal/domain"
)

// placeholderRE matches "[صورة:<url>]" up to the first closing bracket.
var placeholderRE = regexp.MustCompile(`\[صورة:([^\]]+)\]`)

const imageStyle = "max-width: 300px; display: inline-block; vertical-align: middle;"

// ToHTML turns placeholders into inline images and newlines into <br>.
// Surrounding text is passed through as-is; it is sanitised later by the editor.
func ToHTML(raw string) string {
	if raw == "" {
		return ""
	}
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	out := placeholderRE.ReplaceAllStringFunc(raw, func(m string) string {
		url := strings.TrimSpace(placeholderRE.FindStringSubmatch(m)[1])
		return `<img src="` + html.EscapeString(url) + `" style="` + imageStyle + `">`
	})
	return strings.ReplaceAll(out, "\n", "<br>")
}

// CountPlaceholders returns the number of image placeholders in raw.
func CountPlaceholders(raw string) int {
	return len(placeholderRE.FindAllStringIndex(raw, -1))
}

// PlaceholderURLs returns the placeholder URLs in order of appearance.
func PlaceholderURLs(raw string) []string {
	var urls []string
	for _, m := range placeholderRE.FindAllStringSubmatch(raw, -1) {
		urls = append(urls, strings.TrimSpace(m[1]))
	}
	return urls
}

// SeedDocument builds a fresh document from an extraction record. Objectives beyond
// the sheet's capacity are dropped and strategies outside the catalog are ignored.
func SeedDocument(rec domain.ExtractionRecord) *domain.LessonDocument {
	d := domain.NewDocument()
	d.Title = strings.TrimSpace(rec.Title)
	for i, o := range rec.Objectives {
		if i >= domain.MaxObjectives {
			break
		}
		_ = d.SetObjective(i, strings.TrimSpace(o))
	}
	for _, s := range rec.Strategies {
		s = strings.TrimSpace(s)
		if !d.HasStrategy(s) {
			_ = d.ToggleStrategy(s)
		}
	}
	d.Preparation = ToHTML(rec.Preparation)
	d.Presentation = ToHTML(rec.Presentation)
	d.Evaluation = ToHTML(rec.Evaluation)
	d.Homework = rec.Homework
	return d
}
