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
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	applog "lessonprep/internal/log"
	"lessonprep/internal/sheet"
)

// CommandPrinter spools the fitted sheet as a PDF and hands it to a system print
// command such as lp or lpr. The PDF path is appended to Args.
type CommandPrinter struct {
	Command    string
	Args       []string
	PixelRatio float64
	Logger     *slog.Logger
}

func (c CommandPrinter) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return applog.WithComponent("printer")
}

// Print renders s as it currently stands (already scaled by the pipeline) and
// starts the command. The returned channel yields the command's exit status.
func (c CommandPrinter) Print(ctx context.Context, s *sheet.Sheet) (<-chan error, error) {
	name := c.Command
	if name == "" {
		name = "lp"
	}
	bin, err := exec.LookPath(name)
	if err != nil {
		return nil, fmt.Errorf("print command: %w", err)
	}
	ratio := c.PixelRatio
	if ratio <= 0 {
		ratio = 2
	}
	img, err := s.Rasterize(ratio)
	if err != nil {
		return nil, fmt.Errorf("rasterize: %w", err)
	}
	f, err := os.CreateTemp("", "lessonprep-print-*.pdf")
	if err != nil {
		return nil, err
	}
	spool := f.Name()
	werr := WritePDF(f, img, PDFOptions{Title: s.Document().DisplayTitle()})
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(spool)
		return nil, werr
	}

	cmd := exec.CommandContext(ctx, bin, append(append([]string{}, c.Args...), spool)...)
	if err := cmd.Start(); err != nil {
		_ = os.Remove(spool)
		return nil, err
	}
	l := c.logger()
	l.Debug("print job started", slog.String("cmd", name), slog.String("spool", spool))
	done := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		_ = os.Remove(spool)
		if err != nil {
			l.Warn("print command failed", slog.Any("err", err))
		}
		done <- err
	}()
	return done, nil
}
