// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package leaf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gitlab.com/tozd/go/errors"
)

// 🖼️ magick runs `magick in [args...] out`
func (t *Toolchain) magick(ctx context.Context, in, out string, args ...string) error {
	if err := ensureParent(out); err != nil {
		return err
	}
	full := append([]string{in}, args...)
	full = append(full, out)
	return t.run(ctx, t.tools.Magick, full...)
}

// ConvertImage re-encodes an image; the target format follows the output extension
func (t *Toolchain) ConvertImage(ctx context.Context, in, out string) error {
	return t.magick(ctx, in, out)
}

// PNGToJPEG flattens transparency onto white before encoding
func (t *Toolchain) PNGToJPEG(ctx context.Context, in, out string) error {
	return t.magick(ctx, in, out, "-background", "white", "-flatten")
}

// PDFToImages renders every page as page-N.png inside the out directory
func (t *Toolchain) PDFToImages(ctx context.Context, in, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return errors.Errorf("creating output directory: %w", err)
	}
	return t.run(ctx, t.tools.Pdftoppm, "-png", in, filepath.Join(outDir, "page"))
}

// ImagesToPDF combines images into one PDF in the given order
func (t *Toolchain) ImagesToPDF(ctx context.Context, ins []string, out string) error {
	if len(ins) == 0 {
		return errors.New("no input images")
	}
	if err := ensureParent(out); err != nil {
		return err
	}
	args := append([]string{}, ins...)
	args = append(args, out)
	return t.run(ctx, t.tools.Magick, args...)
}

func (t *Toolchain) ResizeImage(ctx context.Context, in, out string, width, height int) error {
	return t.magick(ctx, in, out, "-resize", fmt.Sprintf("%dx%d!", width, height))
}

func (t *Toolchain) CompressImage(ctx context.Context, in, out string, quality int) error {
	return t.magick(ctx, in, out, "-quality", strconv.Itoa(quality))
}

func (t *Toolchain) RotateImage(ctx context.Context, in, out string, degrees float64) error {
	return t.magick(ctx, in, out, "-rotate", formatFloat(degrees))
}

// FlipImage mirrors horizontally (left-right) or vertically (top-bottom)
func (t *Toolchain) FlipImage(ctx context.Context, in, out, direction string) error {
	switch direction {
	case "horizontal":
		return t.magick(ctx, in, out, "-flop")
	case "vertical":
		return t.magick(ctx, in, out, "-flip")
	default:
		return errors.Errorf("unknown flip direction %q", direction)
	}
}

// AddWatermark draws text at the x,y offset; an empty font uses the tool default
func (t *Toolchain) AddWatermark(ctx context.Context, in, out, text string, x, y, fontSize int, font string) error {
	args := []string{}
	if font != "" {
		args = append(args, "-font", font)
	}
	args = append(args,
		"-pointsize", strconv.Itoa(fontSize),
		"-fill", "white",
		"-annotate", fmt.Sprintf("+%d+%d", x, y), text,
	)
	return t.magick(ctx, in, out, args...)
}

func (t *Toolchain) Grayscale(ctx context.Context, in, out string) error {
	return t.magick(ctx, in, out, "-colorspace", "Gray")
}
