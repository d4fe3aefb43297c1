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
	"os"
	"path/filepath"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// officeConvert runs a headless office conversion into a scratch directory and
// moves the single produced file to out
func (t *Toolchain) officeConvert(ctx context.Context, in, out, filter, infilter string) error {
	if err := ensureParent(out); err != nil {
		return err
	}

	scratch, err := os.MkdirTemp("", "convrt-office-*")
	if err != nil {
		return errors.Errorf("creating scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	args := []string{"--headless"}
	if infilter != "" {
		args = append(args, "--infilter="+infilter)
	}
	args = append(args, "--convert-to", filter, "--outdir", scratch, in)
	if err := t.run(ctx, t.tools.Soffice, args...); err != nil {
		return err
	}

	ext := filter
	if i := strings.Index(ext, ":"); i >= 0 {
		ext = ext[:i]
	}
	base := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	produced := filepath.Join(scratch, base+"."+ext)
	if _, err := os.Stat(produced); err != nil {
		return errors.Errorf("office conversion produced no %s output: %w", ext, err)
	}
	return moveFile(produced, out)
}

// twoStep runs a conversion through an intermediate file with the given extension
func (t *Toolchain) twoStep(ctx context.Context, in, out, midExt string, first, second func(ctx context.Context, in, out string) error) error {
	scratch, err := os.MkdirTemp("", "convrt-mid-*")
	if err != nil {
		return errors.Errorf("creating scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	mid := filepath.Join(scratch, strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))+midExt)
	if err := first(ctx, in, mid); err != nil {
		return err
	}
	return second(ctx, mid, out)
}

func (t *Toolchain) WordToPDF(ctx context.Context, in, out string) error {
	return t.officeConvert(ctx, in, out, "pdf", "")
}

func (t *Toolchain) PDFToWord(ctx context.Context, in, out string) error {
	return t.officeConvert(ctx, in, out, "docx:MS Word 2007 XML", "writer_pdf_import")
}

func (t *Toolchain) ExcelToPDF(ctx context.Context, in, out string) error {
	return t.officeConvert(ctx, in, out, "pdf", "")
}

// PDFToExcel extracts the text layer and loads it into a spreadsheet, one line per row
func (t *Toolchain) PDFToExcel(ctx context.Context, in, out string) error {
	return t.twoStep(ctx, in, out, ".txt", t.PDFToText, func(ctx context.Context, in, out string) error {
		return t.officeConvert(ctx, in, out, "xlsx", "Text - txt - csv (StarCalc)")
	})
}

func (t *Toolchain) ExcelToWord(ctx context.Context, in, out string) error {
	return t.twoStep(ctx, in, out, ".html", func(ctx context.Context, in, out string) error {
		return t.officeConvert(ctx, in, out, "html", "")
	}, func(ctx context.Context, in, out string) error {
		return t.officeConvert(ctx, in, out, "docx:MS Word 2007 XML", "HTML (StarWriter)")
	})
}

func (t *Toolchain) WordToExcel(ctx context.Context, in, out string) error {
	return t.twoStep(ctx, in, out, ".html", func(ctx context.Context, in, out string) error {
		return t.officeConvert(ctx, in, out, "html", "")
	}, func(ctx context.Context, in, out string) error {
		return t.officeConvert(ctx, in, out, "xlsx", "calc_HTML_WebQuery")
	})
}

func (t *Toolchain) TextToWord(ctx context.Context, in, out string) error {
	return t.officeConvert(ctx, in, out, "docx:MS Word 2007 XML", "")
}

func (t *Toolchain) WordToText(ctx context.Context, in, out string) error {
	return t.officeConvert(ctx, in, out, "txt:Text", "")
}

func (t *Toolchain) CSVToExcel(ctx context.Context, in, out string) error {
	return t.officeConvert(ctx, in, out, "xlsx", "")
}

func (t *Toolchain) ExcelToCSV(ctx context.Context, in, out string) error {
	return t.officeConvert(ctx, in, out, "csv", "")
}

func (t *Toolchain) PDFToHTML(ctx context.Context, in, out string) error {
	return t.officeConvert(ctx, in, out, "html", "writer_pdf_import")
}

// PDFToText writes the layout-preserving text layer of a PDF
func (t *Toolchain) PDFToText(ctx context.Context, in, out string) error {
	if err := ensureParent(out); err != nil {
		return err
	}
	return t.run(ctx, t.tools.Pdftotext, "-layout", in, out)
}

// PDFToMarkdown writes the text layer as a markdown document
func (t *Toolchain) PDFToMarkdown(ctx context.Context, in, out string) error {
	return t.PDFToText(ctx, in, out)
}

func (t *Toolchain) HTMLToMarkdown(ctx context.Context, in, out string) error {
	if err := ensureParent(out); err != nil {
		return err
	}
	return t.run(ctx, t.tools.Pandoc, "-f", "html", "-t", "gfm", "-o", out, in)
}

func (t *Toolchain) MarkdownToHTML(ctx context.Context, in, out string) error {
	if err := ensureParent(out); err != nil {
		return err
	}
	return t.run(ctx, t.tools.Pandoc, "-f", "gfm", "-t", "html", "-s", "-o", out, in)
}
