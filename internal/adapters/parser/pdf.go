// Package parser provides document parsing adapters implementing ports.DocumentParser.
package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFParser extracts page text from PDF bytes in-process.
type PDFParser struct{}

// NewPDFParser creates a new PDF parser.
func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

// Parse extracts the text of every page, separated by blank lines.
// Pages without extractable text are skipped.
func (p *PDFParser) Parse(ctx context.Context, data []byte, filename string) (text string, err error) {
	if len(data) == 0 {
		return "", fmt.Errorf("parsing %s: empty file", filename)
	}

	// The PDF reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("parsing %s: malformed PDF: %v", filename, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", filename, err)
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("parsing %s page %d: %w", filename, i, err)
		}
		if content = cleanText(content); content != "" {
			pages = append(pages, content)
		}
	}

	return strings.Join(pages, "\n\n"), nil
}

// SupportedFormats returns formats this parser handles.
func (p *PDFParser) SupportedFormats() []string {
	return []string{"pdf"}
}

// cleanText drops control characters left over from text extraction.
func cleanText(content string) string {
	var cleaned strings.Builder
	cleaned.Grow(len(content))
	for _, r := range content {
		if r == '\n' || r == '\t' || (r >= 32 && r != 127 && r != 0xFFFD) {
			cleaned.WriteRune(r)
		}
	}
	return strings.TrimSpace(cleaned.String())
}
