// Package pdf extracts plain text from uploaded PDF bytes.
package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Document is the extracted content of one PDF.
type Document struct {
	// Pages holds the plain text of each page, in order.
	Pages []string
}

// PageCount returns the number of pages in the source PDF.
func (d *Document) PageCount() int {
	return len(d.Pages)
}

// Text returns the full document text with pages joined by newlines.
func (d *Document) Text() string {
	return strings.TrimSpace(strings.Join(d.Pages, "\n"))
}

// Extract parses raw PDF bytes and returns per-page plain text. Pages
// whose text layer cannot be decoded are kept as empty strings so the
// page count stays faithful to the source file.
func Extract(data []byte) (*Document, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse pdf: %w", err)
	}

	doc := &Document{}
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			doc.Pages = append(doc.Pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			doc.Pages = append(doc.Pages, "")
			continue
		}
		doc.Pages = append(doc.Pages, strings.TrimSpace(text))
	}

	if doc.Text() == "" {
		return nil, fmt.Errorf("no text extracted from pdf")
	}
	return doc, nil
}
