package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"code.sajari.com/docconv"
	"github.com/ledongthuc/pdf"
)

// Extractor returns the text of every page of a document, in page order.
// An empty string stands for a page without extractable text.
type Extractor interface {
	Extract(data []byte) ([]string, error)
}

// PDFExtractor extracts plain text with ledongthuc/pdf.
type PDFExtractor struct{}

func (PDFExtractor) Extract(data []byte) (pages []string, err error) {
	// The parser panics on some malformed xref tables.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	if len(data) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	total := reader.NumPage()
	pages = make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Keep the page so page numbers stay aligned.
			pages = append(pages, "")
			continue
		}
		pages = append(pages, normalizeText(text))
	}
	return pages, nil
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// DocconvExtractor converts through poppler's pdftotext via docconv. It does
// not see page breaks, so the whole text lands on page 1 and the remaining
// pages, counted by pdfinfo, are empty.
type DocconvExtractor struct{}

func (DocconvExtractor) Extract(data []byte) ([]string, error) {
	text, meta, err := docconv.ConvertPDF(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("docconv: %w", err)
	}
	n, _ := strconv.Atoi(strings.TrimSpace(meta["Pages"]))
	if n < 1 {
		n = 1
	}
	pages := make([]string, n)
	pages[0] = normalizeText(text)
	return pages, nil
}

// FallbackExtractor returns the result of the first extractor that succeeds.
type FallbackExtractor []Extractor

func (f FallbackExtractor) Extract(data []byte) ([]string, error) {
	var errs []error
	for _, e := range f {
		pages, err := e.Extract(data)
		if err == nil {
			return pages, nil
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}
