package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// parsePDF extracts the text of every page, trimmed, numbered from 1.
func parsePDF(r io.Reader) (result interface{}, err error) {
	// The pdf reader panics on some malformed inputs; fold those into the
	// same typed failure as ordinary errors.
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = &Error{Format: TypePDF, Err: fmt.Errorf("%v", rec)}
		}
	}()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &Error{Format: TypePDF, Err: err}
	}

	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &Error{Format: TypePDF, Err: err}
	}

	numPages := doc.NumPage()
	pages := make([]Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		p := doc.Page(i)
		text := ""
		if !p.V.IsNull() {
			text, err = p.GetPlainText(nil)
			if err != nil {
				return nil, &Error{Format: TypePDF, Err: err}
			}
		}
		pages = append(pages, Page{Page: i, Text: strings.TrimSpace(text)})
	}
	return PDFResult{Type: TypePDF, NumPages: numPages, Pages: pages}, nil
}
