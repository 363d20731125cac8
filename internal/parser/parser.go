package parser

import (
	"fmt"
	"io"
	"path"
	"strings"
	"unicode/utf8"
)

// Result type tags. The dispatcher selects exactly one variant per input.
const (
	TypeCSV     = "csv"
	TypeXLSX    = "xlsx"
	TypePDF     = "pdf"
	TypeUnknown = "unknown"
)

// previewLimit bounds the fallback preview for unrecognized formats.
const previewLimit = 1000

// Row is one record of tabular output, header name to cell value.
type Row map[string]string

type CSVResult struct {
	Type string `json:"type"`
	Rows []Row  `json:"rows"`
}

type XLSXResult struct {
	Type   string           `json:"type"`
	Sheets map[string][]Row `json:"sheets"`
}

type Page struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

type PDFResult struct {
	Type     string `json:"type"`
	NumPages int    `json:"numpages"`
	Pages    []Page `json:"pages"`
}

type UnknownResult struct {
	Type    string `json:"type"`
	Preview string `json:"preview"`
}

// Error wraps a parse failure with the variant that produced it.
type Error struct {
	Format string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Format, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Parse extracts structured content from the stream, dispatching on the
// declared MIME type first and the file extension second. It is a pure
// function of its input and safe to invoke repeatedly on the same bytes.
// On failure it returns a *Error and no partial output.
func Parse(name, mimeType string, r io.Reader) (interface{}, error) {
	lowerMime := strings.ToLower(mimeType)
	ext := strings.ToLower(path.Ext(name))

	switch {
	case strings.Contains(lowerMime, "csv") || ext == ".csv":
		return parseCSV(r)
	case strings.Contains(lowerMime, "sheet") || ext == ".xlsx" || ext == ".xls":
		return parseXLSX(r)
	case strings.Contains(lowerMime, "pdf") || ext == ".pdf":
		return parsePDF(r)
	default:
		return parsePreview(r)
	}
}

// parsePreview returns a bounded textual sample of unrecognized content.
func parsePreview(r io.Reader) (interface{}, error) {
	buf := make([]byte, previewLimit)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, &Error{Format: TypeUnknown, Err: err}
	}
	return UnknownResult{Type: TypeUnknown, Preview: decodeText(buf[:n])}, nil
}

// decodeText renders raw bytes as text, replacing invalid UTF-8 sequences.
func decodeText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), "�")
}
