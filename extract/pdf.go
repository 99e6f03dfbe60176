// Package extract reads plain text out of uploaded documents.
package extract

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"

	"go-pdf-qa/rag"
)

// PDF extracts text with ledongthuc/pdf. It works on the in-memory upload,
// so no temp file is needed.
type PDF struct{}

func NewPDF() *PDF {
	return &PDF{}
}

// ExtractText returns the plain text of every page. A document without a
// text layer (scanned images) yields an empty string and no error.
func (p *PDF) ExtractText(data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty document", rag.ErrExtraction)
	}

	// the parser panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: malformed pdf: %v", rag.ErrExtraction, r)
		}
	}()

	rdr, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: failed to open pdf: %v", rag.ErrExtraction, err)
	}

	b, err := rdr.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: failed to read pdf text: %v", rag.ErrExtraction, err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, b); err != nil {
		return "", fmt.Errorf("%w: failed to read pdf buffer: %v", rag.ErrExtraction, err)
	}
	return buf.String(), nil
}

// IsPDF reports whether data starts with the PDF magic header.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

var _ rag.Extractor = (*PDF)(nil)
