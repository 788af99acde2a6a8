package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// NativePDF reads the embedded text layer of a PDF. Cheap and fast; hanya
// bekerja untuk halaman non-scanned.
type NativePDF struct {
	reader *pdf.Reader
}

func OpenPDF(content []byte) (*NativePDF, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return &NativePDF{reader: r}, nil
}

func (n *NativePDF) PageCount() int {
	return n.reader.NumPage()
}

// PageText returns the text layer of one page (1-based). The underlying
// parser panics on some malformed xref tables, so recover and report the
// page as unreadable instead of taking the whole document down.
func (n *NativePDF) PageText(num int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("pdf page %d: parser panic: %v", num, r)
		}
	}()

	p := n.reader.Page(num)
	if p.V.IsNull() {
		return "", fmt.Errorf("pdf page %d: missing page object", num)
	}
	text, err = p.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("pdf page %d: %w", num, err)
	}
	return text, nil
}
