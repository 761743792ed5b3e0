package extract

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

var pdfMagic = []byte("%PDF")

// PDFParser turns PDF bytes into plain text.
type PDFParser interface {
	Parse(content []byte) (text string, pages int, err error)
}

// NativePDFParser reads the embedded text layer page by page. Each visual row
// of text becomes one line so that "Key: value" lines stay separate.
type NativePDFParser struct{}

func (NativePDFParser) Parse(content []byte) (text string, pages int, err error) {
	// ledongthuc/pdf panics on some malformed object streams.
	defer func() {
		if r := recover(); r != nil {
			text, pages, err = "", 0, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	pdfReader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", 0, err
	}

	var b strings.Builder
	numPages := pdfReader.NumPage()
	for pageNum := 1; pageNum <= numPages; pageNum++ {
		page := pdfReader.Page(pageNum)
		if page.V.IsNull() || page.V.Key("Contents").Kind() == pdf.Null {
			continue
		}

		rows, err := page.GetTextByRow()
		if err != nil {
			// Skip pages that fail to extract
			continue
		}
		for _, row := range rows {
			var line strings.Builder
			for _, word := range row.Content {
				line.WriteString(word.S)
			}
			if l := strings.TrimRightFunc(line.String(), unicode.IsSpace); l != "" {
				b.WriteString(l)
				b.WriteString("\n")
			}
		}
	}

	return b.String(), numPages, nil
}

func hasPDFMagic(content []byte) bool {
	return bytes.HasPrefix(content, pdfMagic)
}

// IsMeaningfulText reports whether text extracted from a PDF looks like real
// content rather than the residue of a scanned page: more than 20 characters
// after trimming and an alphanumeric share above 0.3 of non-whitespace runes.
func IsMeaningfulText(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len([]rune(trimmed)) <= 20 {
		return false
	}
	var alnum, visible int
	for _, r := range trimmed {
		if unicode.IsSpace(r) {
			continue
		}
		visible++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		}
	}
	if visible == 0 {
		return false
	}
	return float64(alnum)/float64(visible) > 0.3
}
