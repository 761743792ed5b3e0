// Package extracttest builds small but well-formed PDF files for tests that
// need to go through the real text-layer parser.
package extracttest

import (
	"bytes"
	"fmt"
	"strings"
)

// PDF returns a single-page PDF that draws each line with Helvetica, one row
// below the other. With no lines the page has a content stream but no text,
// which is what a scanned page looks like to a text-layer parser.
func PDF(lines ...string) []byte {
	var content strings.Builder
	if len(lines) > 0 {
		content.WriteString("BT\n/F1 12 Tf\n72 720 Td\n")
		for i, line := range lines {
			if i > 0 {
				content.WriteString("0 -20 Td\n")
			}
			fmt.Fprintf(&content, "(%s) Tj\n", escape(line))
		}
		content.WriteString("ET\n")
	}
	return build(content.String(), true)
}

// CorruptXrefPDF returns a PDF whose cross-reference table is garbage, so
// opening it fails before any page is read.
func CorruptXrefPDF() []byte {
	return build("BT\n/F1 12 Tf\n72 720 Td\n(Name: John Doe) Tj\nET\n", false)
}

func build(stream string, validXref bool) []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", len(stream), stream),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	buf.WriteString("xref\n")
	if validXref {
		fmt.Fprintf(&buf, "0 %d\n", len(objects)+1)
		buf.WriteString("0000000000 65535 f \n")
		for _, off := range offsets {
			fmt.Fprintf(&buf, "%010d 00000 n \n", off)
		}
	} else {
		buf.WriteString("this is not a cross-reference table\n")
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
