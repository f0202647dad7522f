package files

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	pdf "rsc.io/pdf"
)

// MimePDF is the media type of PDF uploads.
const MimePDF = "application/pdf"

// ErrNoText is returned for PDFs without a text layer (scanned pages).
var ErrNoText = errors.New("pdf has no extractable text")

// IsPDF sniffs the PDF header.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte("%PDF-"))
}

func open(data []byte) (r *pdf.Reader, err error) {
	// rsc.io/pdf panics on some malformed documents.
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("malformed pdf: %v", p)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

// PageCount returns the number of pages of a PDF document.
func PageCount(data []byte) (n int, err error) {
	r, err := open(data)
	if err != nil {
		return 0, err
	}
	defer func() {
		if p := recover(); p != nil {
			n, err = 0, fmt.Errorf("malformed pdf: %v", p)
		}
	}()
	return r.NumPage(), nil
}

// ExtractText returns the text of a PDF document up to maxChars.
// If maxChars <= 0, a sane default is used.
func ExtractText(data []byte, maxChars int) (text string, err error) {
	if maxChars <= 0 {
		maxChars = 24000 // multi-page lab reports, still well inside model context
	}
	r, err := open(data)
	if err != nil {
		return "", err
	}
	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("malformed pdf: %v", p)
		}
	}()

	var buf strings.Builder
	total := r.NumPage()
	for i := 1; i <= total; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		fmt.Fprintf(&buf, "--- Page %d ---\n", i)
		for _, t := range p.Content().Text {
			buf.WriteString(t.S)
		}
		buf.WriteString("\n\n")
		if buf.Len() >= maxChars {
			break
		}
	}
	out := buf.String()
	if strings.TrimSpace(stripPageMarkers(out)) == "" {
		return "", ErrNoText
	}
	return truncate(out, maxChars), nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func stripPageMarkers(s string) string {
	var b strings.Builder
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(line, "--- Page ") {
			continue
		}
		b.WriteString(line)
	}
	return b.String()
}
