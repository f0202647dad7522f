// Package reconcile turns free-form model output into structured records.
//
// Models wrap JSON in markdown fences, surround it with prose and emit raw line breaks
// inside string values. Extraction tries a fenced block, then the outermost braces, then
// the whole text; a failed parse gets one repair pass before giving up.
package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"yukti-backend/records"
)

// Degraded record fields used when a document response cannot be parsed.
const (
	DegradedReportType = "Unknown"
	DegradedSummary    = "Analysis completed but format was unstructured."
	DegradedDisclaimer = "Parsing Error. Raw output shown."
)

var errNoObject = errors.New("no JSON object in response")

var fenced = regexp.MustCompile("(?i)```(?:json)?\\s*([\\s\\S]*?)\\s*```")

// ParseError is returned when a summary response holds no parseable JSON object, even after repair.
type ParseError struct {
	Raw   string
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("model response could not be parsed (%d bytes): %v", len(e.Raw), e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// ExtractPayload returns the candidate JSON text inside raw.
func ExtractPayload(raw string) string {
	if m := fenced.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return strings.TrimSpace(raw)
}

// EscapeControlChars escapes raw newline, carriage return and tab characters found
// inside JSON string literals. Whitespace between tokens is left alone.
func EscapeControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !inString {
			if c == '"' {
				inString = true
			}
			b.WriteByte(c)
			continue
		}
		if escaped {
			escaped = false
			b.WriteByte(c)
			continue
		}
		switch c {
		case '\\':
			escaped = true
			b.WriteByte(c)
		case '"':
			inString = false
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// unmarshal accepts syntactically valid JSON whose fields have unexpected types.
// Mistyped fields are left at their zero value and the rest of the object is kept.
func unmarshal(b []byte, out any) error {
	err := json.Unmarshal(b, out)
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return nil
	}
	return err
}

// decode extracts, parses and, on a syntax failure, repairs once.
func decode(raw string, out any) error {
	payload := ExtractPayload(raw)
	if !strings.HasPrefix(payload, "{") {
		return errNoObject
	}
	err := unmarshal([]byte(payload), out)
	if err == nil {
		return nil
	}
	repaired := EscapeControlChars(payload)
	if repaired == payload {
		return err
	}
	return unmarshal([]byte(repaired), out)
}

// ParseDocument never fails: unparseable output becomes a degraded record carrying
// the raw text. The second result reports whether that happened.
func ParseDocument(raw string) (records.AnalysisRecord, bool) {
	var rec records.AnalysisRecord
	if err := decode(raw, &rec); err != nil {
		return Degraded(raw), true
	}
	rec.Normalize()
	return rec, false
}

// Degraded builds the record returned for unstructured output.
func Degraded(raw string) records.AnalysisRecord {
	return records.AnalysisRecord{
		Meta:       records.Meta{ReportType: DegradedReportType},
		Summary:    DegradedSummary,
		Analysis:   raw,
		Biomarkers: []records.Biomarker{},
		Medicines:  []records.MedicineExtract{},
		Disclaimer: DegradedDisclaimer,
	}
}

// ParseSummary decodes a summary-mode response or returns *ParseError.
func ParseSummary(raw string) (records.Summary, error) {
	var s records.Summary
	if err := decode(raw, &s); err != nil {
		return records.Summary{}, &ParseError{Raw: raw, Cause: err}
	}
	s.Normalize()
	return s, nil
}
