// Package prompts builds the instructions sent to the model for each analysis mode.
//
// The JSON contract written into the prompts is the one package reconcile decodes; both
// take their field names from package records and their enum values from its constants.
package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"yukti-backend/records"
)

type Mode string

const (
	ModeDocument Mode = "document"
	ModeSummary  Mode = "summary"
)

// ParseMode maps the form value to a mode; anything but "summary" is a document analysis.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModeSummary)) {
		return ModeSummary
	}
	return ModeDocument
}

// Placeholders used when a context is absent.
const (
	NoClinicalProfile = "No clinical profile available."
	NoPreviousReports = "No previous reports."
)

// DocumentHistoryLimit bounds the history sent with a single document to control cost.
// Summary mode sends the whole history.
const DocumentHistoryLimit = 3

// HistoryEntry is the compact form of a past record sent as history context.
type HistoryEntry struct {
	Date       string              `json:"date"`
	Summary    string              `json:"summary"`
	Biomarkers []records.Biomarker `json:"biomarkers"`
}

// HistoryContext serializes history (newest first) for the given mode.
// It returns "" when there is nothing to send.
func HistoryContext(history []records.AnalysisRecord, mode Mode) string {
	if mode == ModeDocument && len(history) > DocumentHistoryLimit {
		history = history[:DocumentHistoryLimit]
	}
	if len(history) == 0 {
		return ""
	}
	entries := make([]HistoryEntry, 0, len(history))
	for _, r := range history {
		bm := r.Biomarkers
		if bm == nil {
			bm = []records.Biomarker{}
		}
		entries = append(entries, HistoryEntry{Date: r.Meta.ReportDate, Summary: r.Summary, Biomarkers: bm})
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return ""
	}
	return string(b)
}

// Build returns the full prompt for mode.
func Build(mode Mode, clinicalContext, historyContext string) string {
	if strings.TrimSpace(clinicalContext) == "" {
		clinicalContext = NoClinicalProfile
	}
	if h := strings.TrimSpace(historyContext); h == "" || h == "[]" {
		historyContext = NoPreviousReports
	}
	if mode == ModeSummary {
		return buildSummary(clinicalContext, historyContext)
	}
	return buildDocument(clinicalContext, historyContext)
}

func enum(values ...string) string { return strings.Join(values, "/") }

func buildDocument(clinical, history string) string {
	var b strings.Builder
	b.WriteString(`You are "Yukti AI", an automated health data analyst.
Your Tone: Empathetic, Reassuring, Beginner-Friendly (Explain medical terms).

Patient Clinical Context (Profile):
`)
	b.WriteString(clinical)
	b.WriteString(`

Medical History (Past Reports Summary):
`)
	b.WriteString(history)
	fmt.Fprintf(&b, `

TASKS:
1. **Classify:** Is this a "Lab Report", "Prescription", or "Scan"?
2. **Analyze (Deep Read):** Read every single page. Extract all abnormal values.
3. **Explain:** For every abnormal finding, explain WHAT it means in simple English.
4. **Medicines:** Extract detailed medicine info.
   - **Type:** "%[1]s" (Long-term, e.g. Diabetes/BP) OR "%[2]s" (Short-term, e.g. Antibiotics/Painkillers).
   - **Duration:** Look for keywords like "for 5 days", "1 month". Default to "Ongoing" if %[1]s.
5. **Context:** Connect findings to the Patient Clinical Profile and compare biomarkers with the history to set the trend.

CRITICAL: Output must be in strict JSON with exactly these fields.

`+"```json"+`
{
  "meta": { "reportDate": "YYYY-MM-DD", "reportType": "Lab Report/Prescription/Scan", "pageCount": "estimated pages" },
  "summary": "High-level summary in simple, non-jargon language.",
  "clinicalCorrelation": "How this report relates to the patient's history (e.g. 'This confirms the diabetes risk').",
  "biomarkers": [
    { "name": "Test Name", "value": "120", "unit": "mg/dL", "status": "%[3]s", "trend": "%[4]s" }
  ],
  "analysis": "Detailed findings in MARKDOWN. Use bullet points, **Bold** text, and short paragraphs. Explain complex terms.",
  "medicines": [
    { "name": "Augmentin 625", "type": "%[2]s", "strength": "625mg", "dosage": "1 tablet twice daily", "timing": "After food", "duration": "5 days" },
    { "name": "Glycomet", "type": "%[1]s", "strength": "500mg", "dosage": "1 tablet daily", "timing": "Before food", "duration": "Ongoing" }
  ],
  "disclaimer": "Generated by AI. Verify with a specialist."
}
`+"```"+`

Allowed values: status is one of %[3]s. trend is one of %[4]s. type is one of %[2]s/%[1]s.
Ensure the JSON is valid and the only output. Escape line breaks inside strings as \n.`,
		records.TypeChronic, records.TypeAcute,
		enum(records.StatusHigh, records.StatusLow, records.StatusNormal),
		enum(records.TrendRising, records.TrendFalling, records.TrendStable, records.TrendNew),
	)
	return b.String()
}

func buildSummary(clinical, history string) string {
	var b strings.Builder
	b.WriteString(`You are "Yukti AI", a senior medical data analyst.

OBJECTIVE: Generate a "Holistic Health Summary" for a patient based on their Clinical Profile and Report History.

TONE:
- Beginner Friendly (Explain simple medical terms in brackets).
- Reassuring but Objective.
- Use Simple English (ELI5 style).

INPUTS:
1. Clinical Profile (Assessment Scores & Answers):
`)
	b.WriteString(clinical)
	b.WriteString(`

2. Report History (Past Lab/Rx Analysis):
`)
	b.WriteString(history)
	b.WriteString(`

TASKS:
1. **Synthesize:** Combine the clinical profile risks with the findings from the report history.
2. **Filter Noise:** If the history contains reports that seem completely unrelated, IMPLICITLY IGNORE THEM.
3. **Connect the Dots:** Highlight how the reports confirm or contradict the clinical assessment scores.

OUTPUT FORMAT (JSON):
` + "```json" + `
{
  "title": "Holistic Health Summary",
  "patientRiskProfile": "Summary of their risk level (e.g. 'High Risk Diabetic')",
  "keyFindings": [
    "**Finding 1**: Explanation in simple english.",
    "**Finding 2**: Another finding."
  ],
  "trendAnalysis": "A nicely spaced paragraph describing the health trajectory. Use bold text for emphasis.",
  "recommendation": "One clear, high-level medical recommendation based on the synthesis."
}
` + "```" + `
Ensure the JSON is valid and the only output.`)
	return b.String()
}
