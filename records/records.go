package records

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Biomarker status and trend values the model is asked to emit.
const (
	StatusHigh   = "High"
	StatusLow    = "Low"
	StatusNormal = "Normal"

	TrendRising  = "Rising"
	TrendFalling = "Falling"
	TrendStable  = "Stable"
	TrendNew     = "New"
)

// Medicine type values.
const (
	TypeAcute   = "Acute"
	TypeChronic = "Chronic"
)

// ActiveMedication status values.
const (
	StatusActive   = "Active"
	StatusArchived = "Archived"
)

// Dosing slots and food relation for manually curated medications.
const (
	SlotMorning   = "Morning"
	SlotAfternoon = "Afternoon"
	SlotEvening   = "Evening"
	SlotNight     = "Night"

	BeforeFood = "Before Food"
	AfterFood  = "After Food"
)

// Slots lists the valid dosing slots in display order.
var Slots = []string{SlotMorning, SlotAfternoon, SlotEvening, SlotNight}

// FlexString decodes any JSON value into its textual form. Models are inconsistent
// about quoting numeric fields such as pageCount or a strength; arrays and objects keep
// their compact JSON text.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
	case '[', '{':
		var buf bytes.Buffer
		if err := json.Compact(&buf, b); err != nil {
			return err
		}
		*f = FlexString(buf.String())
	default:
		// numbers and booleans
		*f = FlexString(b)
	}
	return nil
}

func (f FlexString) String() string { return string(f) }

// FlexList decodes a JSON array of scalars, or a single scalar as a one-element list.
type FlexList []string

func (l *FlexList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var items []FlexString
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		out := make(FlexList, 0, len(items))
		for _, it := range items {
			out = append(out, string(it))
		}
		*l = out
		return nil
	}
	var one FlexString
	if err := one.UnmarshalJSON(b); err != nil {
		return err
	}
	*l = nil
	if v := strings.TrimSpace(string(one)); v != "" {
		*l = FlexList{v}
	}
	return nil
}

// Meta describes the analyzed document.
type Meta struct {
	ReportDate string     `json:"reportDate"`
	ReportType string     `json:"reportType"`
	PageCount  FlexString `json:"pageCount"`
}

type Biomarker struct {
	Name   FlexString `json:"name"`
	Value  FlexString `json:"value"`
	Unit   FlexString `json:"unit"`
	Status string     `json:"status"`
	Trend  string     `json:"trend"`
}

// Abnormal reports whether the biomarker is flagged outside its reference range.
func (b Biomarker) Abnormal() bool {
	s := strings.ToLower(b.Status)
	return strings.Contains(s, "high") || strings.Contains(s, "low") || strings.Contains(s, "abnormal")
}

// MedicineExtract is a medication mention produced by one analysis.
type MedicineExtract struct {
	Name     FlexString `json:"name"`
	Type     FlexString `json:"type"`
	Strength FlexString `json:"strength"`
	Dosage   FlexString `json:"dosage"`
	Timing   FlexString `json:"timing"`
	Duration FlexString `json:"duration"`
}

// AnalysisRecord is the structured result of analyzing one document.
// ID, Timestamp and ModelUsed are assigned when the record enters the history.
type AnalysisRecord struct {
	ID                  string            `json:"id,omitempty"`
	Timestamp           *time.Time        `json:"timestamp,omitempty"`
	ModelUsed           string            `json:"modelUsed,omitempty"`
	Meta                Meta              `json:"meta"`
	Summary             string            `json:"summary"`
	ClinicalCorrelation string            `json:"clinicalCorrelation"`
	Biomarkers          []Biomarker       `json:"biomarkers"`
	Analysis            string            `json:"analysis"`
	Medicines           []MedicineExtract `json:"medicines"`
	Disclaimer          string            `json:"disclaimer"`
}

// Normalize replaces nil slices so the record always serializes with arrays.
func (r *AnalysisRecord) Normalize() {
	if r.Biomarkers == nil {
		r.Biomarkers = []Biomarker{}
	}
	if r.Medicines == nil {
		r.Medicines = []MedicineExtract{}
	}
}

// Summary is the holistic health summary produced in summary mode.
type Summary struct {
	Title              string     `json:"title"`
	PatientRiskProfile string     `json:"patientRiskProfile"`
	KeyFindings        FlexList   `json:"keyFindings"`
	TrendAnalysis      string     `json:"trendAnalysis"`
	Recommendation     string     `json:"recommendation"`
	IsSummary          bool       `json:"isSummary,omitempty"`
	GeneratedAt        *time.Time `json:"generatedAt,omitempty"`
	ModelUsed          string     `json:"modelUsed,omitempty"`
}

func (s *Summary) Normalize() {
	if s.KeyFindings == nil {
		s.KeyFindings = FlexList{}
	}
}

// ActiveMedication is an entry of the patient's medication list.
type ActiveMedication struct {
	Name           string   `json:"name"`
	Dosage         string   `json:"dosage"`
	Timing         string   `json:"timing"`
	Type           string   `json:"type"`
	Strength       string   `json:"strength,omitempty"`
	Duration       string   `json:"duration,omitempty"`
	Status         string   `json:"status"`
	Slots          []string `json:"slots,omitempty"`
	RelationToFood string   `json:"relationToFood,omitempty"`
	Remarks        string   `json:"remarks,omitempty"`
	StartDate      string   `json:"startDate,omitempty"`
}

// IsActive treats a missing status as active.
func (m ActiveMedication) IsActive() bool {
	return m.Status == "" || m.Status == StatusActive
}

type Vitals struct {
	BPSys  *float64 `json:"bpSys,omitempty"`
	BPDia  *float64 `json:"bpDia,omitempty"`
	Sugar  *float64 `json:"sugar,omitempty"`
	Weight *float64 `json:"weight,omitempty"`
}

// Empty reports whether no vital was recorded.
func (v Vitals) Empty() bool {
	return v.BPSys == nil && v.BPDia == nil && v.Sugar == nil && v.Weight == nil
}

type Habits struct {
	MealPlanFollowed bool `json:"mealPlanFollowed"`
	ActivityMinutes  int  `json:"activityMinutes"`
	HydrationGlasses int  `json:"hydrationGlasses"`
}

// DailyLog holds what was recorded for one calendar date.
type DailyLog struct {
	Date      string   `json:"date"`
	MedsTaken []string `json:"medsTaken"`
	Vitals    Vitals   `json:"vitals"`
	Habits    *Habits  `json:"habits,omitempty"`
	Notes     string   `json:"notes,omitempty"`
}

// Taken reports whether the named medicine was marked as taken, ignoring case.
func (l DailyLog) Taken(name string) bool {
	for _, n := range l.MedsTaken {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// SameName is the case-insensitive identity used for medication names.
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// DateKey formats t as the YYYY-MM-DD key used for daily logs and start dates.
func DateKey(t time.Time) string { return t.Format("2006-01-02") }
