// Package meds maintains the patient's medication list.
//
// Reconcile folds the medicines mentioned by one analysis into the list; the Service
// adds the manual surface and is the only writer of the persisted list.
package meds

import (
	"strings"

	"yukti-backend/records"
)

// Reconcile merges extracts into current and returns the new list. current is not modified.
//
// A known name (case-insensitive, trimmed) gets every non-empty extracted field; its
// status, start date and manual fields are kept. Unknown names are appended as active
// entries starting today. Several mentions of one name in a batch collapse into one entry.
func Reconcile(current []records.ActiveMedication, extracts []records.MedicineExtract, today string) []records.ActiveMedication {
	out := make([]records.ActiveMedication, len(current), len(current)+len(extracts))
	copy(out, current)

	for _, ex := range extracts {
		name := strings.TrimSpace(ex.Name.String())
		if name == "" {
			continue
		}
		if i := indexOf(out, name); i >= 0 {
			out[i] = overlay(out[i], ex)
			continue
		}
		typ := strings.TrimSpace(ex.Type.String())
		if typ == "" {
			typ = records.TypeChronic
		}
		out = append(out, records.ActiveMedication{
			Name:      name,
			Dosage:    ex.Dosage.String(),
			Timing:    ex.Timing.String(),
			Type:      typ,
			Strength:  ex.Strength.String(),
			Duration:  ex.Duration.String(),
			Status:    records.StatusActive,
			StartDate: today,
		})
	}
	return out
}

// indexOf prefers an active entry, then an archived one.
func indexOf(list []records.ActiveMedication, name string) int {
	found := -1
	for i, m := range list {
		if !records.SameName(m.Name, name) {
			continue
		}
		if m.IsActive() {
			return i
		}
		if found < 0 {
			found = i
		}
	}
	return found
}

func overlay(m records.ActiveMedication, ex records.MedicineExtract) records.ActiveMedication {
	set := func(dst *string, v records.FlexString) {
		if s := strings.TrimSpace(v.String()); s != "" {
			*dst = s
		}
	}
	set(&m.Dosage, ex.Dosage)
	set(&m.Timing, ex.Timing)
	set(&m.Type, ex.Type)
	set(&m.Strength, ex.Strength)
	set(&m.Duration, ex.Duration)
	return m
}
