// Package export renders the medication list and daily logs as an xlsx workbook.
package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"yukti-backend/dailylog"
	"yukti-backend/records"
)

const (
	SheetMedications = "Medications"
	SheetDailyLog    = "Daily Log"
)

var MedicationHeader = []string{"Name", "Type", "Strength", "Dosage", "Timing", "Status", "Start Date", "Remarks"}

var DailyLogHeader = []string{
	"Date", "Adherence", "Doses Taken", "Medicines Taken",
	"BP Systolic", "BP Diastolic", "Sugar", "Weight",
	"Meal Plan Followed", "Activity Minutes", "Hydration Glasses", "Notes",
}

// Workbook holds the rows of one export.
type Workbook struct {
	Medications []records.ActiveMedication
	Logs        []records.DailyLog
	// ActiveCount is the adherence denominator applied to every log.
	ActiveCount int
}

// Adherence writes w as an xlsx file.
func Adherence(w Workbook) ([]byte, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(SheetMedications)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetDailyLog); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	medRows := make([][]any, 0, len(w.Medications))
	for _, m := range w.Medications {
		status := m.Status
		if status == "" {
			status = records.StatusActive
		}
		medRows = append(medRows, []any{m.Name, m.Type, m.Strength, m.Dosage, m.Timing, status, m.StartDate, m.Remarks})
	}
	if err := writeSheet(f, SheetMedications, MedicationHeader, medRows, headerStyle); err != nil {
		f.Close()
		return nil, err
	}

	logRows := make([][]any, 0, len(w.Logs))
	for i := range w.Logs {
		l := &w.Logs[i]
		row := []any{
			l.Date, string(dailylog.Classify(l, w.ActiveCount)), len(l.MedsTaken), strings.Join(l.MedsTaken, ", "),
			floatOrNil(l.Vitals.BPSys), floatOrNil(l.Vitals.BPDia), floatOrNil(l.Vitals.Sugar), floatOrNil(l.Vitals.Weight),
			nil, nil, nil, l.Notes,
		}
		if l.Habits != nil {
			meal := "No"
			if l.Habits.MealPlanFollowed {
				meal = "Yes"
			}
			row[8], row[9], row[10] = meal, l.Habits.ActivityMinutes, l.Habits.HydrationGlasses
		}
		logRows = append(logRows, row)
	}
	if err := writeSheet(f, SheetDailyLog, DailyLogHeader, logRows, headerStyle); err != nil {
		f.Close()
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]any, headerStyle int) error {
	for col, h := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
		name, _ := excelize.ColumnNumberToName(col + 1)
		if err := f.SetColWidth(sheet, name, name, 18); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}
	for r, row := range rows {
		for c, v := range row {
			if v == nil || v == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func floatOrNil(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
