package storage

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet = "Summary"
	statesSheet  = "States"
)

// ExportXLSX writes a workbook with a summary sheet and the full
// trajectory.
func (s *Store) ExportXLSX(runID, path string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	table, err := s.LoadTable(runID)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return err
	}
	if err := writeSummary(f, meta); err != nil {
		return err
	}

	if _, err := f.NewSheet(statesSheet); err != nil {
		return err
	}
	header := append([]any{"time"}, toAny(table.Columns)...)
	if err := f.SetSheetRow(statesSheet, "A1", &header); err != nil {
		return err
	}
	for i, row := range table.Rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := make([]any, 0, len(row)+1)
		values = append(values, table.Times[i])
		for _, v := range row {
			values = append(values, v)
		}
		if err := f.SetSheetRow(statesSheet, cell, &values); err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}

func writeSummary(f *excelize.File, meta *RunMetadata) error {
	rows := [][2]any{
		{"run", meta.ID},
		{"model", meta.Model},
		{"timestamp", meta.Timestamp.Format("2006-01-02 15:04:05")},
		{"integrator", meta.Integrator},
		{"dt", meta.Dt},
		{"duration", meta.Duration},
		{"tolerance", meta.Tolerance},
		{"seed", meta.Seed},
		{"samples", meta.Samples},
		{"steps_taken", meta.StepsTaken},
		{"rejected", meta.Rejected},
		{"energy_drift", meta.EnergyDrift},
	}
	for _, name := range sortedKeys(meta.Params) {
		rows = append(rows, [2]any{"param." + name, meta.Params[name]})
	}
	for _, name := range sortedKeys(meta.Metrics) {
		rows = append(rows, [2]any{"metric." + name, meta.Metrics[name]})
	}

	if err := f.SetCellValue(summarySheet, "A1", "Key"); err != nil {
		return err
	}
	if err := f.SetCellValue(summarySheet, "B1", "Value"); err != nil {
		return err
	}
	for i, r := range rows {
		for col, v := range r {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := f.SetCellValue(summarySheet, cell, v); err != nil {
				return fmt.Errorf("summary %s: %w", cell, err)
			}
		}
	}
	return nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
