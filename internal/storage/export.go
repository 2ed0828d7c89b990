package storage

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
)

type ExportData struct {
	Metadata *RunMetadata `json:"metadata"`
	Columns  []string     `json:"columns"`
	Times    []float64    `json:"times"`
	Rows     [][]float64  `json:"rows"`
}

// ExportJSON writes metadata and trajectory of a run as one JSON document.
func (s *Store) ExportJSON(runID string, w io.Writer) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	table, err := s.LoadTable(runID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ExportData{
		Metadata: meta,
		Columns:  table.Columns,
		Times:    table.Times,
		Rows:     table.Rows,
	})
}

// ExportCSV copies the stored states.csv of a run to w.
func (s *Store) ExportCSV(runID string, w io.Writer) error {
	if _, err := s.Load(runID); err != nil {
		return err
	}
	f, err := os.Open(filepath.Join(s.baseDir, runID, statesFile))
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(w, f)
	return err
}
