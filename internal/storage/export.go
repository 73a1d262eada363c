package storage

import (
	"encoding/json"
	"io"
)

type ExportData struct {
	RunMetadata
	Times []float64   `json:"times"`
	Rows  [][]float64 `json:"rows"`
}

// ExportJSON writes the metadata and the full table of a stored run to w.
func (s *Store) ExportJSON(runID string, w io.Writer) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	table, err := s.LoadTable(runID)
	if err != nil {
		return err
	}

	data := ExportData{
		RunMetadata: *meta,
		Times:       table.Times,
		Rows:        table.Rows,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
