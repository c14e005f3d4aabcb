package storage

import (
	"encoding/json"
	"io"
)

type ExportData struct {
	Run    *RunMetadata `json:"run"`
	Series *Series      `json:"series"`
}

// ExportJSON writes a run's metadata and history as one JSON document.
func ExportJSON(w io.Writer, meta *RunMetadata, series *Series) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(ExportData{Run: meta, Series: series})
}
