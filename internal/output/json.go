package output

import (
	"encoding/json"
	"fmt"

	"cloudtally/internal/report"
)

var _ report.TotalExporter = (*JSONExporter)(nil)

// jsonDocument is the JSON rendering of one report
type jsonDocument struct {
	Title   string              `json:"title"`
	Columns []string            `json:"columns"`
	Rows    []map[string]string `json:"rows"`
	Total   *string             `json:"total,omitempty"`
}

// JSONExporter buffers a report as a JSON document with one object per row
type JSONExporter struct {
	doc jsonDocument
}

// NewJSONExporter creates an empty JSON document
func NewJSONExporter(title string) *JSONExporter {
	return &JSONExporter{doc: jsonDocument{Title: title, Rows: []map[string]string{}}}
}

// ExportHeader sets the column names
func (e *JSONExporter) ExportHeader(fields []string) error {
	e.doc.Columns = append([]string(nil), fields...)
	return nil
}

// ExportDataRow adds a row
func (e *JSONExporter) ExportDataRow(values []string) error {
	if len(values) != len(e.doc.Columns) {
		return fmt.Errorf("row has %d values for %d columns", len(values), len(e.doc.Columns))
	}
	row := make(map[string]string, len(values))
	for i, v := range values {
		row[e.doc.Columns[i]] = v
	}
	e.doc.Rows = append(e.doc.Rows, row)
	return nil
}

// ExportTotalRow sets the document total from the last column
func (e *JSONExporter) ExportTotalRow(values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("total row is empty")
	}
	total := values[len(values)-1]
	e.doc.Total = &total
	return nil
}

// Extension returns "json"
func (e *JSONExporter) Extension() string {
	return "json"
}

// Bytes renders the document
func (e *JSONExporter) Bytes() ([]byte, error) {
	return json.MarshalIndent(e.doc, "", "  ")
}
