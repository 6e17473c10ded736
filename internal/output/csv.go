package output

import (
	"bytes"
	"encoding/csv"
)

// CSVExporter buffers a report as comma-separated values
type CSVExporter struct {
	buf bytes.Buffer
	w   *csv.Writer
}

// NewCSVExporter creates an empty CSV document
func NewCSVExporter() *CSVExporter {
	e := &CSVExporter{}
	e.w = csv.NewWriter(&e.buf)
	return e
}

// ExportHeader writes the header record
func (e *CSVExporter) ExportHeader(fields []string) error {
	return e.w.Write(fields)
}

// ExportDataRow writes one record
func (e *CSVExporter) ExportDataRow(values []string) error {
	return e.w.Write(values)
}

// Extension returns "csv"
func (e *CSVExporter) Extension() string {
	return "csv"
}

// Bytes flushes and returns the document
func (e *CSVExporter) Bytes() ([]byte, error) {
	e.w.Flush()
	if err := e.w.Error(); err != nil {
		return nil, err
	}
	return e.buf.Bytes(), nil
}
