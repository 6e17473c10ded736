package output

import (
	"fmt"
	"strings"

	"cloudtally/internal/output/html"
	"cloudtally/internal/report"
)

// Format is the rendering of an exported report
type Format string

const (
	// Console prints an aligned table to the terminal
	Console Format = "console"
	// CSV writes comma-separated values
	CSV Format = "csv"
	// JSON writes one document per report
	JSON Format = "json"
	// HTML writes a standalone page per report
	HTML Format = "html"
)

// Formats lists the supported formats
var Formats = []Format{Console, CSV, JSON, HTML}

// ParseFormat validates a format name. Empty selects Console.
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	if f == "" {
		return Console, nil
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("invalid output format %q (valid: console, csv, json, html)", name)
}

// Document buffers one report so it can be written as a file
type Document interface {
	report.Exporter
	// Extension is the file extension without the dot
	Extension() string
	// Bytes renders the buffered report
	Bytes() ([]byte, error)
}

// NewDocument returns a file exporter for format
func NewDocument(format Format, title string) (Document, error) {
	switch format {
	case CSV:
		return NewCSVExporter(), nil
	case JSON:
		return NewJSONExporter(title), nil
	case HTML:
		return html.NewDocument(title), nil
	default:
		return nil, fmt.Errorf("format %q is not written to files", format)
	}
}
