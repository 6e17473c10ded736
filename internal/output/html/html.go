package html

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"cloudtally/internal/logging"
	"cloudtally/internal/report"
)

//go:embed assets/* templates/*
var content embed.FS

var _ report.TotalExporter = (*Document)(nil)

// TemplateData represents the data structure passed to the HTML template
type TemplateData struct {
	Title       string
	GeneratedAt string
	Header      []string
	Rows        [][]string
	Total       []string
	Styles      template.CSS
}

// Document buffers a report and renders it as a standalone HTML page
type Document struct {
	data TemplateData
	now  func() time.Time
}

// NewDocument creates an empty HTML document
func NewDocument(title string) *Document {
	return &Document{
		data: TemplateData{Title: title},
		now:  time.Now,
	}
}

// ExportHeader sets the table header
func (d *Document) ExportHeader(fields []string) error {
	d.data.Header = append([]string(nil), fields...)
	return nil
}

// ExportDataRow adds a table row
func (d *Document) ExportDataRow(values []string) error {
	d.data.Rows = append(d.data.Rows, append([]string(nil), values...))
	return nil
}

// ExportTotalRow puts the total row in the table footer
func (d *Document) ExportTotalRow(values []string) error {
	d.data.Total = append([]string(nil), values...)
	return nil
}

// Extension returns "html"
func (d *Document) Extension() string {
	return "html"
}

// Bytes renders the page
func (d *Document) Bytes() ([]byte, error) {
	tmpl, err := template.New("report.html").ParseFS(content, "templates/report.html")
	if err != nil {
		return nil, fmt.Errorf("error parsing template: %v", err)
	}

	styles, err := content.ReadFile("assets/styles.css")
	if err != nil {
		return nil, fmt.Errorf("error reading styles: %v", err)
	}

	data := d.data
	data.Styles = template.CSS(styles)
	data.GeneratedAt = d.now().UTC().Format(time.RFC1123)

	logging.Debug("Rendering HTML report", map[string]interface{}{
		"title": data.Title,
		"rows":  len(data.Rows),
	})

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("error executing template: %v", err)
	}
	return buf.Bytes(), nil
}
