package output

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"cloudtally/internal/report"
)

var _ report.TotalExporter = (*ConsoleExporter)(nil)

var (
	titleColor  = color.New(color.FgWhite, color.Bold)
	headerColor = color.New(color.FgCyan, color.Bold)
	totalColor  = color.New(color.FgYellow, color.Bold)
)

// ConsoleExporter prints a report as an aligned table. Rows are buffered
// until Close so columns can be sized.
type ConsoleExporter struct {
	out   io.Writer
	title string
	buf   bytes.Buffer
	tw    *tabwriter.Writer
	rows  int
	total int
}

// NewConsoleExporter creates a console exporter writing to out
func NewConsoleExporter(out io.Writer, title string) *ConsoleExporter {
	e := &ConsoleExporter{out: out, title: title, total: -1}
	e.tw = tabwriter.NewWriter(&e.buf, 0, 0, 2, ' ', 0)
	return e
}

// ExportHeader writes the column names
func (e *ConsoleExporter) ExportHeader(fields []string) error {
	_, err := fmt.Fprintln(e.tw, strings.Join(fields, "\t"))
	return err
}

// ExportDataRow writes one row
func (e *ConsoleExporter) ExportDataRow(values []string) error {
	e.rows++
	_, err := fmt.Fprintln(e.tw, strings.Join(values, "\t"))
	return err
}

// ExportTotalRow writes the total row, highlighted on Close
func (e *ConsoleExporter) ExportTotalRow(values []string) error {
	if err := e.ExportDataRow(values); err != nil {
		return err
	}
	e.total = e.rows
	return nil
}

// Close aligns the buffered table and prints it
func (e *ConsoleExporter) Close() error {
	if err := e.tw.Flush(); err != nil {
		return err
	}

	if e.title != "" {
		if _, err := titleColor.Fprintf(e.out, "\n%s\n", e.title); err != nil {
			return err
		}
	}

	scanner := bufio.NewScanner(&e.buf)
	line := 0
	for scanner.Scan() {
		text := strings.TrimRight(scanner.Text(), " ")
		var err error
		switch {
		case line == 0:
			_, err = headerColor.Fprintln(e.out, text)
		case line == e.total:
			_, err = totalColor.Fprintln(e.out, text)
		default:
			_, err = fmt.Fprintln(e.out, text)
		}
		if err != nil {
			return err
		}
		line++
	}
	return scanner.Err()
}
