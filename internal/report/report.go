package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"cloudtally/internal/inventory"
)

// TotalLabel marks the aggregate row
const TotalLabel = "Total:"

// TotalMode selects how monthly rates are summed
type TotalMode string

const (
	// TotalInteger parses each monthly rate as an integer; anything else counts 0
	TotalInteger TotalMode = "integer"
	// TotalDecimal keeps fractional monthly rates
	TotalDecimal TotalMode = "decimal"
)

// ParseTotalMode validates a total mode name. Empty selects TotalInteger.
func ParseTotalMode(name string) (TotalMode, error) {
	switch mode := TotalMode(strings.ToLower(strings.TrimSpace(name))); mode {
	case "":
		return TotalInteger, nil
	case TotalInteger, TotalDecimal:
		return mode, nil
	default:
		return "", fmt.Errorf("invalid total mode %q (valid: integer, decimal)", name)
	}
}

// Exporter consumes a report: one header, then each row in order
type Exporter interface {
	ExportHeader(fields []string) error
	ExportDataRow(values []string) error
}

// TotalExporter is implemented by exporters that render the total row
// apart from the data rows. Other exporters receive it as a data row.
type TotalExporter interface {
	ExportTotalRow(values []string) error
}

// Report is an assembled table for one resource kind
type Report struct {
	Kind   string
	Title  string
	Header []string
	Rows   [][]string
	// Total is the aggregate row; nil for kinds without a monetary column
	// and for failed collections.
	Total []string
	// Available is false when the collection produced no data this run
	Available bool
	Err       error
	Faults    []*inventory.ProviderFault
	// ParseFaults counts non-empty monthly rates that contributed 0 to Total
	ParseFaults int
}

// Export writes the header, every row and the total row. The header is
// written even when the collection failed.
func (r *Report) Export(e Exporter) error {
	if err := e.ExportHeader(r.Header); err != nil {
		return fmt.Errorf("failed to export %s header: %w", r.Kind, err)
	}
	for _, values := range r.Rows {
		if err := e.ExportDataRow(values); err != nil {
			return fmt.Errorf("failed to export %s row: %w", r.Kind, err)
		}
	}
	if r.Total == nil {
		return nil
	}
	exportTotal := e.ExportDataRow
	if te, ok := e.(TotalExporter); ok {
		exportTotal = te.ExportTotalRow
	}
	if err := exportTotal(r.Total); err != nil {
		return fmt.Errorf("failed to export %s total: %w", r.Kind, err)
	}
	return nil
}

// MonthlyTotal returns the last column of the total row, or "" without one
func (r *Report) MonthlyTotal() string {
	if len(r.Total) == 0 {
		return ""
	}
	return r.Total[len(r.Total)-1]
}

// AssembleCloudServices builds the cloud services report. It has no total row.
func AssembleCloudServices(result inventory.Result[inventory.CloudServiceSet]) *Report {
	r := newReport(KindCloudServices, "Cloud Services", header(CloudServiceColumns), result.Err, result.Faults)
	if !r.Available {
		return r
	}
	r.Rows = rows(CloudServiceColumns, result.Set)
	return r
}

// AssembleVirtualMachines builds the virtual machines report with its total row
func AssembleVirtualMachines(result inventory.Result[inventory.VirtualMachineSet], mode TotalMode) *Report {
	r := newReport(KindVirtualMachines, "Virtual Machines", header(VirtualMachineColumns), result.Err, result.Faults)
	if !r.Available {
		return r
	}
	r.Rows = rows(VirtualMachineColumns, result.Set)
	sum, bad := sumMonthly(result.Set, func(v inventory.VirtualMachine) string { return v.MonthlyRate }, mode)
	r.Total = totalRow(len(r.Header), sum)
	r.ParseFaults = bad
	return r
}

// AssembleComputeRoles builds the compute roles report with its total row
func AssembleComputeRoles(result inventory.Result[inventory.ComputeRoleSet], mode TotalMode) *Report {
	r := newReport(KindComputeRoles, "Compute Roles", header(ComputeRoleColumns), result.Err, result.Faults)
	if !r.Available {
		return r
	}
	r.Rows = rows(ComputeRoleColumns, result.Set)
	sum, bad := sumMonthly(result.Set, func(c inventory.ComputeRole) string { return c.MonthlyRate }, mode)
	r.Total = totalRow(len(r.Header), sum)
	r.ParseFaults = bad
	return r
}

func newReport(kind, title string, hdr []string, err error, faults []*inventory.ProviderFault) *Report {
	return &Report{
		Kind:      kind,
		Title:     title,
		Header:    hdr,
		Available: err == nil,
		Err:       err,
		Faults:    faults,
	}
}

func rows[T any](cols []Column[T], items []T) [][]string {
	out := make([][]string, 0, len(items))
	for _, item := range items {
		out = append(out, row(cols, item))
	}
	return out
}

// totalRow is blank except the label and the sum in the last two columns
func totalRow(width int, sum string) []string {
	total := make([]string, width)
	total[width-2] = TotalLabel
	total[width-1] = sum
	return total
}

// sumMonthly folds the monthly rates of items. Values that do not parse
// contribute 0; non-empty ones are counted in bad.
func sumMonthly[T any](items []T, monthly func(T) string, mode TotalMode) (sum string, bad int) {
	if mode == TotalDecimal {
		total := decimal.Zero
		for _, item := range items {
			v := strings.TrimSpace(monthly(item))
			d, err := decimal.NewFromString(v)
			if err != nil {
				if v != "" {
					bad++
				}
				continue
			}
			total = total.Add(d)
		}
		return total.String(), bad
	}

	var total int64
	for _, item := range items {
		v := strings.TrimSpace(monthly(item))
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			if v != "" {
				bad++
			}
			continue
		}
		total += n
	}
	return strconv.FormatInt(total, 10), bad
}
