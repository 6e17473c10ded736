// Package rates maps compute size classes to hourly and monthly cost rates.
package rates

import (
	"sort"
	"strings"
	"sync/atomic"
)

// Rate is the cost of one size class. Values are kept as the strings they
// were configured with so reports print them verbatim.
type Rate struct {
	Hourly  string `yaml:"hourly" mapstructure:"hourly" json:"hourly"`
	Monthly string `yaml:"monthly" mapstructure:"monthly" json:"monthly"`
}

// IsZero reports whether the rate carries no value
func (r Rate) IsZero() bool {
	return r.Hourly == "" && r.Monthly == ""
}

// Lookup resolves a size class to a rate. It never fails: unknown sizes
// yield a zero Rate.
type Lookup interface {
	Rate(sizeClass string) Rate
}

// Table is a read-only rate table loaded once per run
type Table struct {
	rates  map[string]Rate
	folded map[string]string
	misses atomic.Int64
}

// NewTable builds a table from a size-class to rate mapping
func NewTable(entries map[string]Rate) *Table {
	t := &Table{
		rates:  make(map[string]Rate, len(entries)),
		folded: make(map[string]string, len(entries)),
	}
	for size, rate := range entries {
		size = strings.TrimSpace(size)
		if size == "" {
			continue
		}
		t.rates[size] = rate
		t.folded[strings.ToLower(size)] = size
	}
	return t
}

// Rate returns the rate for sizeClass, trying an exact match first and a
// case-insensitive match second.
func (t *Table) Rate(sizeClass string) Rate {
	if t == nil {
		return Rate{}
	}
	if rate, ok := t.rates[sizeClass]; ok {
		return rate
	}
	if key, ok := t.folded[strings.ToLower(strings.TrimSpace(sizeClass))]; ok {
		return t.rates[key]
	}
	t.misses.Add(1)
	return Rate{}
}

// Misses returns how many lookups found no rate
func (t *Table) Misses() int64 {
	if t == nil {
		return 0
	}
	return t.misses.Load()
}

// Len returns the number of size classes in the table
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rates)
}

// Sizes returns the configured size classes in sorted order
func (t *Table) Sizes() []string {
	if t == nil {
		return nil
	}
	sizes := make([]string, 0, len(t.rates))
	for size := range t.rates {
		sizes = append(sizes, size)
	}
	sort.Strings(sizes)
	return sizes
}
