package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"cloudtally/internal/version"
)

const namespace = "cloudtally"

// Recorder holds the metrics of one report run. A nil Recorder discards everything.
type Recorder struct {
	registry *prometheus.Registry
	items    *prometheus.CounterVec
	faults   *prometheus.CounterVec
	fetches  *prometheus.CounterVec
	duration *prometheus.GaugeVec
	monthly  *prometheus.GaugeVec
	build    *prometheus.GaugeVec
}

// NewRecorder creates a Recorder with its own registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		items: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "items_collected_total",
				Help:      "Number of resources collected per kind",
			},
			[]string{"kind"},
		),
		faults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_faults_total",
				Help:      "Number of provider faults per kind and operation",
			},
			[]string{"kind", "operation"},
		),
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deployment_fetch_tasks_total",
				Help:      "Number of deployment fetch tasks per kind and result",
			},
			[]string{"kind", "result"},
		),
		duration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "collection_duration_seconds",
				Help:      "Duration of the last collection per kind",
			},
			[]string{"kind"},
		),
		monthly: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "monthly_rate_total",
				Help:      "Monthly rate total of the last report per kind",
			},
			[]string{"kind"},
		),
		build: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "build_info",
				Help:      "Build information",
			},
			[]string{"version", "commit"},
		),
	}
	r.registry.MustRegister(r.items, r.faults, r.fetches, r.duration, r.monthly, r.build)
	r.build.With(prometheus.Labels{
		"version": version.ShortString(),
		"commit":  version.GitCommit,
	}).Set(1)
	return r
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveCollection records a finished collection
func (r *Recorder) ObserveCollection(kind string, items int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.items.WithLabelValues(kind).Add(float64(items))
	r.duration.WithLabelValues(kind).Set(elapsed.Seconds())
}

// ProviderFault counts one provider fault
func (r *Recorder) ProviderFault(kind, operation string) {
	if r == nil {
		return
	}
	r.faults.WithLabelValues(kind, operation).Inc()
}

// ObserveDeploymentFetches counts the finished deployment fetch tasks of one collection
func (r *Recorder) ObserveDeploymentFetches(kind string, succeeded, failed int) {
	if r == nil {
		return
	}
	r.fetches.WithLabelValues(kind, "success").Add(float64(succeeded))
	r.fetches.WithLabelValues(kind, "failure").Add(float64(failed))
}

// ObserveMonthlyTotal records the total row of a report. Empty or
// unparsable totals are skipped.
func (r *Recorder) ObserveMonthlyTotal(kind, total string) {
	if r == nil || strings.TrimSpace(total) == "" {
		return
	}
	d, err := decimal.NewFromString(strings.TrimSpace(total))
	if err != nil {
		return
	}
	r.monthly.WithLabelValues(kind).Set(d.InexactFloat64())
}

// WatchRateMisses exports the miss counter of a rate table
func (r *Recorder) WatchRateMisses(source interface{ Misses() int64 }) error {
	if r == nil || source == nil {
		return nil
	}
	return r.registry.Register(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_lookup_misses_total",
			Help:      "Number of size classes not found in the rate table",
		},
		func() float64 { return float64(source.Misses()) },
	))
}

// WriteTextfile writes the registry in the node exporter textfile format
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create metrics directory %s: %w", dir, err)
		}
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics file %s: %w", path, err)
	}
	return nil
}
