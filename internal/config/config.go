package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/viper"

	"cloudtally/internal/rates"
)

// Authentication modes for the management API
const (
	AuthCertificate = "certificate"
	AuthAzureAD     = "azure-ad"
)

var (
	validAuthModes  = []string{AuthCertificate, AuthAzureAD}
	validFormats    = []string{"console", "csv", "json", "html"}
	validOutputs    = []string{"filesystem", "s3"}
	validTotalModes = []string{"integer", "decimal"}
	validLogFormats = []string{"text", "json"}
)

// AzureSettings configures access to the subscription
type AzureSettings struct {
	SubscriptionID  string
	PublishSettings string
	Auth            string
	ManagementURL   string
	APIVersion      string
	Timeout         time.Duration
	RateLimit       RateLimitConfig
}

// AppSettings configures the process
type AppSettings struct {
	// MaxWorkers bounds concurrent deployment fetches
	MaxWorkers int
	LogFormat  string
	LogLevel   string
}

// RateSettings locates the rate table
type RateSettings struct {
	// File is a YAML or INI rate table; empty uses the inline rates.sizes table
	File string

	inline *rates.Table
}

// Table loads the rate table of the run
func (r RateSettings) Table() (*rates.Table, error) {
	if r.File != "" {
		return rates.Load(r.File)
	}
	if r.inline == nil {
		return rates.NewTable(nil), nil
	}
	return r.inline, nil
}

// ReportSettings configures which reports run and where they go
type ReportSettings struct {
	Kinds        string
	Format       string
	Output       string
	OutputDir    string
	Bucket       string
	BucketRegion string
	BucketRole   string
	TotalMode    string
	MetricsFile  string
}

// Settings is an immutable snapshot of the configuration of one run
type Settings struct {
	Azure  AzureSettings
	App    AppSettings
	Rates  RateSettings
	Report ReportSettings
}

// ValidationError lists every configuration problem found
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Load snapshots the global viper configuration
func Load() (*Settings, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom snapshots the configuration held by v
func LoadFrom(v *viper.Viper) (*Settings, error) {
	timeout, err := durationValue(v, "azure.timeout")
	if err != nil {
		return nil, err
	}
	inline, err := rates.FromViper(v, "rates.sizes")
	if err != nil {
		return nil, err
	}

	return &Settings{
		Azure: AzureSettings{
			SubscriptionID:  strings.TrimSpace(v.GetString("azure.subscription_id")),
			PublishSettings: v.GetString("azure.publish_settings"),
			Auth:            strings.ToLower(strings.TrimSpace(v.GetString("azure.auth"))),
			ManagementURL:   v.GetString("azure.management_url"),
			APIVersion:      v.GetString("azure.api_version"),
			Timeout:         timeout,
			RateLimit: RateLimitConfig{
				RequestsPerSecond: v.GetFloat64("azure.requests_per_second"),
				MaxRetries:        v.GetInt("azure.max_retries"),
				BaseDelay:         DefaultRateLimitConfig.BaseDelay,
				MaxDelay:          DefaultRateLimitConfig.MaxDelay,
			},
		},
		App: AppSettings{
			MaxWorkers: v.GetInt("app.max_workers"),
			LogFormat:  strings.ToLower(v.GetString("app.log_format")),
			LogLevel:   v.GetString("app.log_level"),
		},
		Rates: RateSettings{
			File:   v.GetString("rates.file"),
			inline: inline,
		},
		Report: ReportSettings{
			Kinds:        stringOrSlice(v, "report.kinds"),
			Format:       strings.ToLower(v.GetString("report.format")),
			Output:       strings.ToLower(v.GetString("report.output")),
			OutputDir:    v.GetString("report.output_dir"),
			Bucket:       v.GetString("report.bucket"),
			BucketRegion: v.GetString("report.bucket_region"),
			BucketRole:   v.GetString("report.bucket_role"),
			TotalMode:    strings.ToLower(v.GetString("report.total_mode")),
			MetricsFile:  v.GetString("report.metrics_file"),
		},
	}, nil
}

// Validate checks the settings a report run needs before any collection starts
func (s *Settings) Validate() error {
	var problems []string

	switch s.Azure.Auth {
	case AuthCertificate:
		if s.Azure.PublishSettings == "" {
			problems = append(problems, "azure.publish_settings is required for certificate authentication")
		}
	case AuthAzureAD:
		if s.Azure.SubscriptionID == "" {
			problems = append(problems, "azure.subscription_id is required for azure-ad authentication")
		}
	default:
		problems = append(problems, invalidChoice("azure.auth", s.Azure.Auth, validAuthModes))
	}

	if s.Azure.RateLimit.RequestsPerSecond <= 0 {
		problems = append(problems, "azure.requests_per_second must be greater than 0")
	}
	if s.Azure.RateLimit.MaxRetries < 0 {
		problems = append(problems, "azure.max_retries must not be negative")
	}
	if s.App.MaxWorkers < 1 {
		problems = append(problems, fmt.Sprintf("app.max_workers must be at least 1, got %d", s.App.MaxWorkers))
	}
	if !lo.Contains(validLogFormats, s.App.LogFormat) {
		problems = append(problems, invalidChoice("app.log_format", s.App.LogFormat, validLogFormats))
	}
	if !lo.Contains(validFormats, s.Report.Format) {
		problems = append(problems, invalidChoice("report.format", s.Report.Format, validFormats))
	}
	if !lo.Contains(validOutputs, s.Report.Output) {
		problems = append(problems, invalidChoice("report.output", s.Report.Output, validOutputs))
	}
	if s.Report.Output == "s3" && s.Report.Format != "console" {
		if s.Report.Bucket == "" {
			problems = append(problems, "report.bucket is required when report.output is s3")
		}
		if s.Report.BucketRegion == "" {
			problems = append(problems, "report.bucket_region is required when report.output is s3")
		}
	}
	if !lo.Contains(validTotalModes, s.Report.TotalMode) {
		problems = append(problems, invalidChoice("report.total_mode", s.Report.TotalMode, validTotalModes))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func invalidChoice(key, value string, valid []string) string {
	return fmt.Sprintf("%s must be one of %s, got %q", key, strings.Join(valid, ", "), value)
}

// stringOrSlice reads a key that may be a comma-separated string or a YAML list
func stringOrSlice(v *viper.Viper, key string) string {
	switch val := v.Get(key).(type) {
	case []interface{}:
		return convertSliceToString(lo.Map(val, func(item interface{}, _ int) string {
			return fmt.Sprint(item)
		}))
	case []string:
		return convertSliceToString(val)
	default:
		return v.GetString(key)
	}
}

// durationValue accepts "30s" style durations and plain seconds
func durationValue(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	seconds := v.GetInt(key)
	if seconds <= 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, raw)
	}
	return time.Duration(seconds) * time.Second, nil
}
