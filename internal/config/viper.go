package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"cloudtally/internal/logging"
)

// EnvPrefix prefixes every environment variable override
const EnvPrefix = "CLOUDTALLY"

// convertSliceToString converts a slice of strings to a comma-separated string
func convertSliceToString(slice []string) string {
	if len(slice) == 0 {
		return ""
	}
	return strings.Join(slice, ",")
}

// flagNames maps config keys to their command-line flags
var flagNames = map[string]string{
	"azure.subscription_id":     "subscription",
	"azure.publish_settings":    "publish-settings",
	"azure.auth":                "auth",
	"azure.management_url":      "management-url",
	"azure.requests_per_second": "requests-per-second",
	"azure.max_retries":         "max-retries",
	"app.max_workers":           "max-workers",
	"app.log_format":            "log-format",
	"app.log_level":             "log-level",
	"rates.file":                "rates",
	"report.kinds":              "kinds",
	"report.format":             "format",
	"report.output":             "output",
	"report.output_dir":         "output-dir",
	"report.bucket":             "bucket",
	"report.bucket_region":      "bucket-region",
	"report.bucket_role":        "bucket-role",
	"report.total_mode":         "total-mode",
	"report.metrics_file":       "metrics-file",
}

// defaults holds the default of every configuration key, in display order
var defaults = []struct {
	key   string
	value interface{}
}{
	{"azure.subscription_id", ""},
	{"azure.publish_settings", ""},
	{"azure.auth", AuthCertificate},
	{"azure.management_url", "https://management.core.windows.net"},
	{"azure.api_version", "2014-06-01"},
	{"azure.requests_per_second", DefaultRateLimitConfig.RequestsPerSecond},
	{"azure.max_retries", DefaultRateLimitConfig.MaxRetries},
	{"azure.timeout", "30s"},
	{"app.max_workers", 1},
	{"app.log_format", "text"},
	{"app.log_level", "INFO"},
	{"rates.file", ""},
	{"report.kinds", "all"},
	{"report.format", "console"},
	{"report.output", "filesystem"},
	{"report.output_dir", "output"},
	{"report.bucket", ""},
	{"report.bucket_region", ""},
	{"report.bucket_role", ""},
	{"report.total_mode", "integer"},
	{"report.metrics_file", ""},
}

// parameterSource tracks where each parameter value came from
type parameterSource struct {
	Key    string
	Value  interface{}
	Source string
}

// getParameterSource determines where a parameter value came from (config file, env var, flag, or default)
func getParameterSource(key string, cmd *cobra.Command) parameterSource {
	value := viper.Get(key)
	envKey := EnvPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))

	flagName := flagNames[key]
	if flagName == "" {
		flagName = strings.ReplaceAll(key, ".", "-")
	}

	if cmd != nil {
		if f := cmd.Flags().Lookup(flagName); f != nil && f.Changed {
			return parameterSource{key, value, "command line flag"}
		}
		for current := cmd; current != nil; current = current.Parent() {
			if f := current.PersistentFlags().Lookup(flagName); f != nil && f.Changed {
				return parameterSource{key, value, "command line flag"}
			}
		}
	}

	if _, exists := os.LookupEnv(envKey); exists {
		return parameterSource{key, value, "environment variable"}
	}
	if viper.InConfig(key) {
		return parameterSource{key, value, "config file"}
	}
	return parameterSource{key, value, "default value"}
}

// LogConfigurationSources logs the source of each configuration parameter
func LogConfigurationSources(shouldLog bool, cmd *cobra.Command) {
	if !shouldLog {
		return
	}

	logging.Debug("Configuration parameter sources:")
	for _, d := range defaults {
		source := getParameterSource(d.key, cmd)
		logging.Debug(fmt.Sprintf("  %s = %v (from %s)", source.Key, source.Value, source.Source))
	}
}

// BindFlags binds every known config key to its flag on cmd, when cmd has it.
// Persistent flags of parent commands are visible once cmd has parsed them.
func BindFlags(cmd *cobra.Command) error {
	for key, name := range flagNames {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			continue
		}
		if err := viper.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// SetDefaults registers the default of every key on v
func SetDefaults(v *viper.Viper) {
	for _, d := range defaults {
		v.SetDefault(d.key, d.value)
	}
}

// InitConfig initializes the global viper configuration
func InitConfig(shouldLog bool) error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".cloudtally"))
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		if shouldLog {
			logging.Debug("No config file found, using defaults and environment variables")
		}
	} else if shouldLog {
		logging.Debug("Loaded config file", map[string]interface{}{
			"path": viper.ConfigFileUsed(),
		})
	}
	return nil
}

// SetConfigFile sets a custom config file path and reloads the configuration
func SetConfigFile(configFile string) error {
	viper.SetConfigFile(configFile)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// DefaultConfigPath returns $HOME/.cloudtally/config.yaml
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("error getting home directory: %w", err)
	}
	return filepath.Join(homeDir, ".cloudtally", "config.yaml"), nil
}

// DefaultConfig is the content written by CreateDefaultConfig
const DefaultConfig = `# cloudtally configuration file

# Azure Service Management access
azure:
  subscription_id: ""  # Subscription to report on (optional with a publish settings file)
  publish_settings: ""  # Path to a .publishsettings file (certificate auth)
  auth: certificate  # certificate or azure-ad
  management_url: https://management.core.windows.net
  api_version: "2014-06-01"  # Sent as x-ms-version
  requests_per_second: 5  # Request rate towards the management API
  max_retries: 5  # Retries of throttled or failed requests
  timeout: 30s  # Timeout of a single request

# Application Configuration
app:
  max_workers: 1  # Concurrent deployment reads (1 reads services one at a time)
  log_format: text  # Log output format (text or json)
  log_level: INFO  # Set logging level (DEBUG, INFO, WARN, ERROR)

# Rate table used to price sizes
rates:
  file: ""  # YAML or INI rate table; takes precedence over sizes below
  sizes:
    Small:
      hourly: "0.08"
      monthly: "60"

# Report Configuration
report:
  kinds: all  # cloud-services, virtual-machines, compute-roles or all
  format: console  # console, csv, json or html
  output: filesystem  # filesystem or s3 (file formats only)
  output_dir: output  # Base directory for filesystem output
  bucket: ""  # S3 bucket name (required when output=s3)
  bucket_region: ""  # S3 bucket region (required when output=s3)
  bucket_role: ""  # Role ARN to assume for S3 uploads
  total_mode: integer  # integer truncates monthly rates, decimal keeps fractions
  metrics_file: ""  # Write Prometheus textfile metrics here
`

// CreateDefaultConfig writes the default config file to path. An existing
// file is kept unless force is set. It reports whether the file was written.
func CreateDefaultConfig(path string, force bool) (bool, error) {
	if _, err := os.Stat(path); err == nil && !force {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("error creating config directory: %w", err)
	}
	// #nosec G306 -- config holds no secrets, only paths
	if err := os.WriteFile(path, []byte(DefaultConfig), 0644); err != nil {
		return false, fmt.Errorf("error writing default config file: %w", err)
	}
	return true, nil
}
