package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T, yaml string) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	if yaml != "" {
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(strings.NewReader(yaml)))
	}
	return v
}

func TestLoadFrom_Defaults(t *testing.T) {
	s, err := LoadFrom(newViper(t, ""))
	require.NoError(t, err)

	assert.Equal(t, AuthCertificate, s.Azure.Auth)
	assert.Equal(t, "https://management.core.windows.net", s.Azure.ManagementURL)
	assert.Equal(t, "2014-06-01", s.Azure.APIVersion)
	assert.Equal(t, 30*time.Second, s.Azure.Timeout)
	assert.Equal(t, 5.0, s.Azure.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1, s.App.MaxWorkers)
	assert.Equal(t, "all", s.Report.Kinds)
	assert.Equal(t, "console", s.Report.Format)
	assert.Equal(t, "integer", s.Report.TotalMode)
}

func TestLoadFrom_File(t *testing.T) {
	s, err := LoadFrom(newViper(t, `
azure:
  subscription_id: " sub-1 "
  auth: Azure-AD
  timeout: 45
app:
  max_workers: 4
report:
  kinds:
    - virtual-machines
    - compute-roles
  format: CSV
  total_mode: decimal
`))
	require.NoError(t, err)

	assert.Equal(t, "sub-1", s.Azure.SubscriptionID)
	assert.Equal(t, AuthAzureAD, s.Azure.Auth)
	assert.Equal(t, 45*time.Second, s.Azure.Timeout)
	assert.Equal(t, 4, s.App.MaxWorkers)
	assert.Equal(t, "virtual-machines,compute-roles", s.Report.Kinds)
	assert.Equal(t, "csv", s.Report.Format)
	assert.Equal(t, "decimal", s.Report.TotalMode)
	assert.NoError(t, s.Validate())
}

func TestLoadFrom_InvalidTimeout(t *testing.T) {
	_, err := LoadFrom(newViper(t, "azure:\n  timeout: soon\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		problems []string
	}{
		{
			name:     "certificate needs publish settings",
			yaml:     "",
			problems: []string{"azure.publish_settings is required for certificate authentication"},
		},
		{
			name:     "azure-ad needs subscription",
			yaml:     "azure:\n  auth: azure-ad\n",
			problems: []string{"azure.subscription_id is required for azure-ad authentication"},
		},
		{
			name: "s3 needs bucket",
			yaml: "azure:\n  publish_settings: a.publishsettings\nreport:\n  format: json\n  output: s3\n",
			problems: []string{
				"report.bucket is required when report.output is s3",
				"report.bucket_region is required when report.output is s3",
			},
		},
		{
			name: "invalid choices",
			yaml: "azure:\n  auth: password\napp:\n  max_workers: 0\nreport:\n  format: xml\n  total_mode: float\n",
			problems: []string{
				`azure.auth must be one of certificate, azure-ad, got "password"`,
				"app.max_workers must be at least 1, got 0",
				`report.format must be one of console, csv, json, html, got "xml"`,
				`report.total_mode must be one of integer, decimal, got "float"`,
			},
		},
		{
			name: "valid",
			yaml: "azure:\n  publish_settings: a.publishsettings\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := LoadFrom(newViper(t, tt.yaml))
			require.NoError(t, err)

			err = s.Validate()
			if len(tt.problems) == 0 {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.problems, verr.Problems)
			assert.True(t, strings.HasPrefix(err.Error(), "invalid configuration: "))
		})
	}
}

func TestRateLimitConfig_Limiter(t *testing.T) {
	cfg := RateLimitConfig{RequestsPerSecond: 2, MaxRetries: 0}.Limiter()
	assert.Equal(t, 2.0, cfg.RequestsPerSecond)
	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.BaseDelay)

	cfg = RateLimitConfig{MaxRetries: -1}.Limiter()
	assert.Equal(t, 5.0, cfg.RequestsPerSecond)
	assert.Equal(t, 5, cfg.MaxRetries)
}

func TestCreateDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".cloudtally", "config.yaml")

	written, err := CreateDefaultConfig(path, false)
	require.NoError(t, err)
	assert.True(t, written)

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	assert.Equal(t, "certificate", v.GetString("azure.auth"))
	assert.Equal(t, "60", v.GetString("rates.sizes.small.monthly"))

	require.NoError(t, os.WriteFile(path, []byte("custom: true\n"), 0644))
	written, err = CreateDefaultConfig(path, false)
	require.NoError(t, err)
	assert.False(t, written)

	written, err = CreateDefaultConfig(path, true)
	require.NoError(t, err)
	assert.True(t, written)
}

func TestGetParameterSource(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	SetDefaults(viper.GetViper())

	cmd := &cobra.Command{Use: "report"}
	cmd.Flags().String("format", "console", "")
	require.NoError(t, viper.BindPFlag("report.format", cmd.Flags().Lookup("format")))

	assert.Equal(t, "default value", getParameterSource("report.format", cmd).Source)

	require.NoError(t, cmd.Flags().Set("format", "csv"))
	src := getParameterSource("report.format", cmd)
	assert.Equal(t, "command line flag", src.Source)
	assert.Equal(t, "csv", src.Value)

	t.Setenv("CLOUDTALLY_REPORT_TOTAL_MODE", "decimal")
	assert.Equal(t, "environment variable", getParameterSource("report.total_mode", cmd).Source)
}

func TestRateSettings_Table(t *testing.T) {
	s, err := LoadFrom(newViper(t, `
rates:
  sizes:
    Small:
      hourly: "0.10"
      monthly: "50"
`))
	require.NoError(t, err)

	table, err := s.Rates.Table()
	require.NoError(t, err)
	assert.Equal(t, "50", table.Rate("Small").Monthly)

	path := filepath.Join(t.TempDir(), "rates.ini")
	require.NoError(t, os.WriteFile(path, []byte("[Large]\nhourly = 0.40\nmonthly = 200\n"), 0644))
	s.Rates.File = path
	table, err = s.Rates.Table()
	require.NoError(t, err)
	assert.Equal(t, "200", table.Rate("Large").Monthly)
	assert.True(t, table.Rate("Small").IsZero())

	empty, err := (RateSettings{}).Table()
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
}

func TestLoadFrom_ConfigFileRatesKeepLiterals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
azure:
  subscription_id: sub-1
rates:
  sizes:
    Small:
      hourly: 0.10
      monthly: 50.50
`), 0644))

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	s, err := LoadFrom(v)
	require.NoError(t, err)

	table, err := s.Rates.Table()
	require.NoError(t, err)
	assert.Equal(t, []string{"Small"}, table.Sizes())
	assert.Equal(t, "0.10", table.Rate("Small").Hourly)
	assert.Equal(t, "50.50", table.Rate("Small").Monthly)
}

func TestSettings_ClientConfig(t *testing.T) {
	s, err := LoadFrom(newViper(t, "azure:\n  publish_settings: missing.publishsettings\n"))
	require.NoError(t, err)
	_, err = s.ClientConfig()
	assert.ErrorContains(t, err, "failed to read publish settings")

	s.Azure.Auth = "password"
	_, err = s.ClientConfig()
	assert.ErrorContains(t, err, `unsupported auth mode "password"`)
}

func TestBindFlags(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	SetDefaults(viper.GetViper())

	root := &cobra.Command{Use: "cloudtally"}
	root.PersistentFlags().Int("max-workers", 1, "")
	child := &cobra.Command{Use: "report", Run: func(*cobra.Command, []string) {}}
	child.Flags().String("total-mode", "integer", "")
	root.AddCommand(child)

	root.SetArgs([]string{"report", "--max-workers", "6", "--total-mode", "decimal"})
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return BindFlags(cmd)
	}
	require.NoError(t, root.Execute())

	assert.Equal(t, 6, viper.GetInt("app.max_workers"))
	assert.Equal(t, "decimal", viper.GetString("report.total_mode"))
}
