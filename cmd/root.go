package cmd

import (
	initCmd "cloudtally/cmd/init"
	"cloudtally/cmd/list"
	"cloudtally/cmd/report"
	"cloudtally/cmd/version"
	"cloudtally/internal/config"
	"cloudtally/internal/logging"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// skipConfig lists commands that run without loading configuration
var skipConfig = map[string]bool{
	"version":    true,
	"help":       true,
	"completion": true,
}

// NewRootCmd creates the root command with every subcommand attached
func NewRootCmd() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "cloudtally",
		Short: "cloudtally - Azure compute inventory and cost reports",
		Long: `cloudtally enumerates the compute inventory of an Azure subscription
(cloud services, persistent virtual machines and web/worker role instances),
prices every item from a rate table and exports the result as tabular reports.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if skipConfig[cmd.Name()] {
				return nil
			}

			if err := config.InitConfig(false); err != nil {
				return err
			}
			if configFile != "" {
				if err := config.SetConfigFile(configFile); err != nil {
					return err
				}
			}
			if err := config.BindFlags(cmd); err != nil {
				return err
			}

			logging.Configure(logging.LogConfig{
				Level:  logging.ParseLevel(viper.GetString("app.log_level")),
				Format: logging.ParseFormat(viper.GetString("app.log_format")),
			})
			config.LogConfigurationSources(true, cmd)
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "Path to config file")
	flags.String("subscription", "", "Azure subscription ID (defaults to the publish settings subscription)")
	flags.String("publish-settings", "", "Path to a .publishsettings file (certificate auth)")
	flags.String("auth", config.AuthCertificate, "Authentication mode (certificate or azure-ad)")
	flags.String("management-url", "https://management.core.windows.net", "Service Management endpoint")
	flags.Float64("requests-per-second", config.DefaultRateLimitConfig.RequestsPerSecond, "Request rate towards the management API")
	flags.Int("max-retries", config.DefaultRateLimitConfig.MaxRetries, "Retries of throttled or failed requests")
	flags.Int("max-workers", 1, "Maximum number of concurrent deployment reads")
	flags.String("log-format", "text", "Log output format (text or json)")
	flags.String("log-level", "INFO", "Set logging level (DEBUG, INFO, WARN, ERROR)")

	rootCmd.AddCommand(report.NewReportCmd())
	rootCmd.AddCommand(list.NewListCmd())
	rootCmd.AddCommand(initCmd.NewInitCmd())
	rootCmd.AddCommand(version.NewVersionCmd())

	return rootCmd
}

// Execute runs the root command with os.Args
func Execute() error {
	return NewRootCmd().Execute()
}
