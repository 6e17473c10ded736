package init

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"cloudtally/internal/config"
	"cloudtally/internal/rates"
)

// NewConfigCmd creates the config subcommand
func NewConfigCmd() *cobra.Command {
	var force bool
	var output string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create a default config.yaml file",
		Long: `Create a default config.yaml file with recommended settings.

The file will be created in the current directory by default.
You can specify a different location using the --output flag.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			absPath, err := resolveOutput(output, "config.yaml")
			if err != nil {
				return err
			}

			written, err := config.CreateDefaultConfig(absPath, force)
			if err != nil {
				return err
			}
			if !written {
				return fmt.Errorf("file %s already exists. Use --force to overwrite", absPath)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created config file: %s\n", absPath)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file path (default: ./config.yaml)")

	return cmd
}

// NewRatesCmd creates the rates subcommand
func NewRatesCmd() *cobra.Command {
	var force bool
	var output string

	cmd := &cobra.Command{
		Use:   "rates",
		Short: "Create a sample rate table",
		Long: `Create a sample YAML rate table listing the classic cloud service sizes.

Point rates.file (or --rates) at the file to price reports with it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			absPath, err := resolveOutput(output, "rates.yaml")
			if err != nil {
				return err
			}

			if _, err := os.Stat(absPath); err == nil && !force {
				return fmt.Errorf("file %s already exists. Use --force to overwrite", absPath)
			}

			dir := filepath.Dir(absPath)
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}

			// #nosec G306 -- rate tables are not secret
			if err := os.WriteFile(absPath, []byte(rates.SampleYAML), 0644); err != nil {
				return fmt.Errorf("failed to write rate table: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created rate table: %s\n", absPath)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file path (default: ./rates.yaml)")

	return cmd
}

func resolveOutput(output, fallback string) (string, error) {
	if output == "" {
		output = fallback
	}
	absPath, err := filepath.Abs(output)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	return absPath, nil
}
