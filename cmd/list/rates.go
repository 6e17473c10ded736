package list

import (
	"fmt"

	"github.com/spf13/cobra"

	"cloudtally/internal/config"
)

// NewRatesCmd creates and returns the rates command
func NewRatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rates",
		Short: "List the size classes of the rate table",
		Long: `List the size classes of the configured rate table with their hourly and
monthly rates. The table comes from --rates when set, otherwise from
rates.sizes in the config file.`,
		Example: `  # List the rates of a YAML rate table
  cloudtally list rates --rates rates.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load()
			if err != nil {
				return err
			}
			table, err := settings.Rates.Table()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if table.Len() == 0 {
				fmt.Fprintln(out, "Rate table is empty")
				return nil
			}
			fmt.Fprintln(out, "Size classes:")
			for _, size := range table.Sizes() {
				rate := table.Rate(size)
				fmt.Fprintf(out, "  - %s: hourly %s, monthly %s\n", size, rate.Hourly, rate.Monthly)
			}
			return nil
		},
	}

	cmd.Flags().String("rates", "", "YAML or INI rate table (default: rates.sizes from the config file)")

	return cmd
}
