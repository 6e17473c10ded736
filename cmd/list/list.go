package list

import (
	"github.com/spf13/cobra"
)

// NewListCmd creates the list command
func NewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List report kinds, hosted services and rates",
		Long: `List what a report run would work with.
Currently supports listing:
  - Available report kinds
  - Hosted services of the configured subscription
  - Size classes of the configured rate table`,
	}

	cmd.AddCommand(NewKindsCmd())
	cmd.AddCommand(NewServicesCmd())
	cmd.AddCommand(NewRatesCmd())

	return cmd
}
