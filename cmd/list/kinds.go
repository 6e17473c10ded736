package list

import (
	"fmt"

	"github.com/spf13/cobra"

	"cloudtally/internal/report"
)

// NewKindsCmd creates and returns the kinds command
func NewKindsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kinds",
		Short: "List available report kinds",
		Long: `List all report kinds that can be passed to "report --kinds".
Each kind reports one resource type of the subscription.`,
		Example: `  # List all available report kinds
  cloudtally list kinds`,
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := report.DefaultRegistry.Kinds()
			if len(kinds) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No report kinds registered")
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Available report kinds:")
			for _, k := range kinds {
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s (%s)\n", k.ArgumentName, k.Label)
			}
			return nil
		},
	}

	return cmd
}
