package init

import (
	"github.com/spf13/cobra"
)

// NewInitCmd creates the init command
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize cloudtally configuration files",
		Long: `Initialize cloudtally configuration files.

This command helps you create default files for cloudtally.
You can create either a config.yaml file or a sample rate table.`,
	}

	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(NewRatesCmd())

	return cmd
}
