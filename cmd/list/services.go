package list

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"cloudtally/internal/azure"
	"cloudtally/internal/config"
	"cloudtally/internal/inventory"
	"cloudtally/internal/logging"
)

// NewServicesCmd creates and returns the services command
func NewServicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "services",
		Short: "List hosted services of the subscription",
		Long: `List every hosted service of the configured subscription in the order
the management API returns them.`,
		Example: `  # List hosted services using a publish settings file
  cloudtally list services --publish-settings my.publishsettings`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load()
			if err != nil {
				return err
			}
			clientConfig, err := settings.ClientConfig()
			if err != nil {
				return fmt.Errorf("failed to configure Azure credentials: %w", err)
			}

			collector, err := inventory.NewCollector(inventory.Options{
				SubscriptionID: clientConfig.SubscriptionID,
				NewClient: func(ctx context.Context) (azure.InventoryClient, error) {
					return azure.NewClient(clientConfig)
				},
				Logger: logging.Default(),
			})
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			services, err := collector.ListServices(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(services) == 0 {
				fmt.Fprintf(out, "No hosted services in subscription %s\n", clientConfig.SubscriptionID)
				return nil
			}
			fmt.Fprintf(out, "Hosted services in subscription %s:\n", clientConfig.SubscriptionID)
			for _, s := range services {
				fmt.Fprintf(out, "  - %s (%s)\n", s.ServiceName, s.URL)
			}
			return nil
		},
	}

	return cmd
}
