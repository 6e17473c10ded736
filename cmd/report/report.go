package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"cloudtally/internal/azure"
	"cloudtally/internal/config"
	"cloudtally/internal/inventory"
	"cloudtally/internal/logging"
	"cloudtally/internal/metrics"
	"cloudtally/internal/output"
	"cloudtally/internal/rates"
	reportpkg "cloudtally/internal/report"
)

// NewReportCmd creates the report command
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Report the compute inventory of a subscription",
		Long: `Collect the compute inventory of an Azure subscription and export one
report per resource kind.

When no kinds are specified, every kind is reported in registration order:
cloud services, virtual machines and compute roles. A kind whose collection
fails still prints its header; the other kinds are reported as usual.

Examples:
  # Report every kind to the console
  cloudtally report --publish-settings my.publishsettings

  # Report virtual machines and compute roles as CSV files
  cloudtally report --kinds virtual-machines,compute-roles --format csv

  # Upload HTML reports to S3 using Azure AD authentication
  cloudtally report --auth azure-ad --subscription 0000-... --format html --output s3 --bucket my-bucket --bucket-region us-west-2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load()
			if err != nil {
				return err
			}
			if err := settings.Validate(); err != nil {
				return err
			}
			return runReport(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), settings)
		},
	}

	cmd.Flags().String("kinds", "all", "Comma-separated list of report kinds (default: all kinds)")
	cmd.Flags().StringP("format", "f", "console", "Output format (console, csv, json, html)")
	cmd.Flags().String("output", "filesystem", "Output type for file formats (filesystem, s3)")
	cmd.Flags().String("output-dir", "output", "Base directory for filesystem output")
	cmd.Flags().String("bucket", "", "S3 bucket name (required when --output=s3)")
	cmd.Flags().String("bucket-region", "", "S3 bucket region (required when --output=s3)")
	cmd.Flags().String("bucket-role", "", "Role ARN to assume for S3 uploads")
	cmd.Flags().String("total-mode", "integer", "Monthly total arithmetic (integer or decimal)")
	cmd.Flags().String("rates", "", "YAML or INI rate table (default: rates.sizes from the config file)")
	cmd.Flags().String("metrics-file", "", "Write Prometheus textfile metrics to this path")

	return cmd
}

// run holds everything one report run shares across kinds
type run struct {
	settings     *config.Settings
	format       output.Format
	mode         reportpkg.TotalMode
	subscription string
	out          io.Writer
	recorder     *metrics.Recorder
	writer       *output.Writer
}

func runReport(ctx context.Context, out, errOut io.Writer, settings *config.Settings) error {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	format, err := output.ParseFormat(settings.Report.Format)
	if err != nil {
		return err
	}
	mode, err := reportpkg.ParseTotalMode(settings.Report.TotalMode)
	if err != nil {
		return err
	}

	kinds, invalid := reportpkg.DefaultRegistry.Select(settings.Report.Kinds)
	if len(invalid) > 0 {
		logging.Warn("Ignoring unknown report kinds", map[string]interface{}{
			"invalid":   invalid,
			"available": reportpkg.DefaultRegistry.List(),
		})
	}
	if len(kinds) == 0 {
		return fmt.Errorf("no valid report kinds in %q (available: %s)",
			settings.Report.Kinds, strings.Join(reportpkg.DefaultRegistry.List(), ", "))
	}

	table, err := settings.Rates.Table()
	if err != nil {
		return err
	}
	if table.Len() == 0 {
		logging.Warn("Rate table is empty, every rate column will be blank", nil)
	}

	clientConfig, err := settings.ClientConfig()
	if err != nil {
		return fmt.Errorf("failed to configure Azure credentials: %w", err)
	}

	recorder := metrics.NewRecorder()
	if err := recorder.WatchRateMisses(table); err != nil {
		return err
	}

	collector, err := newCollector(settings, clientConfig, table, recorder, format, errOut)
	if err != nil {
		return err
	}

	r := &run{
		settings:     settings,
		format:       format,
		mode:         mode,
		subscription: clientConfig.SubscriptionID,
		out:          out,
		recorder:     recorder,
	}
	if format != output.Console {
		outputType, err := output.ParseType(settings.Report.Output)
		if err != nil {
			return err
		}
		r.writer = output.NewWriter(output.Config{
			Type:         outputType,
			S3Bucket:     settings.Report.Bucket,
			S3Region:     settings.Report.BucketRegion,
			OutputDir:    settings.Report.OutputDir,
			RoleARN:      settings.Report.BucketRole,
			ShowProgress: settings.App.LogFormat != "json",
		})
	}

	names := lo.Map(kinds, func(k reportpkg.Kind, _ int) string { return k.ArgumentName })
	logging.ReportStart(names, r.subscription, string(format))

	unavailable := 0
	for _, kind := range kinds {
		rep := kind.Build(ctx, collector, mode)
		if err := r.export(rep); err != nil {
			return err
		}
		r.diagnose(rep)
		if !rep.Available {
			unavailable++
		}
		recorder.ObserveMonthlyTotal(rep.Kind, rep.MonthlyTotal())
	}

	if settings.Report.MetricsFile != "" {
		if err := recorder.WriteTextfile(settings.Report.MetricsFile); err != nil {
			return err
		}
		logging.Debug("Wrote metrics", map[string]interface{}{"path": settings.Report.MetricsFile})
	}

	logging.ReportComplete(len(kinds), time.Since(start))

	if unavailable == len(kinds) {
		return fmt.Errorf("no report produced data for subscription %s", r.subscription)
	}
	return nil
}

// newCollector wires the inventory collector of one run. Every collection
// opens its own management client from clientConfig.
func newCollector(settings *config.Settings, clientConfig azure.ClientConfig, table rates.Lookup,
	recorder *metrics.Recorder, format output.Format, errOut io.Writer) (*inventory.Collector, error) {
	opts := inventory.Options{
		SubscriptionID: clientConfig.SubscriptionID,
		NewClient: func(ctx context.Context) (azure.InventoryClient, error) {
			return azure.NewClient(clientConfig)
		},
		Rates:      table,
		Logger:     logging.Default(),
		Recorder:   recorder,
		MaxWorkers: settings.App.MaxWorkers,
	}
	if format == output.Console && settings.App.LogFormat != "json" {
		opts.Progress = func(total int, description string) inventory.Progress {
			return progressbar.NewOptions(total,
				progressbar.OptionSetWriter(errOut),
				progressbar.OptionSetDescription(description),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		}
	}
	return inventory.NewCollector(opts)
}

// export renders one report to the console or stores it as a file
func (r *run) export(rep *reportpkg.Report) error {
	if r.format == output.Console {
		console := output.NewConsoleExporter(r.out, rep.Title)
		if err := rep.Export(console); err != nil {
			return err
		}
		return console.Close()
	}

	doc, err := output.NewDocument(r.format, fmt.Sprintf("%s - %s", rep.Title, r.subscription))
	if err != nil {
		return err
	}
	if err := rep.Export(doc); err != nil {
		return err
	}
	data, err := doc.Bytes()
	if err != nil {
		return fmt.Errorf("failed to render %s report: %w", rep.Kind, err)
	}
	dest, err := r.writer.Write(r.subscription, rep.Kind, doc.Extension(), data)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "%s report written to %s\n", rep.Title, dest)
	return nil
}

// diagnose logs what went wrong with one report
func (r *run) diagnose(rep *reportpkg.Report) {
	if !rep.Available {
		logging.Error("Report has no data", rep.Err, map[string]interface{}{
			"kind": rep.Kind,
		})
	}
	if len(rep.Faults) > 0 && rep.Available {
		logging.Warn("Report is missing services", map[string]interface{}{
			"kind":     rep.Kind,
			"faults":   len(rep.Faults),
			"services": faultedServices(rep.Faults),
		})
	}
	if rep.ParseFaults > 0 {
		logging.Warn("Monthly rates excluded from total", map[string]interface{}{
			"kind":  rep.Kind,
			"count": rep.ParseFaults,
			"mode":  string(r.mode),
		})
	}
}

func faultedServices(faults []*inventory.ProviderFault) []string {
	return lo.Uniq(lo.FilterMap(faults, func(f *inventory.ProviderFault, _ int) (string, bool) {
		return f.ServiceName, f.ServiceName != ""
	}))
}
