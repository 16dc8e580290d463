package commands

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/packdock/packdock/pkg/importer"
	"github.com/packdock/packdock/pkg/provision"
	"github.com/packdock/packdock/pkg/telemetry"
	"github.com/packdock/packdock/pkg/watcher"
)

func newWatchCommand() *cobra.Command {
	var (
		skipLint           bool
		disableNotImported bool
		bootstrapBin       string
		interpreter        string
		metricsAddr        string
		traceExporter      string
		traceEndpoint      string
	)

	cmd := &cobra.Command{
		Use:   "watch DIR [DIR...]",
		Short: "Watch package directories and re-import on change",
		Long: `Watch one or more action-package directories and re-import each one
whenever its files change. Intended for development; imports triggered
this way behave exactly like 'packdock import'.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			dir, err := resolveDatadir()
			if err != nil {
				return err
			}

			store, err := openStore(ctx, dir)
			if err != nil {
				return err
			}
			defer store.Close()

			var metrics *telemetry.Metrics
			if metricsAddr != "" {
				metrics, err = telemetry.NewMetrics(telemetry.MetricsConfig{
					Enabled:       true,
					ListenAddress: metricsAddr,
					Path:          "/metrics",
					Namespace:     "packdock",
				})
				if err != nil {
					return err
				}
				if err := metrics.StartMetricsServer(); err != nil {
					return err
				}
			}

			var tracer *telemetry.Tracer
			if traceExporter != "" {
				tracer, err = telemetry.NewTracer(telemetry.TracingConfig{
					Enabled:      true,
					Exporter:     traceExporter,
					Endpoint:     traceEndpoint,
					SamplingRate: 1.0,
					Insecure:     true,
				}, "packdock", cmd.Root().Version, "development")
				if err != nil {
					return err
				}
				defer func() {
					if err := tracer.Shutdown(context.Background()); err != nil {
						log.Warn().Err(err).Msg("Failed to shut down tracer")
					}
				}()
			}

			prov := provision.NewCommandProvisioner(bootstrapBin, []string{"env", "create", "--json"}, log.Logger)
			imp := importer.New(store, prov, importer.Config{
				DefaultInterpreter: interpreter,
			}, log.Logger).WithTelemetry(metrics, tracer)

			// Initial import of every watched package.
			for _, pkgDir := range args {
				if err := imp.Import(ctx, importer.Options{
					DataDir:            dir,
					PackageDir:         pkgDir,
					DisableNotImported: disableNotImported,
					SkipLint:           skipLint,
				}); err != nil {
					log.Error().Err(err).Str("dir", pkgDir).Msg("Initial import failed")
				}
			}

			w := watcher.New(log.Logger, 0)
			err = w.Watch(ctx, args, func(ctx context.Context, pkgDir string) error {
				return imp.Import(ctx, importer.Options{
					DataDir:            dir,
					PackageDir:         pkgDir,
					DisableNotImported: disableNotImported,
					SkipLint:           skipLint,
				})
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&skipLint, "skip-lint", false, "skip static lint checks during discovery")
	cmd.Flags().BoolVar(&disableNotImported, "disable-not-imported", true, "disable actions removed from a package")
	cmd.Flags().StringVar(&bootstrapBin, "bootstrap-bin", "envdock", "environment bootstrap binary")
	cmd.Flags().StringVar(&interpreter, "interpreter", "python", "interpreter for unmanaged packages")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to expose Prometheus metrics on (disabled when empty)")
	cmd.Flags().StringVar(&traceExporter, "trace-exporter", "", "trace exporter: otlp, stdout or none (disabled when empty)")
	cmd.Flags().StringVar(&traceEndpoint, "trace-endpoint", "localhost:4317", "OTLP trace collector endpoint")

	return cmd
}
