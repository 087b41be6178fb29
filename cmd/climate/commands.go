package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/climate-data-pipeline/internal/adapter/artifact"
	httpadapter "github.com/couchcryptid/climate-data-pipeline/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/climate-data-pipeline/internal/adapter/kafka"
	"github.com/couchcryptid/climate-data-pipeline/internal/adapter/mapbox"
	"github.com/couchcryptid/climate-data-pipeline/internal/adapter/sqlstore"
	"github.com/couchcryptid/climate-data-pipeline/internal/config"
	"github.com/couchcryptid/climate-data-pipeline/internal/observability"
	"github.com/couchcryptid/climate-data-pipeline/internal/pipeline"
)

// app holds the process-wide dependencies built once the config is loaded.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics

	dataDir, outputDir, docsDir string
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "climate",
		Short:         "Aggregate raw climate CSVs into trend artifacts and analyze them",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.init()
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&a.dataDir, "data-dir", "", "directory of raw CSV files (overrides DATA_DIR)")
	flags.StringVar(&a.outputDir, "output-dir", "", "directory for JSON artifacts (overrides OUTPUT_DIR)")
	flags.StringVar(&a.docsDir, "docs-dir", "", "directory for the report and EDA files (overrides DOCS_DIR)")

	root.AddCommand(
		a.aggregateCommand(),
		a.analyzeCommand(),
		a.runCommand(),
		a.locateCommand(),
		a.publishCommand(),
		a.serveCommand(),
	)
	return root
}

func (a *app) init() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	for _, o := range []struct {
		flag string
		dst  *string
	}{
		{a.dataDir, &cfg.DataDir},
		{a.outputDir, &cfg.OutputDir},
		{a.docsDir, &cfg.DocsDir},
	} {
		if o.flag != "" {
			*o.dst = o.flag
		}
	}

	a.cfg = cfg
	// Logs go to stderr; stdout carries command output.
	a.logger = observability.NewLogger(cfg)
	a.metrics = observability.NewMetrics()
	return nil
}

// pipeline builds a Pipeline, attaching the SQL store when STORE_DSN is
// set. The returned func releases the store.
func (a *app) pipeline(ctx context.Context) (*pipeline.Pipeline, func(), error) {
	if a.cfg.StoreDSN == "" {
		return pipeline.New(a.cfg, a.logger, a.metrics), func() {}, nil
	}
	store, err := sqlstore.Open(ctx, a.cfg.StoreDriver, a.cfg.StoreDSN)
	if err != nil {
		return nil, nil, err
	}
	a.logger.Info("sql trend store enabled", "driver", a.cfg.StoreDriver)
	closeStore := func() {
		if err := store.Close(); err != nil {
			a.logger.Error("close trend store", "error", err)
		}
	}
	return pipeline.New(a.cfg, a.logger, a.metrics, pipeline.WithStore(store)), closeStore, nil
}

// stage wraps a pipeline step as a cobra RunE, exporting metrics when it
// succeeds.
func (a *app) stage(step func(ctx context.Context, p *pipeline.Pipeline) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		p, release, err := a.pipeline(ctx)
		if err != nil {
			return err
		}
		defer release()

		if err := step(ctx, p); err != nil {
			return err
		}
		return p.ExportMetrics()
	}
}

func (a *app) aggregateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "aggregate",
		Short: "Read the CSV dataset and write raw_data.json and the trend files",
		Args:  cobra.NoArgs,
		RunE: a.stage(func(ctx context.Context, p *pipeline.Pipeline) error {
			_, err := p.Aggregate(ctx)
			return err
		}),
	}
}

func (a *app) analyzeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Read the trend files and write INSIGHTS.md and the EDA results",
		Args:  cobra.NoArgs,
		RunE: a.stage(func(ctx context.Context, p *pipeline.Pipeline) error {
			_, err := p.Analyze(ctx)
			return err
		}),
	}
}

func (a *app) runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Aggregate then analyze",
		Args:  cobra.NoArgs,
		RunE: a.stage(func(ctx context.Context, p *pipeline.Pipeline) error {
			return p.Run(ctx)
		}),
	}
}

func (a *app) locateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "locate",
		Short: "Geocode every country in country_trends.json via Mapbox",
		Args:  cobra.NoArgs,
		RunE: a.stage(func(ctx context.Context, p *pipeline.Pipeline) error {
			if !a.cfg.MapboxEnabled {
				return errors.New("locate requires MAPBOX_TOKEN")
			}
			client := mapbox.NewClient(a.cfg.MapboxToken, a.cfg.MapboxTimeout, a.metrics, a.logger)
			locator := mapbox.NewCachedLocator(client, a.cfg.MapboxCacheSize, a.metrics)
			a.logger.Info("mapbox geocoding enabled", "cache_size", a.cfg.MapboxCacheSize, "timeout", a.cfg.MapboxTimeout)

			_, err := p.Locate(ctx, locator)
			return err
		}),
	}
}

func (a *app) publishCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Publish the trend records to Kafka",
		Args:  cobra.NoArgs,
		RunE: a.stage(func(ctx context.Context, p *pipeline.Pipeline) error {
			pub := kafkaadapter.NewPublisher(a.cfg.KafkaBrokers, a.cfg.KafkaTopic, a.logger)
			defer func() {
				if err := pub.Close(); err != nil {
					a.logger.Error("kafka publisher close error", "error", err)
				}
			}()

			_, err := p.Publish(ctx, pub)
			return err
		}),
	}
}

func (a *app) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON artifacts with health and metrics endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			srv := httpadapter.NewServer(a.cfg.HTTPAddr, a.cfg.OutputDir, artifact.Readiness{Dir: a.cfg.OutputDir}, a.logger)

			errCh := make(chan error, 1)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			case <-ctx.Done():
			}
			a.logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("http server shutdown: %w", err)
			}
			a.logger.Info("shutdown complete")
			return nil
		},
	}
}
