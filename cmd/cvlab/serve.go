package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"voltammetry-lab/internal/analysis"
	"voltammetry-lab/internal/api"
	"voltammetry-lab/internal/calibration"
	"voltammetry-lab/internal/ingestion"
)

var serveIngest bool

// NewServeCommand .
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		GroupID: gService,
		Short:   "Run the HTTP API",
		Long: `Serve peak detection and calibration over HTTP on server.addr, with
Prometheus metrics on server.metrics_path. --ingest also stores frames from
the websocket bridge while serving.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			an, err := a.analyzer()
			if err != nil {
				return err
			}
			reg, err := a.registry(ctx)
			if err != nil {
				return err
			}
			tr, err := a.trainer(reg)
			if err != nil {
				return err
			}
			logger.WithField("state", tr.State()).Info("calibration registry loaded")

			srv := api.NewServer(api.Options{
				Analyzer:    an,
				Selector:    calibration.NewSelector(reg, cfg.Analysis.RecordMetrics),
				Trainer:     tr,
				Dataset:     a.dataset(an),
				MetricsPath: cfg.Server.MetricsPath,
				Logger:      logger,
			})

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return srv.Run(gctx, cfg.Server.Addr, cfg.Server.ShutdownTimeout)
			})
			if serveIngest {
				g.Go(func() error {
					_, err := runIngestion(gctx, a, bridgeSource(), ingestAnalyzer(an))
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				})
			}
			return g.Wait()
		},
	}

	cmd.Flags().BoolVar(&serveIngest, "ingest", false, "also ingest frames from ingestion.ws_url")
	return cmd
}

func bridgeSource() ingestion.FrameSource {
	wsCfg := ingestion.DefaultWSConfig()
	wsCfg.ReconnectDelay = cfg.Ingestion.ReconnectMin
	wsCfg.MaxReconnectDelay = cfg.Ingestion.ReconnectMax
	return ingestion.NewWSFrameSource(cfg.Ingestion.WSURL, &wsCfg, logger)
}

func ingestAnalyzer(an *analysis.Analyzer) *analysis.Analyzer {
	if cfg.Ingestion.Analyze {
		return an
	}
	return nil
}
