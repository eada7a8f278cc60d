package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tailored-agentic-units/supervisor/bus"
	"github.com/tailored-agentic-units/supervisor/observability"
	"github.com/tailored-agentic-units/supervisor/supervisor"
)

const (
	metricsNamespace = "unitd"
	shutdownTimeout  = 30 * time.Second
)

var (
	metricsAddr string
	watchConfig bool
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the configured units and keep them at their desired state",
		Args:  cobra.NoArgs,
		RunE:  runSupervisor,
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides config)")
	cmd.Flags().BoolVar(&watchConfig, "watch", false, "Reload desired states when the config file changes")
	return cmd
}

func runSupervisor(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}

	logger := newLogger()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	base, err := observability.GetObserver(cfg.Observer)
	if err != nil {
		return err
	}
	observer := base
	if cfg.MetricsAddr != "" {
		observer = observability.NewMultiObserver(base, observability.NewPrometheusObserver(metricsNamespace, reg))
	}

	sup, err := supervisor.New(*cfg,
		supervisor.WithLogger(logger),
		supervisor.WithObserver(observer),
	)
	if err != nil {
		return err
	}
	reg.MustRegister(bus.NewCollector(sup.Bus(), metricsNamespace))

	ctx := cmd.Context()
	g, gctx := errgroup.WithContext(ctx)

	if err := sup.Start(gctx); err != nil {
		return errors.Join(err, stopSupervisor(sup))
	}

	if cfg.MetricsAddr != "" {
		server := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metricsHandler(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("serving metrics", slog.String("addr", cfg.MetricsAddr))
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(sctx)
		})
	}

	if watchConfig {
		g.Go(func() error {
			return sup.Watch(gctx, configFile)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("stopping units")
		return stopSupervisor(sup)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func stopSupervisor(sup *supervisor.Supervisor) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return sup.Stop(ctx)
}

func metricsHandler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return mux
}
