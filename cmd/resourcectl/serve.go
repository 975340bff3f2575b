package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jerkytreats/cdnhealth/internal/api/handler"
	"github.com/jerkytreats/cdnhealth/internal/config"
	"github.com/jerkytreats/cdnhealth/internal/healthcheck"
	"github.com/jerkytreats/cdnhealth/internal/logging"
	"github.com/jerkytreats/cdnhealth/internal/metrics"
	"github.com/jerkytreats/cdnhealth/internal/report"
	"github.com/jerkytreats/cdnhealth/internal/resourcelist"
	"github.com/jerkytreats/cdnhealth/internal/runner"
)

const (
	ServerHostKey         = "server.host"
	ServerPortKey         = "server.port"
	ServerReadTimeoutKey  = "server.read_timeout"
	ServerWriteTimeoutKey = "server.write_timeout"
	ServerIdleTimeoutKey  = "server.idle_timeout"

	shutdownTimeout      = 10 * time.Second
	registryCheckTimeout = 2 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the resource API with optional scheduled health checks",
		Long: `Serves the resource registry, on-demand health checks, the latest saved
report, component health and Prometheus metrics over HTTP. When
schedule.enabled is set, a health check also runs every schedule.interval.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	logging.Info("Application starting...")
	m := metrics.NewMetrics()

	manager, reg, err := openManager(m)
	if err != nil {
		return err
	}
	defer reg.Close()

	client, err := resourcelist.NewClientFromConfig()
	if err != nil {
		return err
	}

	checkRunner, latest, err := buildRunner(runnerSettings{
		lister:  client,
		out:     logWriter{},
		noColor: true,
		save:    config.GetBool(report.ReportSaveKey),
		metrics: m,
	})
	if err != nil {
		return err
	}

	registryChecker := healthcheck.NewRegistryChecker(reg, registryCheckTimeout, 3, time.Second)
	if !registryChecker.WaitHealthy() {
		return errors.New("resource registry did not become healthy")
	}

	checkers := []healthcheck.Checker{registryChecker}
	if resolver := newCDNResolveChecker(); resolver != nil {
		checkers = append(checkers, resolver)
	}
	health, err := healthcheck.NewHandler(checkRunner.LastCheck, checkers...)
	if err != nil {
		return err
	}

	routes, err := handler.NewHandlerRegistry(handler.Dependencies{
		Resources: reg,
		Manager:   manager,
		Runner:    checkRunner,
		Latest:    latest,
		Health:    health,
		Metrics:   m,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         net.JoinHostPort(config.GetString(ServerHostKey), strconv.Itoa(config.GetInt(ServerPortKey))),
		ReadTimeout:  config.GetDuration(ServerReadTimeoutKey),
		WriteTimeout: config.GetDuration(ServerWriteTimeoutKey),
		IdleTimeout:  config.GetDuration(ServerIdleTimeoutKey),
		Handler:      routes,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logging.Info("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	if config.GetBool(runner.ScheduleEnabledKey) {
		g.Go(func() error {
			checkRunner.Schedule(gctx, config.GetDuration(runner.ScheduleIntervalKey))
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logging.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logging.Error("Server forced to shutdown: %v", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logging.Info("Server exited properly")
	return nil
}

// logWriter sends scheduled text reports to the log instead of stdout.
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	logging.Debug("%s", p)
	return len(p), nil
}
