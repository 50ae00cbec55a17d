package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/kit/log/level"
	"github.com/klauspost/compress/gzhttp"
	"github.com/spf13/cobra"

	"github.com/sguter90/weatherlog/pkg/logger"
	"github.com/sguter90/weatherlog/pkg/metrics"
	"github.com/sguter90/weatherlog/pkg/scheduler"
	"github.com/sguter90/weatherlog/pkg/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the weatherlog server",
	Long:  `Start the weatherlog server to receive station uploads, serve readings and archive them on schedule.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("port", "8059", "port to listen on")
	serveCmd.Flags().String("storage", "memory", "reading log driver (postgres, badger, memory)")
	serveCmd.Flags().Bool("archive", false, "archive readings on schedule")
	settings.BindPFlag("server_port", serveCmd.Flags().Lookup("port"))
	settings.BindPFlag("storage_driver", serveCmd.Flags().Lookup("storage"))
	settings.BindPFlag("archive_enabled", serveCmd.Flags().Lookup("archive"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logger.NewLogger(cfg.LogLevel)
	metrics.Register()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	a, err := newApp(ctx, cfg, log)
	cancel()
	if err != nil {
		return err
	}
	defer a.Close()

	var sched *scheduler.Scheduler
	switch {
	case cfg.ArchiveEnabled && a.reconciler != nil:
		sched = scheduler.New(a.reconciler, a.clock, cfg.ArchiveInterval, cfg.ArchiveLookback, cfg.ArchiveTimeout, log)
		if err := sched.Start(); err != nil {
			return fmt.Errorf("failed to schedule archive job: %w", err)
		}
	case cfg.ArchiveEnabled:
		level.Warn(log).Log("msg", "archiving enabled but no archive store configured")
	}

	// Setup Router
	routeManager := NewRouteManager(a, newPusherRegistry(cfg))
	routeManager.Setup()

	addr := ":" + cfg.ServerPort

	server := &http.Server{
		Handler:      gzhttp.GzipHandler(routeManager.Router),
		Addr:         addr,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		level.Info(log).Log("msg", "shutdown signal received")

		if sched != nil {
			sched.Stop()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			level.Error(log).Log("msg", "server shutdown error", "err", err)
		}
	}()

	level.Info(log).Log(
		"msg", "starting server",
		"addr", addr,
		"version", version.Version,
		"storage", cfg.StorageDriver,
		"archive", sched != nil,
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
