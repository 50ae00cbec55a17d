package main

import (
	"context"
	"time"

	"github.com/go-kit/kit/log/level"
	"github.com/spf13/cobra"

	"github.com/sguter90/weatherlog/pkg/logger"
	"github.com/sguter90/weatherlog/pkg/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply reading log schema migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logger.NewLogger(cfg.LogLevel)

	readingLog, err := storage.Open(cfg, log)
	if err != nil {
		return err
	}
	defer readingLog.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := storage.Migrate(ctx, readingLog); err != nil {
		return err
	}

	level.Info(log).Log("msg", "migrations applied", "storage", cfg.StorageDriver)
	return nil
}
