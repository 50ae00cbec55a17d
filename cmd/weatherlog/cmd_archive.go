package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sguter90/weatherlog/pkg/archive"
	"github.com/sguter90/weatherlog/pkg/logger"
	"github.com/sguter90/weatherlog/pkg/metrics"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Archive the window due now",
	Long: `Run one archival pass against the configured reading log and archive
store, print the result as JSON and exit non-zero if the run failed.`,
	RunE: runArchive,
}

var archivePolicy string

func init() {
	rootCmd.AddCommand(archiveCmd)
	archiveCmd.Flags().StringVar(&archivePolicy, "policy", "", "override the archive policy (partition-once, append)")
}

func runArchive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var policy archive.Policy
	if archivePolicy != "" {
		if policy, err = archive.ParsePolicy(archivePolicy); err != nil {
			return err
		}
	}

	log := logger.NewLogger(cfg.LogLevel)
	metrics.Register()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ArchiveTimeout+30*time.Second)
	defer cancel()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.archiveNow(ctx, policy)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}

	if !res.OK {
		return errors.New("archive run failed")
	}
	return nil
}
