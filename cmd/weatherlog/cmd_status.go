package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/sguter90/weatherlog/pkg/api"
	"github.com/sguter90/weatherlog/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show health and latest reading of a running server",
	RunE:  runStatus,
}

var (
	statusURL     string
	statusTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVar(&statusURL, "url", "http://localhost:8059", "base URL of the server")
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", 10*time.Second, "request timeout")
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := api.NewClient(statusURL, api.WithTimeout(statusTimeout))
	ctx := context.Background()

	health, err := client.Health(ctx)
	if err != nil {
		return fmt.Errorf("health: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "status:   %s\n", health.Status)
	if health.LastTSLocal != nil {
		fmt.Fprintf(out, "last:     %s\n", *health.LastTSLocal)
	}
	if health.LagSeconds != nil {
		fmt.Fprintf(out, "lag:      %ds\n", *health.LagSeconds)
	}

	if health.Status == models.HealthNoData {
		return nil
	}

	latest, err := client.Latest(ctx)
	if err != nil {
		return fmt.Errorf("latest: %w", err)
	}

	keys := make([]string, 0, len(latest.Data))
	for k := range latest.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "  %-20s %v\n", k, latest.Data[k])
	}
	return nil
}
