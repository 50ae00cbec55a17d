package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sguter90/weatherlog/pkg/config"
	"github.com/sguter90/weatherlog/pkg/version"
)

var (
	envFile  string
	settings = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   version.BinaryName,
	Short: "weatherlog - weather station telemetry logger",
	Long: `weatherlog receives uploads from Ecowitt and Wunderground compatible
weather stations, keeps them in an append-only reading log and archives
them as CSV to a versioned content store.`,
	Version:      version.VersionString(),
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	settings.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// loadConfig resolves the configuration from the dotenv file, the
// WEATHERLOG_* environment and bound flags.
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	config.SetDefaults(settings)
	return config.Load(settings)
}
