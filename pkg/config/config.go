package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable the service reads,
// e.g. WEATHERLOG_SERVER_PORT.
const EnvPrefix = "WEATHERLOG"

// Storage drivers
const (
	DriverPostgres = "postgres"
	DriverBadger   = "badger"
	DriverMemory   = "memory"
)

// Archive policies
const (
	PolicyPartitionOnce = "partition-once"
	PolicyAppend        = "append"
)

// Archive store kinds
const (
	StoreGitHub = "github"
	StoreFS     = "fs"
)

// Config is built once at start-up and handed to every component that needs it.
type Config struct {
	ServerPort     string   `mapstructure:"server_port" validate:"required,numeric"`
	AllowedOrigins []string `mapstructure:"allowed_origins" validate:"min=1,dive,required"`
	LogLevel       string   `mapstructure:"log_level" validate:"oneof=debug info warn error"`

	EcowittPasskey        string `mapstructure:"ecowitt_passkey" validate:"required_if=EcowittRequirePasskey true"`
	EcowittRequirePasskey bool   `mapstructure:"ecowitt_require_passkey"`
	StationID             string `mapstructure:"station_id" validate:"required_if=StationRequireAuth true"`
	StationKey            string `mapstructure:"station_key" validate:"required_if=StationRequireAuth true"`
	StationRequireAuth    bool   `mapstructure:"station_require_auth"`

	StorageDriver  string        `mapstructure:"storage_driver" validate:"oneof=postgres badger memory"`
	DatabaseURL    string        `mapstructure:"database_url" validate:"required_if=StorageDriver postgres"`
	BadgerPath     string        `mapstructure:"badger_path" validate:"required_if=StorageDriver badger"`
	StoreTimeout   time.Duration `mapstructure:"store_timeout" validate:"gt=0"`
	HealthInterval time.Duration `mapstructure:"health_interval" validate:"gt=0"`

	Timezone       string        `mapstructure:"timezone" validate:"required"`
	StaleThreshold time.Duration `mapstructure:"stale_threshold" validate:"gt=0"`
	RedactFields   []string      `mapstructure:"redact_fields"`

	ArchiveEnabled  bool          `mapstructure:"archive_enabled"`
	ArchivePolicy   string        `mapstructure:"archive_policy" validate:"oneof=partition-once append"`
	ArchiveInterval time.Duration `mapstructure:"archive_interval" validate:"gt=0"`
	ArchiveLookback time.Duration `mapstructure:"archive_lookback" validate:"gtefield=ArchiveInterval"`
	ArchivePrefix   string        `mapstructure:"archive_prefix" validate:"required"`
	ArchiveFile     string        `mapstructure:"archive_file" validate:"required"`
	ArchiveStore    string        `mapstructure:"archive_store" validate:"oneof=github fs"`
	ArchiveDir      string        `mapstructure:"archive_dir" validate:"required_if=ArchiveStore fs"`
	ArchiveTimeout  time.Duration `mapstructure:"archive_timeout" validate:"gt=0"`

	GitHubRepo   string `mapstructure:"github_repo" validate:"required_if=ArchiveStore github ArchiveEnabled true"`
	GitHubBranch string `mapstructure:"github_branch" validate:"required"`
	GitHubToken  string `mapstructure:"github_token"`
	GitHubAPIURL string `mapstructure:"github_api_url" validate:"required,url"`

	JWTSecret string `mapstructure:"jwt_secret"`
}

var defaults = map[string]interface{}{
	"server_port":             "8059",
	"allowed_origins":         []string{"http://localhost:3000"},
	"log_level":               "info",
	"ecowitt_passkey":         "",
	"ecowitt_require_passkey": false,
	"station_id":              "",
	"station_key":             "",
	"station_require_auth":    false,
	"storage_driver":          DriverMemory,
	"database_url":            "",
	"badger_path":             "./data/readings",
	"store_timeout":           5 * time.Second,
	"health_interval":         30 * time.Second,
	"timezone":                "UTC",
	"stale_threshold":         120 * time.Second,
	"redact_fields":           []string{"passkey", "password"},
	"archive_enabled":         false,
	"archive_policy":          PolicyPartitionOnce,
	"archive_interval":        time.Hour,
	"archive_lookback":        6 * time.Hour,
	"archive_prefix":          "archives/ecowitt",
	"archive_file":            "ecowitt_history.csv",
	"archive_store":           StoreGitHub,
	"archive_dir":             "",
	"archive_timeout":         15 * time.Second,
	"github_repo":             "",
	"github_branch":           "main",
	"github_token":            "",
	"github_api_url":          "https://api.github.com",
	"jwt_secret":              "",
}

// Keys returns every configuration key, for binding flags and docs.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	return keys
}

// SetDefaults registers defaults and environment binding on v.
func SetDefaults(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load resolves the configuration from v, which should already have defaults,
// environment and flags bound.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.AllowedOrigins = splitList(cfg.AllowedOrigins)
	cfg.RedactFields = splitList(cfg.RedactFields)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints and the timezone name
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid config: timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Location returns the time zone used to render local timestamps
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// splitList accepts both proper lists and single comma separated entries, which
// is what a list looks like when it comes from an environment variable.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
