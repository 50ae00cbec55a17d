package logger

import (
	"io"
	"os"
	"strings"

	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/sguter90/weatherlog/pkg/version"
)

// NewLogger returns a JSON logger writing to stdout, filtered to the given
// level ("debug", "info", "warn", "error"; anything else means info).
func NewLogger(lvl string) kitlog.Logger {
	return New(os.Stdout, lvl)
}

// New returns a JSON logger writing to w
func New(w io.Writer, lvl string) kitlog.Logger {
	logger := kitlog.NewJSONLogger(kitlog.NewSyncWriter(w))
	logger = level.NewFilter(logger, levelOption(lvl))
	logger = kitlog.With(logger,
		"service", version.BinaryName,
		"ts", kitlog.DefaultTimestampUTC,
		"version", version.Version,
	)

	return logger
}

func levelOption(lvl string) level.Option {
	switch strings.ToLower(lvl) {
	case "debug":
		return level.AllowDebug()
	case "warn", "warning":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}
