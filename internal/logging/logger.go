// Package logging configures the process-wide zerolog logger, the same
// way the upstream gateway's logger package does.
package logging

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/estraier/stgy-sub003/internal/config"
)

// New returns a configured zerolog.Logger for the given environment.
func New(cfg *config.Config) zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: os.Stderr}
	lvl := zerolog.InfoLevel
	if cfg.IsDevelopment() {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)
	return zerolog.New(out).With().Timestamp().Logger()
}
