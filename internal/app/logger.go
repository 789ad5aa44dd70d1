package app

import (
	"io"
	"log/slog"
)

// newLogger builds the run's logger from the configured level and format.
// Unrecognized levels fall back to info so a bad config still produces
// output; the CLI validates the level before it gets here.
func newLogger(cfg *Config, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
