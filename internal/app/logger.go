package app

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns the process logger. LOG_FORMAT=json selects structured
// output; anything else prints human-readable text.
func NewLogger(cfg *Config) *slog.Logger {
	return newLogger(os.Stdout, cfg)
}

func newLogger(w io.Writer, cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	var handler slog.Handler = slog.NewTextHandler(w, opts)
	env := "development"
	if cfg != nil {
		if cfg.LogFormat == "json" {
			handler = slog.NewJSONHandler(w, opts)
		}
		env = cfg.AppEnv
	}
	return slog.New(handler).With(slog.String("service", "odyssey-admin"), slog.String("env", env))
}
