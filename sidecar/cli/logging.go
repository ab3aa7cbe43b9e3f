package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	clog "github.com/charmbracelet/log"
)

// newLogger builds the process-wide slog logger. "json" selects the structured
// handler used in production; anything else gets the console handler.
func newLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	switch strings.ToLower(format) {
	case "json":
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})), nil
	case "", "text":
		lvl, err := clog.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		handler := clog.NewWithOptions(w, clog.Options{
			Level:           lvl,
			ReportTimestamp: true,
			Prefix:          "sidecar",
		})
		return slog.New(handler), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
