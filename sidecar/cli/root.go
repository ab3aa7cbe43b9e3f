package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/toshik-babe/engine/sidecar/config"
)

var version = "dev"

// app carries the state shared by every subcommand once the config is loaded.
type app struct {
	configFile string
	cfg        config.Config
	logger     *slog.Logger
}

// NewRootCmd creates the sidecar command tree. A fresh tree is returned on
// every call so tests can execute commands in isolation.
func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "sidecar",
		Short: "Launches and supervises the local backend server.",
		Long: `sidecar spawns the workspace backend on a free loopback port,
appends its output to backend.log in the app data directory and kills it
when the host exits.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		Version: version,
	}

	cmd.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default is <user config dir>/sidecar/sidecar.yaml or ./sidecar.yaml)")
	cmd.PersistentFlags().String("data-dir", "", "app data directory (default is the OS app data dir)")
	cmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", "text", `log format ("text" or "json")`)

	cmd.AddCommand(
		newRunCmd(a),
		newPortCmd(a),
		newResolveCmd(a),
		newEventsCmd(a),
		newConfigCmd(a),
		newTokenCmd(a),
	)
	return cmd
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd, a.configFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(cmd.ErrOrStderr(), cfg.Logging.Format, cfg.Logging.Level)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	a.cfg = cfg
	a.logger = logger
	return nil
}
