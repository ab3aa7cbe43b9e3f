package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/toshik-babe/engine/sidecar/processes"
)

// launchReport is printed to stdout once per successful launch.
type launchReport struct {
	Port     int    `json:"port"`
	PID      int    `json:"pid"`
	LaunchID string `json:"launch_id"`
	LogPath  string `json:"log"`
	Token    string `json:"token,omitempty"`
}

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the backend and supervise it until interrupted.",
		Long: `run launches the backend once and prints a JSON line with its port.
SIGHUP requests another launch, which is refused while the backend is alive.
SIGINT or SIGTERM kill the backend and exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().Int("min-port", processes.DefaultMinPort, "first port to try")
	cmd.Flags().Int("max-port", processes.DefaultMaxPort, "last port to try")
	cmd.Flags().String("runtime", "bun", "runtime executable used to run the entry point")
	cmd.Flags().String("entry-point", processes.DefaultEntryPoint, "entry point relative to the workspace root")
	cmd.Flags().String("env-file-mode", string(processes.EnvFileFlag), "how the workspace .env reaches the backend (flag, inject, ignore)")
	cmd.Flags().Bool("no-audit", false, "do not record lifecycle events")
	cmd.Flags().Bool("token", false, "mint a launch token and hand its secret to the backend")
	cmd.Flags().Bool("wait-ready", false, "wait until the backend answers HTTP before reporting it")
	return cmd
}

func (a *app) run(ctx context.Context, out io.Writer) error {
	sup, cleanup, err := a.supervisor()
	if err != nil {
		return err
	}
	defer cleanup()
	// Runs before cleanup so the termination is recorded.
	defer sup.Shutdown()

	// SIGINT and SIGTERM cancel stopCtx, which also aborts a readiness wait.
	stopCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hupChan := make(chan os.Signal, 1)
	signal.Notify(hupChan, syscall.SIGHUP)
	defer signal.Stop(hupChan)

	lo, hi := a.portRange()
	a.logger.Info("Supervising backend", "log", sup.LogPath(), "minPort", lo, "maxPort", hi)

	if err := a.launch(stopCtx, sup, out); err != nil {
		if errors.Is(err, errStopped) {
			a.logger.Info("Stopped while waiting for the backend to become ready")
			return nil
		}
		return err
	}

	for {
		select {
		case <-stopCtx.Done():
			a.logger.Info("Stopping backend", "reason", context.Cause(stopCtx))
			return nil
		case sig := <-hupChan:
			a.logger.Info("Received relaunch request", "signal", sig.String())
			err := a.launch(stopCtx, sup, out)
			switch {
			case errors.Is(err, errStopped):
				return nil
			case err != nil && !errors.Is(err, processes.ErrAlreadyRunning):
				a.logger.Error("Relaunch failed", "error", err)
			}
		}
	}
}

// errStopped reports a launch abandoned because the command was told to stop.
var errStopped = errors.New("stopped before the backend became ready")

func (a *app) launch(ctx context.Context, sup *processes.Supervisor, out io.Writer) error {
	port, err := sup.StartBackend()
	if err != nil {
		return err
	}

	if a.cfg.Readiness.Enabled {
		checker := processes.NewHTTPReadinessChecker(a.cfg.Readiness.Path, 2*time.Second, 0)
		timeout := a.cfg.ReadinessTimeout()
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		readyCtx, cancel := context.WithTimeout(ctx, timeout)
		err := checker.WaitReady(readyCtx, port)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return errStopped
			}
			return err
		}
	}

	info, ok := sup.Current()
	if !ok {
		return fmt.Errorf("backend on port %d is no longer tracked", port)
	}
	return json.NewEncoder(out).Encode(launchReport{
		Port:     info.Port,
		PID:      info.PID,
		LaunchID: info.LaunchID,
		LogPath:  info.LogPath,
		Token:    info.Token,
	})
}
