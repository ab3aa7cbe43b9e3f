package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/toshik-babe/engine/sidecar/processes"
)

func newPortCmd(a *app) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "port",
		Short: "Print the first free port in the configured range.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pm, err := a.portManager()
			if err != nil {
				return err
			}
			if verbose {
				lo, hi := pm.Range()
				fmt.Fprintf(cmd.OutOrStdout(), "range: %d-%d\n", lo, hi)
			}
			port, err := pm.FindAvailablePort()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), port)
			return nil
		},
	}
	cmd.Flags().Int("min-port", processes.DefaultMinPort, "first port to try")
	cmd.Flags().Int("max-port", processes.DefaultMaxPort, "last port to try")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "also print the scanned range")
	return cmd
}
