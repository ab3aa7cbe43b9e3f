package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/toshik-babe/engine/sidecar/processes"
)

func newResolveCmd(a *app) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show where the backend entry point and env file would be found.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			r := a.resolver()
			if verbose {
				for _, c := range r.Candidates() {
					fmt.Fprintf(out, "candidate: %s\n", c)
				}
			}

			entry, err := r.Resolve()
			if err != nil {
				return err
			}
			root := r.WorkspaceRoot(entry)
			fmt.Fprintf(out, "entry: %s\n", entry)
			fmt.Fprintf(out, "root: %s\n", root)
			if envFile, ok := processes.FindEnvFile(root, a.cfg.Backend.EnvFile); ok {
				fmt.Fprintf(out, "env: %s\n", envFile)
			} else {
				fmt.Fprintln(out, "env: none")
			}
			return nil
		},
	}
	cmd.Flags().String("entry-point", processes.DefaultEntryPoint, "entry point relative to the workspace root")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "list every candidate path")
	return cmd
}
