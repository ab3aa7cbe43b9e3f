package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newTokenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Inspect launch tokens.",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "verify <token>",
		Short: "Check a launch token against the secret in the data dir.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			issuer, err := a.issuer(false)
			if err != nil {
				return err
			}
			claims, err := issuer.Verify(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "launch_id: %s\n", claims.LaunchID)
			fmt.Fprintf(out, "port: %d\n", claims.Port)
			fmt.Fprintf(out, "expires: %s\n", time.Unix(claims.Expiry, 0).UTC().Format(time.RFC3339))
			return nil
		},
	})
	return cmd
}
