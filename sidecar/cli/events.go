package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/toshik-babe/engine/sidecar/audit"
)

func newEventsCmd(a *app) *cobra.Command {
	var (
		limit    int
		launchID string
		prune    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recorded backend lifecycle events, newest first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, db, err := a.openAudit()
			if err != nil {
				return err
			}
			defer db.Close()

			if prune > 0 {
				n, err := logger.DeleteOldEvents(prune)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d events\n", n)
				return nil
			}

			var events []audit.Event
			if launchID != "" {
				events, err = logger.GetEventsByLaunchID(launchID)
			} else {
				events, err = logger.GetRecentEvents(limit)
			}
			if err != nil {
				return fmt.Errorf("failed to query events: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tEVENT\tLAUNCH\tPID\tPORT\tDETAIL")
			for _, e := range events {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.Time().Local().Format(time.DateTime),
					e.EventType,
					dash(e.LaunchID),
					optInt(e.PID),
					optInt(e.Port),
					dash(e.Detail),
				)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of events to show")
	cmd.Flags().StringVar(&launchID, "launch-id", "", "show the events of one launch, oldest first")
	cmd.Flags().DurationVar(&prune, "prune", 0, "delete events older than this instead of listing")
	return cmd
}

func optInt(p *int) string {
	if p == nil {
		return "-"
	}
	return strconv.Itoa(*p)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
