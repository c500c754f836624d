package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"backlog/internal/client"
	"backlog/internal/features"
	"backlog/internal/notifications"
	"backlog/internal/progress"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, database, and notification status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintf(out, "Project %s\n", cfg.Project.Name)

			cl, err := ctx.newClient()
			if err != nil {
				return err
			}
			health, healthErr := cl.Health(cmd.Context())
			switch {
			case healthErr == nil && health.Database == "connected":
				fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, "running at "+cl.BaseURL(), colorize))
			case healthErr == nil:
				fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "database "+health.Database, colorize))
			case client.IsAPIUnavailable(healthErr):
				fmt.Fprintln(out, renderStatusLine("Daemon", statusError, "not reachable at "+cl.BaseURL(), colorize))
			default:
				fmt.Fprintln(out, renderStatusLine("Daemon", statusError, describeError(healthErr), colorize))
			}

			if features.HasFeatures(cmd.Context(), cfg.DatabasePath()) {
				fmt.Fprintln(out, renderStatusLine("Database", statusOK, cfg.DatabasePath(), colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("Database", statusWarn, "no features yet; add some with `backlog features add`", colorize))
			}

			if notifications.Configured(notifications.NewService(cfg)) {
				fmt.Fprintln(out, renderStatusLine("Notifications", statusOK, "progress "+yesNo(cfg.Notifications.Progress), colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("Notifications", statusInfo, "no sinks configured", colorize))
			}

			if healthErr == nil {
				stats, err := cl.Stats(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(out, progress.SummaryLine(stats))
			}
			return nil
		},
	}
}
