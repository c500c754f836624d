package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"backlog/internal/api"
	"backlog/internal/client"
	"backlog/internal/featureaccess"
	"backlog/internal/features"
	"backlog/internal/logging"
	"backlog/internal/notifications"
	"backlog/internal/progress"
)

func newProgressCommand(ctx *commandContext) *cobra.Command {
	progressCmd := &cobra.Command{
		Use:   "progress",
		Short: "Track completion and send progress notifications",
	}

	progressCmd.AddCommand(newProgressCheckCommand(ctx))
	progressCmd.AddCommand(newProgressStatusCommand(ctx))

	return progressCmd
}

func newProgressCheckCommand(ctx *commandContext) *cobra.Command {
	var (
		viaDaemon   bool
		legacyCache string
		verbose     bool
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run one progress cycle and notify about newly passing features",
		Long: "Reads the passing set from backlogd (or the database when it is down),\n" +
			"compares it with the stored checkpoint, saves the new checkpoint and delivers\n" +
			"a notification through the configured sinks when features started passing.\n" +
			"With --daemon the cycle runs inside backlogd instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp api.ProgressCheckResponse
			if viaDaemon {
				err := ctx.withClient(func(cl *client.Client) error {
					var err error
					resp, err = cl.CheckProgress(cmd.Context())
					return err
				})
				if err != nil {
					return err
				}
			} else {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				level := "warn"
				if verbose {
					level = "debug"
				}
				logger, err := logging.New(logging.Options{Level: level, Format: "console", OutputPaths: []string{"stderr"}})
				if err != nil {
					return err
				}
				checkpoint := progress.NewFileCheckpoint(cfg.CheckpointPath())
				if path := strings.TrimSpace(legacyCache); path != "" {
					checkpoint = checkpoint.WithFallback(path)
				}
				err = ctx.withReader(cmd, func(r featureaccess.Reader) error {
					dispatcher := notifications.NewDispatcher(notifications.NewService(cfg), 0, logger)
					defer dispatcher.Close()
					engine := progress.NewEngine(r, checkpoint, dispatcher, cfg.Project.Name, progress.WithLogger(logger))
					result, err := engine.Run(cmd.Context())
					if err != nil {
						return err
					}
					resp = api.FromProgressResult(result)
					return nil
				})
				if err != nil {
					return err
				}
			}

			if asJSON {
				return writeJSON(cmd, resp)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, progress.SummaryLine(statsFromResponse(resp)))
			switch progress.Outcome(resp.Outcome) {
			case progress.OutcomeNotified:
				fmt.Fprintf(out, "%d newly passing since last check (was %d)\n", resp.Passing-resp.PreviousPassing, resp.PreviousPassing)
			case progress.OutcomeBootstrapped:
				fmt.Fprintln(out, "Checkpoint initialized")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&viaDaemon, "daemon", false, "Ask backlogd to run the cycle")
	cmd.Flags().StringVar(&legacyCache, "legacy-cache", "", "Read an old .progress_cache file when no checkpoint exists yet")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log engine activity to stderr")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newProgressStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the progress summary line",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withReader(cmd, func(r featureaccess.Reader) error {
				stats, err := r.Stats(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), progress.SummaryLine(stats))
				return nil
			})
		},
	}
}

func statsFromResponse(resp api.ProgressCheckResponse) features.Stats {
	return features.NewStats(resp.Passing, resp.Total)
}
