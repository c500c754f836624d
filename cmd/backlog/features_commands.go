package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"backlog/internal/api"
	"backlog/internal/client"
	"backlog/internal/featureaccess"
	"backlog/internal/features"
)

func newFeaturesCommand(ctx *commandContext) *cobra.Command {
	featuresCmd := &cobra.Command{
		Use:     "features",
		Aliases: []string{"feature", "f"},
		Short:   "Inspect and manage the feature backlog",
	}

	featuresCmd.AddCommand(newFeaturesListCommand(ctx))
	featuresCmd.AddCommand(newFeaturesNextCommand(ctx))
	featuresCmd.AddCommand(newFeaturesShowCommand(ctx))
	featuresCmd.AddCommand(newFeaturesAddCommand(ctx))
	featuresCmd.AddCommand(newFeaturesImportCommand(ctx))
	featuresCmd.AddCommand(newFeaturesSkipCommand(ctx))
	featuresCmd.AddCommand(newFeaturesSetPassesCommand(ctx, "pass", true))
	featuresCmd.AddCommand(newFeaturesSetPassesCommand(ctx, "fail", false))
	featuresCmd.AddCommand(newFeaturesDeleteCommand(ctx))
	featuresCmd.AddCommand(newFeaturesStatsCommand(ctx))

	return featuresCmd
}

func newFeaturesListCommand(ctx *commandContext) *cobra.Command {
	var (
		limit    int
		offset   int
		category string
		passing  bool
		pending  bool
		random   bool
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List features in priority order",
		RunE: func(cmd *cobra.Command, args []string) error {
			if passing && pending {
				return errors.New("--passing and --pending are mutually exclusive")
			}
			query := features.ListQuery{
				Category: strings.TrimSpace(category),
				Limit:    limit,
				Offset:   offset,
				Random:   random,
			}
			switch {
			case passing:
				query.Passes = boolPtr(true)
			case pending:
				query.Passes = boolPtr(false)
			}
			return ctx.withReader(cmd, func(r featureaccess.Reader) error {
				page, err := r.List(cmd.Context(), query)
				if err != nil {
					return err
				}
				return emit(cmd, asJSON, api.FromListPage(page), func() string {
					return renderFeaturePage(page)
				})
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, fmt.Sprintf("Page size (1-%d)", features.MaxListLimit))
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of features to skip")
	cmd.Flags().StringVar(&category, "category", "", "Only list features in this category")
	cmd.Flags().BoolVar(&passing, "passing", false, "Only list passing features")
	cmd.Flags().BoolVar(&pending, "pending", false, "Only list pending features")
	cmd.Flags().BoolVar(&random, "random", false, "Sample features at random")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newFeaturesNextCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "next",
		Short: "Show the highest-priority pending feature",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withReader(cmd, func(r featureaccess.Reader) error {
				feature, err := r.Next(cmd.Context())
				if errors.Is(err, features.ErrNoPendingWork) {
					fmt.Fprintln(cmd.OutOrStdout(), "All features are passing! No more work to do.")
					return nil
				}
				if err != nil {
					return err
				}
				return emit(cmd, asJSON, api.FromFeature(feature), func() string {
					return renderFeatureDetail(feature)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newFeaturesShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one feature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseFeatureID(args[0])
			if err != nil {
				return err
			}
			return ctx.withReader(cmd, func(r featureaccess.Reader) error {
				feature, err := r.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				return emit(cmd, asJSON, api.FromFeature(feature), func() string {
					return renderFeatureDetail(feature)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newFeaturesAddCommand(ctx *commandContext) *cobra.Command {
	var (
		category    string
		description string
		steps       []string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Append a feature to the end of the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := features.NewFeature{
				Category:    category,
				Name:        args[0],
				Description: description,
				Steps:       steps,
			}
			if _, err := input.Validate(); err != nil {
				return err
			}
			return ctx.withClient(func(cl *client.Client) error {
				feature, err := cl.Create(cmd.Context(), input)
				if err != nil {
					return err
				}
				return emit(cmd, asJSON, api.FromFeature(feature), func() string {
					return fmt.Sprintf("Created feature %d (priority %d): %s\n", feature.ID, feature.Priority, feature.Label())
				})
			})
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Feature category (required)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "What the feature does (required)")
	cmd.Flags().StringArrayVarP(&steps, "step", "s", nil, "Verification step; repeat for each step (at least one)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newFeaturesImportCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "import <file.json>",
		Short: "Bulk-create features from a JSON file",
		Long: "Reads either a JSON array of {category, name, description, steps} objects or a\n" +
			"{\"features\": [...]} document and creates every entry in order. Nothing is\n" +
			"created if any entry is invalid.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read import file: %w", err)
			}
			inputs, err := parseImport(data)
			if err != nil {
				return err
			}
			return ctx.withClient(func(cl *client.Client) error {
				created, err := cl.CreateBulk(cmd.Context(), inputs)
				if err != nil {
					return err
				}
				return emit(cmd, asJSON, api.BulkCreateResponse{Created: created}, func() string {
					return fmt.Sprintf("Created %d features\n", created)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newFeaturesSkipCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "skip <id>",
		Short: "Move a pending feature to the end of the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseFeatureID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(cl *client.Client) error {
				resp, err := cl.Skip(cmd.Context(), id)
				if err != nil {
					return err
				}
				return emit(cmd, asJSON, resp, func() string {
					return fmt.Sprintf("%s (priority %d -> %d)\n", resp.Message, resp.OldPriority, resp.NewPriority)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newFeaturesSetPassesCommand(ctx *commandContext, use string, passes bool) *cobra.Command {
	short := "Mark a feature as passing"
	if !passes {
		short = "Mark a feature as failing"
	}
	var asJSON bool

	cmd := &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseFeatureID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(cl *client.Client) error {
				feature, err := cl.SetPasses(cmd.Context(), id, passes)
				if err != nil {
					return err
				}
				return emit(cmd, asJSON, api.FromFeature(feature), func() string {
					return fmt.Sprintf("Feature %d %s: %s\n", feature.ID, passLabel(feature.Passes), feature.Label())
				})
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newFeaturesDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a feature",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseFeatureID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(cl *client.Client) error {
				if err := cl.Delete(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted feature %d\n", id)
				return nil
			})
		},
	}
}

func newFeaturesStatsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show completion counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withReader(cmd, func(r featureaccess.Reader) error {
				stats, err := r.Stats(cmd.Context())
				if err != nil {
					return err
				}
				return emit(cmd, asJSON, api.FromStats(stats), func() string {
					return renderTable(
						[]tableColumn{{header: "Passing", align: alignRight}, {header: "Total", align: alignRight}, {header: "Percent", align: alignRight}},
						[][]string{{strconv.Itoa(stats.Passing), strconv.Itoa(stats.Total), fmt.Sprintf("%.1f%%", stats.Percentage)}},
					)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func parseFeatureID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid feature id %q", raw)
	}
	return id, nil
}

func boolPtr(v bool) *bool {
	return &v
}
