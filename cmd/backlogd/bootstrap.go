package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"backlog/internal/config"
	"backlog/internal/daemonrun"
)

type options struct {
	configPath string
	logLevel   string
	apiBind    string
}

func newRootCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "backlogd",
		Short:         "Feature backlog daemon",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{LogLevel: opts.logLevel})
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Override logging.level")
	cmd.Flags().StringVar(&opts.apiBind, "api", "", "Override paths.api_bind")
	return cmd
}

func loadConfig(opts options) (*config.Config, error) {
	cfg, _, _, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.apiBind != "" {
		cfg.Paths.APIBind = opts.apiBind
	}
	return cfg, nil
}
