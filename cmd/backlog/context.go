package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"backlog/internal/client"
	"backlog/internal/config"
	"backlog/internal/featureaccess"
	"backlog/internal/features"
)

type commandContext struct {
	configFlag *string
	apiFlag    *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, apiFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		apiFlag:    apiFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) apiAddress() string {
	if c.apiFlag != nil {
		if value := strings.TrimSpace(*c.apiFlag); value != "" {
			return value
		}
	}
	if cfg := c.configValue(); cfg != nil {
		return cfg.APIBaseURL()
	}
	return ""
}

func (c *commandContext) newClient() (*client.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return client.New(c.apiAddress(), cfg.Paths.APIToken, 0)
}

func (c *commandContext) withClient(fn func(*client.Client) error) error {
	cl, err := c.newClient()
	if err != nil {
		return err
	}
	return fn(cl)
}

// withReader runs fn against the daemon when it answers and against the
// database file otherwise, noting the fallback on stderr.
func (c *commandContext) withReader(cmd *cobra.Command, fn func(featureaccess.Reader) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	session, err := featureaccess.OpenWithFallback(cmd.Context(), c.newClient, func() (*features.Store, error) {
		return features.Open(cfg)
	})
	if err != nil {
		return err
	}
	defer session.Close()
	if session.Backend == featureaccess.BackendStore {
		fmt.Fprintf(cmd.ErrOrStderr(), "backlogd not reachable; reading %s directly\n", cfg.DatabasePath())
	}
	return fn(session.Reader)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

// describeError turns API and domain errors into the message printed on exit.
func describeError(err error) string {
	var apiErr *client.APIError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, client.ErrAPIUnavailable):
		return fmt.Sprintf("backlogd is not reachable (%v); start it with `backlog serve`", err)
	case errors.Is(err, client.ErrUnauthorized):
		return "backlogd rejected the request: set paths.api_token or BACKLOG_API_TOKEN"
	case errors.Is(err, features.ErrNoPendingWork):
		return "All features are passing! No more work to do."
	case errors.Is(err, features.ErrValidation):
		return "invalid feature: " + err.Error()
	case errors.Is(err, features.ErrNotFound):
		return "not found: " + err.Error()
	case errors.Is(err, features.ErrInvalidState):
		return "not allowed: " + err.Error()
	case errors.As(err, &apiErr):
		return fmt.Sprintf("backlogd error (%d): %s", apiErr.Status, apiErr.Error())
	default:
		return err.Error()
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
