package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"backlog/internal/client"
	"backlog/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if local {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				svc := notifications.NewService(cfg)
				if !notifications.Configured(svc) {
					fmt.Fprintln(out, "Notification not sent: no notification sinks configured")
					return nil
				}
				if err := svc.TestNotification(cmd.Context()); err != nil {
					return fmt.Errorf("send test notification: %w", err)
				}
				fmt.Fprintln(out, "Test notification sent")
				return nil
			}
			return ctx.withClient(func(cl *client.Client) error {
				message, err := cl.TestNotification(cmd.Context())
				var apiErr *client.APIError
				if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest {
					fmt.Fprintf(out, "Notification not sent: %s\n", apiErr.Detail)
					return nil
				}
				if err != nil {
					return err
				}
				if message == "" {
					message = "Test notification sent"
				}
				fmt.Fprintln(out, message)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "Deliver from this process instead of asking backlogd")
	return cmd
}
