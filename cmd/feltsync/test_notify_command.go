package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"feltsync/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Notifications.NtfyTopic == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No ntfy topic configured; nothing sent")
				return nil
			}
			svc := notifications.NewService(cfg)
			if err := svc.TestNotification(cmd.Context()); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			return nil
		},
	}
}
