package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           "feltsync",
		Short:         "Feltsync operator CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newQueueCommand(ctx))
	rootCmd.AddCommand(newSyncCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newConfigCommand())
	rootCmd.AddCommand(newTestNotifyCommand(ctx))

	return rootCmd
}

// shouldSkipConfig reports whether a command opted out of config loading via
// annotation, as config bootstrap commands do.
func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
