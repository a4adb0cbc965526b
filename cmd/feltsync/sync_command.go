package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"feltsync/internal/connectivity"
	"feltsync/internal/engine"
	"feltsync/internal/localstore"
	"feltsync/internal/logging"
	"feltsync/internal/metadata"
	"feltsync/internal/queue"
	"feltsync/internal/remote"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one full sync cycle now",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			queueStore, err := queue.Open(cfg)
			if err != nil {
				return fmt.Errorf("open queue store: %w", err)
			}
			defer queueStore.Close()

			metaStore, err := metadata.Open(cfg)
			if err != nil {
				return fmt.Errorf("open metadata store: %w", err)
			}
			defer metaStore.Close()

			records, err := localstore.Open(cfg)
			if err != nil {
				return fmt.Errorf("open records store: %w", err)
			}
			defer records.Close()

			opts := engine.Options{
				Config:   cfg,
				Queue:    queueStore,
				Metadata: metaStore,
				Local:    records,
				Remote:   remote.NewClient(cfg),
				Logger:   logging.NewNop(),
			}
			if force {
				// Skip the connectivity probe and let the remote calls speak
				// for themselves.
				opts.Gate = connectivity.Static(true)
			}
			orch := engine.New(opts)

			summary, err := orch.RunCycle(cmd.Context())
			if err != nil {
				return fmt.Errorf("sync cycle: %w", err)
			}

			out := cmd.OutOrStdout()
			if summary.Skipped {
				fmt.Fprintln(out, "Remote unreachable; cycle skipped")
				return nil
			}
			fmt.Fprintf(out, "Cycle %s finished in %s: %d pulled, %d pushed, %d failed\n",
				summary.CycleID, summary.Duration.Round(time.Millisecond),
				summary.Pulled, summary.Pushed, summary.Failed)
			for _, msg := range summary.Errors {
				fmt.Fprintf(out, "  error: %s\n", msg)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Run even when the connectivity probe fails")
	return cmd
}
