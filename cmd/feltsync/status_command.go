package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"feltsync/internal/config"
	"feltsync/internal/metadata"
	"feltsync/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var cycles int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queue health, watermarks, and recent cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(cfg *config.Config, store *queue.Store) error {
				health, err := store.Health(cmd.Context())
				if err != nil {
					return fmt.Errorf("queue health: %w", err)
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				for _, line := range renderSectionHeader("Queue", colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderHealthLine("Outstanding", health.Outstanding(), colorize))
				fmt.Fprintln(out, renderHealthLine("Failed", health.Failed, colorize))
				fmt.Fprintf(out, "  %-16s %d\n", "Completed:", health.Completed)

				return ctx.withMetadata(func(_ *config.Config, meta *metadata.Store) error {
					watermarks, err := meta.All(cmd.Context())
					if err != nil {
						return fmt.Errorf("list watermarks: %w", err)
					}
					if len(watermarks) > 0 {
						for _, line := range renderSectionHeader("Watermarks", colorize) {
							fmt.Fprintln(out, line)
						}
						fmt.Fprintln(out, renderWatermarkTable(watermarks))
					}

					history, err := meta.RecentCycles(cmd.Context(), cycles)
					if err != nil {
						return fmt.Errorf("recent cycles: %w", err)
					}
					if len(history) > 0 {
						for _, line := range renderSectionHeader("Recent cycles", colorize) {
							fmt.Fprintln(out, line)
						}
						fmt.Fprintln(out, renderCycleTable(history))
					}
					return nil
				})
			})
		},
	}

	cmd.Flags().IntVar(&cycles, "cycles", 5, "Number of recent cycles to show")
	return cmd
}

func renderWatermarkTable(watermarks []metadata.Watermarks) string {
	rows := make([][]string, 0, len(watermarks))
	for _, w := range watermarks {
		rows = append(rows, []string{
			w.EntityType,
			formatWatermark(w.LastPull),
			formatWatermark(w.LastPush),
		})
	}
	return renderTable([]string{"TYPE", "LAST PULL", "LAST PUSH"}, rows)
}

func formatWatermark(ts time.Time) string {
	if ts.IsZero() {
		return "never"
	}
	return ts.Local().Format(time.DateTime)
}

func renderCycleTable(history []metadata.CycleRecord) string {
	rows := make([][]string, 0, len(history))
	for _, record := range history {
		outcome := "ok"
		if !record.Succeeded() {
			outcome = fmt.Sprintf("%d errors", len(record.Errors))
		}
		rows = append(rows, []string{
			shortCycleID(record.ID),
			record.StartedAt.Local().Format(time.DateTime),
			record.Duration.Round(time.Millisecond).String(),
			strconv.Itoa(record.Pulled),
			strconv.Itoa(record.Pushed),
			outcome,
		})
	}
	headers := []string{"CYCLE", "STARTED", "DURATION", "PULLED", "PUSHED", "OUTCOME"}
	return renderTable(headers, rows, "PULLED", "PUSHED")
}

func shortCycleID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
