package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"feltsync/internal/config"
	"feltsync/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the durable operation queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatsCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(_ *config.Config, store *queue.Store) error {
				entries, err := store.List(cmd.Context(), limit)
				if err != nil {
					return fmt.Errorf("list queue entries: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprintln(out, renderQueueTable(entries))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum entries to show")
	return cmd
}

func renderQueueTable(entries []*queue.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{
			strconv.FormatInt(entry.ID, 10),
			entry.EntityType,
			entry.EntityID,
			string(entry.Operation),
			string(entry.Status),
			entry.Priority.String(),
			strconv.Itoa(entry.RetryCount),
			entry.ScheduledFor.Local().Format(time.DateTime),
			truncate(entry.LastError, 40),
		})
	}
	headers := []string{"ID", "TYPE", "ENTITY", "OP", "STATUS", "PRIORITY", "RETRIES", "SCHEDULED", "LAST ERROR"}
	return renderTable(headers, rows, "ID", "RETRIES")
}

func truncate(value string, max int) string {
	value = strings.TrimSpace(value)
	if len(value) <= max {
		return value
	}
	return value[:max-3] + "..."
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show queue entry counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(_ *config.Config, store *queue.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return fmt.Errorf("queue stats: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderQueueStats(stats))
				return nil
			})
		},
	}
}

func renderQueueStats(stats map[queue.Status]int) string {
	rows := make([][]string, 0, len(stats))
	total := 0
	for _, status := range queue.AllStatuses() {
		count := stats[status]
		total += count
		rows = append(rows, []string{string(status), strconv.Itoa(count)})
	}
	rows = append(rows, []string{"total", strconv.Itoa(total)})
	return renderTable([]string{"STATUS", "COUNT"}, rows, "COUNT")
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "retry [id...]",
		Short: "Move failed entries back to pending immediately",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !all {
				return fmt.Errorf("specify entry ids or --all")
			}
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid entry id %q", arg)
				}
				ids = append(ids, id)
			}
			return ctx.withQueue(func(_ *config.Config, store *queue.Store) error {
				count, err := store.RetryFailed(cmd.Context(), ids...)
				if err != nil {
					return fmt.Errorf("retry failed entries: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d failed entries\n", count)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Retry every failed entry")
	return cmd
}
