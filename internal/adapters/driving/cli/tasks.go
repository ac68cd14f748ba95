package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cliniq/internal/core/domain"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Inspect and run maintenance tasks",
	Long: `Maintenance tasks run in the background while 'cliniq mcp serve' is up:

  retention  removes artifacts that occurred longer ago than maintenance.retention
  compact    compacts the artifact database

Their state and recent results are kept in the artifact database.`,
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List maintenance tasks and when they run next",
	Args:  cobra.NoArgs,
	RunE:  runTasksList,
}

var tasksHistoryCmd = &cobra.Command{
	Use:   "history [task-id]",
	Short: "Show recent runs of a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksHistory,
}

var tasksRunCmd = &cobra.Command{
	Use:   "run [task-id]",
	Short: "Run a task now",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksRun,
}

var (
	tasksJSON  bool
	tasksLimit int
)

func init() {
	tasksListCmd.Flags().BoolVar(&tasksJSON, "json", false, "output as JSON")
	tasksHistoryCmd.Flags().BoolVar(&tasksJSON, "json", false, "output as JSON")
	tasksHistoryCmd.Flags().IntVarP(&tasksLimit, "limit", "n", 10, "maximum number of runs")

	tasksCmd.AddCommand(tasksListCmd)
	tasksCmd.AddCommand(tasksHistoryCmd)
	tasksCmd.AddCommand(tasksRunCmd)
	rootCmd.AddCommand(tasksCmd)
}

func requireScheduler(ctx context.Context) error {
	if scheduler != nil {
		return nil
	}
	if err := requireCore(ctx); err != nil {
		return err
	}
	if scheduler == nil {
		return errors.New("maintenance scheduler not configured")
	}
	return nil
}

func runTasksList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if err := requireScheduler(ctx); err != nil {
		return err
	}

	tasks, err := scheduler.Tasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}

	if tasksJSON {
		return printJSON(cmd, tasks)
	}

	if len(tasks) == 0 {
		cmd.Println("No maintenance tasks.")
		return nil
	}

	for i := range tasks {
		t := &tasks[i]
		state := "enabled"
		if !t.Enabled {
			state = "disabled"
		}
		cmd.Printf("  %s (%s)\n", t.ID, state)
		cmd.Printf("    %s, every %s\n", t.Name, t.Interval)
		cmd.Printf("    Last run: %s\n", formatTaskTime(t.LastRun))
		if t.Enabled {
			cmd.Printf("    Next run: %s\n", formatTaskTime(t.NextRun))
		}
		if t.LastError != "" {
			cmd.Printf("    Error:    %s\n", t.LastError)
		}
		cmd.Println()
	}
	return nil
}

func runTasksHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := requireScheduler(ctx); err != nil {
		return err
	}

	results, err := scheduler.History(ctx, args[0], tasksLimit)
	if err != nil {
		return fmt.Errorf("failed to get task history: %w", err)
	}

	if tasksJSON {
		return printJSON(cmd, results)
	}

	if len(results) == 0 {
		cmd.Printf("No runs recorded for %s.\n", args[0])
		return nil
	}

	for i := range results {
		cmd.Printf("  %s\n", describeResult(&results[i]))
	}
	return nil
}

func runTasksRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := requireScheduler(ctx); err != nil {
		return err
	}

	result, err := scheduler.RunNow(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to run task: %w", err)
	}

	cmd.Println(describeResult(result))
	if !result.Success {
		return fmt.Errorf("task %s failed: %s", args[0], result.Error)
	}
	return nil
}

func describeResult(r *domain.TaskResult) string {
	took := r.EndedAt.Sub(r.StartedAt).Round(time.Millisecond)
	if !r.Success {
		return fmt.Sprintf("%s %s failed after %s: %s",
			formatTaskTime(r.StartedAt), r.TaskID, took, r.Error)
	}
	return fmt.Sprintf("%s %s ok in %s, %d item(s)",
		formatTaskTime(r.StartedAt), r.TaskID, took, r.ItemsProcessed)
}

func formatTaskTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
