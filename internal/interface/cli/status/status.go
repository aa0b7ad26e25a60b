// Package status implements the ralph status command.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/agentloop/ralph/internal/application/loop"
	"github.com/agentloop/ralph/internal/interface/cli/common"
)

// maxRecentIterations bounds the history shown per invocation.
const maxRecentIterations = 5

// HistoryOutput is one iteration record in JSON output.
type HistoryOutput struct {
	Iteration    int   `json:"iteration"`
	Timestamp    int64 `json:"timestamp"`
	DurationMs   int64 `json:"durationMs"`
	PromiseFound bool  `json:"promiseFound"`
	FileChanges  int   `json:"fileChanges"`
}

// TaskSummaryOutput aggregates task counts for JSON output.
type TaskSummaryOutput struct {
	Total     int `json:"total"`
	Complete  int `json:"complete"`
	Shelved   int `json:"shelved"`
	Remaining int `json:"remaining"`
}

// StatusOutput is the JSON form of ralph status.
type StatusOutput struct {
	Ts                          string             `json:"ts"`
	ChangeID                    string             `json:"changeId"`
	Registered                  bool               `json:"registered"`
	Name                        string             `json:"name,omitempty"`
	Module                      string             `json:"module,omitempty"`
	WorkStatus                  string             `json:"workStatus,omitempty"`
	Iterations                  int                `json:"iterations"`
	ErrorCount                  int                `json:"errorCount"`
	ConsecutiveRetriableRetries int                `json:"consecutiveRetriableRetries"`
	PendingContext              int                `json:"pendingContext"`
	Tasks                       *TaskSummaryOutput `json:"tasks,omitempty"`
	History                     []HistoryOutput    `json:"history,omitempty"`
}

// NewCommand creates the status command
func NewCommand() *cobra.Command {
	var (
		changeID   string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show loop state for a change",
		Long: `Status reports the persisted loop state: iterations completed,
failure counters, pending context entries, and the most recent
iteration history. Without --change it reads the unscoped loop state.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := common.GetGlobalConfig()

			stateKey := changeID
			if stateKey == "" {
				stateKey = loop.UnscopedTarget
			}

			store := loop.NewStateStore(afero.NewOsFs(), cfg.Home())
			state, err := store.LoadOrNew(stateKey)
			if err != nil {
				return fmt.Errorf("read loop state: %w", err)
			}

			out := StatusOutput{
				Ts:                          time.Now().UTC().Format(time.RFC3339Nano),
				ChangeID:                    stateKey,
				Iterations:                  state.IterationCount,
				ErrorCount:                  state.ErrorCount,
				ConsecutiveRetriableRetries: state.ConsecutiveRetriableRetries,
				PendingContext:              len(state.PendingContext),
			}

			start := len(state.History) - maxRecentIterations
			if start < 0 {
				start = 0
			}
			for i := start; i < len(state.History); i++ {
				entry := state.History[i]
				out.History = append(out.History, HistoryOutput{
					Iteration:    i + 1,
					Timestamp:    entry.Timestamp,
					DurationMs:   entry.DurationMs,
					PromiseFound: entry.PromiseFound,
					FileChanges:  entry.FileChanges,
				})
			}

			// Registration details only exist for change-targeted runs.
			if changeID != "" {
				container, err := common.InitializeContainer(cfg)
				if err != nil {
					return err
				}
				defer container.Close()

				ctx := context.Background()
				item, err := container.GetWorkItemRepository().Find(ctx, changeID)
				if err != nil {
					return fmt.Errorf("look up change %s: %w", changeID, err)
				}
				if item != nil {
					out.Registered = true
					out.Name = item.Name
					out.Module = item.Module
					out.WorkStatus = item.Status.String()

					summary, err := container.GetTaskRepository().Summarize(ctx, changeID)
					if err != nil {
						return fmt.Errorf("summarize tasks for %s: %w", changeID, err)
					}
					if summary.Total > 0 {
						out.Tasks = &TaskSummaryOutput{
							Total:     summary.Total,
							Complete:  summary.Complete,
							Shelved:   summary.Shelved,
							Remaining: summary.Remaining(),
						}
					}
				}
			}

			if jsonOutput {
				b, err := json.MarshalIndent(out, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return nil
			}

			printText(cmd, out)
			return nil
		},
	}

	cmd.Flags().StringVar(&changeID, "change", "", "Change to report on (default: the unscoped loop)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}

func printText(cmd *cobra.Command, out StatusOutput) {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Ralph status for %s\n", out.ChangeID)
	if out.Registered {
		fmt.Fprintf(w, "  Change: %s (module: %s, status: %s)\n", displayName(out), out.Module, out.WorkStatus)
	} else if out.ChangeID != loop.UnscopedTarget {
		fmt.Fprintf(w, "  Change %s is not registered.\n", out.ChangeID)
	}
	if out.Tasks != nil {
		fmt.Fprintf(w, "  Tasks: %d of %d resolved, %d remaining\n",
			out.Tasks.Complete+out.Tasks.Shelved, out.Tasks.Total, out.Tasks.Remaining)
	}
	fmt.Fprintf(w, "  Iterations completed: %d\n", out.Iterations)
	fmt.Fprintf(w, "  Non-retriable failures: %d\n", out.ErrorCount)
	fmt.Fprintf(w, "  Consecutive crash retries: %d\n", out.ConsecutiveRetriableRetries)
	fmt.Fprintf(w, "  Pending context entries: %d\n", out.PendingContext)

	if len(out.History) == 0 {
		fmt.Fprintf(w, "  No iterations recorded.\n")
		return
	}
	fmt.Fprintf(w, "  Recent iterations:\n")
	for _, h := range out.History {
		fmt.Fprintf(w, "    %d: duration=%dms, changes=%d, promise=%v\n",
			h.Iteration, h.DurationMs, h.FileChanges, h.PromiseFound)
	}
}

func displayName(out StatusOutput) string {
	if out.Name != "" {
		return out.Name
	}
	return out.ChangeID
}
