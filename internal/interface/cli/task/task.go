// Package task implements the ralph task commands. Completing or
// shelving tasks is how a change earns its way through the completion
// gate; the loop itself never mutates task or work status.
package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentloop/ralph/internal/domain/model/task"
	"github.com/agentloop/ralph/internal/domain/model/workitem"
	"github.com/agentloop/ralph/internal/domain/repository"
	"github.com/agentloop/ralph/internal/interface/cli/common"
)

// NewTaskCommand creates the task command with its subcommands
func NewTaskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage the tasks of a change",
		Long: `Tasks are the completion gate's checklist: a change only passes the
gate when every task is complete or shelved. Resolving the last task
marks the change complete, which lets drain modes move on.`,
		RunE: func(c *cobra.Command, _ []string) error {
			return c.Help()
		},
	}

	cmd.AddCommand(newAddCommand())
	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newResolveCommand("complete", "Mark a task complete", task.StatusComplete))
	cmd.AddCommand(newResolveCommand("shelve", "Set a task aside without finishing it", task.StatusShelved))
	return cmd
}

func newAddCommand() *cobra.Command {
	var (
		changeID string
		taskID   string
	)

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task to a change",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if changeID == "" {
				return errors.New("--change is required")
			}
			title := strings.TrimSpace(strings.Join(args, " "))
			if title == "" {
				return errors.New("task title is empty")
			}

			container, err := common.InitializeContainer(common.GetGlobalConfig())
			if err != nil {
				return err
			}
			defer container.Close()

			ctx := context.Background()
			items := container.GetWorkItemRepository()
			tasks := container.GetTaskRepository()

			item, err := items.Find(ctx, changeID)
			if err != nil {
				return fmt.Errorf("look up change %s: %w", changeID, err)
			}
			if item == nil {
				return fmt.Errorf("change %s is not registered", changeID)
			}

			if taskID == "" {
				existing, err := tasks.ListByChange(ctx, changeID)
				if err != nil {
					return fmt.Errorf("list tasks: %w", err)
				}
				taskID = strconv.Itoa(len(existing) + 1)
			}

			t, err := task.NewTask(changeID, taskID, title)
			if err != nil {
				return err
			}
			if err := tasks.Add(ctx, t); err != nil {
				return fmt.Errorf("add task: %w", err)
			}

			common.EmitAudit(ctx, container.GetAuditSink(), &repository.AuditEvent{
				Kind:     repository.EventTaskStatusChanged,
				ChangeID: changeID,
				TaskID:   taskID,
				To:       t.Status.String(),
				Detail:   "task added",
			})

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Added task %s to %s.\n", taskID, changeID)

			// New work reopens a completed change.
			if item.Status == workitem.StatusComplete {
				if err := items.UpdateStatus(ctx, changeID, workitem.StatusInProgress); err != nil {
					return fmt.Errorf("reopen change: %w", err)
				}
				common.EmitAudit(ctx, container.GetAuditSink(), &repository.AuditEvent{
					Kind:     repository.EventStatusChanged,
					ChangeID: changeID,
					From:     workitem.StatusComplete.String(),
					To:       workitem.StatusInProgress.String(),
					Detail:   "reopened by task add",
				})
				fmt.Fprintf(out, "Change %s is now in-progress.\n", changeID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&changeID, "change", "", "Change the task belongs to")
	cmd.Flags().StringVar(&taskID, "id", "", "Task ID (default: next ordinal)")
	return cmd
}

// taskOutput is the JSON form of one listed task.
type taskOutput struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Name   string `json:"name,omitempty"`
}

func newListCommand() *cobra.Command {
	var (
		changeID   string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the tasks of a change",
		RunE: func(cmd *cobra.Command, args []string) error {
			if changeID == "" {
				return errors.New("--change is required")
			}

			container, err := common.InitializeContainer(common.GetGlobalConfig())
			if err != nil {
				return err
			}
			defer container.Close()

			ctx := context.Background()
			tasks, err := container.GetTaskRepository().ListByChange(ctx, changeID)
			if err != nil {
				return fmt.Errorf("list tasks: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				entries := make([]taskOutput, 0, len(tasks))
				for _, t := range tasks {
					entries = append(entries, taskOutput{ID: t.ID, Status: t.Status.String(), Name: t.Name})
				}
				b, err := json.MarshalIndent(entries, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(b))
				return nil
			}

			if len(tasks) == 0 {
				fmt.Fprintf(out, "No tasks recorded for %s.\n", changeID)
				return nil
			}

			resolved := 0
			for _, t := range tasks {
				if t.IsResolved() {
					resolved++
				}
			}
			fmt.Fprintf(out, "Tasks for %s (%d of %d resolved):\n", changeID, resolved, len(tasks))
			for _, t := range tasks {
				fmt.Fprintf(out, "  - %s (%s) %s\n", t.ID, t.Status, t.Name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&changeID, "change", "", "Change whose tasks to list")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}

// newResolveCommand builds the complete and shelve commands; both move
// a task to a resolved status and ripple the change's work status.
func newResolveCommand(use, short string, target task.Status) *cobra.Command {
	var changeID string

	cmd := &cobra.Command{
		Use:   use + " <task-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if changeID == "" {
				return errors.New("--change is required")
			}
			taskID := args[0]

			container, err := common.InitializeContainer(common.GetGlobalConfig())
			if err != nil {
				return err
			}
			defer container.Close()

			ctx := context.Background()
			tasks := container.GetTaskRepository()
			items := container.GetWorkItemRepository()

			if err := tasks.UpdateStatus(ctx, changeID, taskID, target); err != nil {
				return fmt.Errorf("update task %s: %w", taskID, err)
			}
			common.EmitAudit(ctx, container.GetAuditSink(), &repository.AuditEvent{
				Kind:     repository.EventTaskStatusChanged,
				ChangeID: changeID,
				TaskID:   taskID,
				To:       target.String(),
				Detail:   "ralph task " + use,
			})

			summary, err := tasks.Summarize(ctx, changeID)
			if err != nil {
				return fmt.Errorf("summarize tasks: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Task %s marked %s (%d of %d resolved).\n",
				taskID, target, summary.Complete+summary.Shelved, summary.Total)

			current, err := items.GetStatus(ctx, changeID)
			if err != nil {
				return fmt.Errorf("look up change %s: %w", changeID, err)
			}

			var next workitem.Status
			var detail string
			switch {
			case summary.AllResolved() && current != workitem.StatusComplete:
				next = workitem.StatusComplete
				detail = "all tasks resolved"
			case !summary.AllResolved() && current == workitem.StatusReady:
				next = workitem.StatusInProgress
				detail = "task work started"
			}
			if next == "" {
				return nil
			}

			if err := items.UpdateStatus(ctx, changeID, next); err != nil {
				return fmt.Errorf("update change status: %w", err)
			}
			common.EmitAudit(ctx, container.GetAuditSink(), &repository.AuditEvent{
				Kind:     repository.EventStatusChanged,
				ChangeID: changeID,
				From:     current.String(),
				To:       next.String(),
				Detail:   detail,
			})
			fmt.Fprintf(out, "Change %s is now %s.\n", changeID, next)
			return nil
		},
	}

	cmd.Flags().StringVar(&changeID, "change", "", "Change the task belongs to")
	return cmd
}
