package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cleaver/open-dev-coach/internal/client"
	"github.com/cleaver/open-dev-coach/internal/models"
	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add [description...]",
	Short: "Add a new task",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTaskAdd,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE:  runTaskList,
}

var taskShowCmd = &cobra.Command{
	Use:   "show [task-id]",
	Short: "Show task details",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the task in progress",
	RunE:  runTaskCurrent,
}

var taskStartCmd = &cobra.Command{
	Use:   "start [task-id]",
	Short: "Start a task, putting the active one on hold",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskTransition((*client.Client).StartTask),
}

var taskDoneCmd = &cobra.Command{
	Use:     "done [task-id]",
	Aliases: []string{"complete"},
	Short:   "Complete a task",
	Args:    cobra.ExactArgs(1),
	RunE:    runTaskTransition((*client.Client).CompleteTask),
}

var taskHoldCmd = &cobra.Command{
	Use:   "hold [task-id]",
	Short: "Put a task on hold",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskTransition((*client.Client).HoldTask),
}

var taskStatusCmd = &cobra.Command{
	Use:   "status [task-id] [pending|in_progress|on_hold|completed]",
	Short: "Set a task's status",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskStatus,
}

var taskEditCmd = &cobra.Command{
	Use:   "edit [task-id] [description...]",
	Short: "Change a task's description",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runTaskEdit,
}

var taskRmCmd = &cobra.Command{
	Use:     "rm [task-id]",
	Aliases: []string{"delete"},
	Short:   "Delete a task",
	Args:    cobra.ExactArgs(1),
	RunE:    runTaskRm,
}

var taskStatus string

func init() {
	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskShowCmd, taskCurrentCmd,
		taskStartCmd, taskDoneCmd, taskHoldCmd, taskStatusCmd, taskEditCmd, taskRmCmd)

	taskListCmd.Flags().StringVar(&taskStatus, "status", "", "Filter by status (pending, in_progress, on_hold, completed)")
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	c := newAPIClient()
	task, err := c.CreateTask(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Printf("Created task: %s\n", task.ID)
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	c := newAPIClient()
	tasks, err := c.ListTasks(cmd.Context(), taskStatus)
	if err != nil {
		return err
	}

	if len(tasks) == 0 {
		fmt.Println("No tasks found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tDESCRIPTION\tUPDATED")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", truncateID(t.ID), t.Status, truncate(t.Description, 50), t.UpdatedAt.Format("Jan 2 15:04"))
	}
	w.Flush()
	return nil
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	c := newAPIClient()
	id, err := c.ResolveTaskID(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	task, err := c.GetTask(cmd.Context(), id)
	if err != nil {
		return err
	}
	printTask(task)
	return nil
}

func runTaskCurrent(cmd *cobra.Command, args []string) error {
	task, err := newAPIClient().CurrentTask(cmd.Context())
	if err != nil {
		return err
	}
	if task == nil {
		fmt.Println("No task in progress")
		return nil
	}
	printTask(task)
	return nil
}

func runTaskTransition(op func(*client.Client, context.Context, string) (*client.TransitionResult, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c := newAPIClient()
		id, err := c.ResolveTaskID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		res, err := op(c, cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Println(res.Message)
		return nil
	}
}

func runTaskStatus(cmd *cobra.Command, args []string) error {
	c := newAPIClient()
	id, err := c.ResolveTaskID(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	res, err := c.SetTaskStatus(cmd.Context(), id, args[1])
	if err != nil {
		return err
	}
	fmt.Println(res.Message)
	return nil
}

func runTaskEdit(cmd *cobra.Command, args []string) error {
	c := newAPIClient()
	id, err := c.ResolveTaskID(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	task, err := c.UpdateTask(cmd.Context(), id, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	fmt.Printf("Updated task %s\n", truncateID(task.ID))
	return nil
}

func runTaskRm(cmd *cobra.Command, args []string) error {
	c := newAPIClient()
	id, err := c.ResolveTaskID(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	msg, err := c.DeleteTask(cmd.Context(), id)
	if err != nil {
		return err
	}
	fmt.Println(msg)
	return nil
}

func printTask(task *models.Task) {
	fmt.Printf("ID:          %s\n", task.ID)
	fmt.Printf("Description: %s\n", task.Description)
	fmt.Printf("Status:      %s\n", task.Status)
	if task.StartedAt != nil {
		fmt.Printf("Started:     %s\n", task.StartedAt.Format(time.RFC3339))
	}
	if task.CompletedAt != nil {
		fmt.Printf("Completed:   %s\n", task.CompletedAt.Format(time.RFC3339))
	}
	fmt.Printf("Created:     %s\n", task.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Updated:     %s\n", task.UpdatedAt.Format(time.RFC3339))
}

// --- Helpers ---

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func truncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
