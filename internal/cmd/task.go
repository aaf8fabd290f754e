package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/tasksync/internal/app"
	"github.com/felixgeelhaar/tasksync/internal/domain"
	"github.com/felixgeelhaar/tasksync/internal/errors"
	"github.com/felixgeelhaar/tasksync/internal/ux"
)

const dueLayout = "2006-01-02"

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage your tasks",
	Long: `Manage your tasks.

Examples:
  tasksync task add "Write release notes" --priority high --due 2026-11-01
  tasksync task list --status todo
  tasksync task update <id> --status in_progress
  tasksync task done <id>
`,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your tasks, newest first",
	Args:  cobra.NoArgs,
	RunE:  runTaskList,
}

var taskShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskAddCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Create a task",
	Long:  `Create a task. Without a title you are prompted for title and priority.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTaskAdd,
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change fields of a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskUpdate,
}

var taskDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark a task as done",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskDone,
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskDelete,
}

var (
	taskTitle       string
	taskDescription string
	taskStatus      string
	taskPriority    string
	taskDue         string
	taskTeam        string
	taskYes         bool
)

func init() {
	taskListCmd.Flags().StringVar(&taskStatus, "status", "", "only show tasks with this status")
	taskListCmd.Flags().StringVar(&taskTeam, "team", "", "list the tasks of a team instead of your own")

	taskAddCmd.Flags().StringVar(&taskDescription, "description", "", "task description")
	taskAddCmd.Flags().StringVar(&taskPriority, "priority", "", "low, medium or high (default medium)")
	taskAddCmd.Flags().StringVar(&taskDue, "due", "", "due date, YYYY-MM-DD")
	taskAddCmd.Flags().StringVar(&taskTeam, "team", "", "share the task with a team")

	taskUpdateCmd.Flags().StringVar(&taskTitle, "title", "", "new title")
	taskUpdateCmd.Flags().StringVar(&taskDescription, "description", "", "new description")
	taskUpdateCmd.Flags().StringVar(&taskStatus, "status", "", "todo, in_progress or done")
	taskUpdateCmd.Flags().StringVar(&taskPriority, "priority", "", "low, medium or high")
	taskUpdateCmd.Flags().StringVar(&taskDue, "due", "", "due date, YYYY-MM-DD")
	taskUpdateCmd.Flags().StringVar(&taskTeam, "team", "", "move the task to a team")

	taskDeleteCmd.Flags().BoolVarP(&taskYes, "yes", "y", false, "do not ask for confirmation")

	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskShowCmd)
	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskUpdateCmd)
	taskCmd.AddCommand(taskDoneCmd)
	taskCmd.AddCommand(taskDeleteCmd)

	rootCmd.AddCommand(taskCmd)
}

func runTaskList(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(cc *CommandContext, a *app.App) error {
		ctx := cmd.Context()
		user, err := a.RequireProfile(ctx)
		if err != nil {
			return err
		}

		tasks, err := load(ctx, a, "tasks", func(ctx context.Context) ([]domain.Task, error) {
			if taskTeam != "" {
				return a.Repos.Tasks.ListByTeam(ctx, taskTeam)
			}
			return a.Repos.Tasks.List(ctx, user.ID)
		})
		if err != nil {
			return err
		}

		if taskStatus != "" {
			status, err := domain.NewStatus(taskStatus)
			if err != nil {
				return errors.NewInvalidError(err.Error())
			}
			tasks = filterTasks(tasks, status)
		}
		return cc.Output(ux.TaskList(tasks))
	})
}

func filterTasks(tasks []domain.Task, status domain.Status) []domain.Task {
	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(cc *CommandContext, a *app.App) error {
		ctx := cmd.Context()
		if _, err := a.RequireProfile(ctx); err != nil {
			return err
		}
		t, err := a.Repos.Tasks.Get(ctx, args[0])
		if err != nil {
			return err
		}
		return cc.Output(ux.TaskDetail(*t))
	})
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(cc *CommandContext, a *app.App) error {
		ctx := cmd.Context()
		user, err := a.RequireProfile(ctx)
		if err != nil {
			return err
		}

		title, priority := "", taskPriority
		if len(args) == 1 {
			title = args[0]
		} else if err := ux.TaskFields(ctx, &title, &priority); err != nil {
			return err
		}

		t := domain.NewTask(user.ID, title)
		t.Description = taskDescription
		if priority != "" {
			p, err := domain.NewPriority(priority)
			if err != nil {
				return errors.NewInvalidError(err.Error())
			}
			t.Priority = p
		}
		if taskDue != "" {
			due, err := parseDue(taskDue)
			if err != nil {
				return err
			}
			t.DueDate = &due
		}
		if taskTeam != "" {
			team := taskTeam
			t.TeamID = &team
		}

		created, err := a.Repos.Tasks.Create(ctx, t)
		if err != nil {
			return err
		}
		return cc.Output(ux.TaskDetail(*created))
	})
}

func runTaskUpdate(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(cc *CommandContext, a *app.App) error {
		ctx := cmd.Context()
		if _, err := a.RequireProfile(ctx); err != nil {
			return err
		}

		patch, err := taskPatchFromFlags(cmd)
		if err != nil {
			return err
		}
		updated, err := a.Repos.Tasks.Update(ctx, args[0], patch)
		if err != nil {
			return err
		}
		return cc.Output(ux.TaskDetail(*updated))
	})
}

// taskPatchFromFlags builds a patch from the flags that were set.
func taskPatchFromFlags(cmd *cobra.Command) (domain.TaskPatch, error) {
	var patch domain.TaskPatch
	flags := cmd.Flags()

	if flags.Changed("title") {
		patch.Title = &taskTitle
	}
	if flags.Changed("description") {
		patch.Description = &taskDescription
	}
	if flags.Changed("status") {
		s, err := domain.NewStatus(taskStatus)
		if err != nil {
			return patch, errors.NewInvalidError(err.Error())
		}
		patch.Status = &s
	}
	if flags.Changed("priority") {
		p, err := domain.NewPriority(taskPriority)
		if err != nil {
			return patch, errors.NewInvalidError(err.Error())
		}
		patch.Priority = &p
	}
	if flags.Changed("due") {
		due, err := parseDue(taskDue)
		if err != nil {
			return patch, err
		}
		patch.DueDate = &due
	}
	if flags.Changed("team") {
		patch.TeamID = &taskTeam
	}

	if patch.Empty() {
		return patch, errors.NewInvalidError("nothing to update").
			WithSuggestion("Pass at least one of --title, --description, --status, --priority, --due or --team")
	}
	return patch, nil
}

func parseDue(s string) (time.Time, error) {
	due, err := time.ParseInLocation(dueLayout, strings.TrimSpace(s), time.Local)
	if err != nil {
		return time.Time{}, errors.NewInvalidError(fmt.Sprintf("invalid due date %q: use YYYY-MM-DD", s))
	}
	return due.UTC(), nil
}

func runTaskDone(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(cc *CommandContext, a *app.App) error {
		ctx := cmd.Context()
		if _, err := a.RequireProfile(ctx); err != nil {
			return err
		}
		t, err := a.Repos.Tasks.SetStatus(ctx, args[0], domain.StatusDone)
		if err != nil {
			return err
		}
		return cc.Output(ux.TaskDetail(*t))
	})
}

func runTaskDelete(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(cc *CommandContext, a *app.App) error {
		ctx := cmd.Context()
		if _, err := a.RequireProfile(ctx); err != nil {
			return err
		}

		if !taskYes {
			ok, err := ux.Confirm(ctx, "Delete task "+args[0]+"?")
			if err != nil {
				return err
			}
			if !ok {
				return cc.Output(cc.Styles().Muted.Render("Nothing deleted."))
			}
		}

		if err := a.Repos.Tasks.Delete(ctx, args[0]); err != nil {
			return err
		}
		return cc.Output(cc.Styles().Success.Render("Deleted task " + args[0]))
	})
}
