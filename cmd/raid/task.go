package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskraid/internal/app"
	"taskraid/internal/domain"
	"taskraid/internal/engine"
)

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage tasks"}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskShowCmd())
	task.AddCommand(taskUpdateCmd())
	task.AddCommand(taskCompleteCmd())
	task.AddCommand(taskDeleteCmd())
	task.AddCommand(taskAssignCmd())
	task.AddCommand(taskUnassignCmd())
	return task
}

func taskCreateCmd() *cobra.Command {
	var id, description, deadline string
	var priority int
	var assignees []string
	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			due, err := parseDeadline(deadline)
			if err != nil {
				return err
			}
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				t, err := a.Engine.CreateTask(ctx, engine.TaskCreateOptions{
					ID:          id,
					ProjectID:   projectID,
					Title:       args[0],
					Description: description,
					Priority:    priority,
					Deadline:    due,
					ActorID:     actor(),
				})
				if err != nil {
					return err
				}
				for _, ref := range assignees {
					memberID, err := resolveMember(ctx, a, projectID, ref)
					if err != nil {
						return err
					}
					if t, err = a.Engine.AssignMember(ctx, t.ID, memberID, actor()); err != nil {
						return err
					}
				}
				if viper.GetBool("json") {
					return printJSON(t)
				}
				fmt.Printf("Created task %s: %s\n", t.ID, t.Title)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "task id (generated when empty)")
	cmd.Flags().StringVar(&description, "description", "", "task description")
	cmd.Flags().IntVar(&priority, "priority", 1, "task priority")
	cmd.Flags().StringVar(&deadline, "deadline", "", "deadline (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringSliceVar(&assignees, "assign", nil, "member or user ids to assign")
	return cmd
}

func taskListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				tasks, err := a.Engine.ListTasks(ctx, projectID)
				if err != nil {
					return err
				}
				if status != "" {
					filtered := tasks[:0]
					for _, t := range tasks {
						if string(t.Status) == status {
							filtered = append(filtered, t)
						}
					}
					tasks = filtered
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				renderTasks(tasks)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter (todo, in_progress, done)")
	return cmd
}

func taskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				t, err := a.Engine.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
}

func taskUpdateCmd() *cobra.Command {
	var title, description, deadline, status string
	var priority int
	var clearDeadline bool
	cmd := &cobra.Command{
		Use:   "update <task-id>",
		Short: "Update a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.TaskUpdateOptions{
				ID:            args[0],
				ClearDeadline: clearDeadline,
				Status:        domain.TaskStatus(status),
				ActorID:       actor(),
			}
			if cmd.Flags().Changed("title") {
				opts.Title = &title
			}
			if cmd.Flags().Changed("description") {
				opts.Description = &description
			}
			if cmd.Flags().Changed("priority") {
				opts.Priority = &priority
			}
			if deadline != "" {
				due, err := parseDeadline(deadline)
				if err != nil {
					return err
				}
				opts.Deadline = due
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				t, err := a.Engine.UpdateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().IntVar(&priority, "priority", 0, "new priority")
	cmd.Flags().StringVar(&deadline, "deadline", "", "new deadline (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().BoolVar(&clearDeadline, "clear-deadline", false, "remove the deadline")
	cmd.Flags().StringVar(&status, "status", "", "new status (todo, in_progress)")
	return cmd
}

func taskCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <task-id>",
		Short: "Complete a task and strike the boss with it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				res, err := a.Engine.CompleteTask(ctx, args[0], actor())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("Completed %s\n", res.Task.Title)
				if res.Attack != nil {
					fmt.Printf("Hit the boss for %d (+%d score); boss at %d/%d\n",
						res.Attack.Damage, res.Attack.Score, res.Attack.Boss.HP, res.Attack.Boss.MaxHP)
					if res.Attack.BossKilled {
						fmt.Println("The boss is down!")
					}
				}
				return nil
			})
		},
	}
}

func taskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Engine.DeleteTask(ctx, args[0], actor()); err != nil {
					return err
				}
				fmt.Printf("Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func taskAssignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assign <task-id> <member>",
		Short: "Assign a member (member or user id) to a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				memberID, err := resolveMember(ctx, a, projectID, args[1])
				if err != nil {
					return err
				}
				t, err := a.Engine.AssignMember(ctx, args[0], memberID, actor())
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
}

func taskUnassignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unassign <task-id> <member>",
		Short: "Remove a member from a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, a *app.App, projectID string) error {
				memberID, err := resolveMember(ctx, a, projectID, args[1])
				if err != nil {
					return err
				}
				t, err := a.Engine.UnassignMember(ctx, args[0], memberID, actor())
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
}

func renderTasks(tasks []domain.Task) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Title", "Status", "Priority", "Deadline", "Assignees"})
	for _, t := range tasks {
		tw.AppendRow(table.Row{t.ID, t.Title, t.Status, t.Priority, formatTime(t.Deadline), strings.Join(t.Assignees, ",")})
	}
	tw.Render()
}
