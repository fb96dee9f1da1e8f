package app

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hitoshi/flextime/internal/analytics"
	"github.com/hitoshi/flextime/internal/model"
	"github.com/hitoshi/flextime/internal/report"
)

func (c *cli) dashboardCommand() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show task and check-in totals and the latest mood",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withUser(cmd.Context(), func(ctx context.Context, a *App, userID int64) error {
				summary, err := a.Reports.LoadDashboard(ctx, userID, refresh)
				if err != nil {
					return err
				}
				return c.print(summary, func(w io.Writer) error {
					return writeDashboard(w, summary)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the cache")
	return cmd
}

func writeDashboard(w io.Writer, s *analytics.DashboardSummary) error {
	lastMood := "-"
	if s.LastMood != nil {
		lastMood = fmt.Sprintf("%d/10", *s.LastMood)
	}
	_, err := fmt.Fprintf(w, "Tasks:     %d\nCheck-ins: %d\nLast mood: %s\n", s.TotalTasks, s.TotalCheckins, lastMood)
	return err
}

func (c *cli) reportCommand() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the weekly report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withUser(cmd.Context(), func(ctx context.Context, a *App, userID int64) error {
				rep, err := a.Reports.LoadWeeklyReport(ctx, userID, refresh)
				if err != nil {
					return err
				}
				return c.print(rep, func(w io.Writer) error {
					return writeWeeklyReport(w, rep)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the cache")
	return cmd
}

func writeWeeklyReport(w io.Writer, r *report.WeeklyReport) error {
	avg, score := "-", "-"
	if r.AverageMood != nil {
		avg = fmt.Sprintf("%.1f", *r.AverageMood)
	}
	if r.Score != nil {
		score = fmt.Sprintf("%d", *r.Score)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Check-ins\t%d\n", r.TotalCheckins)
	fmt.Fprintf(tw, "Average mood\t%s\n", avg)
	fmt.Fprintf(tw, "Home / Office / Remote\t%d / %d / %d\n", r.HomeCount, r.OfficeCount, r.RemoteCount)
	fmt.Fprintf(tw, "Balance score\t%s\n", score)
	if err := tw.Flush(); err != nil {
		return err
	}

	if r.PeriodSummary != "" {
		fmt.Fprintf(w, "\n%s .. %s\n%s\n", r.Period.From, r.Period.To, r.PeriodSummary)
	}
	if r.Insight != nil {
		fmt.Fprintf(w, "\nInsight:\n%s\n", *r.Insight)
	}
	return nil
}

func (c *cli) tasksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Manage tasks",
	}

	var refresh bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withUser(cmd.Context(), func(ctx context.Context, a *App, userID int64) error {
				tasks, err := a.Tasks.List(ctx, userID, refresh)
				if err != nil {
					return err
				}
				return c.print(tasks, func(w io.Writer) error {
					return writeTasks(w, tasks)
				})
			})
		},
	}
	list.Flags().BoolVar(&refresh, "refresh", false, "bypass the cache")

	var title, description, due string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withUser(cmd.Context(), func(ctx context.Context, a *App, userID int64) error {
				created, err := a.Tasks.Create(ctx, userID, title, description, due)
				if err != nil {
					return err
				}
				return c.print(created, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Task %d created.\n", created.ID)
					return err
				})
			})
		},
	}
	add.Flags().StringVar(&title, "title", "", "task title (required)")
	add.Flags().StringVar(&description, "description", "", "task description")
	add.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD)")
	_ = add.MarkFlagRequired("title")

	toggle := &cobra.Command{
		Use:   "toggle <id>",
		Short: "Toggle a task between pending and completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			return c.withUser(cmd.Context(), func(ctx context.Context, a *App, userID int64) error {
				updated, err := a.Tasks.ToggleByID(ctx, userID, id)
				if err != nil {
					return err
				}
				return c.print(updated, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Task %d is now %s.\n", updated.ID, updated.Status)
					return err
				})
			})
		},
	}

	remove := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			return c.withUser(cmd.Context(), func(ctx context.Context, a *App, userID int64) error {
				if err := a.Tasks.Delete(ctx, id); err != nil {
					return err
				}
				_, err := fmt.Fprintf(c.out, "Task %d deleted.\n", id)
				return err
			})
		},
	}

	cmd.AddCommand(list, add, toggle, remove)
	return cmd
}

func writeTasks(w io.Writer, tasks []model.Task) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tDUE\tTITLE")
	for _, t := range tasks {
		due := "-"
		if t.DueDate != nil {
			due = *t.DueDate
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", t.ID, t.Status, due, t.Title)
	}
	return tw.Flush()
}

func (c *cli) checkinsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkins",
		Short: "Manage daily check-ins",
	}

	var refresh bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List check-ins, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withUser(cmd.Context(), func(ctx context.Context, a *App, userID int64) error {
				items, err := a.CheckIns.List(ctx, userID, refresh)
				if err != nil {
					return err
				}
				return c.print(items, func(w io.Writer) error {
					return writeCheckIns(w, items)
				})
			})
		},
	}
	list.Flags().BoolVar(&refresh, "refresh", false, "bypass the cache")

	var location string
	var mood int
	add := &cobra.Command{
		Use:   "add",
		Short: "Submit today's check-in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withUser(cmd.Context(), func(ctx context.Context, a *App, userID int64) error {
				created, err := a.CheckIns.Submit(ctx, userID, location, mood)
				if err != nil {
					return err
				}
				return c.print(created, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Checked in for %s (%s, mood %d).\n", created.Date, created.LocationType, created.Mood)
					return err
				})
			})
		},
	}
	add.Flags().StringVar(&location, "location", "", "HOME, OFFICE or REMOTE (required)")
	add.Flags().IntVar(&mood, "mood", 0, "mood from 1 to 10 (required)")
	_ = add.MarkFlagRequired("location")
	_ = add.MarkFlagRequired("mood")

	cmd.AddCommand(list, add)
	return cmd
}

func writeCheckIns(w io.Writer, items []model.CheckIn) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tLOCATION\tMOOD")
	for _, ci := range items {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", ci.Date, ci.LocationType, ci.Mood)
	}
	return tw.Flush()
}
