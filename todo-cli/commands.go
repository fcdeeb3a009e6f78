package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yush1006/todo/client"
	"github.com/yush1006/todo/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and sign-in state",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp()
		if err != nil {
			return err
		}
		defer app.Close()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "state: %s\n", app.State())
		if missing := app.Missing(); len(missing) > 0 {
			fmt.Fprintf(out, "missing: %s\n", strings.Join(missing, ", "))
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the task list once",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, engine, done, err := session(cmd)
		if err != nil {
			return err
		}
		defer done()
		printView(cmd.OutOrStdout(), engine.View(), nil)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the task list after every change until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, engine, done, err := session(cmd)
		if err != nil {
			return err
		}
		defer done()
		out := cmd.OutOrStdout()
		printView(out, engine.View(), nil)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-engine.Changes():
				fmt.Fprintln(out)
				printView(out, engine.View(), nil)
			}
		}
	},
}

var addCmd = &cobra.Command{
	Use:   "add <text>...",
	Short: "Add a task at the top of the list",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, engine, done, err := session(cmd)
		if err != nil {
			return err
		}
		defer done()
		engine.SetDraft(strings.Join(args, " "))
		return noticeOr(engine, engine.SubmitDraft(ctx))
	},
}

var toggleCmd = &cobra.Command{
	Use:   "toggle <id|#>",
	Short: "Complete or reopen a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, engine, done, err := session(cmd)
		if err != nil {
			return err
		}
		defer done()
		id, err := resolveTask(engine.View().Tasks, args[0])
		if err != nil {
			return err
		}
		return noticeOr(engine, engine.Toggle(ctx, id))
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <id|#>",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, engine, done, err := session(cmd)
		if err != nil {
			return err
		}
		defer done()
		id, err := resolveTask(engine.View().Tasks, args[0])
		if err != nil {
			return err
		}
		return noticeOr(engine, engine.Delete(ctx, id))
	},
}

var moveCmd = &cobra.Command{
	Use:   "move <source> <target>",
	Short: "Move a task onto the position of another",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, engine, done, err := session(cmd)
		if err != nil {
			return err
		}
		defer done()
		tasks := engine.View().Tasks
		source, err := resolveTask(tasks, args[0])
		if err != nil {
			return err
		}
		target, err := resolveTask(tasks, args[1])
		if err != nil {
			return err
		}
		engine.BeginDrag(source)
		preview := engine.Preview(target)
		printView(cmd.OutOrStdout(), client.View{Tasks: preview, Stats: domain.ComputeStats(preview)}, nil)
		return noticeOr(engine, engine.Drop(ctx, target))
	},
}

// noticeOr prefers the user-facing notice over the raw error.
func noticeOr(engine *client.Engine, err error) error {
	if err == nil {
		return nil
	}
	if n := engine.View().Notice; n != nil {
		return fmt.Errorf("%s (%w)", n.Message, err)
	}
	return err
}
