package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/yush1006/todo/client"
	"github.com/yush1006/todo/domain"
)

// printView writes the list as a table followed by the progress line.
func printView(w io.Writer, v client.View, loc *time.Location) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, t := range v.Tasks {
		mark := "[ ]"
		if t.Completed {
			mark = "[x]"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", i+1, mark, t.Text,
			domain.FormatTimestamp(&t.CreatedAt, loc, false),
			domain.FormatTimestamp(t.CompletedAt, loc, true),
			domain.TaskDuration(t))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "%d/%d (%d%%)\n", v.Stats.Completed, v.Stats.Total, v.Stats.Percentage)
}

// resolveTask accepts a task id or a 1-based position in the list.
func resolveTask(tasks []domain.Task, ref string) (string, error) {
	if domain.IndexOf(tasks, ref) >= 0 {
		return ref, nil
	}
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(tasks) {
		return tasks[n-1].ID, nil
	}
	return "", fmt.Errorf("%s: %w", ref, domain.ErrTaskNotFound)
}
