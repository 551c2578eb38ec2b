package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/tasksync/tasks/internal/tasks/schema"
)

// Group is a run of tasks sharing a priority, in list order.
type Group struct {
	Priority schema.Priority
	Tasks    []*schema.Task
}

// GroupByPriority sorts a copy of tasks into list order and splits it into
// one group per priority present.
func GroupByPriority(tasks []*schema.Task) []Group {
	sorted := make([]*schema.Task, len(tasks))
	copy(sorted, tasks)
	schema.Sort(sorted)

	var groups []Group
	for _, t := range sorted {
		if n := len(groups); n > 0 && groups[n-1].Priority == t.Priority {
			groups[n-1].Tasks = append(groups[n-1].Tasks, t)
			continue
		}
		groups = append(groups, Group{Priority: t.Priority, Tasks: []*schema.Task{t}})
	}
	return groups
}

// RenderList writes tasks grouped under priority headings.
func RenderList(w io.Writer, tasks []*schema.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, RenderMuted("No tasks."))
		return
	}

	for i, group := range GroupByPriority(tasks) {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s %s\n", RenderHeader(strings.ToUpper(string(group.Priority))), RenderMuted(fmt.Sprintf("(%d)", len(group.Tasks))))
		for _, t := range group.Tasks {
			fmt.Fprintf(w, "  %s\n", RenderTaskLine(t))
		}
	}
}

// RenderTask writes every field of one task.
func RenderTask(w io.Writer, t *schema.Task) {
	status := RenderWarn("open")
	if t.Complete {
		status = RenderPass("complete")
	}

	fmt.Fprintf(w, "%s\n", RenderAccent(t.Name))
	fmt.Fprintf(w, "  ID:       %s\n", schema.FormatID(t.ID))
	fmt.Fprintf(w, "  Priority: %s\n", RenderPriority(t.Priority))
	fmt.Fprintf(w, "  Status:   %s\n", status)
	if t.Notes != nil {
		fmt.Fprintf(w, "  Notes:\n")
		for _, line := range strings.Split(*t.Notes, "\n") {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}
}
