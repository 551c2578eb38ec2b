package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/tasksync/tasks/internal/tasks/schema"
)

func init() {
	SetColorEnabled(false)
}

func task(id, name string, p schema.Priority, complete bool) *schema.Task {
	return &schema.Task{ID: uuid.MustParse(id), Name: name, Priority: p, Complete: complete}
}

func TestRenderPlain(t *testing.T) {
	if got := RenderPass("ok"); got != "ok" {
		t.Errorf("RenderPass() = %q, want plain text with color disabled", got)
	}
	if got := RenderPriority(schema.PriorityHigh); got != "high" {
		t.Errorf("RenderPriority() = %q", got)
	}
	if got := RenderPriority(schema.Priority("urgent")); got != "urgent" {
		t.Errorf("RenderPriority(unknown) = %q", got)
	}
}

func TestRenderTaskLine(t *testing.T) {
	open := task("abcdef01-1111-4111-8111-111111111111", "Buy milk", schema.PriorityLow, false)
	open.SetNotes("2%\nsemi-skimmed")

	line := RenderTaskLine(open)
	for _, want := range []string{IconPending, "Buy milk", "(ABCDEF01)", "2%"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
	if strings.Contains(line, "semi-skimmed") {
		t.Errorf("line %q should show only the first notes line", line)
	}

	done := task("abcdef01-1111-4111-8111-111111111111", "Walk dog", schema.PriorityLow, true)
	if line := RenderTaskLine(done); !strings.HasPrefix(line, IconPass) {
		t.Errorf("completed line = %q", line)
	}
}

func TestGroupByPriority(t *testing.T) {
	tasks := []*schema.Task{
		task("33333333-3333-4333-8333-333333333333", "b", schema.PriorityNormal, false),
		task("11111111-1111-4111-8111-111111111111", "z", schema.PriorityCritical, false),
		task("22222222-2222-4222-8222-222222222222", "a", schema.PriorityNormal, false),
		task("44444444-4444-4444-8444-444444444444", "c", schema.PriorityHigh, false),
	}

	groups := GroupByPriority(tasks)

	want := []struct {
		priority schema.Priority
		names    []string
	}{
		{schema.PriorityCritical, []string{"z"}},
		{schema.PriorityHigh, []string{"c"}},
		{schema.PriorityNormal, []string{"a", "b"}},
	}
	if len(groups) != len(want) {
		t.Fatalf("got %d groups, want %d", len(groups), len(want))
	}
	for i, w := range want {
		if groups[i].Priority != w.priority {
			t.Errorf("group %d priority = %s, want %s", i, groups[i].Priority, w.priority)
		}
		var names []string
		for _, task := range groups[i].Tasks {
			names = append(names, task.Name)
		}
		if strings.Join(names, ",") != strings.Join(w.names, ",") {
			t.Errorf("group %d = %v, want %v", i, names, w.names)
		}
	}

	if tasks[0].Name != "b" {
		t.Error("GroupByPriority reordered its input")
	}
}

func TestRenderList(t *testing.T) {
	var buf bytes.Buffer
	RenderList(&buf, nil)
	if !strings.Contains(buf.String(), "No tasks.") {
		t.Errorf("empty list = %q", buf.String())
	}

	buf.Reset()
	RenderList(&buf, []*schema.Task{
		task("11111111-1111-4111-8111-111111111111", "Walk dog", schema.PriorityLow, false),
		task("22222222-2222-4222-8222-222222222222", "Pay rent", schema.PriorityCritical, false),
	})
	out := buf.String()
	if strings.Index(out, "CRITICAL (1)") > strings.Index(out, "LOW (1)") {
		t.Errorf("groups out of order:\n%s", out)
	}
}

func TestRenderTask(t *testing.T) {
	tk := task("11111111-1111-4111-8111-111111111111", "Buy milk", schema.PriorityHigh, true)
	tk.SetNotes("one\ntwo")

	var buf bytes.Buffer
	RenderTask(&buf, tk)
	out := buf.String()
	for _, want := range []string{"11111111-1111-4111-8111-111111111111", "high", "complete", "    two"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"Buy milk", false},
		{"", true},
		{"   ", true},
		{strings.Repeat("x", 501), true},
	}
	for _, tt := range tests {
		if err := ValidateName(tt.name); (err != nil) != tt.wantErr {
			t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestTaskValues(t *testing.T) {
	tk := schema.NewTask("Buy milk")
	tk.SetNotes("2%")

	v := ValuesOf(tk)
	v.Name = "  Buy oat milk "
	v.Notes = "   "
	v.Priority = schema.PriorityHigh
	v.Complete = true
	v.ApplyTo(tk)

	if tk.Name != "Buy oat milk" || tk.Notes != nil || tk.Priority != schema.PriorityHigh || !tk.Complete {
		t.Errorf("task after ApplyTo = %+v", tk)
	}

	if got := ValuesOf(&schema.Task{}).Priority; got != schema.PriorityNormal {
		t.Errorf("invalid priority should default to normal, got %q", got)
	}
}

func TestPriorityOptions(t *testing.T) {
	options := PriorityOptions()
	if len(options) != len(schema.AllPriorities) {
		t.Fatalf("got %d options", len(options))
	}
	if options[0].Value != schema.PriorityCritical || options[0].Key != "Critical" {
		t.Errorf("first option = %+v", options[0])
	}
}

func TestNewTaskForm(t *testing.T) {
	if NewTaskForm("New task", &TaskValues{Priority: schema.PriorityNormal}, false) == nil {
		t.Fatal("NewTaskForm() returned nil")
	}
}
