package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/tasksync/tasks/internal/tasks/schema"
)

// TaskValues holds the editable fields of a task while a form runs.
type TaskValues struct {
	Name     string
	Notes    string
	Priority schema.Priority
	Complete bool
}

// ValuesOf copies the editable fields of t.
func ValuesOf(t *schema.Task) *TaskValues {
	priority := t.Priority
	if !priority.Valid() {
		priority = schema.PriorityNormal
	}
	return &TaskValues{
		Name:     t.Name,
		Notes:    t.NotesText(),
		Priority: priority,
		Complete: t.Complete,
	}
}

// ApplyTo writes the values back to t. Blank notes clear them.
func (v *TaskValues) ApplyTo(t *schema.Task) {
	t.Name = strings.TrimSpace(v.Name)
	t.SetNotes(strings.TrimSpace(v.Notes))
	t.Priority = v.Priority
	t.Complete = v.Complete
}

// ValidateName rejects names a task cannot carry.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name is required")
	}
	if len(name) > 500 {
		return fmt.Errorf("name must be 500 characters or less (got %d)", len(name))
	}
	return nil
}

// PriorityOptions lists the priorities as select options, most urgent first.
func PriorityOptions() []huh.Option[schema.Priority] {
	options := make([]huh.Option[schema.Priority], 0, len(schema.AllPriorities))
	for i := len(schema.AllPriorities) - 1; i >= 0; i-- {
		p := schema.AllPriorities[i]
		options = append(options, huh.NewOption(strings.ToUpper(p.String()[:1])+p.String()[1:], p))
	}
	return options
}

// NewTaskForm builds the create/edit form bound to v. showComplete adds the
// completion toggle, which a new task does not need.
func NewTaskForm(title string, v *TaskValues, showComplete bool) *huh.Form {
	fields := []huh.Field{
		huh.NewInput().
			Title("Name").
			Value(&v.Name).
			Validate(ValidateName),
		huh.NewText().
			Title("Notes").
			Description("Optional").
			Value(&v.Notes),
		huh.NewSelect[schema.Priority]().
			Title("Priority").
			Options(PriorityOptions()...).
			Value(&v.Priority),
	}
	if showComplete {
		fields = append(fields, huh.NewConfirm().
			Title("Complete?").
			Value(&v.Complete))
	}

	return huh.NewForm(
		huh.NewGroup(fields...).Title(title),
	).WithAccessible(!IsInteractive())
}

// EditTask runs the form for t and applies the result. A new task (one with
// no name yet) is not offered the completion toggle.
func EditTask(title string, t *schema.Task) error {
	values := ValuesOf(t)
	if err := NewTaskForm(title, values, t.Name != "").Run(); err != nil {
		return fmt.Errorf("form cancelled: %w", err)
	}
	values.ApplyTo(t)
	return nil
}

// Confirm asks a yes/no question.
func Confirm(question string) (bool, error) {
	var ok bool
	confirm := huh.NewConfirm().
		Title(question).
		Affirmative("Yes").
		Negative("No").
		Value(&ok)
	if err := huh.NewForm(huh.NewGroup(confirm)).WithAccessible(!IsInteractive()).Run(); err != nil {
		return false, err
	}
	return ok, nil
}
