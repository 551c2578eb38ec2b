package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Representation is the JSON form of a task exchanged with the remote store.
//
//	{
//	  "complete": false,
//	  "identifier": "0D6C3C5A-6D2B-4C4E-9E1C-5E6B5C1F2A3B",
//	  "name": "Buy milk",
//	  "notes": null,
//	  "priority": "normal"
//	}
type Representation struct {
	Complete   bool    `json:"complete" yaml:"complete" toml:"complete"`
	Identifier string  `json:"identifier" yaml:"identifier" toml:"identifier"`
	Name       string  `json:"name" yaml:"name" toml:"name"`
	Notes      *string `json:"notes" yaml:"notes,omitempty" toml:"notes,omitempty"`
	Priority   string  `json:"priority" yaml:"priority" toml:"priority"`
}

// Representation converts the task to its wire form.
// A zero ID is replaced with a fresh identifier, matching how new tasks are
// published the first time they are pushed.
func (t *Task) Representation() (*Representation, error) {
	if t.Name == "" || !t.Priority.Valid() {
		return nil, ErrNoRepresentation
	}

	id := t.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	rep := &Representation{
		Complete:   t.Complete,
		Identifier: FormatID(id),
		Name:       t.Name,
		Priority:   string(t.Priority),
	}
	if t.Notes != nil {
		notes := *t.Notes
		rep.Notes = &notes
	}
	return rep, nil
}

// FromRepresentation builds a task from its wire form.
// Returns ErrInvalidIdentifier if the identifier is not a UUID.
func FromRepresentation(rep *Representation) (*Task, error) {
	id, err := ParseID(rep.Identifier)
	if err != nil {
		return nil, err
	}
	priority, err := ParsePriority(rep.Priority)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", rep.Identifier, err)
	}

	task := &Task{
		ID:       id,
		Name:     rep.Name,
		Complete: rep.Complete,
		Priority: priority,
	}
	if rep.Notes != nil {
		notes := *rep.Notes
		task.Notes = &notes
	}
	return task, nil
}

// ParseID parses a wire identifier. Only the canonical hyphenated form is
// accepted, in either case; URN, braced and bare hex forms are rejected. The
// nil UUID marks a task with no identifier and is rejected too.
func ParseID(s string) (uuid.UUID, error) {
	if len(s) != 36 {
		return uuid.Nil, fmt.Errorf("%w %q: want 36 characters, got %d", ErrInvalidIdentifier, s, len(s))
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w %q: %v", ErrInvalidIdentifier, s, err)
	}
	if id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w %q: nil identifier", ErrInvalidIdentifier, s)
	}
	return id, nil
}

// FormatID renders an identifier the way the remote store keys documents:
// upper-case canonical UUID text.
func FormatID(id uuid.UUID) string {
	return strings.ToUpper(id.String())
}

// DecodeSnapshot decodes a remote snapshot: a JSON object mapping arbitrary
// keys to task representations. A JSON null body decodes to an empty map.
func DecodeSnapshot(data []byte) (map[string]*Representation, error) {
	var byKey map[string]*Representation
	if err := json.Unmarshal(data, &byKey); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if byKey == nil {
		byKey = map[string]*Representation{}
	}
	return byKey, nil
}

// SnapshotValues returns the representations of a snapshot in key order, so
// a repeated identifier resolves the same way on every run. The keys are
// discarded; identity comes from each value's identifier. Null entries are
// dropped.
func SnapshotValues(snapshot map[string]*Representation) []*Representation {
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	reps := make([]*Representation, 0, len(keys))
	for _, k := range keys {
		if snapshot[k] == nil {
			continue
		}
		reps = append(reps, snapshot[k])
	}
	return reps
}
