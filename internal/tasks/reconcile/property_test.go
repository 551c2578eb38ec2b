package reconcile

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"pgregory.net/rapid"

	"github.com/tasksync/tasks/internal/tasks/schema"
)

var idSpace = uuid.MustParse("9a1f6b52-3c0e-4d7a-8f7e-2b6d9c4e1a30")

// idFor returns a stable identifier so shrinking never produces collisions.
func idFor(label string, i int) uuid.UUID {
	return uuid.NewSHA1(idSpace, []byte(fmt.Sprintf("%s-%d", label, i)))
}

// nameGen covers short ASCII names, long multi-byte names past 500 bytes and
// whitespace-only names. All of them are valid remote names.
var nameGen = rapid.OneOf(
	rapid.StringMatching(`[A-Za-z][A-Za-z0-9 ]{0,20}`),
	rapid.StringOfN(rapid.RuneFrom([]rune("日本語éß✓ ")), 1, 700, -1),
	rapid.StringMatching(`[ \t]{1,5}`),
)

func fieldsGen(id uuid.UUID) *rapid.Generator[*schema.Task] {
	return rapid.Custom(func(t *rapid.T) *schema.Task {
		return &schema.Task{
			ID:       id,
			Name:     nameGen.Draw(t, "name"),
			Notes:    rapid.Ptr(rapid.StringMatching(`[a-z ]{0,30}`), true).Draw(t, "notes"),
			Complete: rapid.Bool().Draw(t, "complete"),
			Priority: rapid.SampledFrom(schema.AllPriorities).Draw(t, "priority"),
		}
	})
}

func tasksGen(t *rapid.T, label string, n int) []*schema.Task {
	tasks := make([]*schema.Task, n)
	for i := range tasks {
		tasks[i] = fieldsGen(idFor(label, i)).Draw(t, fmt.Sprintf("%s%d", label, i))
	}
	return tasks
}

func toReps(t *rapid.T, tasks []*schema.Task) []*schema.Representation {
	reps := make([]*schema.Representation, len(tasks))
	for i, task := range tasks {
		r, err := task.Representation()
		if err != nil {
			t.Fatalf("Representation() failed: %v", err)
		}
		reps[i] = r
	}
	return reps
}

func idSet(tasks []*schema.Task) map[uuid.UUID]*schema.Task {
	m := make(map[uuid.UUID]*schema.Task, len(tasks))
	for _, task := range tasks {
		m[task.ID] = task
	}
	return m
}

func TestProperty_DisjointInsertsEverything(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		local := tasksGen(t, "local", rapid.IntRange(0, 8).Draw(t, "nLocal"))
		remote := tasksGen(t, "remote", rapid.IntRange(0, 8).Draw(t, "nRemote"))

		result := Reconcile(local, toReps(t, remote))

		if len(result.ToUpdate) != 0 {
			t.Fatalf("expected no updates, got %d", len(result.ToUpdate))
		}
		if len(result.ToInsert) != len(remote) {
			t.Fatalf("expected %d inserts, got %d", len(remote), len(result.ToInsert))
		}
		want := idSet(remote)
		for _, task := range result.ToInsert {
			src, ok := want[task.ID]
			if !ok {
				t.Fatalf("unexpected insert %s", task.ID)
			}
			if !task.SameFields(src) {
				t.Fatalf("insert %s fields = %+v, want %+v", task.ID, task, src)
			}
		}
	})
}

func TestProperty_AllMatchedOnlyUpdates(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		local := tasksGen(t, "shared", rapid.IntRange(0, 8).Draw(t, "nLocal"))

		// Remote re-uses a prefix of the local ids with fresh field values.
		n := rapid.IntRange(0, len(local)).Draw(t, "nRemote")
		remote := tasksGen(t, "shared", n)

		result := Reconcile(local, toReps(t, remote))

		if len(result.ToInsert) != 0 {
			t.Fatalf("expected no inserts, got %d", len(result.ToInsert))
		}
		if len(result.ToUpdate) != len(remote) {
			t.Fatalf("expected %d updates, got %d", len(remote), len(result.ToUpdate))
		}
		localIDs := idSet(local)
		remoteByID := idSet(remote)
		for _, task := range result.ToUpdate {
			if _, ok := localIDs[task.ID]; !ok {
				t.Fatalf("update %s has no local counterpart", task.ID)
			}
			if !task.SameFields(remoteByID[task.ID]) {
				t.Fatalf("update %s fields = %+v, want remote %+v", task.ID, task, remoteByID[task.ID])
			}
		}
	})
}

func TestProperty_SecondSyncIsNoOp(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		local := tasksGen(t, "shared", rapid.IntRange(0, 6).Draw(t, "nLocal"))
		remote := append(
			tasksGen(t, "shared", rapid.IntRange(0, len(local)).Draw(t, "nMatched")),
			tasksGen(t, "new", rapid.IntRange(0, 6).Draw(t, "nNew"))...,
		)
		reps := toReps(t, remote)

		applied := Apply(local, Reconcile(local, reps))
		second := Reconcile(applied, reps)

		if len(second.ToInsert) != 0 {
			t.Fatalf("second sync inserted %d tasks", len(second.ToInsert))
		}
		current := idSet(applied)
		for _, task := range second.ToUpdate {
			if !task.SameFields(current[task.ID]) {
				t.Fatalf("second sync changes %s: %+v -> %+v", task.ID, current[task.ID], task)
			}
		}
		if diff := Plan(applied, second); !diff.Empty() {
			t.Fatalf("second sync produced changes: %+v", diff.Changes)
		}
	})
}

func TestProperty_LocalOnlyUntouched(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		localOnly := tasksGen(t, "mine", rapid.IntRange(1, 5).Draw(t, "nMine"))
		remote := tasksGen(t, "theirs", rapid.IntRange(0, 5).Draw(t, "nTheirs"))
		reps := toReps(t, remote)

		result := Reconcile(localOnly, reps)
		mine := idSet(localOnly)
		for _, task := range result.ToUpdate {
			if _, ok := mine[task.ID]; ok {
				t.Fatalf("local-only task %s appeared in ToUpdate", task.ID)
			}
		}

		applied := Apply(localOnly, result)
		again := Apply(applied, Reconcile(applied, reps))
		after := idSet(again)
		for id, task := range mine {
			got, ok := after[id]
			if !ok {
				t.Fatalf("local-only task %s was removed", id)
			}
			if !got.SameFields(task) {
				t.Fatalf("local-only task %s changed: %+v", id, got)
			}
		}
	})
}

func TestProperty_MalformedEntriesExcluded(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		remote := tasksGen(t, "remote", rapid.IntRange(0, 5).Draw(t, "n"))
		reps := toReps(t, remote)

		bad := rapid.StringMatching(`[g-z]{1,12}`).Draw(t, "badID")
		reps = append(reps, &schema.Representation{Identifier: bad, Name: "Broken", Priority: "normal"})

		result := Reconcile(nil, reps)
		if len(result.ToInsert) != len(remote) {
			t.Fatalf("expected %d inserts, got %d", len(remote), len(result.ToInsert))
		}
		if len(result.Skipped) != 1 || result.Skipped[0].Identifier != bad {
			t.Fatalf("expected %q to be skipped, got %+v", bad, result.Skipped)
		}
	})
}
