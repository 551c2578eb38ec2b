// Package schema defines the task record and the JSON documents exchanged with
// the remote store.
//
// # Overview
//
// A Task is identified by a random UUID assigned when it is created. The same
// identifier keys the task in the local SQLite store and the remote document
// store, where each task lives at /{IDENTIFIER}.json.
//
// # Wire Format
//
// The remote store returns every task at once as a JSON object whose keys are
// opaque (usually the identifier) and whose values are representations:
//
//	{
//	  "0D6C3C5A-6D2B-4C4E-9E1C-5E6B5C1F2A3B": {
//	    "complete": false,
//	    "identifier": "0D6C3C5A-6D2B-4C4E-9E1C-5E6B5C1F2A3B",
//	    "name": "Buy milk",
//	    "notes": null,
//	    "priority": "normal"
//	  }
//	}
//
// # Usage Examples
//
// Creating a task and publishing it:
//
//	task := schema.NewTask("Buy milk")
//	task.Priority = schema.PriorityHigh
//	rep, err := task.Representation()
//
// Reading a snapshot:
//
//	snapshot, err := schema.DecodeSnapshot(body)
//	for _, rep := range schema.SnapshotValues(snapshot) {
//	    task, err := schema.FromRepresentation(rep)
//	    if err != nil {
//	        continue // malformed entries are skipped
//	    }
//	}
//
// # Ordering
//
// The list view orders tasks by priority value and then by name, grouped into
// one section per priority. Sort and Less implement that ordering.
package schema
