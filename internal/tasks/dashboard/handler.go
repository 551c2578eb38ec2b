package dashboard

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/tasksync/tasks/internal/tasks/db"
	"github.com/tasksync/tasks/internal/tasks/reconcile"
	"github.com/tasksync/tasks/internal/tasks/schema"
)

// TaskUpdateData contains task change information
type TaskUpdateData struct {
	TaskID   string `json:"task_id"`
	Action   string `json:"action"` // inserted, updated, saved, removed
	Name     string `json:"name,omitempty"`
	Notes    string `json:"notes,omitempty"`
	Complete bool   `json:"complete"`
	Priority string `json:"priority,omitempty"`
	// Position in the ordered list after the change, or before it for
	// removals; -1 when unknown.
	Position    int `json:"position"`
	OldPosition int `json:"old_position"`
}

// SyncCompleteData contains refresh completion information
type SyncCompleteData struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Total     int `json:"total"`
}

// StatsData contains task statistics
type StatsData struct {
	Total      int            `json:"total"`
	Complete   int            `json:"complete"`
	ByPriority map[string]int `json:"by_priority"`
}

// StatsSource supplies task statistics. *db.DB satisfies it.
type StatsSource interface {
	GetStats(ctx context.Context) (*db.Stats, error)
}

// Handler turns sync notifications into dashboard messages.
// It implements sync.Observer.
type Handler struct {
	server *Server
	stats  StatsSource
	logger *log.Logger
}

// NewHandler creates a new event handler connected to a dashboard server.
// stats may be nil, in which case no stats messages are sent.
func NewHandler(server *Server, stats StatsSource, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}

	return &Handler{
		server: server,
		stats:  stats,
		logger: logger,
	}
}

// OnSync implements sync.Observer.
func (h *Handler) OnSync(diff *reconcile.Diff) {
	for _, change := range diff.Changes {
		action := "updated"
		if change.Kind == reconcile.ChangeInsert {
			action = "inserted"
		}
		h.broadcast(MessageTypeTaskUpdate, taskUpdate(change.Task, action, change.Position, change.OldPosition))
	}

	data := SyncCompleteData{
		Inserted:  diff.Count(reconcile.ChangeInsert),
		Updated:   diff.Count(reconcile.ChangeUpdate),
		Unchanged: diff.Unchanged,
		Total:     len(diff.View),
	}
	h.logger.Printf("Sync complete: %d inserted, %d updated, %d unchanged", data.Inserted, data.Updated, data.Unchanged)
	h.broadcast(MessageTypeSyncComplete, data)

	h.BroadcastStats(context.Background())
}

// OnTaskSaved implements sync.Observer.
func (h *Handler) OnTaskSaved(task *schema.Task) {
	h.logger.Printf("Task saved: %s (%s)", schema.FormatID(task.ID), task.Name)

	h.broadcast(MessageTypeTaskUpdate, taskUpdate(task, "saved", -1, -1))
	h.BroadcastStats(context.Background())
}

// OnTaskRemoved implements sync.Observer.
func (h *Handler) OnTaskRemoved(change reconcile.Change) {
	h.logger.Printf("Task removed: %s (%s)", schema.FormatID(change.Task.ID), change.Task.Name)

	h.broadcast(MessageTypeTaskUpdate, taskUpdate(change.Task, "removed", change.Position, change.OldPosition))
	h.BroadcastStats(context.Background())
}

// BroadcastStats reads current statistics and sends them to all clients.
func (h *Handler) BroadcastStats(ctx context.Context) {
	if h.stats == nil {
		return
	}

	stats, err := h.stats.GetStats(ctx)
	if err != nil {
		h.logger.Printf("Failed to read stats: %v", err)
		return
	}

	data := StatsData{
		Total:      stats.Total,
		Complete:   stats.Complete,
		ByPriority: make(map[string]int, len(schema.AllPriorities)),
	}
	for _, p := range schema.AllPriorities {
		data.ByPriority[p.String()] = stats.ByPriority[p]
	}
	h.broadcast(MessageTypeStats, data)
}

func (h *Handler) broadcast(typ MessageType, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal %s data: %v", typ, err)
		return
	}

	h.server.Broadcast(Message{
		Type:      typ,
		Timestamp: time.Now(),
		Data:      dataJSON,
	})
}

func taskUpdate(task *schema.Task, action string, position, oldPosition int) TaskUpdateData {
	return TaskUpdateData{
		TaskID:      schema.FormatID(task.ID),
		Action:      action,
		Name:        task.Name,
		Notes:       task.NotesText(),
		Complete:    task.Complete,
		Priority:    task.Priority.String(),
		Position:    position,
		OldPosition: oldPosition,
	}
}
