package domain

import "encoding/json"

const (
	TaskCreated    = "task-created"
	TaskUpdated    = "task-updated"
	TaskCompleted  = "task-completed"
	TaskReopened   = "task-reopened"
	TaskDeleted    = "task-deleted"
	TasksReordered = "tasks-reordered"
)

const EntityTypeTask = "task"

// Event represents a change applied to a user's task list.
type Event struct {
	ID         string          `json:"id"`
	EntityID   string          `json:"entityId"`
	EntityType string          `json:"entityType"`
	Type       string          `json:"type"`
	Data       json.RawMessage `json:"data,omitempty"`
	Time       int64           `json:"time"`
	UserID     string          `json:"userId"`
}

type TaskCreatedEventData struct {
	Text  string `json:"text"`
	Order int64  `json:"order"`
}

type TasksReorderedEventData struct {
	Orders map[string]int64 `json:"orders"`
}

// PatchEventType picks the event type describing a single-task patch.
func PatchEventType(p TaskPatch) string {
	if p.Completed != nil && p.Text == nil && p.Order == nil {
		if *p.Completed {
			return TaskCompleted
		}
		return TaskReopened
	}
	return TaskUpdated
}
