package domain

import (
	"errors"
	"sort"
	"strings"
	"time"
)

// ErrEmptyText is returned when a task label is empty or whitespace only.
var ErrEmptyText = errors.New("task text is required")

// Task represents a single list item owned by one user.
type Task struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"ownerId"`
	Text        string     `json:"text"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Order       int64      `json:"order"`
}

// NewTask carries the fields supplied by the client when creating a task.
// ID and timestamps are assigned by the store.
type NewTask struct {
	OwnerID string `json:"ownerId,omitempty"`
	Text    string `json:"text"`
	Order   int64  `json:"order"`
}

// TaskPatch carries optional field changes for a single task.
// Completed drives CompletedAt: the store stamps it when the task becomes
// complete and clears it when the task is reopened.
type TaskPatch struct {
	Text      *string `json:"text,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
	Order     *int64  `json:"order,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Text == nil && p.Completed == nil && p.Order == nil
}

// TaskUpdate is one element of a batch update.
type TaskUpdate struct {
	ID    string    `json:"id"`
	Patch TaskPatch `json:"patch"`
}

// ValidateText rejects labels that are empty after trimming whitespace.
func ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	return nil
}

// Validate checks the patch before it reaches a store.
func (p TaskPatch) Validate() error {
	if p.Text != nil {
		return ValidateText(*p.Text)
	}
	return nil
}

// Apply merges the patch into t. now is used for CompletedAt when the task
// transitions to complete; a patch that leaves Completed unchanged keeps the
// existing timestamp.
func (p TaskPatch) Apply(t *Task, now time.Time) {
	if p.Text != nil {
		t.Text = *p.Text
	}
	if p.Order != nil {
		t.Order = *p.Order
	}
	if p.Completed != nil && *p.Completed != t.Completed {
		t.Completed = *p.Completed
		if t.Completed {
			ts := now.UTC()
			t.CompletedAt = &ts
		} else {
			t.CompletedAt = nil
		}
	}
}

// NextTopOrder returns the order for a task inserted at the top of the list:
// one less than the current minimum, or 0 for an empty list.
func NextTopOrder(tasks []Task) int64 {
	if len(tasks) == 0 {
		return 0
	}
	min := tasks[0].Order
	for _, t := range tasks[1:] {
		if t.Order < min {
			min = t.Order
		}
	}
	return min - 1
}

// SortTasks orders tasks ascending by Order, breaking ties by ID.
func SortTasks(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Order != tasks[j].Order {
			return tasks[i].Order < tasks[j].Order
		}
		return tasks[i].ID < tasks[j].ID
	})
}

// IndexOf returns the position of the task with the given id, or -1.
func IndexOf(tasks []Task, id string) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }
