package storage

import (
	"context"
	"fmt"

	"github.com/yush1006/todo/domain"
)

// MaxBatchSize is the largest batch applied atomically.
const MaxBatchSize = domain.MaxBatchSize

var (
	ErrTaskNotFound  = domain.ErrTaskNotFound
	ErrEmptyBatch    = domain.ErrEmptyBatch
	ErrBatchTooLarge = domain.ErrBatchTooLarge
	ErrInvalidBatch  = domain.ErrInvalidBatch
	ErrEmptyPatch    = domain.ErrEmptyPatch
	ErrMissingOwner  = domain.ErrMissingOwner
)

// Backend persists task documents partitioned by owner.
type Backend interface {
	// FetchTasks returns the owner's tasks sorted by order, then id.
	FetchTasks(ctx context.Context, ownerID string) ([]domain.Task, error)
	CreateTask(ctx context.Context, task domain.NewTask) (domain.Task, error)
	UpdateTask(ctx context.Context, ownerID, id string, patch domain.TaskPatch) (domain.Task, error)
	// DeleteTask removes the task; deleting a missing task is not an error.
	DeleteTask(ctx context.Context, ownerID, id string) error
	// BatchUpdate applies all updates or none of them.
	BatchUpdate(ctx context.Context, ownerID string, updates []domain.TaskUpdate) error
}

func validateNewTask(task domain.NewTask) error {
	if task.OwnerID == "" {
		return ErrMissingOwner
	}
	return domain.ValidateText(task.Text)
}

func validatePatch(patch domain.TaskPatch) error {
	if patch.Empty() {
		return ErrEmptyPatch
	}
	return patch.Validate()
}

func validateBatch(updates []domain.TaskUpdate) error {
	if len(updates) == 0 {
		return ErrEmptyBatch
	}
	if len(updates) > MaxBatchSize {
		return ErrBatchTooLarge
	}
	seen := make(map[string]struct{}, len(updates))
	for _, u := range updates {
		if u.ID == "" {
			return fmt.Errorf("%w: missing task id", ErrInvalidBatch)
		}
		if _, dup := seen[u.ID]; dup {
			return fmt.Errorf("%w: task %s listed twice", ErrInvalidBatch, u.ID)
		}
		seen[u.ID] = struct{}{}
		if err := validatePatch(u.Patch); err != nil {
			return fmt.Errorf("task %s: %w", u.ID, err)
		}
	}
	return nil
}

func orderOnly(p domain.TaskPatch) bool {
	return p.Order != nil && p.Text == nil && p.Completed == nil
}
