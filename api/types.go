package api

import (
	"context"

	"github.com/yush1006/todo/domain"
)

// TaskStore abstracts the task store for handlers.
type TaskStore interface {
	Snapshot(ctx context.Context, ownerID string) ([]domain.Task, error)
	Create(ctx context.Context, task domain.NewTask) (domain.Task, error)
	Update(ctx context.Context, ownerID, id string, patch domain.TaskPatch) (domain.Task, error)
	Delete(ctx context.Context, ownerID, id string) error
	BatchUpdate(ctx context.Context, ownerID string, updates []domain.TaskUpdate) error
	Watch(ctx context.Context, ownerID string, onSnapshot func([]domain.Task), onError func(error))
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

type tasksResponse struct {
	Tasks []domain.Task `json:"tasks"`
}

type createTaskRequest struct {
	OwnerID string `json:"ownerId,omitempty"`
	Text    string `json:"text"`
	Order   int64  `json:"order"`
}

type createTaskResponse struct {
	ID string `json:"id"`
}
