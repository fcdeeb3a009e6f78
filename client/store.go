// Package client keeps a signed-in user's view of their task list in sync
// with the task store and exposes the mutations the UI performs on it.
package client

import (
	"context"

	"github.com/yush1006/todo/domain"
)

// TaskStore is the remote document store as seen by the client.
type TaskStore interface {
	// Subscribe starts a live query over the owner's tasks. onSnapshot
	// receives the whole collection after every change, in delivery order.
	// onError reports a failed query; the subscription may stop after it.
	Subscribe(ctx context.Context, ownerID string, onSnapshot func([]domain.Task), onError func(error)) (func(), error)
	Create(ctx context.Context, task domain.NewTask) (string, error)
	Update(ctx context.Context, ownerID, id string, patch domain.TaskPatch) error
	Delete(ctx context.Context, ownerID, id string) error
	// BatchUpdate applies every update or none.
	BatchUpdate(ctx context.Context, ownerID string, updates []domain.TaskUpdate) error
}

// Identity is the signed-in user. UID partitions the task collection.
type Identity struct {
	UID         string
	DisplayName string
	Email       string
	Token       string
}

// SessionProvider reports identity changes and drives sign-in.
type SessionProvider interface {
	// Subscribe delivers the current identity immediately and every change
	// after it; nil means signed out.
	Subscribe(onChange func(*Identity)) func()
	SignIn(ctx context.Context) error
	SignOut()
}
