package client

import (
	"context"
	"fmt"

	"github.com/yush1006/todo/domain"
)

// BeginDrag marks id as the task being dragged. Only the id is kept; the
// task itself is resolved from the live list.
func (e *Engine) BeginDrag(id string) {
	e.mu.Lock()
	if e.identity == nil || domain.IndexOf(e.tasks, id) < 0 {
		e.mu.Unlock()
		return
	}
	e.dragged = id
	e.mu.Unlock()
	e.signal()
}

// DraggedTask returns the dragged task as it is in the current list, or nil
// when nothing is dragged or the task has since disappeared.
func (e *Engine) DraggedTask() *domain.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dragged == "" {
		return nil
	}
	i := domain.IndexOf(e.tasks, e.dragged)
	if i < 0 {
		return nil
	}
	t := e.tasks[i]
	return &t
}

func (e *Engine) CancelDrag() {
	e.mu.Lock()
	e.dragged = ""
	e.mu.Unlock()
	e.signal()
}

// Preview returns the order the list would have if the dragged task were
// dropped on targetID. State is not changed.
func (e *Engine) Preview(targetID string) []domain.Task {
	e.mu.Lock()
	tasks := make([]domain.Task, len(e.tasks))
	copy(tasks, e.tasks)
	dragged := e.dragged
	e.mu.Unlock()

	out, _ := domain.Reordered(tasks, dragged, targetID)
	return out
}

// Drop ends the drag over targetID and persists the new order. An empty
// target cancels the drag.
func (e *Engine) Drop(ctx context.Context, targetID string) error {
	e.mu.Lock()
	source := e.dragged
	e.dragged = ""
	e.mu.Unlock()
	e.signal()

	if source == "" {
		return nil
	}
	return e.Move(ctx, source, targetID)
}

// Move places sourceID at the position of targetID and rewrites the order of
// the whole list in one atomic batch. Moving onto itself or onto a task that
// is not in the list does nothing.
func (e *Engine) Move(ctx context.Context, sourceID, targetID string) error {
	owner, tasks, ok := e.current()
	if !ok {
		e.raise(NoticeAuth, MsgNotSignedIn, ErrNotSignedIn)
		return ErrNotSignedIn
	}
	updates, ok := domain.ReorderUpdates(tasks, sourceID, targetID)
	if !ok {
		return nil
	}
	if err := e.store.BatchUpdate(ctx, owner, updates); err != nil {
		e.raise(NoticeMutation, MsgReorderFailed, err)
		return fmt.Errorf("reorder: %w", err)
	}
	e.logger.WithField("user", owner).Debugf("moved %s onto %s", sourceID, targetID)
	return nil
}
