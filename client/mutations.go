package client

import (
	"context"
	"fmt"

	"github.com/yush1006/todo/domain"
)

// Create adds a task at the top of the list. The list itself changes only
// when the next snapshot arrives.
func (e *Engine) Create(ctx context.Context, text string) error {
	if err := domain.ValidateText(text); err != nil {
		e.raise(NoticeValidation, MsgEmptyText, err)
		return err
	}
	owner, tasks, ok := e.current()
	if !ok {
		e.raise(NoticeAuth, MsgNotSignedIn, ErrNotSignedIn)
		return ErrNotSignedIn
	}
	task := domain.NewTask{OwnerID: owner, Text: text, Order: domain.NextTopOrder(tasks)}
	if _, err := e.store.Create(ctx, task); err != nil {
		e.raise(NoticeMutation, MsgCreateFailed, err)
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// SubmitDraft creates a task from the draft input and clears it. The draft
// comes back if the store rejects the write and nothing was typed since.
func (e *Engine) SubmitDraft(ctx context.Context) error {
	e.mu.Lock()
	text := e.draft
	e.mu.Unlock()

	if err := domain.ValidateText(text); err != nil {
		e.raise(NoticeValidation, MsgEmptyText, err)
		return err
	}
	if _, _, ok := e.current(); !ok {
		e.raise(NoticeAuth, MsgNotSignedIn, ErrNotSignedIn)
		return ErrNotSignedIn
	}

	e.mu.Lock()
	if e.draft == text {
		e.draft = ""
	}
	e.mu.Unlock()
	e.signal()

	err := e.Create(ctx, text)
	if err != nil {
		e.mu.Lock()
		if e.draft == "" {
			e.draft = text
		}
		e.mu.Unlock()
		e.signal()
	}
	return err
}

// Toggle flips the completion flag of a task in the current list.
func (e *Engine) Toggle(ctx context.Context, id string) error {
	owner, tasks, ok := e.current()
	if !ok {
		e.raise(NoticeAuth, MsgNotSignedIn, ErrNotSignedIn)
		return ErrNotSignedIn
	}
	i := domain.IndexOf(tasks, id)
	if i < 0 {
		return fmt.Errorf("toggle %s: %w", id, domain.ErrTaskNotFound)
	}
	patch := domain.TaskPatch{Completed: domain.Bool(!tasks[i].Completed)}
	if err := e.store.Update(ctx, owner, id, patch); err != nil {
		e.raise(NoticeMutation, MsgToggleFailed, err)
		return fmt.Errorf("toggle %s: %w", id, err)
	}
	return nil
}

// Delete removes a task by id. There is no confirmation and no undo.
func (e *Engine) Delete(ctx context.Context, id string) error {
	owner, _, ok := e.current()
	if !ok {
		e.raise(NoticeAuth, MsgNotSignedIn, ErrNotSignedIn)
		return ErrNotSignedIn
	}
	if err := e.store.Delete(ctx, owner, id); err != nil {
		e.raise(NoticeMutation, MsgDeleteFailed, err)
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}
