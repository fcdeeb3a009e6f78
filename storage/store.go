package storage

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/yush1006/todo/domain"
)

// Store is the task store shared by every HTTP handler: a Backend for
// persistence, a Feed for change notification and an EventPublisher for
// downstream consumers.
type Store struct {
	backend Backend
	feed    Feed
	events  EventPublisher
	now     func() time.Time
}

// NewStore composes a Store. A nil feed falls back to an in-process feed and
// a nil publisher drops events.
func NewStore(backend Backend, feed Feed, events EventPublisher) *Store {
	if feed == nil {
		feed = NewLocalFeed()
	}
	if events == nil {
		events = NopPublisher{}
	}
	return &Store{backend: backend, feed: feed, events: events, now: time.Now}
}

// Snapshot returns the owner's tasks in display order.
func (s *Store) Snapshot(ctx context.Context, ownerID string) ([]domain.Task, error) {
	return s.backend.FetchTasks(ctx, ownerID)
}

func (s *Store) Create(ctx context.Context, task domain.NewTask) (domain.Task, error) {
	t, err := s.backend.CreateTask(ctx, task)
	if err != nil {
		return domain.Task{}, err
	}
	s.changed(ctx, task.OwnerID, newEvent(task.OwnerID, t.ID, domain.TaskCreated,
		domain.TaskCreatedEventData{Text: t.Text, Order: t.Order}, s.now()))
	return t, nil
}

func (s *Store) Update(ctx context.Context, ownerID, id string, patch domain.TaskPatch) (domain.Task, error) {
	t, err := s.backend.UpdateTask(ctx, ownerID, id, patch)
	if err != nil {
		return domain.Task{}, err
	}
	s.changed(ctx, ownerID, newEvent(ownerID, id, domain.PatchEventType(patch), patch, s.now()))
	return t, nil
}

func (s *Store) Delete(ctx context.Context, ownerID, id string) error {
	if err := s.backend.DeleteTask(ctx, ownerID, id); err != nil {
		return err
	}
	s.changed(ctx, ownerID, newEvent(ownerID, id, domain.TaskDeleted, nil, s.now()))
	return nil
}

func (s *Store) BatchUpdate(ctx context.Context, ownerID string, updates []domain.TaskUpdate) error {
	if err := s.backend.BatchUpdate(ctx, ownerID, updates); err != nil {
		return err
	}
	orders := make(map[string]int64, len(updates))
	for _, u := range updates {
		if u.Patch.Order != nil {
			orders[u.ID] = *u.Patch.Order
		}
	}
	s.changed(ctx, ownerID, newEvent(ownerID, ownerID, domain.TasksReordered,
		domain.TasksReorderedEventData{Orders: orders}, s.now()))
	return nil
}

// Watch pushes the owner's current snapshot and then a fresh snapshot after
// every change, until ctx is cancelled. A failed read is reported through
// onError and watching continues. Callbacks run on the calling goroutine.
func (s *Store) Watch(ctx context.Context, ownerID string, onSnapshot func([]domain.Task), onError func(error)) {
	changes, release := s.feed.Listen(ownerID)
	defer release()

	push := func() {
		tasks, err := s.backend.FetchTasks(ctx, ownerID)
		if err != nil {
			if ctx.Err() == nil {
				onError(err)
			}
			return
		}
		onSnapshot(tasks)
	}
	push()
	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
			push()
		}
	}
}

// changed runs after every successful write. Feed and event failures are
// logged; the write itself already succeeded.
func (s *Store) changed(ctx context.Context, ownerID string, ev domain.Event) {
	fields := log.Fields{"user": ownerID, "event": ev.Type, "task": ev.EntityID}
	if err := s.feed.Publish(ctx, ownerID); err != nil {
		log.WithError(err).WithFields(fields).Error("failed to publish change notification")
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		log.WithError(err).WithFields(fields).Error("failed to publish domain event")
	}
	log.WithFields(fields).Debug("tasks changed")
}
