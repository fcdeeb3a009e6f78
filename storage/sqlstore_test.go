package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yush1006/todo/domain"
)

func newTestSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return NewSQLStore(db)
}

func TestSQLStoreCreateAndFetch(t *testing.T) {
	s := newTestSQLStore(t)
	clock := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }
	ctx := context.Background()

	a, err := s.CreateTask(ctx, domain.NewTask{OwnerID: "u1", Text: "A", Order: 0})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.ID == "" || !a.CreatedAt.Equal(clock) || a.Completed || a.CompletedAt != nil {
		t.Fatalf("unexpected created task %+v", a)
	}
	if _, err := s.CreateTask(ctx, domain.NewTask{OwnerID: "u1", Text: "C", Order: -1}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreateTask(ctx, domain.NewTask{OwnerID: "u2", Text: "other", Order: -5}); err != nil {
		t.Fatalf("create: %v", err)
	}

	tasks, err := s.FetchTasks(ctx, "u1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(tasks) != 2 || tasks[0].Text != "C" || tasks[1].Text != "A" {
		t.Fatalf("unexpected snapshot %+v", tasks)
	}
	for _, task := range tasks {
		if task.OwnerID != "u1" {
			t.Fatalf("foreign task in snapshot: %+v", task)
		}
	}
}

func TestSQLStoreCreateValidation(t *testing.T) {
	s := newTestSQLStore(t)
	ctx := context.Background()
	if _, err := s.CreateTask(ctx, domain.NewTask{OwnerID: "u1", Text: "   "}); !errors.Is(err, domain.ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
	if _, err := s.CreateTask(ctx, domain.NewTask{Text: "x"}); !errors.Is(err, ErrMissingOwner) {
		t.Fatalf("expected ErrMissingOwner, got %v", err)
	}
}

func TestSQLStoreToggleStampsAndClearsCompletedAt(t *testing.T) {
	s := newTestSQLStore(t)
	ctx := context.Background()
	created := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return created }
	task, err := s.CreateTask(ctx, domain.NewTask{OwnerID: "u1", Text: "A"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	done := created.Add(90 * time.Second)
	s.now = func() time.Time { return done }
	got, err := s.UpdateTask(ctx, "u1", task.ID, domain.TaskPatch{Completed: domain.Bool(true)})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !got.Completed || got.CompletedAt == nil || !got.CompletedAt.Equal(done) {
		t.Fatalf("unexpected completed task %+v", got)
	}
	if d := domain.TaskDuration(got); d != "1분 30초" {
		t.Fatalf("unexpected duration %q", d)
	}

	got, err = s.UpdateTask(ctx, "u1", task.ID, domain.TaskPatch{Completed: domain.Bool(false)})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got.Completed || got.CompletedAt != nil {
		t.Fatalf("reopen should clear completion: %+v", got)
	}
	tasks, _ := s.FetchTasks(ctx, "u1")
	if len(tasks) != 1 || tasks[0].Completed || tasks[0].CompletedAt != nil {
		t.Fatalf("stored task not reopened: %+v", tasks)
	}
	if tasks[0].Text != task.Text || tasks[0].Order != task.Order || !tasks[0].CreatedAt.Equal(task.CreatedAt) {
		t.Fatalf("toggle changed other fields: %+v", tasks[0])
	}
}

func TestSQLStoreUpdateMissing(t *testing.T) {
	s := newTestSQLStore(t)
	_, err := s.UpdateTask(context.Background(), "u1", "missing", domain.TaskPatch{Completed: domain.Bool(true)})
	if !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	if _, err := s.UpdateTask(context.Background(), "u1", "x", domain.TaskPatch{}); !errors.Is(err, ErrEmptyPatch) {
		t.Fatalf("expected ErrEmptyPatch, got %v", err)
	}
}

func TestSQLStoreUpdateIsScopedToOwner(t *testing.T) {
	s := newTestSQLStore(t)
	ctx := context.Background()
	task, err := s.CreateTask(ctx, domain.NewTask{OwnerID: "u1", Text: "A"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.UpdateTask(ctx, "u2", task.ID, domain.TaskPatch{Completed: domain.Bool(true)}); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound for foreign owner, got %v", err)
	}
	if err := s.DeleteTask(ctx, "u2", task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if tasks, _ := s.FetchTasks(ctx, "u1"); len(tasks) != 1 {
		t.Fatalf("foreign delete removed task: %+v", tasks)
	}
}

func TestSQLStoreDeleteIsIdempotent(t *testing.T) {
	s := newTestSQLStore(t)
	ctx := context.Background()
	task, err := s.CreateTask(ctx, domain.NewTask{OwnerID: "u1", Text: "A"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.DeleteTask(ctx, "u1", task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteTask(ctx, "u1", task.ID); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	tasks, err := s.FetchTasks(ctx, "u1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", tasks)
	}
}

func TestSQLStoreBatchUpdateIsAtomic(t *testing.T) {
	s := newTestSQLStore(t)
	ctx := context.Background()
	var ids []string
	for i, text := range []string{"A", "B", "C"} {
		task, err := s.CreateTask(ctx, domain.NewTask{OwnerID: "u1", Text: text, Order: int64(i)})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, task.ID)
	}

	bad := []domain.TaskUpdate{
		{ID: ids[0], Patch: domain.TaskPatch{Order: domain.Int64(2)}},
		{ID: "missing", Patch: domain.TaskPatch{Order: domain.Int64(0)}},
	}
	if err := s.BatchUpdate(ctx, "u1", bad); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	tasks, _ := s.FetchTasks(ctx, "u1")
	if tasks[0].ID != ids[0] || tasks[0].Order != 0 {
		t.Fatalf("failed batch partially applied: %+v", tasks)
	}

	tasks, _ = s.FetchTasks(ctx, "u1")
	updates, ok := domain.ReorderUpdates(tasks, ids[2], ids[0])
	if !ok {
		t.Fatal("expected reorder updates")
	}
	if err := s.BatchUpdate(ctx, "u1", updates); err != nil {
		t.Fatalf("batch: %v", err)
	}
	tasks, _ = s.FetchTasks(ctx, "u1")
	got := []string{tasks[0].Text, tasks[1].Text, tasks[2].Text}
	if got[0] != "C" || got[1] != "A" || got[2] != "B" {
		t.Fatalf("unexpected order after batch: %v", got)
	}
	for i, task := range tasks {
		if task.Order != int64(i) {
			t.Fatalf("expected order %d, got %+v", i, task)
		}
	}
}

func TestSQLStoreBatchValidation(t *testing.T) {
	s := newTestSQLStore(t)
	ctx := context.Background()
	if err := s.BatchUpdate(ctx, "u1", nil); !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("expected ErrEmptyBatch, got %v", err)
	}
	big := make([]domain.TaskUpdate, MaxBatchSize+1)
	for i := range big {
		big[i] = domain.TaskUpdate{ID: string(rune('a' + i%26)), Patch: domain.TaskPatch{Order: domain.Int64(int64(i))}}
	}
	if err := s.BatchUpdate(ctx, "u1", big); !errors.Is(err, ErrBatchTooLarge) {
		t.Fatalf("expected ErrBatchTooLarge, got %v", err)
	}
	dup := []domain.TaskUpdate{
		{ID: "a", Patch: domain.TaskPatch{Order: domain.Int64(0)}},
		{ID: "a", Patch: domain.TaskPatch{Order: domain.Int64(1)}},
	}
	if err := s.BatchUpdate(ctx, "u1", dup); !errors.Is(err, ErrInvalidBatch) {
		t.Fatalf("expected ErrInvalidBatch, got %v", err)
	}
}
