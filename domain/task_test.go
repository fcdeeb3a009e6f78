package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidateText(t *testing.T) {
	cases := []struct {
		text string
		err  error
	}{
		{"buy milk", nil},
		{"  padded  ", nil},
		{"", ErrEmptyText},
		{"   ", ErrEmptyText},
		{"\t\n", ErrEmptyText},
	}
	for _, tc := range cases {
		if err := ValidateText(tc.text); !errors.Is(err, tc.err) {
			t.Fatalf("ValidateText(%q) = %v, want %v", tc.text, err, tc.err)
		}
	}
}

func TestNextTopOrder(t *testing.T) {
	if got := NextTopOrder(nil); got != 0 {
		t.Fatalf("expected 0 for empty list, got %d", got)
	}
	tasks := []Task{{ID: "a", Order: 3}, {ID: "b", Order: -2}, {ID: "c", Order: 7}}
	if got := NextTopOrder(tasks); got != -3 {
		t.Fatalf("expected -3, got %d", got)
	}
}

func TestCreateScenarioPlacesNewTaskFirst(t *testing.T) {
	tasks := []Task{{ID: "A", Order: 0}, {ID: "B", Order: 1}}
	c := Task{ID: "C", Order: NextTopOrder(tasks)}
	if c.Order != -1 {
		t.Fatalf("expected order -1, got %d", c.Order)
	}
	tasks = append(tasks, c)
	SortTasks(tasks)
	got := []string{tasks[0].ID, tasks[1].ID, tasks[2].ID}
	if strings.Join(got, ",") != "C,A,B" {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestSortTasksBreaksTiesByID(t *testing.T) {
	tasks := []Task{{ID: "z", Order: 1}, {ID: "b", Order: 1}, {ID: "a", Order: 2}, {ID: "q", Order: 0}}
	SortTasks(tasks)
	var ids []string
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	if strings.Join(ids, "") != "qbza" {
		t.Fatalf("unexpected order %v", ids)
	}
}

func TestPatchApplyToggleIsInvolution(t *testing.T) {
	created := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	task := Task{ID: "t1", Text: "x", CreatedAt: created}
	orig := task

	TaskPatch{Completed: Bool(true)}.Apply(&task, created.Add(time.Minute))
	if !task.Completed || task.CompletedAt == nil {
		t.Fatalf("expected completed task with timestamp, got %+v", task)
	}
	if !task.CompletedAt.Equal(created.Add(time.Minute)) {
		t.Fatalf("unexpected completedAt %v", task.CompletedAt)
	}

	TaskPatch{Completed: Bool(false)}.Apply(&task, created.Add(2*time.Minute))
	if task.Completed != orig.Completed || task.CompletedAt != nil {
		t.Fatalf("expected original state after second toggle, got %+v", task)
	}
}

func TestPatchApplyKeepsTimestampWhenCompletedUnchanged(t *testing.T) {
	done := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	task := Task{ID: "t1", Completed: true, CompletedAt: &done}
	TaskPatch{Completed: Bool(true), Order: Int64(4)}.Apply(&task, done.Add(time.Hour))
	if !task.CompletedAt.Equal(done) {
		t.Fatalf("completedAt should not move, got %v", task.CompletedAt)
	}
	if task.Order != 4 {
		t.Fatalf("expected order 4, got %d", task.Order)
	}
}

func TestPatchValidate(t *testing.T) {
	if err := (TaskPatch{Text: String(" ")}).Validate(); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
	if err := (TaskPatch{Completed: Bool(true)}).Validate(); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if !(TaskPatch{}).Empty() {
		t.Fatal("zero patch should be empty")
	}
}

func TestTaskMarshalOmitsAbsentCompletion(t *testing.T) {
	task := Task{ID: "t1", Text: "x", Order: 0}
	payload, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("marshal task: %v", err)
	}
	if strings.Contains(string(payload), "completedAt") {
		t.Fatalf("completedAt should be omitted, got %s", payload)
	}
	if !strings.Contains(string(payload), "\"order\":0") {
		t.Fatalf("expected order field to be present, got %s", payload)
	}
}

func TestPatchEventType(t *testing.T) {
	cases := []struct {
		patch TaskPatch
		want  string
	}{
		{TaskPatch{Completed: Bool(true)}, TaskCompleted},
		{TaskPatch{Completed: Bool(false)}, TaskReopened},
		{TaskPatch{Order: Int64(1)}, TaskUpdated},
		{TaskPatch{Completed: Bool(true), Text: String("x")}, TaskUpdated},
	}
	for _, tc := range cases {
		if got := PatchEventType(tc.patch); got != tc.want {
			t.Fatalf("PatchEventType(%+v) = %s, want %s", tc.patch, got, tc.want)
		}
	}
}
