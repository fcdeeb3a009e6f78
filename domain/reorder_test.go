package domain

import (
	"fmt"
	"strings"
	"testing"
)

func listOf(ids ...string) []Task {
	tasks := make([]Task, len(ids))
	for i, id := range ids {
		tasks[i] = Task{ID: id, Order: int64(i * 10)}
	}
	return tasks
}

func idsOf(tasks []Task) string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return strings.Join(ids, "")
}

func TestMoveUsesListMoveSemantics(t *testing.T) {
	cases := []struct {
		from, to int
		want     string
	}{
		{0, 3, "BCDAE"},
		{3, 0, "DABCE"},
		{4, 1, "AEBCD"},
		{1, 2, "ACBDE"},
		{2, 2, "ABCDE"},
	}
	for _, tc := range cases {
		got := idsOf(Move(listOf("A", "B", "C", "D", "E"), tc.from, tc.to))
		if got != tc.want {
			t.Fatalf("Move(%d,%d) = %s, want %s", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestMoveDoesNotMutateInput(t *testing.T) {
	in := listOf("A", "B", "C")
	_ = Move(in, 0, 2)
	if idsOf(in) != "ABC" {
		t.Fatalf("input mutated: %s", idsOf(in))
	}
}

func TestReorderUpdatesAssignsIndexes(t *testing.T) {
	updates, ok := ReorderUpdates(listOf("A", "B", "C", "D", "E"), "A", "D")
	if !ok {
		t.Fatal("expected reorder")
	}
	want := []string{"B", "C", "D", "A", "E"}
	if len(updates) != len(want) {
		t.Fatalf("expected %d updates, got %d", len(want), len(updates))
	}
	for i, u := range updates {
		if u.ID != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], u.ID)
		}
		if u.Patch.Order == nil || *u.Patch.Order != int64(i) {
			t.Fatalf("position %d: unexpected order %v", i, u.Patch.Order)
		}
		if u.Patch.Completed != nil || u.Patch.Text != nil {
			t.Fatalf("reorder must only touch order, got %+v", u.Patch)
		}
	}
}

func TestReorderUpdatesNoop(t *testing.T) {
	tasks := listOf("A", "B", "C")
	for _, target := range []string{"", "B", "missing"} {
		if updates, ok := ReorderUpdates(tasks, "B", target); ok || updates != nil {
			t.Fatalf("target %q: expected no updates, got %+v", target, updates)
		}
	}
	if _, ok := ReorderUpdates(tasks, "missing", "A"); ok {
		t.Fatal("unknown source must not reorder")
	}
}

func TestReorderUsesDisplayOrderNotSliceOrder(t *testing.T) {
	tasks := []Task{{ID: "C", Order: 5}, {ID: "A", Order: -1}, {ID: "B", Order: 2}}
	out, ok := Reordered(tasks, "C", "A")
	if !ok {
		t.Fatal("expected reorder")
	}
	if idsOf(out) != "CAB" {
		t.Fatalf("unexpected order %s", idsOf(out))
	}
}

// Every valid pair yields a bijection onto 0..N-1 that keeps the relative
// order of the tasks that did not move.
func TestReorderIsPermutation(t *testing.T) {
	for n := 2; n <= 7; n++ {
		ids := make([]string, n)
		for i := range ids {
			ids[i] = fmt.Sprintf("t%d", i)
		}
		tasks := listOf(ids...)
		for src := 0; src < n; src++ {
			for dst := 0; dst < n; dst++ {
				if src == dst {
					continue
				}
				updates, ok := ReorderUpdates(tasks, ids[src], ids[dst])
				if !ok {
					t.Fatalf("n=%d %d->%d: expected reorder", n, src, dst)
				}
				seen := make(map[int64]bool, n)
				pos := make(map[string]int64, n)
				for _, u := range updates {
					o := *u.Patch.Order
					if o < 0 || o >= int64(n) || seen[o] {
						t.Fatalf("n=%d %d->%d: order %d not a bijection", n, src, dst, o)
					}
					seen[o] = true
					pos[u.ID] = o
				}
				if len(pos) != n {
					t.Fatalf("n=%d %d->%d: expected %d tasks, got %d", n, src, dst, n, len(pos))
				}
				if pos[ids[src]] != int64(dst) {
					t.Fatalf("n=%d %d->%d: moved task landed at %d", n, src, dst, pos[ids[src]])
				}
				var last int64 = -1
				for i, id := range ids {
					if i == src {
						continue
					}
					if pos[id] <= last {
						t.Fatalf("n=%d %d->%d: relative order broken at %s", n, src, dst, id)
					}
					last = pos[id]
				}
			}
		}
	}
}
