package domain

// Move returns a copy of tasks with the element at from moved to index to.
// Elements in between shift by one slot (list-move, not swap).
func Move(tasks []Task, from, to int) []Task {
	out := make([]Task, len(tasks))
	copy(out, tasks)
	if from == to || from < 0 || to < 0 || from >= len(out) || to >= len(out) {
		return out
	}
	moved := out[from]
	if from < to {
		copy(out[from:to], out[from+1:to+1])
	} else {
		copy(out[to+1:from+1], out[to:from])
	}
	out[to] = moved
	return out
}

// Reordered returns tasks in display order with sourceID moved onto the
// position of targetID. ok is false when there is nothing to move: the
// target is empty, equals the source, or either id is not in the list.
func Reordered(tasks []Task, sourceID, targetID string) (out []Task, ok bool) {
	sorted := make([]Task, len(tasks))
	copy(sorted, tasks)
	SortTasks(sorted)
	if targetID == "" || sourceID == targetID {
		return sorted, false
	}
	from := IndexOf(sorted, sourceID)
	to := IndexOf(sorted, targetID)
	if from < 0 || to < 0 {
		return sorted, false
	}
	out = Move(sorted, from, to)
	for i := range out {
		out[i].Order = int64(i)
	}
	return out, true
}

// ReorderUpdates computes the batch that persists a drag of sourceID onto
// targetID: every task of the resulting sequence gets its zero-based index
// as order.
func ReorderUpdates(tasks []Task, sourceID, targetID string) ([]TaskUpdate, bool) {
	out, ok := Reordered(tasks, sourceID, targetID)
	if !ok {
		return nil, false
	}
	updates := make([]TaskUpdate, len(out))
	for i, t := range out {
		updates[i] = TaskUpdate{ID: t.ID, Patch: TaskPatch{Order: Int64(t.Order)}}
	}
	return updates, true
}
