package domain

// Stats summarises progress over the visible list.
type Stats struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	Percentage int `json:"percentage"`
}

// ComputeStats derives totals from tasks. Percentage is rounded half up and
// is 0 for an empty list.
func ComputeStats(tasks []Task) Stats {
	s := Stats{Total: len(tasks)}
	for _, t := range tasks {
		if t.Completed {
			s.Completed++
		}
	}
	if s.Total > 0 {
		// floor(c*100/t + 1/2) without floating point.
		s.Percentage = (200*s.Completed + s.Total) / (2 * s.Total)
	}
	return s
}
