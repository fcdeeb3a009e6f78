package domain

import (
	"fmt"
	"strings"
	"time"
)

const day = 24 * time.Hour

// DurationParts is the elapsed time between creation and completion split
// for display. DayScale selects the "days minutes" form over
// "minutes seconds"; it is set solely by the 24-hour threshold.
type DurationParts struct {
	Days     int64
	Minutes  int64
	Seconds  int64
	DayScale bool
}

// SplitDuration breaks end-start into display parts using whole seconds.
// Negative spans clamp to zero.
func SplitDuration(start, end time.Time) DurationParts {
	secs := int64(end.Sub(start) / time.Second)
	if secs < 0 {
		secs = 0
	}
	mins := secs / 60
	if days := secs / int64(day/time.Second); days >= 1 {
		return DurationParts{Days: days, Minutes: mins % 60, DayScale: true}
	}
	return DurationParts{Minutes: mins, Seconds: secs % 60}
}

// FormatDuration renders the time taken to complete a task. It returns an
// empty string if either instant is absent.
func FormatDuration(start, end *time.Time) string {
	if start == nil || end == nil || start.IsZero() || end.IsZero() {
		return ""
	}
	p := SplitDuration(*start, *end)
	if p.DayScale {
		return fmt.Sprintf("%d일 %d분", p.Days, p.Minutes)
	}
	return fmt.Sprintf("%d분 %d초", p.Minutes, p.Seconds)
}

// FormatTimestamp renders t as "yy.MM.dd HH:mm:ss" in loc (local time when
// nil). Completion timestamps use dots instead of colons.
func FormatTimestamp(t *time.Time, loc *time.Location, end bool) string {
	if t == nil || t.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	s := t.In(loc).Format("06.01.02 15:04:05")
	if end {
		s = strings.ReplaceAll(s, ":", ".")
	}
	return s
}

// TaskDuration formats the completion time of t, or "" while it is open.
func TaskDuration(t Task) string {
	if !t.Completed {
		return ""
	}
	return FormatDuration(&t.CreatedAt, t.CompletedAt)
}
