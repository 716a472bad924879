package query

import (
	"fmt"
	"strings"
	"time"
)

// Period is a named lookback period a user can choose from.
type Period string

const (
	PeriodMinute Period = "minute"
	PeriodHour   Period = "hour"
	PeriodToday  Period = "today"
	PeriodDay    Period = "day"
	PeriodWeek   Period = "week"
	PeriodMonth  Period = "month"
	PeriodYear   Period = "year"
)

// Periods lists all valid period names in display order.
func Periods() []Period {
	return []Period{
		PeriodMinute,
		PeriodHour,
		PeriodToday,
		PeriodDay,
		PeriodWeek,
		PeriodMonth,
		PeriodYear,
	}
}

// ParsePeriod validates a user-supplied period name.
func ParsePeriod(raw string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(raw)))

	for _, known := range Periods() {
		if p == known {
			return p, nil
		}
	}

	return "", fmt.Errorf("unknown period %q (choose from %s)", raw, periodNames())
}

func periodNames() string {
	names := make([]string, 0, len(Periods()))
	for _, p := range Periods() {
		names = append(names, string(p))
	}

	return strings.Join(names, ", ")
}

// Window is an absolute [Start, End) instant pair. Both bounds are UTC.
type Window struct {
	Start time.Time
	End   time.Time
}

// Window resolves the period against the given clock instant. It is
// computed once per run so long-running fetches do not drift the bounds.
func (p Period) Window(now time.Time) Window {
	now = now.UTC()

	var start time.Time

	switch p {
	case PeriodMinute:
		start = now.Add(-time.Minute)
	case PeriodHour:
		start = now.Add(-time.Hour)
	case PeriodToday:
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	case PeriodDay:
		start = now.AddDate(0, 0, -1)
	case PeriodWeek:
		start = now.AddDate(0, 0, -7)
	case PeriodMonth:
		start = now.AddDate(0, -1, 0)
	case PeriodYear:
		start = now.AddDate(-1, 0, 0)
	default:
		start = now.AddDate(0, 0, -1)
	}

	return Window{Start: start, End: now}
}

// Contains reports whether t falls inside the window. The lower bound is
// inclusive, the upper bound exclusive.
func (w Window) Contains(t time.Time) bool {
	t = t.UTC()

	return !t.Before(w.Start) && t.Before(w.End)
}
