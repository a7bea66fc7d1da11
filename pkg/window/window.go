// Package window converts a (days, hours, end) lookback into a concrete
// [Start, End] pair and formats partition dates.
package window

import "time"

const dateLayout = "2006-01-02"

// Window is a half-open time range used for history fetches. Start and End
// are both UTC.
type Window struct {
	Start time.Time
	End   time.Time
}

// New builds a window ending at end, reaching back days*24h + hours.
func New(days, hours int, end time.Time) Window {
	end = end.UTC()
	lookback := time.Duration(days)*24*time.Hour + time.Duration(hours)*time.Hour
	return Window{Start: end.Add(-lookback), End: end}
}

// Contains reports whether t falls inside the window, inclusive on both
// ends. Thread expansion intentionally ignores this.
func (w Window) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(w.Start) && !t.After(w.End)
}

// FormatDate renders t's UTC calendar date as the dt= partition value.
func FormatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// ParseDate parses a YYYY-MM-DD partition date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

// DateRange enumerates every calendar day in [start, end] inclusive, in
// YYYY-MM-DD form. Returns an error when either bound is malformed; an
// empty slice when start is after end.
func DateRange(start, end string) ([]string, error) {
	s, err := ParseDate(start)
	if err != nil {
		return nil, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return nil, err
	}

	var days []string
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(dateLayout))
	}
	return days, nil
}
