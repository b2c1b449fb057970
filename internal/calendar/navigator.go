package calendar

import "time"

// Navigator owns the month currently shown on the calendar.
type Navigator struct {
	anchor time.Time
}

// NewNavigator starts at the given anchor.
func NewNavigator(anchor time.Time) *Navigator {
	return &Navigator{anchor: anchor}
}

// Anchor returns the current anchor date.
func (n *Navigator) Anchor() time.Time { return n.anchor }

// SetMonth replaces the anchor date.
func (n *Navigator) SetMonth(t time.Time) { n.anchor = t }

// Today moves the anchor to now, read in the anchor's location.
func (n *Navigator) Today(now time.Time) { n.anchor = now.In(n.anchor.Location()) }

// AdvanceMonth moves the anchor one calendar month forward (dir > 0) or
// backward (dir < 0). The day of month is clamped to the length of the
// target month, so Jan 31 becomes Feb 29 in a leap year.
func (n *Navigator) AdvanceMonth(dir int) {
	switch {
	case dir > 0:
		n.anchor = addMonths(n.anchor, 1)
	case dir < 0:
		n.anchor = addMonths(n.anchor, -1)
	}
}

func addMonths(t time.Time, delta int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(delta), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	day := t.Day()
	if last := daysIn(first.Year(), first.Month(), first.Location()); day > last {
		day = last
	}
	return first.AddDate(0, 0, day-1)
}
