// Package calendar builds the month grid shown on the calendar page and
// buckets sessions into its day cells.
package calendar

import (
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/sports-calendar/internal/model"
)

// DefaultVisiblePerDay is how many sessions a day cell lists before
// collapsing the rest into a "+N more" label.
const DefaultVisiblePerDay = 2

// MonthLayout is the format of the month query parameter.
const MonthLayout = "2006-01"

var ErrInvalidMonth = errors.New("month must be formatted as YYYY-MM")

// Cell is one day of the grid.
type Cell struct {
	Day      time.Time
	Sessions []model.Session
	IsToday  bool
}

// Visible returns at most limit sessions for display. A non-positive
// limit shows everything.
func (c Cell) Visible(limit int) []model.Session {
	if limit <= 0 || len(c.Sessions) <= limit {
		return c.Sessions
	}
	return c.Sessions[:limit]
}

// Overflow returns the number of sessions hidden behind the display cap.
func (c Cell) Overflow(limit int) int {
	if limit <= 0 || len(c.Sessions) <= limit {
		return 0
	}
	return len(c.Sessions) - limit
}

// Grid is the rendered month: LeadingBlanks empty cells followed by one
// cell per day of the month.
type Grid struct {
	Anchor        time.Time
	LeadingBlanks int
	Cells         []Cell
	// Skipped counts sessions without a usable timestamp. They are left
	// out of every cell.
	Skipped int
}

// DaysForMonth returns every day of the anchor's month at midnight in the
// anchor's location, plus the weekday index (Sunday = 0) of the first day.
func DaysForMonth(anchor time.Time) ([]time.Time, int) {
	first := firstOfMonth(anchor)
	n := daysIn(first.Year(), first.Month(), first.Location())
	days := make([]time.Time, 0, n)
	for d := 0; d < n; d++ {
		days = append(days, first.AddDate(0, 0, d))
	}
	return days, int(first.Weekday())
}

// SessionsOnDay keeps the sessions scheduled on the same calendar date as
// day, comparing both in day's location. Input order is preserved.
func SessionsOnDay(day time.Time, sessions []model.Session) []model.Session {
	var out []model.Session
	for _, s := range sessions {
		if s.ScheduledAt == nil || s.ScheduledAt.IsZero() {
			continue
		}
		if SameDay(*s.ScheduledAt, day) {
			out = append(out, s)
		}
	}
	return out
}

// SameDay compares the Y/M/D of t and day in day's location.
func SameDay(t, day time.Time) bool {
	t = t.In(day.Location())
	y1, m1, d1 := t.Date()
	y2, m2, d2 := day.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// Build lays out the anchor's month and attaches sessions to their days.
// now decides which cell is marked as today.
func Build(anchor time.Time, sessions []model.Session, now time.Time) Grid {
	days, blanks := DaysForMonth(anchor)
	g := Grid{Anchor: firstOfMonth(anchor), LeadingBlanks: blanks, Cells: make([]Cell, 0, len(days))}
	for _, s := range sessions {
		if s.ScheduledAt == nil || s.ScheduledAt.IsZero() {
			g.Skipped++
		}
	}
	for _, d := range days {
		g.Cells = append(g.Cells, Cell{
			Day:      d,
			Sessions: SessionsOnDay(d, sessions),
			IsToday:  SameDay(now, d),
		})
	}
	return g
}

// Count returns the number of sessions placed in the grid's cells.
func (g Grid) Count() int {
	n := 0
	for _, c := range g.Cells {
		n += len(c.Sessions)
	}
	return n
}

// ParseMonth reads a YYYY-MM value in loc. An empty value yields the
// month containing now.
func ParseMonth(raw string, loc *time.Location, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return firstOfMonth(now.In(loc)), nil
	}
	t, err := time.ParseInLocation(MonthLayout, raw, loc)
	if err != nil {
		return time.Time{}, ErrInvalidMonth
	}
	return t, nil
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
