// Package timeframe resolves named reporting periods into concrete windows
// in a given location.
package timeframe

import (
	"fmt"
	"strings"
	"time"

	"github.com/aristath/tradejournal/internal/domain"
)

// Mode names a period kind.
type Mode string

const (
	ModeDay    Mode = "day"
	ModeWeek   Mode = "week"
	ModeMonth  Mode = "month"
	ModeYear   Mode = "year"
	ModeCustom Mode = "custom"
)

// MaxCustomDays bounds custom ranges so a window walk stays small.
const MaxCustomDays = 3660

const dateLayout = "02/01/2006"

// Window is an inclusive period. End is the last millisecond of its day.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Mode  Mode      `json:"mode"`
	Label string    `json:"label"`
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Days returns the number of calendar days in the window.
func (w Window) Days() int {
	n := 0
	for d := w.Start; !d.After(w.End); d = d.AddDate(0, 0, 1) {
		n++
	}
	return n
}

// ParseMode normalises a mode name. Empty means month.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeMonth, nil
	case ModeDay, ModeWeek, ModeMonth, ModeYear, ModeCustom:
		return m, nil
	}
	return "", domain.InvalidInputf("unknown timeframe mode %q", s)
}

// StartOfDay is midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// EndOfDay is 23:59:59.999 of t's calendar day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), loc)
}

// MonthWindow returns the window of a calendar month.
func MonthWindow(year int, month time.Month, loc *time.Location) Window {
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	w := Window{
		Start: start,
		End:   EndOfDay(start.AddDate(0, 1, -1), loc),
		Mode:  ModeMonth,
	}
	w.Label = fmt.Sprintf("Month (%s – %s)", w.Start.Format(dateLayout), w.End.Format(dateLayout))
	return w
}

// Resolve builds the window for mode around anchor. For ModeCustom, a zero
// from or to falls back to the anchor's day.
func Resolve(mode Mode, anchor, from, to time.Time, loc *time.Location) (Window, error) {
	if loc == nil {
		loc = time.Local
	}
	anchor = anchor.In(loc)

	var w Window
	switch mode {
	case ModeDay:
		w = Window{Start: StartOfDay(anchor, loc), End: EndOfDay(anchor, loc)}
		w.Label = fmt.Sprintf("Today (%s)", w.Start.Format(dateLayout))
	case ModeWeek:
		// ISO weeks start on Monday.
		offset := (int(anchor.Weekday()) + 6) % 7
		start := StartOfDay(anchor, loc).AddDate(0, 0, -offset)
		w = Window{Start: start, End: EndOfDay(start.AddDate(0, 0, 6), loc)}
		w.Label = fmt.Sprintf("Week (%s – %s)", w.Start.Format(dateLayout), w.End.Format(dateLayout))
	case ModeMonth:
		w = MonthWindow(anchor.Year(), anchor.Month(), loc)
	case ModeYear:
		w = Window{
			Start: time.Date(anchor.Year(), time.January, 1, 0, 0, 0, 0, loc),
			End:   EndOfDay(time.Date(anchor.Year(), time.December, 31, 0, 0, 0, 0, loc), loc),
		}
		w.Label = fmt.Sprintf("Year (%d)", anchor.Year())
	case ModeCustom:
		if from.IsZero() {
			from = anchor
		}
		if to.IsZero() {
			to = anchor
		}
		w = Window{Start: StartOfDay(from, loc), End: EndOfDay(to, loc)}
		if w.End.Before(w.Start) {
			return Window{}, domain.InvalidInputf("custom range ends before it starts")
		}
		if w.End.Sub(w.Start) > MaxCustomDays*24*time.Hour {
			return Window{}, domain.InvalidInputf("custom range exceeds %d days", MaxCustomDays)
		}
		w.Label = fmt.Sprintf("Custom (%s – %s)", w.Start.Format(dateLayout), w.End.Format(dateLayout))
	default:
		return Window{}, domain.InvalidInputf("unknown timeframe mode %q", mode)
	}
	w.Mode = mode
	return w, nil
}

// ParseDate reads a YYYY-MM-DD date in loc. Empty input yields the zero time.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, domain.InvalidInputf("date %q must be YYYY-MM-DD", s)
	}
	return t, nil
}

// FromStrings resolves a window from raw mode, anchor date and custom range
// strings. An empty date anchors on now.
func FromStrings(mode, date, from, to string, now time.Time, loc *time.Location) (Window, error) {
	m, err := ParseMode(mode)
	if err != nil {
		return Window{}, err
	}
	anchor, err := ParseDate(date, loc)
	if err != nil {
		return Window{}, err
	}
	if anchor.IsZero() {
		anchor = now
	}
	f, err := ParseDate(from, loc)
	if err != nil {
		return Window{}, err
	}
	t, err := ParseDate(to, loc)
	if err != nil {
		return Window{}, err
	}
	return Resolve(m, anchor, f, t, loc)
}
