package temporal

import (
	"strings"
	"time"

	"github.com/harunnryd/niaga/pkg/errorsx"
)

// dateLayouts are tried in order. The US-style slash layout is last so that
// unambiguous day-first inputs win.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"02/01/2006",
	"01/02/2006",
}

// ParseDate parses a date from the formats the model is known to emit.
// The result is truncated to a UTC calendar date.
func ParseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, errorsx.New(errorsx.ReasonDateUnparseable, "empty date")
	}
	// RFC3339 values carry a time component; everything else is date-only.
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncate(t), nil
		}
	}
	return time.Time{}, errorsx.Newf(errorsx.ReasonDateUnparseable, "unparseable date: %q", raw)
}

// DaysBetween returns the calendar-day difference b-a.
func DaysBetween(a, b time.Time) int {
	a = truncate(a)
	b = truncate(b)
	return int(b.Sub(a).Hours() / 24)
}

func truncate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
