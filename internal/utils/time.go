package utils

import (
	"time"

	"github.com/dustin/go-humanize"

	"github.com/julianstephens/daybook/internal/constants"
)

// LoadLocation resolves an IANA name; "" and "Local" mean the system zone.
func LoadLocation(timezone string) (*time.Location, error) {
	if timezone == "" || timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(timezone)
}

// FormatDate renders t as a calendar date in loc.
func FormatDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(constants.DateFormat)
}

// Ago renders t relative to now ("3 hours ago"). Zero times render as "-".
func Ago(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}
