// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package ts

import (
	"time"

	"github.com/dustin/go-humanize"
)

// Never is the text representation of a zero time, e.g., a missing marker.
const Never = "never"

// Layout is a string that describes the text representation of a time
type Layout string

// Format returns the time in the location using the layout, or Never for the zero time.
func (l Layout) Format(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return Never
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(string(l))
}

// Age returns how long ago the time was relative to now, e.g., "3 minutes ago".
func Age(t time.Time, now time.Time) string {
	if t.IsZero() {
		return Never
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// NamedLayouts includes a map of layouts that can be referenced by name
var NamedLayouts = map[string]Layout{
	"Kitchen":     time.Kitchen,
	"RFC3339":     time.RFC3339,
	"RFC3339Nano": time.RFC3339Nano,
	"DateTime":    time.DateTime,
	"DateOnly":    time.DateOnly,
	"TimeOnly":    time.TimeOnly,
	"Default":     "Jan 02 15:04",
	"Full":        "Jan 02 15:04:05 2006",
}

// ParseLayout returns a layout.
// If layout is the name of a known layout, then returns the referenced layout.
// Otherwise, returns the input layout.
func ParseLayout(layout string) Layout {
	format, ok := NamedLayouts[layout]
	if ok {
		return format
	}
	return Layout(layout)
}
