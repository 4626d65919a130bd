package tou

import "time"

// dateLayouts is the ordered list of formats accepted for user-supplied
// dates: ISO forms first, then the day-first forms meter exports use.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"2/01/2006 15:04",
}

// ParseDate tries each accepted layout in order. ok is false when no
// layout matches; the zero time is never a valid parse result.
func ParseDate(s string) (t time.Time, ok bool) {
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}
