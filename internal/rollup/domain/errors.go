package rollup

import "errors"

var (
	// ErrMonthlyNotFound is returned when no monthly row exists yet.
	ErrMonthlyNotFound = errors.New("rollup: monthly total not found")
	// ErrDailyNotFound is returned when no daily row exists for a day.
	ErrDailyNotFound = errors.New("rollup: daily total not found")
	// ErrInvalidRange is returned for an empty or inverted query range.
	ErrInvalidRange = errors.New("rollup: invalid range")
)
