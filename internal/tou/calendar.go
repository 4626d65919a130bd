package tou

import "time"

// FinancialYearStarting returns the year the July-June fiscal year
// containing t began.
func FinancialYearStarting(t time.Time) int {
	if t.Month() >= time.July {
		return t.Year()
	}
	return t.Year() - 1
}

// DaysInMonth returns the calendar length of a month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1).Day()
}

// MonthStart returns midnight on the first day of the month, in t's location.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// DayStart truncates t to midnight in its location.
func DayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// MonthRange is one billing month touched by a data range.
type MonthRange struct {
	Year          int
	Month         time.Month
	FinancialYear int
}

// MonthRanges enumerates the months touching [start, end], in order.
func MonthRanges(start, end time.Time) []MonthRange {
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return nil
	}
	var out []MonthRange
	for m := MonthStart(start); !m.After(end); m = m.AddDate(0, 1, 0) {
		out = append(out, MonthRange{
			Year:          m.Year(),
			Month:         m.Month(),
			FinancialYear: FinancialYearStarting(m),
		})
	}
	return out
}
