package domain

import "time"

// Period narrows a tip aggregate to a time window relative to an injected
// "now". The ledger never reads the wall clock itself.
type Period string

const (
	// PeriodAll places no lower bound on the aggregate.
	PeriodAll   Period = ""
	PeriodToday Period = "today"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

func (p Period) Valid() bool {
	switch p {
	case PeriodAll, PeriodToday, PeriodWeek, PeriodMonth:
		return true
	}
	return false
}

// Start returns the inclusive lower bound of the window ending at now.
// ok is false for PeriodAll, meaning no bound applies.
//
// today is calendar-based (since midnight of now's day); week and month are
// rolling windows of 7 and 30 days.
func (p Period) Start(now time.Time) (start time.Time, ok bool) {
	switch p {
	case PeriodToday:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), true
	case PeriodWeek:
		return now.Add(-7 * 24 * time.Hour), true
	case PeriodMonth:
		return now.Add(-30 * 24 * time.Hour), true
	default:
		return time.Time{}, false
	}
}
