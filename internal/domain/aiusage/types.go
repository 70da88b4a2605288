package aiusage

import "time"

// DayUsage is one user's accumulated AI token spend for a UTC day.
type DayUsage struct {
	UserULID     string
	Day          time.Time
	TokensUsed   int64
	RequestCount int64
}

// Day truncates t to its UTC date, the granularity quotas are tracked at.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
