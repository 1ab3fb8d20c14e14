package charts

import "time"

// Month is a calendar month bucket used by the monthly chart series.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the month bucket containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// Next returns the following calendar month.
func (m Month) Next() Month {
	if m.Month == time.December {
		return Month{Year: m.Year + 1, Month: time.January}
	}
	return Month{Year: m.Year, Month: m.Month + 1}
}

// Before reports whether m precedes other.
func (m Month) Before(other Month) bool {
	if m.Year != other.Year {
		return m.Year < other.Year
	}
	return m.Month < other.Month
}

// TimestampMS returns the Unix millisecond timestamp of local midnight on
// the first day of the month in loc. This is the stable bucket key the
// charting frontend sorts and looks up by.
func (m Month) TimestampMS(loc *time.Location) int64 {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, loc).UnixMilli()
}

// RangeUntil yields every month from m through end inclusive, in order.
// An end before m yields only m when equal, else nothing.
func (m Month) RangeUntil(end Month) []Month {
	if end.Before(m) {
		return nil
	}
	months := []Month{m}
	for cur := m; cur.Before(end); {
		cur = cur.Next()
		months = append(months, cur)
	}
	return months
}

// DayTimestampMS returns the Unix millisecond timestamp of local midnight
// for the calendar day of t in loc. Bucketing by local dates avoids
// off-by-one-day errors near midnight.
func DayTimestampMS(t time.Time, loc *time.Location) int64 {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).UnixMilli()
}
