package domain

import "time"

// DateOf truncates t to midnight of its calendar day in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// DaysBetween returns the number of whole calendar days from a to b in loc.
// Time of day is ignored, so 23:59 -> 00:01 on the next day counts as one day.
func DaysBetween(a, b time.Time, loc *time.Location) int {
	da := DateOf(a, loc)
	db := DateOf(b, loc)
	// Compare in UTC to keep DST transitions from producing 23h/25h days.
	ua := time.Date(da.Year(), da.Month(), da.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(db.Year(), db.Month(), db.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// SameDate reports whether a and b fall on the same calendar day in loc.
func SameDate(a, b time.Time, loc *time.Location) bool {
	return DaysBetween(a, b, loc) == 0
}

// AtDate moves t onto the calendar day of date, keeping t's clock time in loc.
func AtDate(date, t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	d := date.In(loc)
	c := t.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), c.Second(), c.Nanosecond(), loc)
}
