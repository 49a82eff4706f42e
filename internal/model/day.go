package model

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// DayOfWeek is the weekday index used for assignments: 0 is Monday, 6 is Sunday.
// It does not depend on locale.
type DayOfWeek int

const (
	Monday DayOfWeek = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var dayNames = [...]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// DayOfWeekOf returns the weekday index of d. All code that maps a calendar date
// to an assignment day goes through this function.
func DayOfWeekOf(d civil.Date) DayOfWeek {
	wd := d.In(time.UTC).Weekday()
	return DayOfWeek((int(wd) + 6) % 7)
}

func (d DayOfWeek) Valid() bool {
	return d >= Monday && d <= Sunday
}

func (d DayOfWeek) String() string {
	if !d.Valid() {
		return fmt.Sprintf("DayOfWeek(%d)", int(d))
	}
	return dayNames[d]
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (civil.Date, error) {
	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return d, nil
}

// Today returns the calendar date of now in loc.
func Today(now time.Time, loc *time.Location) civil.Date {
	if loc == nil {
		loc = time.Local
	}
	return civil.DateOf(now.In(loc))
}
