package model

import (
	"strconv"
	"time"

	"omnisched/internal/appointment"
)

// Date is a queried date as typed by the user. Components are not range
// checked; use Valid before handing a Date to calendar arithmetic.
type Date struct {
	Year  int
	Month int
	Day   int
}

// String renders M/D/Y without padding.
func (d Date) String() string {
	return strconv.Itoa(d.Month) + "/" + strconv.Itoa(d.Day) + "/" + strconv.Itoa(d.Year)
}

// Time returns midnight of the date in loc. Out-of-range components are
// normalized the way time.Date does (month 13 rolls into the next year).
func (d Date) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, loc)
}

// Valid reports whether the date exists on the proleptic Gregorian calendar.
func (d Date) Valid() bool {
	t := d.Time(time.UTC)
	return t.Year() == d.Year && int(t.Month()) == d.Month && t.Day() == d.Day
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

// Occurrence represents a single concrete instance of an appointment on a
// calendar date (after recurrence expansion).
type Occurrence struct {
	Appointment appointment.Appointment

	Date Date

	// Start is the date at the appointment's hour and minute in the
	// expansion location.
	Start time.Time
}
