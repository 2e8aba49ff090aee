// Package appointment defines the closed set of appointment variants and the
// per-variant rule deciding whether an appointment occurs on a given date.
//
// Dates are plain integers. Nothing here validates ranges: every predicate is
// total over int inputs, so day=45 or month=0 simply yields an answer.
package appointment

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind names a recurrence variant.
type Kind string

const (
	KindBase    Kind = ""
	KindOneTime Kind = "onetime"
	KindDaily   Kind = "daily"
	KindWeekly  Kind = "weekly"
	KindMonthly Kind = "monthly"
)

// ParseKind accepts the variant names used in config and iCalendar files,
// plus "once" and "one-time" as aliases for onetime.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindOneTime, KindDaily, KindWeekly, KindMonthly:
		return k, nil
	case "one-time", "once":
		return KindOneTime, nil
	default:
		return KindBase, fmt.Errorf("appointment: unknown kind %q", s)
	}
}

// Appointment is implemented by Base and the four recurrence variants only.
type Appointment interface {
	// OccursOn reports whether the appointment is active on the date.
	OccursOn(year, month, day int) bool
	// Format renders the one-line human description.
	Format() string
	Kind() Kind
	// Details returns the shared description/date/time fields.
	Details() Base

	sealed()
}

// Base holds the fields every appointment carries. The date fields are only
// meaningful for OneTime; recurring variants leave them zeroed (Monthly also
// mirrors its day in Day).
//
// Base on its own is the unspecialized appointment and never occurs.
type Base struct {
	Description string
	Year        int
	Month       int
	Day         int
	Hour        int
	Minute      int
}

func (b *Base) SetDescription(description string) {
	b.Description = description
}

func (b *Base) SetDate(year, month, day int) {
	b.Year = year
	b.Month = month
	b.Day = day
}

func (b *Base) SetTime(hour, minute int) {
	b.Hour = hour
	b.Minute = minute
}

func (b Base) OccursOn(year, month, day int) bool { return false }

func (b Base) Format() string {
	return "Appointment on " + date(b.Month, b.Day, b.Year) + " at " + Clock(b.Hour, b.Minute) + " - " + b.Description
}

func (b Base) Kind() Kind     { return KindBase }
func (b Base) Details() Base  { return b }
func (b Base) String() string { return b.Format() }
func (Base) sealed()          {}

// OneTime occurs on exactly one date.
type OneTime struct {
	Base
}

func NewOneTime(description string, year, month, day, hour, minute int) OneTime {
	return OneTime{Base: Base{
		Description: description,
		Year:        year,
		Month:       month,
		Day:         day,
		Hour:        hour,
		Minute:      minute,
	}}
}

func (a OneTime) OccursOn(year, month, day int) bool {
	return a.Year == year && a.Month == month && a.Day == day
}

func (a OneTime) Format() string { return "Onetime " + a.Base.Format() }
func (a OneTime) Kind() Kind     { return KindOneTime }
func (a OneTime) String() string { return a.Format() }

// Daily occurs on every date.
type Daily struct {
	Base
}

func NewDaily(description string, hour, minute int) Daily {
	return Daily{Base: Base{Description: description, Hour: hour, Minute: minute}}
}

func (a Daily) OccursOn(year, month, day int) bool { return true }

func (a Daily) Format() string {
	return "Daily Appointment at " + Clock(a.Hour, a.Minute) + " - " + a.Description
}

func (a Daily) Kind() Kind     { return KindDaily }
func (a Daily) String() string { return a.Format() }

// Weekly occurs when the day of month modulo 7 equals Weekday. This is not a
// calendar weekday: year and month are ignored, and a negative day yields a
// negative remainder that no weekday in [0,6] matches.
type Weekly struct {
	Base
	Weekday int
}

func NewWeekly(description string, weekday, hour, minute int) Weekly {
	return Weekly{
		Base:    Base{Description: description, Hour: hour, Minute: minute},
		Weekday: weekday,
	}
}

func (a Weekly) OccursOn(year, month, day int) bool {
	return day%7 == a.Weekday
}

func (a Weekly) Format() string {
	return "Weekly Appointment on weekday " + strconv.Itoa(a.Weekday) + " at " + Clock(a.Hour, a.Minute) + " - " + a.Description
}

func (a Weekly) Kind() Kind     { return KindWeekly }
func (a Weekly) String() string { return a.Format() }

// MonthDays lists the days 1..31 on which the appointment occurs in any
// month. It is empty when Weekday is outside [0,6].
func (a Weekly) MonthDays() []int {
	return MonthDaysFor(a.Weekday)
}

// MonthDaysFor lists the days of month 1..31 congruent to weekday mod 7.
func MonthDaysFor(weekday int) []int {
	if weekday < 0 || weekday > 6 {
		return nil
	}
	var days []int
	for d := 1; d <= 31; d++ {
		if d%7 == weekday {
			days = append(days, d)
		}
	}
	return days
}

// Monthly occurs on one day of every month.
type Monthly struct {
	Base
	DayOfMonth int
}

func NewMonthly(description string, day, hour, minute int) Monthly {
	return Monthly{
		Base:       Base{Description: description, Day: day, Hour: hour, Minute: minute},
		DayOfMonth: day,
	}
}

func (a Monthly) OccursOn(year, month, day int) bool {
	return day == a.DayOfMonth
}

func (a Monthly) Format() string {
	return "Monthly Appointment on day " + strconv.Itoa(a.DayOfMonth) + " at " + Clock(a.Hour, a.Minute) + " - " + a.Description
}

func (a Monthly) Kind() Kind     { return KindMonthly }
func (a Monthly) String() string { return a.Format() }

// Clock renders H:MM. The hour is not padded; any minute below 10 gets a
// leading "0".
func Clock(hour, minute int) string {
	mm := strconv.Itoa(minute)
	if minute < 10 {
		mm = "0" + mm
	}
	return strconv.Itoa(hour) + ":" + mm
}

func date(month, day, year int) string {
	return strconv.Itoa(month) + "/" + strconv.Itoa(day) + "/" + strconv.Itoa(year)
}
