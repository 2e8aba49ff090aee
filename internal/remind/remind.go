// Package remind computes when an appointment next fires, using standard
// five-field cron expressions.
package remind

import (
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"omnisched/internal/appointment"
	appLog "omnisched/internal/log"
	"omnisched/internal/model"
)

// Spec returns the cron expression (minute hour dom month dow) matching the
// appointment's clock time on the days it occurs. OneTime yields a yearly
// expression; cron has no year field, so Next checks the year itself.
//
// The second result is false when the appointment can never fire on a real
// calendar date or clock time.
func Spec(a appointment.Appointment) (string, bool) {
	b := a.Details()
	if b.Hour < 0 || b.Hour > 23 || b.Minute < 0 || b.Minute > 59 {
		return "", false
	}
	clock := strconv.Itoa(b.Minute) + " " + strconv.Itoa(b.Hour)

	switch v := a.(type) {
	case appointment.OneTime:
		if !(model.Date{Year: v.Year, Month: v.Month, Day: v.Day}).Valid() {
			return "", false
		}
		return clock + " " + strconv.Itoa(v.Day) + " " + strconv.Itoa(v.Month) + " *", true
	case appointment.Daily:
		return clock + " * * *", true
	case appointment.Weekly:
		days := v.MonthDays()
		if len(days) == 0 {
			return "", false
		}
		parts := make([]string, len(days))
		for i, d := range days {
			parts[i] = strconv.Itoa(d)
		}
		return clock + " " + strings.Join(parts, ",") + " * *", true
	case appointment.Monthly:
		if v.DayOfMonth < 1 || v.DayOfMonth > 31 {
			return "", false
		}
		return clock + " " + strconv.Itoa(v.DayOfMonth) + " * *", true
	default:
		return "", false
	}
}

// Next returns the first firing strictly after after, in after's location.
func Next(a appointment.Appointment, after time.Time) (time.Time, bool) {
	spec, ok := Spec(a)
	if !ok {
		return time.Time{}, false
	}

	sched, err := cron.ParseStandard(spec)
	if err != nil {
		appLog.Error("remind: invalid cron spec", err, "spec", spec, "appointment", a.Format())
		return time.Time{}, false
	}

	if o, isOnce := a.(appointment.OneTime); isOnce {
		// Start the search just before the target year so the yearly
		// expression lands in it.
		from := after
		if yearStart := time.Date(o.Year, time.January, 1, 0, 0, 0, 0, after.Location()); yearStart.After(from) {
			from = yearStart.Add(-time.Second)
		}
		next := sched.Next(from)
		if next.IsZero() || next.Year() != o.Year {
			return time.Time{}, false
		}
		return next, true
	}

	next := sched.Next(after)
	if next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}

// Reminder pairs an appointment with its next firing time.
type Reminder struct {
	Appointment appointment.Appointment
	At          time.Time
}

// Upcoming returns the next firing of every appointment that still fires
// after after, keeping the appointments' order.
func Upcoming(appts []appointment.Appointment, after time.Time) []Reminder {
	out := make([]Reminder, 0, len(appts))
	for _, a := range appts {
		at, ok := Next(a, after)
		if !ok {
			appLog.Debug("remind: no upcoming firing", "appointment", a.Format())
			continue
		}
		out = append(out, Reminder{Appointment: a, At: at})
	}
	return out
}
