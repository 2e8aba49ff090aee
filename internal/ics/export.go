package ics

import (
	"fmt"
	"io"
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"omnisched/internal/appointment"
	appLog "omnisched/internal/log"
	"omnisched/internal/model"
)

const productID = "-//omnisched//appointments//EN"

// Extension properties that let Parse restore the exact variant.
const (
	propKind    ical.ComponentProperty = "X-OMNISCHED-KIND"
	propWeekday ical.ComponentProperty = "X-OMNISCHED-WEEKDAY"
	propDay     ical.ComponentProperty = "X-OMNISCHED-DAY"
)

// Calendar builds an iCalendar document with one VEVENT per appointment.
//
//   - DTSTART is a floating local date-time. OneTime uses its own date;
//     recurring appointments start at their first occurrence on or after
//     the date of stamp.
//   - Recurring appointments carry the RRULE from RuleFor.
//   - UIDs are name-based UUIDs so repeated exports are stable.
//
// Appointments that cannot be placed on a real calendar date or clock time
// are returned in skipped, in input order.
func Calendar(appts []appointment.Appointment, stamp time.Time) (*ical.Calendar, []appointment.Appointment) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	var skipped []appointment.Appointment
	anchor := midnight(stamp, time.UTC)

	for i, a := range appts {
		b := a.Details()
		if b.Hour < 0 || b.Hour > 23 || b.Minute < 0 || b.Minute > 59 {
			skipped = append(skipped, a)
			continue
		}

		var (
			start model.Date
			rule  string
		)
		if a.Kind() == appointment.KindOneTime {
			start = model.Date{Year: b.Year, Month: b.Month, Day: b.Day}
			if !start.Valid() {
				skipped = append(skipped, a)
				continue
			}
		} else {
			opt, ok := RuleFor(a)
			if !ok {
				skipped = append(skipped, a)
				continue
			}
			rule = opt.RRuleString()

			opt.Dtstart = anchor
			r, err := rrule.NewRRule(opt)
			if err != nil {
				appLog.Error("ics export: failed to build RRULE", err, "appointment", a.Format())
				skipped = append(skipped, a)
				continue
			}
			start = model.DateOf(r.After(anchor, true))
		}
		if start.Year < 1 || start.Year > 9999 {
			skipped = append(skipped, a)
			continue
		}

		ev := cal.AddEvent(uidFor(i, a))
		ev.SetDtStampTime(stamp.UTC())
		ev.SetSummary(b.Description)
		ev.SetProperty(ical.ComponentPropertyDtStart, floating(start, b.Hour, b.Minute))
		if rule != "" {
			ev.AddProperty(ical.ComponentPropertyRrule, rule)
		}

		ev.SetProperty(propKind, string(a.Kind()))
		switch v := a.(type) {
		case appointment.Weekly:
			ev.SetProperty(propWeekday, strconv.Itoa(v.Weekday))
		case appointment.Monthly:
			ev.SetProperty(propDay, strconv.Itoa(v.DayOfMonth))
		}
	}

	return cal, skipped
}

// Export writes the iCalendar rendering of appts to w. Skipped appointments
// are logged and left out.
func Export(w io.Writer, appts []appointment.Appointment, stamp time.Time) error {
	cal, skipped := Calendar(appts, stamp)
	for _, a := range skipped {
		appLog.Warn("ics export: appointment has no calendar equivalent; skipped", "appointment", a.Format())
	}

	if _, err := io.WriteString(w, cal.Serialize()); err != nil {
		return fmt.Errorf("ics export: %w", err)
	}
	appLog.Info("ics export completed", "exported", len(appts)-len(skipped), "skipped", len(skipped))
	return nil
}

func uidFor(index int, a appointment.Appointment) string {
	name := "omnisched:" + strconv.Itoa(index) + ":" + a.Format()
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String() + "@omnisched"
}

func floating(d model.Date, hour, minute int) string {
	return fmt.Sprintf("%04d%02d%02dT%02d%02d00", d.Year, d.Month, d.Day, hour, minute)
}
