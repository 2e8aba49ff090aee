package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"omnisched/internal/appointment"
	appLog "omnisched/internal/log"
)

// Parse reads an iCalendar payload and turns each VEVENT into an
// appointment, in document order.
//
//   - Events written by Export carry X-OMNISCHED-* properties and are
//     restored exactly.
//   - Other events are classified by RRULE: none is OneTime, FREQ=DAILY is
//     Daily, FREQ=MONTHLY with one BYMONTHDAY is Monthly, and a BYMONTHDAY
//     set forming one residue class mod 7 is Weekly.
//   - DTSTART components are taken as written; TZID and UTC markers are not
//     converted.
//
// Events that cannot be represented are logged and skipped.
func Parse(body []byte) ([]appointment.Appointment, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err)
		return nil, fmt.Errorf("ics parse: %w", err)
	}

	appts := make([]appointment.Appointment, 0)
	for _, ve := range cal.Events() {
		a, perr := parseVEvent(ve)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "uid", uidOf(ve), "reason", perr.Error())
			continue
		}
		appts = append(appts, a)
	}

	appLog.Info("ics parse completed", "appointment_count", len(appts))
	return appts, nil
}

func parseVEvent(ve *ical.VEvent) (appointment.Appointment, error) {
	var desc string
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		desc = p.Value
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || dtStart.Value == "" {
		return nil, errors.New("missing DTSTART")
	}
	start, err := parseICSTime(dtStart.Value)
	if err != nil {
		return nil, fmt.Errorf("bad DTSTART %q: %w", dtStart.Value, err)
	}

	shape := ruleShape{kind: appointment.KindOneTime}
	hasRule := false
	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil && p.Value != "" {
		hasRule = true
		opt, err := rrule.StrToROption(p.Value)
		if err != nil {
			return nil, fmt.Errorf("bad RRULE %q: %w", p.Value, err)
		}
		shape, err = shapeOf(opt)
		if err != nil {
			return nil, err
		}
	}

	if p := ve.GetProperty(propKind); p != nil {
		kind, err := appointment.ParseKind(p.Value)
		if err != nil {
			return nil, err
		}
		shape.kind = kind
	}

	hour, minute := start.Hour(), start.Minute()
	switch shape.kind {
	case appointment.KindOneTime:
		return appointment.NewOneTime(desc, start.Year(), int(start.Month()), start.Day(), hour, minute), nil
	case appointment.KindDaily:
		return appointment.NewDaily(desc, hour, minute), nil
	case appointment.KindWeekly:
		if !hasRule && ve.GetProperty(propWeekday) == nil {
			return nil, errors.New("weekly event missing weekday")
		}
		weekday, err := intProperty(ve, propWeekday, shape.value)
		if err != nil {
			return nil, err
		}
		return appointment.NewWeekly(desc, weekday, hour, minute), nil
	case appointment.KindMonthly:
		day := shape.value
		if day == 0 {
			day = start.Day()
		}
		day, err := intProperty(ve, propDay, day)
		if err != nil {
			return nil, err
		}
		return appointment.NewMonthly(desc, day, hour, minute), nil
	default:
		return nil, fmt.Errorf("unsupported kind %q", shape.kind)
	}
}

func uidOf(ve *ical.VEvent) string {
	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		return p.Value
	}
	return ""
}

// intProperty reads an integer extension property, returning def when the
// property is absent.
func intProperty(ve *ical.VEvent, prop ical.ComponentProperty, def int) (int, error) {
	p := ve.GetProperty(prop)
	if p == nil {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(p.Value))
	if err != nil {
		return 0, fmt.Errorf("bad %s %q: %w", prop, p.Value, err)
	}
	return n, nil
}

// parseICSTime parses a basic ICS date/date-time string. Components are kept
// as written: the result is always in UTC without any zone conversion.
func parseICSTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}

	// Local date-time, e.g., 20250101T090000
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, time.UTC)
	}

	// Date-only (all-day), e.g., 20250101
	return time.ParseInLocation("20060102", v, time.UTC)
}
