package ics

import (
	"fmt"
	"slices"

	"github.com/teambition/rrule-go"

	"omnisched/internal/appointment"
)

// RuleFor returns the RRULE options (without DTSTART) equivalent to the
// appointment's recurrence on calendar-valid dates.
//
//   - Daily   -> FREQ=DAILY
//   - Monthly -> FREQ=MONTHLY;BYMONTHDAY=d
//   - Weekly  -> FREQ=MONTHLY;BYMONTHDAY=<every d with d%7 == weekday>
//
// Weekly keeps its day-of-month modulo semantics, so it maps to a monthly
// rule rather than FREQ=WEEKLY. OneTime and Base have no rule, and a weekday
// outside [0,6] or day outside [1,31] never hits a calendar date; all of
// those report false.
func RuleFor(a appointment.Appointment) (rrule.ROption, bool) {
	switch v := a.(type) {
	case appointment.Daily:
		return rrule.ROption{Freq: rrule.DAILY}, true
	case appointment.Weekly:
		days := v.MonthDays()
		if len(days) == 0 {
			return rrule.ROption{}, false
		}
		return rrule.ROption{Freq: rrule.MONTHLY, Bymonthday: days}, true
	case appointment.Monthly:
		if v.DayOfMonth < 1 || v.DayOfMonth > 31 {
			return rrule.ROption{}, false
		}
		return rrule.ROption{Freq: rrule.MONTHLY, Bymonthday: []int{v.DayOfMonth}}, true
	default:
		return rrule.ROption{}, false
	}
}

// ruleShape is the appointment variant a parsed RRULE corresponds to.
type ruleShape struct {
	kind appointment.Kind
	// value is the weekday for Weekly and the day of month for Monthly.
	value int
}

// shapeOf maps an RRULE back to a variant. Only the rules RuleFor produces
// are accepted; anything else (FREQ=WEEKLY, intervals, COUNT/UNTIL, BYDAY...)
// has no equivalent appointment.
func shapeOf(opt *rrule.ROption) (ruleShape, error) {
	if opt.Interval > 1 || opt.Count > 0 || !opt.Until.IsZero() {
		return ruleShape{}, fmt.Errorf("unsupported RRULE %q: bounded or interval rule", opt.RRuleString())
	}
	if len(opt.Byweekday) > 0 || len(opt.Bymonth) > 0 || len(opt.Byyearday) > 0 || len(opt.Byweekno) > 0 || len(opt.Bysetpos) > 0 {
		return ruleShape{}, fmt.Errorf("unsupported RRULE %q", opt.RRuleString())
	}

	switch opt.Freq {
	case rrule.DAILY:
		if len(opt.Bymonthday) == 0 {
			return ruleShape{kind: appointment.KindDaily}, nil
		}
	case rrule.MONTHLY:
		if len(opt.Bymonthday) == 1 && opt.Bymonthday[0] >= 1 && opt.Bymonthday[0] <= 31 {
			return ruleShape{kind: appointment.KindMonthly, value: opt.Bymonthday[0]}, nil
		}
		days := slices.Clone(opt.Bymonthday)
		slices.Sort(days)
		for w := 0; w <= 6; w++ {
			if slices.Equal(days, appointment.MonthDaysFor(w)) {
				return ruleShape{kind: appointment.KindWeekly, value: w}, nil
			}
		}
	}
	return ruleShape{}, fmt.Errorf("unsupported RRULE %q", opt.RRuleString())
}
