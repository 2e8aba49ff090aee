package ics

import (
	"cmp"
	"errors"
	"slices"
	"time"

	"github.com/teambition/rrule-go"

	"omnisched/internal/appointment"
	appLog "omnisched/internal/log"
	"omnisched/internal/model"
)

const (
	defaultMaxOccurrencesPerAppointment = 5000
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// Location is the timezone whose calendar dates are enumerated.
	// If nil, time.Local is used.
	Location *time.Location

	// RangeStart / RangeEnd select an inclusive range of calendar dates;
	// their time-of-day is ignored.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerAppointment is a safety cap for very long ranges.
	// If zero, defaultMaxOccurrencesPerAppointment is used.
	MaxOccurrencesPerAppointment int
}

// ExpandResult wraps the list of expanded occurrences and optionally
// information about truncation.
type ExpandResult struct {
	Occurrences []model.Occurrence
	// Truncated records indexes of appointments that hit the cap.
	Truncated []int
}

// Expand turns appointments into concrete occurrences on every calendar date
// within the configured range. The result is ordered by date and, within one
// date, by the appointments' order in appts, so it agrees line for line with
// calling OccursOn for each valid date.
func Expand(appts []appointment.Appointment, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxOccurrencesPerAppointment <= 0 {
		cfg.MaxOccurrencesPerAppointment = defaultMaxOccurrencesPerAppointment
	}

	first := midnight(cfg.RangeStart, cfg.Location)
	last := midnight(cfg.RangeEnd, cfg.Location)

	all := make([]model.Occurrence, 0)
	for i, a := range appts {
		occ, hitCap := expandOne(a, first, last, cfg)
		if hitCap {
			result.Truncated = append(result.Truncated, i)
			appLog.Error("expand: truncated occurrences due to cap",
				errors.New("max occurrences reached"),
				"appointment", a.Format(),
				"cap", cfg.MaxOccurrencesPerAppointment,
			)
		}
		all = append(all, occ...)
	}

	slices.SortStableFunc(all, func(x, y model.Occurrence) int {
		return compareDates(x.Date, y.Date)
	})

	result.Occurrences = all
	return result, nil
}

func expandOne(a appointment.Appointment, first, last time.Time, cfg ExpandConfig) ([]model.Occurrence, bool) {
	if a.Kind() == appointment.KindOneTime {
		return expandOneTime(a, first, last, cfg.Location), false
	}

	opt, ok := RuleFor(a)
	if !ok {
		appLog.Debug("expand: appointment never occurs on a calendar date", "appointment", a.Format())
		return nil, false
	}
	opt.Dtstart = first

	r, err := rrule.NewRRule(opt)
	if err != nil {
		appLog.Error("expand: failed to build RRULE", err, "appointment", a.Format())
		return nil, false
	}

	times := r.Between(first, last, true)
	hitCap := false
	if len(times) > cfg.MaxOccurrencesPerAppointment {
		times = times[:cfg.MaxOccurrencesPerAppointment]
		hitCap = true
	}

	out := make([]model.Occurrence, 0, len(times))
	for _, t := range times {
		out = append(out, makeOccurrence(a, model.DateOf(t), cfg.Location))
	}
	return out, hitCap
}

func expandOneTime(a appointment.Appointment, first, last time.Time, loc *time.Location) []model.Occurrence {
	b := a.Details()
	d := model.Date{Year: b.Year, Month: b.Month, Day: b.Day}
	if !d.Valid() {
		return nil
	}
	t := d.Time(loc)
	if t.Before(first) || t.After(last) {
		return nil
	}
	return []model.Occurrence{makeOccurrence(a, d, loc)}
}

func makeOccurrence(a appointment.Appointment, d model.Date, loc *time.Location) model.Occurrence {
	b := a.Details()
	return model.Occurrence{
		Appointment: a,
		Date:        d,
		Start:       time.Date(d.Year, time.Month(d.Month), d.Day, b.Hour, b.Minute, 0, 0, loc),
	}
}

func midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func compareDates(x, y model.Date) int {
	if c := cmp.Compare(x.Year, y.Year); c != 0 {
		return c
	}
	if c := cmp.Compare(x.Month, y.Month); c != 0 {
		return c
	}
	return cmp.Compare(x.Day, y.Day)
}
