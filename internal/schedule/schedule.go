// Package schedule holds the ordered appointment collection and renders the
// per-date report.
package schedule

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"omnisched/internal/appointment"
	"omnisched/internal/config"
	appLog "omnisched/internal/log"
	"omnisched/internal/model"
)

// Book is an ordered collection of appointments. Insertion order is the
// report order. A Book is filled once and only read afterwards.
type Book struct {
	items []appointment.Appointment
}

func New(appts ...appointment.Appointment) *Book {
	b := &Book{items: make([]appointment.Appointment, 0, len(appts))}
	for _, a := range appts {
		b.Add(a)
	}
	return b
}

// Add appends a. Nil values are ignored.
func (b *Book) Add(a appointment.Appointment) {
	if a == nil {
		return
	}
	b.items = append(b.items, a)
}

func (b *Book) Len() int { return len(b.items) }

// All returns a copy of the appointments in insertion order.
func (b *Book) All() []appointment.Appointment {
	out := make([]appointment.Appointment, len(b.items))
	copy(out, b.items)
	return out
}

// On returns the appointments occurring on the date, in insertion order.
func (b *Book) On(year, month, day int) []appointment.Appointment {
	out := make([]appointment.Appointment, 0, len(b.items))
	for _, a := range b.items {
		if a.OccursOn(year, month, day) {
			out = append(out, a)
		}
	}
	return out
}

// WriteReport writes the report for one date: a blank line, the header,
// one line per matching appointment and a trailing blank line.
func (b *Book) WriteReport(w io.Writer, year, month, day int) error {
	date := model.Date{Year: year, Month: month, Day: day}
	matches := b.On(year, month, day)
	appLog.Debug("report", "date", date.String(), "matches", len(matches), "total", len(b.items))
	return writeDay(w, date, matches)
}

// WriteAgenda writes one report block per day for days consecutive days
// starting at from, using already expanded occurrences. Days without
// occurrences still get a header.
func WriteAgenda(w io.Writer, occurrences []model.Occurrence, from model.Date, days int) error {
	byDate := make(map[model.Date][]appointment.Appointment)
	for _, occ := range occurrences {
		byDate[occ.Date] = append(byDate[occ.Date], occ.Appointment)
	}

	start := from.Time(time.UTC)
	for i := 0; i < days; i++ {
		date := model.DateOf(start.AddDate(0, 0, i))
		if err := writeDay(w, date, byDate[date]); err != nil {
			return err
		}
	}
	return nil
}

func writeDay(w io.Writer, date model.Date, appts []appointment.Appointment) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "\nAll appointments on %s:\n", date)
	for _, a := range appts {
		fmt.Fprintln(bw, a.Format())
	}
	fmt.Fprintln(bw)
	return bw.Flush()
}

// FromConfig builds a Book from configured entries, keeping their order.
func FromConfig(entries []config.AppointmentConfig) (*Book, error) {
	b := New()
	for i, e := range entries {
		a, err := fromEntry(e)
		if err != nil {
			return nil, fmt.Errorf("schedule: appointment %d (%q): %w", i, e.Description, err)
		}
		b.Add(a)
	}
	return b, nil
}

func fromEntry(e config.AppointmentConfig) (appointment.Appointment, error) {
	kind, err := appointment.ParseKind(e.Kind)
	if err != nil {
		return nil, err
	}
	switch kind {
	case appointment.KindOneTime:
		return appointment.NewOneTime(e.Description, e.Year, e.Month, e.Day, e.Hour, e.Minute), nil
	case appointment.KindDaily:
		return appointment.NewDaily(e.Description, e.Hour, e.Minute), nil
	case appointment.KindWeekly:
		return appointment.NewWeekly(e.Description, e.Weekday, e.Hour, e.Minute), nil
	default:
		return appointment.NewMonthly(e.Description, e.Day, e.Hour, e.Minute), nil
	}
}
