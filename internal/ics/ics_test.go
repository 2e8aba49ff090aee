package ics

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"omnisched/internal/appointment"
	"omnisched/internal/model"
)

func demo() []appointment.Appointment {
	return []appointment.Appointment{
		appointment.NewOneTime("Orthodontist appointment", 2024, 12, 3, 9, 0),
		appointment.NewDaily("Chest day", 6, 0),
		appointment.NewWeekly("COMP-200-1201: Object Oriented Prog. C++", 1, 17, 20),
		appointment.NewMonthly("Pay credit card", 30, 8, 45),
	}
}

func TestRuleFor(t *testing.T) {
	cases := []struct {
		a    appointment.Appointment
		want []string
	}{
		{appointment.NewDaily("d", 6, 0), []string{"FREQ=DAILY"}},
		{appointment.NewMonthly("m", 30, 8, 45), []string{"FREQ=MONTHLY", "BYMONTHDAY=30"}},
		{appointment.NewWeekly("w", 1, 17, 20), []string{"FREQ=MONTHLY", "BYMONTHDAY=1,8,15,22,29"}},
		{appointment.NewWeekly("w", 0, 17, 20), []string{"FREQ=MONTHLY", "BYMONTHDAY=7,14,21,28"}},
	}
	for _, c := range cases {
		opt, ok := RuleFor(c.a)
		if !ok {
			t.Fatalf("%s: expected a rule", c.a.Format())
		}
		got := opt.RRuleString()
		for _, w := range c.want {
			if !strings.Contains(got, w) {
				t.Fatalf("%s: expected %q in %q", c.a.Format(), w, got)
			}
		}
	}

	for _, a := range []appointment.Appointment{
		appointment.NewOneTime("o", 2024, 1, 1, 0, 0),
		appointment.NewWeekly("w", 7, 0, 0),
		appointment.NewWeekly("w", -1, 0, 0),
		appointment.NewMonthly("m", 0, 0, 0),
		appointment.NewMonthly("m", 32, 0, 0),
		appointment.Base{},
	} {
		if _, ok := RuleFor(a); ok {
			t.Fatalf("%s: expected no rule", a.Format())
		}
	}
}

func TestShapeOfRejectsForeignRules(t *testing.T) {
	for _, s := range []string{
		"FREQ=WEEKLY;BYDAY=MO",
		"FREQ=DAILY;INTERVAL=2",
		"FREQ=DAILY;COUNT=3",
		"FREQ=MONTHLY;BYMONTHDAY=1,2",
		"FREQ=YEARLY",
	} {
		opt, err := rrule.StrToROption(s)
		if err != nil {
			t.Fatalf("StrToROption(%q): %v", s, err)
		}
		if _, err := shapeOf(opt); err == nil {
			t.Fatalf("expected %q to be rejected", s)
		}
	}
}

func TestExpandAgreesWithOccursOn(t *testing.T) {
	appts := []appointment.Appointment{
		appointment.NewOneTime("leap", 2024, 2, 29, 9, 0),
		appointment.NewOneTime("impossible", 2024, 2, 30, 9, 0),
		appointment.NewDaily("daily", 6, 0),
		appointment.NewMonthly("end of month", 31, 8, 0),
		appointment.NewMonthly("twenty-ninth", 29, 8, 0),
		appointment.NewMonthly("never", 0, 8, 0),
		appointment.NewWeekly("bad weekday", 9, 7, 0),
		appointment.Base{Description: "placeholder"},
	}
	for w := 0; w <= 6; w++ {
		appts = append(appts, appointment.NewWeekly("weekly", w, 10, 30))
	}

	res, err := Expand(appts, ExpandConfig{
		Location:   time.UTC,
		RangeStart: time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2024, 12, 31, 1, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(res.Truncated) != 0 {
		t.Fatalf("unexpected truncation %v", res.Truncated)
	}

	got := make(map[model.Date][]string)
	for _, occ := range res.Occurrences {
		got[occ.Date] = append(got[occ.Date], occ.Appointment.Format())
		b := occ.Appointment.Details()
		if occ.Start.Hour() != b.Hour || occ.Start.Minute() != b.Minute || model.DateOf(occ.Start) != occ.Date {
			t.Fatalf("occurrence start %s does not match %v at %d:%d", occ.Start, occ.Date, b.Hour, b.Minute)
		}
	}

	for day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC); day.Year() == 2024; day = day.AddDate(0, 0, 1) {
		d := model.DateOf(day)
		var want []string
		for _, a := range appts {
			if a.OccursOn(d.Year, d.Month, d.Day) {
				want = append(want, a.Format())
			}
		}
		if strings.Join(got[d], "|") != strings.Join(want, "|") {
			t.Fatalf("%v: expected %v, got %v", d, want, got[d])
		}
	}
}

func TestExpandOrderedByDate(t *testing.T) {
	appts := []appointment.Appointment{
		appointment.NewMonthly("m", 2, 8, 0),
		appointment.NewDaily("d", 6, 0),
	}
	res, err := Expand(appts, ExpandConfig{
		Location:   time.UTC,
		RangeStart: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	var got []string
	for _, occ := range res.Occurrences {
		got = append(got, occ.Date.String()+" "+occ.Appointment.Details().Description)
	}
	want := "3/1/2025 d|3/2/2025 m|3/2/2025 d|3/3/2025 d"
	if strings.Join(got, "|") != want {
		t.Fatalf("expected %s, got %s", want, strings.Join(got, "|"))
	}
}

func TestExpandCapAndRange(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	if _, err := Expand(nil, ExpandConfig{RangeStart: start, RangeEnd: start.AddDate(0, 0, -1)}); err == nil {
		t.Fatalf("expected error for inverted range")
	}

	res, err := Expand([]appointment.Appointment{appointment.NewDaily("d", 1, 0)}, ExpandConfig{
		Location:                     time.UTC,
		RangeStart:                   start,
		RangeEnd:                     start.AddDate(0, 0, 9),
		MaxOccurrencesPerAppointment: 3,
	})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(res.Occurrences) != 3 {
		t.Fatalf("expected 3 occurrences, got %d", len(res.Occurrences))
	}
	if len(res.Truncated) != 1 || res.Truncated[0] != 0 {
		t.Fatalf("expected appointment 0 truncated, got %v", res.Truncated)
	}
}

func TestExportParseRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	stamp := time.Date(2024, 12, 3, 12, 0, 0, 0, time.UTC)
	if err := Export(&buf, demo(), stamp); err != nil {
		t.Fatalf("Export: %v", err)
	}
	body := buf.String()

	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"FREQ=DAILY",
		"BYMONTHDAY=1,8,15,22,29",
		"BYMONTHDAY=30",
		"X-OMNISCHED-KIND:weekly",
		"DTSTART:20241203T090000",
		"DTSTART:20241208T172000",
		"DTSTART:20241230T084500",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in export:\n%s", want, body)
		}
	}

	back, err := Parse(buf.Bytes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	orig := demo()
	if len(back) != len(orig) {
		t.Fatalf("expected %d appointments, got %d", len(orig), len(back))
	}
	for i := range orig {
		if back[i].Format() != orig[i].Format() {
			t.Fatalf("entry %d: expected %q, got %q", i, orig[i].Format(), back[i].Format())
		}
		if back[i].Kind() != orig[i].Kind() {
			t.Fatalf("entry %d: expected kind %q, got %q", i, orig[i].Kind(), back[i].Kind())
		}
	}
}

func TestExportStableUIDs(t *testing.T) {
	stamp := time.Date(2024, 12, 3, 0, 0, 0, 0, time.UTC)
	var a, b bytes.Buffer
	if err := Export(&a, demo(), stamp); err != nil {
		t.Fatal(err)
	}
	if err := Export(&b, demo(), stamp); err != nil {
		t.Fatal(err)
	}
	if a.String() != b.String() {
		t.Fatalf("expected identical exports for identical input")
	}
	if strings.Count(a.String(), "@omnisched") != len(demo()) {
		t.Fatalf("expected one UID per appointment")
	}
}

func TestCalendarSkipsInexpressible(t *testing.T) {
	appts := []appointment.Appointment{
		appointment.NewDaily("ok", 6, 0),
		appointment.NewOneTime("impossible", 2023, 2, 29, 9, 0),
		appointment.NewWeekly("bad weekday", 9, 7, 0),
		appointment.NewMonthly("bad day", 0, 7, 0),
		appointment.NewDaily("bad clock", 25, 0),
		appointment.Base{Description: "placeholder"},
	}
	cal, skipped := Calendar(appts, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if len(cal.Events()) != 1 {
		t.Fatalf("expected 1 event, got %d", len(cal.Events()))
	}
	if len(skipped) != 5 {
		t.Fatalf("expected 5 skipped, got %d", len(skipped))
	}
	if skipped[0].Details().Description != "impossible" {
		t.Fatalf("expected skipped in input order, got %q first", skipped[0].Details().Description)
	}
}

func TestParseForeignCalendar(t *testing.T) {
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//EN",
		"BEGIN:VEVENT",
		"UID:a",
		"DTSTART:20250301T070000Z",
		"SUMMARY:Gym",
		"RRULE:FREQ=DAILY",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:b",
		"DTSTART;VALUE=DATE:20250415",
		"SUMMARY:Taxes",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:c",
		"DTSTART;TZID=Europe/Berlin:20250102T083000",
		"SUMMARY:Rent",
		"RRULE:FREQ=MONTHLY;BYMONTHDAY=2",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:d",
		"DTSTART:20250107T180000",
		"SUMMARY:Book club",
		"RRULE:FREQ=MONTHLY;BYMONTHDAY=28,7,14,21",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:e",
		"DTSTART:20250106T090000",
		"SUMMARY:Real weekly",
		"RRULE:FREQ=WEEKLY;BYDAY=MO",
		"END:VEVENT",
		"END:VCALENDAR",
	}
	appts, err := Parse([]byte(strings.Join(lines, "\r\n") + "\r\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := []string{
		"Daily Appointment at 7:00 - Gym",
		"Onetime Appointment on 4/15/2025 at 0:00 - Taxes",
		"Monthly Appointment on day 2 at 8:30 - Rent",
		"Weekly Appointment on weekday 0 at 18:00 - Book club",
	}
	if len(appts) != len(want) {
		t.Fatalf("expected %d appointments, got %d", len(want), len(appts))
	}
	for i, w := range want {
		if appts[i].Format() != w {
			t.Fatalf("entry %d: expected %q, got %q", i, w, appts[i].Format())
		}
	}
}

func TestParseWeeklyNeedsWeekday(t *testing.T) {
	event := func(uid string, extra ...string) []string {
		out := []string{
			"BEGIN:VEVENT",
			"UID:" + uid,
			"DTSTART:20250107T180000",
			"SUMMARY:" + uid,
			"X-OMNISCHED-KIND:weekly",
		}
		out = append(out, extra...)
		return append(out, "END:VEVENT")
	}

	lines := []string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//EN"}
	lines = append(lines, event("bare")...)
	lines = append(lines, event("tagged", "X-OMNISCHED-WEEKDAY:3")...)
	lines = append(lines, event("ruled", "RRULE:FREQ=MONTHLY;BYMONTHDAY=2,9,16,23,30")...)
	lines = append(lines, "END:VCALENDAR")

	appts, err := Parse([]byte(strings.Join(lines, "\r\n") + "\r\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := []string{
		"Weekly Appointment on weekday 3 at 18:00 - tagged",
		"Weekly Appointment on weekday 2 at 18:00 - ruled",
	}
	if len(appts) != len(want) {
		t.Fatalf("expected %d appointments, got %d", len(want), len(appts))
	}
	for i, w := range want {
		if appts[i].Format() != w {
			t.Fatalf("entry %d: expected %q, got %q", i, w, appts[i].Format())
		}
	}

	_, err = parseVEvent(mustEvent(t, event("bare")))
	if err == nil || !strings.Contains(err.Error(), "weekly event missing weekday") {
		t.Fatalf("expected missing weekday error, got %v", err)
	}
}

func mustEvent(t *testing.T, event []string) *ical.VEvent {
	t.Helper()
	lines := append([]string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//EN"}, event...)
	lines = append(lines, "END:VCALENDAR")
	cal, err := ical.ParseCalendar(strings.NewReader(strings.Join(lines, "\r\n") + "\r\n"))
	if err != nil {
		t.Fatalf("ParseCalendar: %v", err)
	}
	events := cal.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	return events[0]
}

func TestParseEmpty(t *testing.T) {
	if _, err := Parse(nil); err == nil {
		t.Fatalf("expected error for empty body")
	}
}

func TestReadSourceFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cal.ics")
	if err := os.WriteFile(path, []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	body, err := ReadSource(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadSource: %v", err)
	}
	if !strings.HasPrefix(string(body), "BEGIN:VCALENDAR") {
		t.Fatalf("unexpected body %q", body)
	}

	if _, err := ReadSource(context.Background(), filepath.Join(t.TempDir(), "missing.ics")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if _, err := ReadSource(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty location")
	}
}

func TestReadSourceURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cal.ics" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"))
	}))
	defer srv.Close()

	body, err := ReadSource(context.Background(), srv.URL+"/cal.ics?token=secret")
	if err != nil {
		t.Fatalf("ReadSource: %v", err)
	}
	if !strings.HasPrefix(string(body), "BEGIN:VCALENDAR") {
		t.Fatalf("unexpected body %q", body)
	}

	if _, err := ReadSource(context.Background(), srv.URL+"/other.ics"); err == nil {
		t.Fatalf("expected error for 404")
	}
}

func TestRedactURL(t *testing.T) {
	cases := map[string]string{
		"https://example.com/path/private.ics?token=abcd": "https://example.com/...(redacted)",
		"https://example.com?token=abcd":                  "https://example.com/...(redacted)",
		"https://example.com":                             "https://example.com/...(redacted)",
		"not a url":                                       "ics://...(redacted)",
	}
	for in, want := range cases {
		if got := redactURL(in); got != want {
			t.Fatalf("redactURL(%q): expected %q, got %q", in, want, got)
		}
	}
}
