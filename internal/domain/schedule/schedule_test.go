package schedule

import (
	"testing"
	"time"
)

func at(hhmm string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", "2026-10-19 "+hhmm, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func everyDay(entries []Entry) EntriesFunc {
	return func(time.Time) []Entry { return entries }
}

// onWeekdays simula slots weekly: cada slot solo queda asignado en sus días.
func onWeekdays(days map[int][]time.Weekday, entries []Entry) EntriesFunc {
	return func(day time.Time) []Entry {
		out := make([]Entry, 0, len(entries))
		for _, e := range entries {
			active := false
			for _, wd := range days[e.SlotID] {
				if wd == day.Weekday() {
					active = true
				}
			}
			e.Assigned = e.Assigned && active
			out = append(out, e)
		}
		return out
	}
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		in   string
		want Clock
		ok   bool
	}{
		{"08:00", Clock{8, 0}, true},
		{"8:05", Clock{8, 5}, true},
		{" 20:30 ", Clock{20, 30}, true},
		{"2026-10-19T14:45:00Z", Clock{14, 45}, true},
		{"2026-10-19T14:45:00.000", Clock{14, 45}, true},
		{"2026-10-19T07:15", Clock{7, 15}, true},
		{"24:00", Clock{}, false},
		{"12:60", Clock{}, false},
		{"noon", Clock{}, false},
		{"", Clock{}, false},
		{"123:00", Clock{}, false},
	}
	for _, c := range cases {
		got, ok := ParseClock(c.in, time.UTC)
		if ok != c.ok || got != c.want {
			t.Fatalf("ParseClock(%q) = %v,%v want %v,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestNextDose(t *testing.T) {
	times := []string{"08:00", "20:00"}

	if got := NextDose(times, at("07:59")); got != "08:00" {
		t.Fatalf("before first dose: got %s", got)
	}
	if got := NextDose(times, at("08:00")); got != "20:00" {
		t.Fatalf("at first dose: got %s", got)
	}
	if got := NextDose(times, at("21:00")); got != "08:00" {
		t.Fatalf("after last dose should wrap: got %s", got)
	}
	if got := NextDose([]string{"bad", "12:00", "oops"}, at("10:00")); got != "12:00" {
		t.Fatalf("malformed entries should be ignored: got %s", got)
	}
	if got := NextDose([]string{"bad"}, at("10:00")); got != Placeholder {
		t.Fatalf("expected placeholder, got %s", got)
	}
	if got := NextDose(nil, at("10:00")); got != Placeholder {
		t.Fatalf("expected placeholder for empty schedule, got %s", got)
	}
}

func TestNextDoseAt_RollsToTomorrow(t *testing.T) {
	got, ok := NextDoseAt([]string{"08:00", "20:00"}, at("21:00"))
	if !ok {
		t.Fatalf("expected a next dose")
	}
	want := time.Date(2026, 10, 20, 8, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %s want %s", got, want)
	}

	if _, ok := NextDoseAt([]string{"x"}, at("21:00")); ok {
		t.Fatalf("expected no dose for malformed schedule")
	}
}

func demoEntries() []Entry {
	return []Entry{
		{SlotID: 1, Assigned: true, Times: []string{"08:00", "20:00"}},
		{SlotID: 2, Assigned: true, Times: []string{"09:00"}},
		{SlotID: 3, Assigned: true, Times: []string{"12:00", "18:00", "00:00"}},
		{SlotID: 4, Assigned: false, Times: []string{"08:00"}},
	}
}

func TestTodayDoses_OrderedAndSkipsUnassigned(t *testing.T) {
	doses := TodayDoses(demoEntries(), at("10:00"))
	if len(doses) != 6 {
		t.Fatalf("expected 6 doses, got %d", len(doses))
	}
	if doses[0].ID != "2026-10-19/3/2" {
		t.Fatalf("expected midnight dose first, got %s", doses[0].ID)
	}
	for i := 1; i < len(doses); i++ {
		if doses[i].At.Before(doses[i-1].At) {
			t.Fatalf("doses not ordered at %d", i)
		}
	}
	for _, d := range doses {
		if d.SlotID == 4 {
			t.Fatalf("unassigned slot produced a dose: %s", d.ID)
		}
	}
}

func TestDueAt_ExactMinuteOnly(t *testing.T) {
	entries := demoEntries()

	due := DueAt(entries, at("08:00").Add(42*time.Second))
	if len(due) != 1 || due[0].ID != "2026-10-19/1/0" {
		t.Fatalf("unexpected due doses: %#v", due)
	}
	if due := DueAt(entries, at("08:01")); len(due) != 0 {
		t.Fatalf("expected nothing due at 08:01, got %#v", due)
	}
}

func TestDoseID_Parse(t *testing.T) {
	day, slot, idx, err := DoseID("2026-10-19/3/2").Parse()
	if err != nil || day != "2026-10-19" || slot != 3 || idx != 2 {
		t.Fatalf("unexpected parse: %s %d %d %v", day, slot, idx, err)
	}
	for _, bad := range []string{"", "2026-10-19/3", "19-10-2026/3/2", "2026-10-19/0/1", "2026-10-19/a/1"} {
		if _, _, _, err := DoseID(bad).Parse(); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestUpcoming_WalksIntoTomorrow(t *testing.T) {
	got := Upcoming(everyDay(demoEntries()), at("19:00"), 4)
	want := []DoseID{
		"2026-10-19/1/1",
		"2026-10-20/3/2",
		"2026-10-20/1/0",
		"2026-10-20/2/0",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d doses, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("dose %d: got %s want %s", i, got[i].ID, want[i])
		}
	}

	if got := Upcoming(everyDay(nil), at("19:00"), 3); got != nil {
		t.Fatalf("expected nil for empty schedule")
	}
}

func TestUpcoming_RepeatsSingleDoseDaily(t *testing.T) {
	got := Upcoming(everyDay([]Entry{{SlotID: 2, Assigned: true, Times: []string{"09:00"}}}), at("10:00"), 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 doses, got %d", len(got))
	}
	if got[2].ID != "2026-10-22/2/0" {
		t.Fatalf("expected third occurrence on the 22nd, got %s", got[2].ID)
	}
}

func TestUpcoming_WeeklySlotsOnlyOnTheirDays(t *testing.T) {
	entries := []Entry{
		{SlotID: 1, Assigned: true, Times: []string{"08:00"}},
		{SlotID: 2, Assigned: true, Times: []string{"09:00"}},
	}
	// 2026-10-19 es lunes
	weekly := onWeekdays(map[int][]time.Weekday{
		1: {time.Monday},
		2: {time.Tuesday},
	}, entries)

	got := Upcoming(weekly, at("10:00"), 3)
	want := []DoseID{
		"2026-10-20/2/0",
		"2026-10-26/1/0",
		"2026-10-27/2/0",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d doses, got %#v", len(want), got)
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("dose %d: got %s want %s", i, got[i].ID, want[i])
		}
	}
}

func TestUpcoming_StopsWhenNothingIsActive(t *testing.T) {
	none := onWeekdays(map[int][]time.Weekday{}, []Entry{{SlotID: 1, Assigned: true, Times: []string{"08:00"}}})
	if got := Upcoming(none, at("10:00"), 3); got != nil {
		t.Fatalf("expected nil, got %#v", got)
	}
}

func TestNextFor_SkipsInactiveDays(t *testing.T) {
	entries := []Entry{
		{SlotID: 1, Assigned: true, Times: []string{"08:00"}},
		{SlotID: 2, Assigned: true, Times: []string{"07:00"}},
	}
	weekly := onWeekdays(map[int][]time.Weekday{
		1: {time.Thursday},
		2: {time.Monday, time.Tuesday},
	}, entries)

	next, ok := NextFor(weekly, 1, at("10:00"))
	if !ok || next.ID != "2026-10-22/1/0" {
		t.Fatalf("expected thursday dose, got %#v %v", next, ok)
	}
	if _, ok := NextFor(weekly, 9, at("10:00")); ok {
		t.Fatalf("unknown slot must have no next dose")
	}
}

func TestDoseID_Day(t *testing.T) {
	day, err := DoseID("2026-10-20/1/0").Day()
	if err != nil || day.Weekday() != time.Tuesday {
		t.Fatalf("expected tuesday, got %v %v", day, err)
	}
	if _, err := DoseID("bad").Day(); err == nil {
		t.Fatalf("expected error for malformed id")
	}
}
