package game

import "testing"

func TestCalendarAdvance(t *testing.T) {
	r := testRules(t)
	tests := []struct {
		name string
		from Calendar
		want Calendar
	}{
		{"within season", Calendar{Year: 1, Season: "spring", Week: 1}, Calendar{Year: 1, Season: "spring", Week: 2, Day: 8}},
		{"season rollover", Calendar{Year: 1, Season: "spring", Week: 12}, Calendar{Year: 1, Season: "summer", Week: 1, Day: 85}},
		{"year rollover", Calendar{Year: 3, Season: "winter", Week: 12}, Calendar{Year: 4, Season: "spring", Week: 1, Day: 1}},
	}
	for _, tc := range tests {
		if got := tc.from.Next(r); got != tc.want {
			t.Fatalf("%s: got %+v, want %+v", tc.name, got, tc.want)
		}
	}
}

func TestWeekIndexRoundTrip(t *testing.T) {
	r := testRules(t)
	first := FirstCalendar(r)
	if first.WeekIndex(r) != 0 || first.PeriodKey() != "y1-spring-w01" {
		t.Fatalf("first calendar = %+v (%s)", first, first.PeriodKey())
	}
	for idx := 0; idx < 200; idx += 7 {
		c := CalendarFromIndex(r, idx)
		if got := c.WeekIndex(r); got != idx {
			t.Fatalf("index %d round-tripped to %d (%+v)", idx, got, c)
		}
	}
	c := CalendarFromIndex(r, 48)
	if c.Year != 2 || c.Season != "spring" || c.Week != 1 {
		t.Fatalf("week 48 = %+v", c)
	}
	if c.String() != "Year 2, spring week 1" {
		t.Fatalf("string = %q", c.String())
	}
}

func TestCalendarPrev(t *testing.T) {
	r := testRules(t)
	if _, ok := FirstCalendar(r).Prev(r); ok {
		t.Fatal("first week has no predecessor")
	}
	prev, ok := Calendar{Year: 2, Season: "spring", Week: 1}.Prev(r)
	if !ok || prev.Year != 1 || prev.Season != "winter" || prev.Week != 12 {
		t.Fatalf("prev = %+v ok=%v", prev, ok)
	}
}
