package shortid

import (
	"strings"
	"testing"
	"time"
)

func TestSequenceRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		id   ID
		want string
	}{
		{name: "first of 2026", id: ID{Year: 2026, N: 0}, want: "1KA0"},
		{name: "small counter", id: ID{Year: 2026, N: 35}, want: "1KAZ"},
		{name: "multi-digit counter", id: ID{Year: 2026, N: 36}, want: "1KA10"},
		{name: "next year", id: ID{Year: 2027, N: 7}, want: "1KB7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.id.String()
			if got != tt.want {
				t.Fatalf("String() = %q, want %q", got, tt.want)
			}
			parsed, err := Parse(got)
			if err != nil {
				t.Fatalf("parse %q: %v", got, err)
			}
			if parsed != tt.id {
				t.Errorf("Parse(%q) = %+v, want %+v", got, parsed, tt.id)
			}
		})
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "1KA", "???0", "1KA!"} {
		if _, err := Parse(s); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", s)
		}
	}
}

func TestNextIncrementsWithinYear(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	id := First(now)
	for i := 0; i < 100; i++ {
		next := id.Next(now)
		if next.Year != id.Year || next.N != id.N+1 {
			t.Fatalf("Next of %+v = %+v", id, next)
		}
		id = next
	}
}

func TestNextResetsOnYearChange(t *testing.T) {
	id := ID{Year: 2026, N: 500}
	next := id.Next(time.Date(2027, 1, 1, 0, 0, 1, 0, time.UTC))
	if next.Year != 2027 || next.N != 0 {
		t.Fatalf("Next across the year = %+v, want {2027 0}", next)
	}
}

func TestFeedIDAdvancesOnCollision(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	free := FeedID(now, func(string) bool { return false })
	if free != strings.ToUpper(free) {
		t.Errorf("FeedID %q is not uppercase", free)
	}

	taken := map[string]bool{free: true}
	bumped := FeedID(now, func(id string) bool { return taken[id] })
	if bumped == free {
		t.Fatal("FeedID did not advance past a taken id")
	}
	want := FeedID(now.Add(time.Second), func(string) bool { return false })
	if bumped != want {
		t.Errorf("FeedID after collision = %q, want %q", bumped, want)
	}
}

func TestRandomID(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	head := strings.ToUpper(FeedID(now, func(string) bool { return false }))

	id := RandomID(now)
	if !strings.HasPrefix(id, head) {
		t.Errorf("RandomID %q does not start with the timestamp %q", id, head)
	}
	if len(id) != len(head)+2 {
		t.Errorf("RandomID %q has length %d, want %d", id, len(id), len(head)+2)
	}
	if id != strings.ToUpper(id) {
		t.Errorf("RandomID %q is not uppercase", id)
	}
}
