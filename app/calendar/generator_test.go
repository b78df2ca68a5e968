package calendar

import (
	"strings"
	"testing"
	"time"

	"github.com/showplan/showplan/app/database"
)

func TestGeneratorRun(t *testing.T) {
	items := []database.Item{
		{
			ID:        7,
			SourceKey: "technobase.fm",
			Day:       "2025-01-15",
			Presenter: "Cloud Seven",
			Title:     "Cloud Factory",
			StartTime: "20:00",
			EndTime:   "22:00",
			Style:     "Hands Up",
			CreatedAt: time.Date(2025, 1, 14, 12, 0, 0, 0, time.UTC),
		},
	}

	ics := NewGenerator("test").Run("TechnoBase.FM", items, time.UTC)

	if !strings.HasPrefix(ics, "BEGIN:VCALENDAR\r\n") {
		t.Error("Expected feed to open with BEGIN:VCALENDAR")
	}
	if !strings.Contains(ics, "UID:7@technobase.fm\r\n") {
		t.Error("Expected UID from item id and source key")
	}
	if !strings.Contains(ics, "DTSTART:20250115T200000Z\r\n") {
		t.Errorf("Expected DTSTART for 20:00 UTC, got:\n%s", ics)
	}
	if !strings.Contains(ics, "DTEND:20250115T220000Z\r\n") {
		t.Errorf("Expected DTEND for 22:00 UTC, got:\n%s", ics)
	}
	if !strings.Contains(ics, "SUMMARY:Cloud Seven - Cloud Factory\r\n") {
		t.Error("Expected SUMMARY with presenter and title")
	}
	if !strings.Contains(ics, "CATEGORIES:Hands Up\r\n") {
		t.Error("Expected CATEGORIES with style")
	}
	if !strings.HasSuffix(ics, "END:VCALENDAR\r\n") {
		t.Error("Expected feed to close with END:VCALENDAR")
	}
}

func TestGeneratorMidnightWrap(t *testing.T) {
	items := []database.Item{
		{
			ID: 8, SourceKey: "technobase.fm", Day: "2025-01-15",
			Presenter: "Nightowl", Title: "Late Night Mix",
			StartTime: "23:30", EndTime: "01:30",
			CreatedAt: time.Date(2025, 1, 14, 12, 0, 0, 0, time.UTC),
		},
	}

	ics := NewGenerator("test").Run("TechnoBase.FM", items, time.UTC)

	if !strings.Contains(ics, "DTEND:20250116T013000Z\r\n") {
		t.Errorf("Expected DTEND on the following day, got:\n%s", ics)
	}
}

func TestGeneratorEscaping(t *testing.T) {
	items := []database.Item{
		{
			ID: 9, SourceKey: "technobase.fm", Day: "2025-01-15",
			Presenter: "A;B", Title: "One, Two",
			StartTime: "10:00", EndTime: "12:00",
			CreatedAt: time.Date(2025, 1, 14, 12, 0, 0, 0, time.UTC),
		},
	}

	ics := NewGenerator("test").Run("TechnoBase.FM", items, time.UTC)

	if !strings.Contains(ics, `SUMMARY:A\;B - One\, Two`) {
		t.Errorf("Expected escaped SUMMARY, got:\n%s", ics)
	}
}

func TestClampDays(t *testing.T) {
	cases := []struct {
		in  int
		out int
	}{
		{0, DefaultDays},
		{-3, DefaultDays},
		{5, 5},
		{30, 30},
		{31, MaxDays},
		{365, MaxDays},
	}

	for _, c := range cases {
		if got := ClampDays(c.in); got != c.out {
			t.Errorf("ClampDays(%d): expected %d, got %d", c.in, c.out, got)
		}
	}
}
