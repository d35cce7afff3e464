package main

import (
	"testing"
	"time"
)

func TestReportRange(t *testing.T) {
	today := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	since, until := ReportRange(today, 14)
	if !until.Equal(today) {
		t.Fatalf("range must end today, got %s", until)
	}
	if !since.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected range start: %s", since)
	}

	since, until = ReportRange(today, 0)
	if !since.Equal(until) {
		t.Fatalf("zero window must collapse the range, got %s - %s", since, until)
	}
}

func TestDateOnly(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	stamp := time.Date(2026, 3, 16, 18, 45, 12, 999, loc)
	got := dateOnly(stamp)
	if got.Hour() != 0 || got.Minute() != 0 || got.Second() != 0 || got.Nanosecond() != 0 {
		t.Fatalf("dateOnly left time-of-day: %s", got)
	}
	if got.Location() != loc {
		t.Fatalf("dateOnly changed location: %s", got.Location())
	}
	if got.Year() != 2026 || got.Month() != time.March || got.Day() != 16 {
		t.Fatalf("dateOnly changed the date: %s", got)
	}
}
