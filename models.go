package main

import "time"

// Student is one child linked to the parent account. Name is the grouping
// key for every per-student collection; two children with the same display
// name silently merge under one key.
type Student struct {
	ID   string
	Name string
}

// GradeEntry is one scored assessment. Value, OutOf, Coefficient and the
// class statistics are opaque strings: Pronote encodes non-numeric values
// such as "Abs" or fractional scales, so they are never coerced to numbers.
type GradeEntry struct {
	Student      string
	Subject      string
	Value        string
	OutOf        string
	Coefficient  string
	Comment      string
	Date         time.Time
	Period       string
	IsBonus      bool
	ClassAverage string
	ClassMax     string
	ClassMin     string
}

type HomeworkEntry struct {
	Student     string
	Subject     string
	Description string
	DueDate     time.Time
	Done        bool
}

// TimetableEntry is one scheduled lesson. Teacher is always empty: the
// portal does not reliably expose it on lessons.
type TimetableEntry struct {
	Student string
	Subject string
	Teacher string
	Start   time.Time
	End     time.Time
	Date    time.Time
	Room    string
}

// ReportRange returns the grade lookback range shown in report subtitles:
// today minus the grade window, through today.
func ReportRange(today time.Time, days int) (time.Time, time.Time) {
	return today.AddDate(0, 0, -days), today
}

// dateOnly truncates a timestamp to its calendar date, keeping the location.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
