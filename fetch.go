package main

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// DegradationKind says why a student's homework or timetable collection was
// reduced to an empty slice instead of failing the run. Today all three kinds
// get the same recovery; keeping them distinct leaves room to tighten the
// policy later.
type DegradationKind int

const (
	DegradeCapability DegradationKind = iota // portal does not expose the capability
	DegradeRecord                            // a record in the response failed to decode
	DegradeNetwork                           // transport or portal-side failure
)

func (k DegradationKind) String() string {
	switch k {
	case DegradeCapability:
		return "capability missing"
	case DegradeRecord:
		return "malformed record"
	case DegradeNetwork:
		return "network failure"
	}
	return "unknown"
}

// Degradation records one recovered per-student failure from a homework or
// timetable fetch.
type Degradation struct {
	Student string
	Kind    DegradationKind
	Err     error
}

func (d Degradation) String() string {
	return fmt.Sprintf("%s: %s (%v)", d.Student, d.Kind, d.Err)
}

// FetchGrades logs in as a parent and returns grades per child for the last
// cfg.GradeWindowDays days, newest first. Grades are the primary report
// content: any upstream failure here is fatal for the call.
func FetchGrades(login LoginFunc, cfg Config, today time.Time) (map[string][]GradeEntry, error) {
	session, err := login(cfg.PronoteURL, cfg.PronoteUsername, cfg.PronotePassword)
	if err != nil {
		return nil, err
	}
	if !session.LoggedIn() {
		return nil, &AuthError{Reason: "session did not report a logged-in state"}
	}

	cutoff := dateOnly(today).AddDate(0, 0, -cfg.GradeWindowDays)
	results := make(map[string][]GradeEntry)

	for _, student := range session.Students() {
		grades := []GradeEntry{}

		periods, err := session.Periods(student)
		if err != nil {
			return nil, fmt.Errorf("fetching periods for %s: %w", student.Name, err)
		}
		for _, period := range periods {
			raw, err := session.Grades(student, period)
			if err != nil {
				return nil, fmt.Errorf("fetching grades for %s (%s): %w", student.Name, period.Name, err)
			}
			for _, g := range raw {
				if g.Date.Before(cutoff) {
					continue
				}
				grades = append(grades, GradeEntry{
					Student:      student.Name,
					Subject:      subjectOrFallback(g.Subject),
					Value:        g.Value,
					OutOf:        g.OutOf,
					Coefficient:  g.Coefficient,
					Comment:      g.Comment,
					Date:         g.Date,
					Period:       period.Name,
					IsBonus:      g.IsBonus,
					ClassAverage: g.ClassAverage,
					ClassMax:     g.ClassMax,
					ClassMin:     g.ClassMin,
				})
			}
		}

		sort.SliceStable(grades, func(i, j int) bool {
			return grades[i].Date.After(grades[j].Date)
		})
		results[student.Name] = grades
	}

	return results, nil
}

// FetchHomework logs in as a parent and returns homework per child due within
// the next cfg.LookaheadDays days, earliest due date first. Homework is
// supplementary: per-student failures degrade to an empty slice and are
// reported as Degradations; only authentication failures are fatal.
func FetchHomework(login LoginFunc, cfg Config, today time.Time) (map[string][]HomeworkEntry, []Degradation, error) {
	session, err := login(cfg.PronoteURL, cfg.PronoteUsername, cfg.PronotePassword)
	if err != nil {
		return nil, nil, err
	}
	if !session.LoggedIn() {
		return nil, nil, &AuthError{Reason: "session did not report a logged-in state"}
	}

	start := dateOnly(today)
	cutoff := start.AddDate(0, 0, cfg.LookaheadDays)
	results := make(map[string][]HomeworkEntry)
	var degradations []Degradation

	for _, student := range session.Students() {
		homework := []HomeworkEntry{}

		raw, err := session.Homework(student, start)
		if err != nil {
			degradations = append(degradations, classifyDegradation(student.Name, err))
			results[student.Name] = homework
			continue
		}
		for _, hw := range raw {
			if hw.DueDate.IsZero() || hw.DueDate.Before(start) || hw.DueDate.After(cutoff) {
				continue
			}
			homework = append(homework, HomeworkEntry{
				Student:     student.Name,
				Subject:     subjectOrFallback(hw.Subject),
				Description: hw.Description,
				DueDate:     hw.DueDate,
				Done:        hw.Done,
			})
		}

		sort.SliceStable(homework, func(i, j int) bool {
			return homework[i].DueDate.Before(homework[j].DueDate)
		})
		results[student.Name] = homework
	}

	return results, degradations, nil
}

// FetchTimetable logs in as a parent and returns lessons per child starting
// within the next cfg.LookaheadDays days, ordered by date then start time.
// Same degraded-mode policy as FetchHomework.
func FetchTimetable(login LoginFunc, cfg Config, today time.Time) (map[string][]TimetableEntry, []Degradation, error) {
	session, err := login(cfg.PronoteURL, cfg.PronoteUsername, cfg.PronotePassword)
	if err != nil {
		return nil, nil, err
	}
	if !session.LoggedIn() {
		return nil, nil, &AuthError{Reason: "session did not report a logged-in state"}
	}

	start := dateOnly(today)
	cutoff := start.AddDate(0, 0, cfg.LookaheadDays)
	results := make(map[string][]TimetableEntry)
	var degradations []Degradation

	for _, student := range session.Students() {
		timetable := []TimetableEntry{}

		raw, err := session.Lessons(student, start)
		if err != nil {
			degradations = append(degradations, classifyDegradation(student.Name, err))
			results[student.Name] = timetable
			continue
		}
		for _, lesson := range raw {
			if lesson.Start.IsZero() {
				continue
			}
			day := dateOnly(lesson.Start)
			if day.Before(start) || day.After(cutoff) {
				continue
			}
			timetable = append(timetable, TimetableEntry{
				Student: student.Name,
				Subject: subjectOrFallback(lesson.Subject),
				Teacher: "", // not reliably exposed by the portal
				Start:   lesson.Start,
				End:     lesson.End,
				Date:    day,
				Room:    lesson.Room,
			})
		}

		sort.SliceStable(timetable, func(i, j int) bool {
			if !timetable[i].Date.Equal(timetable[j].Date) {
				return timetable[i].Date.Before(timetable[j].Date)
			}
			return timetable[i].Start.Before(timetable[j].Start)
		})
		results[student.Name] = timetable
	}

	return results, degradations, nil
}

func classifyDegradation(student string, err error) Degradation {
	kind := DegradeNetwork
	var recordErr *RecordError
	switch {
	case errors.Is(err, ErrNotSupported):
		kind = DegradeCapability
	case errors.As(err, &recordErr):
		kind = DegradeRecord
	}
	return Degradation{Student: student, Kind: kind, Err: err}
}

func subjectOrFallback(subject string) string {
	if subject == "" {
		return "—"
	}
	return subject
}
