package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// AuthError means the portal rejected the login or the session never reached
// a logged-in state. It is fatal wherever it is raised.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pronote login failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("pronote login failed: %s", e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ErrNotSupported is returned when the portal does not expose a capability
// (homework or lesson retrieval) for a student.
var ErrNotSupported = errors.New("capability not supported by portal")

// RecordError means one record in an otherwise valid response failed to
// decode, typically an unparseable date.
type RecordError struct {
	Kind  string // "homework" or "lesson"
	Index int
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("malformed %s record at index %d: %v", e.Kind, e.Index, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// Period is one upstream grading term (trimestre/semestre).
type Period struct {
	ID   string
	Name string
}

// RawGrade is a grade record as the portal returns it. Value, OutOf and
// Coefficient stay opaque strings.
type RawGrade struct {
	Subject      string
	Value        string
	OutOf        string
	Coefficient  string
	Comment      string
	Date         time.Time // zero when the portal omitted the date
	IsBonus      bool
	ClassAverage string
	ClassMax     string
	ClassMin     string
}

type RawHomework struct {
	Subject     string
	Description string
	DueDate     time.Time
	Done        bool
}

type RawLesson struct {
	Subject string
	Room    string
	Start   time.Time
	End     time.Time
}

// Session is an authenticated parent connection to the portal. Every call
// takes the student explicitly; there is no "currently selected child"
// cursor, so calls cannot depend on ordering.
type Session interface {
	LoggedIn() bool
	Students() []Student
	Periods(student Student) ([]Period, error)
	Grades(student Student, period Period) ([]RawGrade, error)
	Homework(student Student, from time.Time) ([]RawHomework, error)
	Lessons(student Student, from time.Time) ([]RawLesson, error)
}

// LoginFunc opens a fresh portal session. The fetch pipeline takes it as a
// parameter so tests can substitute a fake session.
type LoginFunc func(portalURL, username, password string) (Session, error)

type loginRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	AccountType string `json:"account_type"`
}

type loginResponse struct {
	Token    string `json:"token"`
	Students []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"students"`
}

type periodItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type gradeItem struct {
	Subject      string `json:"subject"`
	Value        string `json:"value"`
	OutOf        string `json:"out_of"`
	Coefficient  string `json:"coefficient"`
	Comment      string `json:"comment"`
	Date         string `json:"date"` // "2006-01-02", may be empty
	IsBonus      bool   `json:"is_bonus"`
	ClassAverage string `json:"class_average"`
	ClassMax     string `json:"class_max"`
	ClassMin     string `json:"class_min"`
}

type homeworkItem struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
	DueDate     string `json:"due_date"`
	Done        bool   `json:"done"`
}

type lessonItem struct {
	Subject string `json:"subject"`
	Room    string `json:"room"`
	Start   string `json:"start"` // RFC 3339
	End     string `json:"end"`
}

type apiSession struct {
	baseURL  string
	token    string
	students []Student
}

var _ Session = (*apiSession)(nil)

// Login authenticates against the portal's parent API and returns a session
// holding the children linked to the account.
func Login(portalURL, username, password string) (Session, error) {
	base := strings.TrimRight(portalURL, "/")

	payload, err := json.Marshal(loginRequest{
		Username:    username,
		Password:    password,
		AccountType: "parent",
	})
	if err != nil {
		return nil, fmt.Errorf("encoding login request: %w", err)
	}

	req, err := http.NewRequest("POST", base+"/api/v1/auth/login", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := externalHTTPClient.Do(req)
	if err != nil {
		return nil, &AuthError{Reason: "portal unreachable", Err: err}
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("reading login response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &AuthError{Reason: "check URL, username, and password"}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("portal returned %d on login: %s", resp.StatusCode, string(body))
	}

	var result loginResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parsing login response: %w", err)
	}
	if result.Token == "" {
		return nil, &AuthError{Reason: "session did not report a logged-in state"}
	}

	students := make([]Student, 0, len(result.Students))
	for _, s := range result.Students {
		students = append(students, Student{ID: s.ID, Name: s.Name})
	}

	return &apiSession{baseURL: base, token: result.Token, students: students}, nil
}

func (s *apiSession) LoggedIn() bool { return s.token != "" }

func (s *apiSession) Students() []Student { return s.students }

func (s *apiSession) Periods(student Student) ([]Period, error) {
	var items []periodItem
	path := fmt.Sprintf("/api/v1/students/%s/periods", url.PathEscape(student.ID))
	if err := s.getJSON(path, &items); err != nil {
		return nil, err
	}
	periods := make([]Period, 0, len(items))
	for _, item := range items {
		periods = append(periods, Period{ID: item.ID, Name: item.Name})
	}
	return periods, nil
}

func (s *apiSession) Grades(student Student, period Period) ([]RawGrade, error) {
	var items []gradeItem
	path := fmt.Sprintf("/api/v1/students/%s/periods/%s/grades",
		url.PathEscape(student.ID), url.PathEscape(period.ID))
	if err := s.getJSON(path, &items); err != nil {
		return nil, err
	}

	var grades []RawGrade
	for _, item := range items {
		date, err := parsePortalDate(item.Date)
		if err != nil || date.IsZero() {
			// A grade without a usable date cannot be filtered or
			// sorted; exclude it here so the pipeline never sees it.
			continue
		}
		grades = append(grades, RawGrade{
			Subject:      item.Subject,
			Value:        item.Value,
			OutOf:        item.OutOf,
			Coefficient:  item.Coefficient,
			Comment:      item.Comment,
			Date:         date,
			IsBonus:      item.IsBonus,
			ClassAverage: item.ClassAverage,
			ClassMax:     item.ClassMax,
			ClassMin:     item.ClassMin,
		})
	}
	return grades, nil
}

func (s *apiSession) Homework(student Student, from time.Time) ([]RawHomework, error) {
	var items []homeworkItem
	path := fmt.Sprintf("/api/v1/students/%s/homework?from=%s",
		url.PathEscape(student.ID), from.Format("2006-01-02"))
	if err := s.getJSON(path, &items); err != nil {
		return nil, err
	}

	var homework []RawHomework
	for i, item := range items {
		due, err := parsePortalDate(item.DueDate)
		if err != nil {
			return nil, &RecordError{Kind: "homework", Index: i, Err: err}
		}
		homework = append(homework, RawHomework{
			Subject:     item.Subject,
			Description: item.Description,
			DueDate:     due,
			Done:        item.Done,
		})
	}
	return homework, nil
}

func (s *apiSession) Lessons(student Student, from time.Time) ([]RawLesson, error) {
	var items []lessonItem
	path := fmt.Sprintf("/api/v1/students/%s/lessons?from=%s",
		url.PathEscape(student.ID), from.Format("2006-01-02"))
	if err := s.getJSON(path, &items); err != nil {
		return nil, err
	}

	var lessons []RawLesson
	for i, item := range items {
		var start, end time.Time
		if item.Start != "" {
			parsed, err := time.Parse(time.RFC3339, item.Start)
			if err != nil {
				return nil, &RecordError{Kind: "lesson", Index: i, Err: err}
			}
			start = parsed
		}
		if item.End != "" {
			parsed, err := time.Parse(time.RFC3339, item.End)
			if err != nil {
				return nil, &RecordError{Kind: "lesson", Index: i, Err: err}
			}
			end = parsed
		}
		lessons = append(lessons, RawLesson{
			Subject: item.Subject,
			Room:    item.Room,
			Start:   start,
			End:     end,
		})
	}
	return lessons, nil
}

func (s *apiSession) getJSON(path string, out interface{}) error {
	req, err := http.NewRequest("GET", s.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Accept", "application/json")

	resp, err := externalHTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusNotImplemented:
		return ErrNotSupported
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthError{Reason: "session expired or revoked"}
	default:
		return fmt.Errorf("portal returned %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

func parsePortalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}
