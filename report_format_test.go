package main

import (
	"strings"
	"testing"
)

func TestBuildChatReportFlatAndSubjectFirst(t *testing.T) {
	today := day(t, "2026-03-16")
	grades := map[string][]GradeEntry{
		"Alice": {
			{Student: "Alice", Subject: "Maths", Value: "15", OutOf: "20", Coefficient: "2", Date: day(t, "2026-03-15")},
			{Student: "Alice", Subject: "Art", Value: "17", OutOf: "20", Date: day(t, "2026-03-14")},
		},
	}
	chat := BuildChatReport(grades, 14, today)

	if !strings.Contains(chat, "📊 Rapport de notes Pronote") {
		t.Fatalf("missing chat title:\n%s", chat)
	}
	if !strings.Contains(chat, "**Alice**") {
		t.Fatalf("missing bold student name:\n%s", chat)
	}
	for _, wd := range weekdaysFR {
		if strings.Contains(chat, wd+" ") {
			t.Fatalf("chat dates must not carry weekday names (%s):\n%s", wd, chat)
		}
	}
	// Subject first, then date with a colon separator.
	if !strings.Contains(chat, "15/03: 15/20 (coeff 2)") {
		t.Fatalf("unexpected chat grade line format:\n%s", chat)
	}
	mathsIdx := strings.Index(chat, "Maths")
	artIdx := strings.Index(chat, "Art ")
	if mathsIdx == -1 || artIdx == -1 {
		t.Fatalf("missing grade lines:\n%s", chat)
	}
	if mathsIdx > artIdx {
		t.Fatalf("chat list must be flat and date-descending, not grouped by subject:\n%s", chat)
	}
	if strings.Contains(chat, "<") {
		t.Fatalf("chat output must not contain HTML:\n%s", chat)
	}
}

func TestBuildChatReportEmptyStudent(t *testing.T) {
	chat := BuildChatReport(map[string][]GradeEntry{"Bob": {}}, 14, day(t, "2026-03-16"))
	if !strings.Contains(chat, "**Bob**") || !strings.Contains(chat, "Aucune note sur la période.") {
		t.Fatalf("empty student must keep section with placeholder:\n%s", chat)
	}
}

func TestCleanChatTextDropsSeparatorLines(t *testing.T) {
	tests := []struct {
		name string
		line string
		keep bool
	}{
		{"long equals run", strings.Repeat("=", 50), false},
		{"long dash run", strings.Repeat("─", 30), false},
		{"long hyphen run", strings.Repeat("-", 20), false},
		{"short separator kept", strings.Repeat("-", 10), true},
		{"eleven separators dropped", strings.Repeat("=", 11), false},
		{"exactly 80 percent kept", strings.Repeat("=", 16) + "abcd", true},
		{"just above 80 percent dropped", strings.Repeat("=", 17) + "abc", false},
		{"79 percent kept", strings.Repeat("=", 79) + strings.Repeat("a", 21), true},
		{"normal text kept", "Maths 15/03: 15/20", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			text := "header\n" + tc.line + "\nfooter"
			cleaned := CleanChatText(text)
			kept := strings.Contains(cleaned, tc.line)
			if kept != tc.keep {
				t.Fatalf("line %q: kept=%v, want %v", tc.line, kept, tc.keep)
			}
			if !strings.Contains(cleaned, "header") || !strings.Contains(cleaned, "footer") {
				t.Fatalf("surrounding lines must survive:\n%s", cleaned)
			}
		})
	}
}

func TestCleanChatTextOnChatReport(t *testing.T) {
	today := day(t, "2026-03-16")
	grades := map[string][]GradeEntry{
		"Alice": {{Student: "Alice", Subject: "Maths", Value: "15", OutOf: "20", Date: day(t, "2026-03-15")}},
	}
	cleaned := CleanChatText(BuildChatReport(grades, 14, today))

	if strings.Contains(cleaned, strings.Repeat("=", 50)) {
		t.Fatalf("separator banner should be stripped:\n%s", cleaned)
	}
	if strings.Contains(cleaned, strings.Repeat("─", 30)) {
		t.Fatalf("per-student separator should be stripped:\n%s", cleaned)
	}
	if !strings.Contains(cleaned, "15/20") {
		t.Fatalf("grade content must survive cleaning:\n%s", cleaned)
	}
}
