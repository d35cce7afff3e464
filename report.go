package main

import (
	"fmt"
	"hash/fnv"
	"html"
	"sort"
	"strings"
	"time"
)

var weekdaysFR = [7]string{"Lun", "Mar", "Mer", "Jeu", "Ven", "Sam", "Dim"}

// fmtDateFR renders "Lun 02/01". The weekday table is Monday-first, like the
// portal's own calendars.
func fmtDateFR(d time.Time) string {
	wd := weekdaysFR[(int(d.Weekday())+6)%7]
	return fmt.Sprintf("%s %02d/%02d", wd, d.Day(), int(d.Month()))
}

// fmtDateShort renders "02/01", without the weekday name. Used by the chat
// report where width is scarce.
func fmtDateShort(d time.Time) string {
	return fmt.Sprintf("%02d/%02d", d.Day(), int(d.Month()))
}

// sortedStudents returns the grades mapping's keys in lexicographic order.
// The grades fetch defines the student universe for a run; sorting the keys
// makes every renderer deterministic.
func sortedStudents(grades map[string][]GradeEntry) []string {
	names := make([]string, 0, len(grades))
	for name := range grades {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func groupBySubject(grades []GradeEntry) ([]string, map[string][]GradeEntry) {
	bySubject := make(map[string][]GradeEntry)
	for _, g := range grades {
		bySubject[g.Subject] = append(bySubject[g.Subject], g)
	}
	subjects := make([]string, 0, len(bySubject))
	for subject := range bySubject {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)
	return subjects, bySubject
}

func gradeLine(g GradeEntry) string {
	bonus := ""
	if g.IsBonus {
		bonus = " [BONUS]"
	}
	comment := ""
	if g.Comment != "" {
		comment = " — " + g.Comment
	}
	coeff := ""
	if g.Coefficient != "" && g.Coefficient != "1" {
		coeff = fmt.Sprintf(" (coeff %s)", g.Coefficient)
	}
	return fmt.Sprintf("  %s  %-25s %s/%s%s%s%s", fmtDateFR(g.Date), g.Subject, g.Value, g.OutOf, coeff, bonus, comment)
}

func chatGradeLine(g GradeEntry) string {
	bonus := ""
	if g.IsBonus {
		bonus = " [BONUS]"
	}
	comment := ""
	if g.Comment != "" {
		comment = " — " + g.Comment
	}
	coeff := ""
	if g.Coefficient != "" && g.Coefficient != "1" {
		coeff = fmt.Sprintf(" (coeff %s)", g.Coefficient)
	}
	return fmt.Sprintf("%-25s %s: %s/%s%s%s%s", g.Subject, fmtDateShort(g.Date), g.Value, g.OutOf, coeff, bonus, comment)
}

// BuildTextReport renders the plain-text report: per student, timetable
// first, then homework, then grades grouped by subject. Pure function of its
// inputs plus today.
func BuildTextReport(
	grades map[string][]GradeEntry,
	homework map[string][]HomeworkEntry,
	timetable map[string][]TimetableEntry,
	days int,
	today time.Time,
) string {
	since, until := ReportRange(today, days)
	lines := []string{
		"Rapport Pronote",
		fmt.Sprintf("Semaine du %s au %s", fmtDateFR(since), fmtDateFR(until)),
		strings.Repeat("=", 60),
	}

	for _, name := range sortedStudents(grades) {
		lines = append(lines, "\n"+strings.Repeat("─", 60))
		lines = append(lines, "  "+name)
		lines = append(lines, strings.Repeat("─", 60))

		lines = append(lines, "\n  Emploi du temps")
		lessons := timetable[name]
		if len(lessons) == 0 {
			lines = append(lines, "    Aucun cours sur la période.")
		} else {
			var currentDay string
			for _, lesson := range lessons {
				day := fmtDateFR(lesson.Date)
				if day != currentDay {
					lines = append(lines, "  "+day)
					currentDay = day
				}
				line := fmt.Sprintf("    %s–%s  %s", lesson.Start.Format("15:04"), lesson.End.Format("15:04"), lesson.Subject)
				if lesson.Room != "" {
					line += fmt.Sprintf(" (%s)", lesson.Room)
				}
				lines = append(lines, line)
			}
		}

		lines = append(lines, "\n  Devoirs")
		work := homework[name]
		if len(work) == 0 {
			lines = append(lines, "    Aucun devoir sur la période.")
		} else {
			for _, hw := range work {
				marker := "[ ]"
				if hw.Done {
					marker = "[x]"
				}
				line := fmt.Sprintf("    %s %s — pour %s", marker, hw.Subject, fmtDateFR(hw.DueDate))
				if hw.Description != "" {
					line += " — " + hw.Description
				}
				lines = append(lines, line)
			}
		}

		lines = append(lines, "\n  Notes")
		studentGrades := grades[name]
		if len(studentGrades) == 0 {
			lines = append(lines, "    Aucune note sur la période.")
			continue
		}

		// Group by subject for a cleaner read
		subjects, bySubject := groupBySubject(studentGrades)
		for _, subject := range subjects {
			lines = append(lines, "\n  "+subject)
			for _, g := range bySubject[subject] {
				lines = append(lines, gradeLine(g))
			}
		}
	}

	lines = append(lines, "\n"+strings.Repeat("=", 60))
	lines = append(lines, fmt.Sprintf("Généré le %s", today.Format("02/01/2006")))
	return strings.Join(lines, "\n")
}

// BuildChatReport renders the condensed grades-only report used for chat
// delivery: flat list per student, subject first, no weekday names.
func BuildChatReport(grades map[string][]GradeEntry, days int, today time.Time) string {
	since, until := ReportRange(today, days)
	lines := []string{
		"📊 Rapport de notes Pronote",
		fmt.Sprintf("Semaine du %s au %s", fmtDateShort(since), fmtDateShort(until)),
		strings.Repeat("=", 50),
	}

	for _, name := range sortedStudents(grades) {
		lines = append(lines, fmt.Sprintf("\n👧🏻 **%s**", name))
		lines = append(lines, strings.Repeat("─", 30))

		studentGrades := grades[name]
		if len(studentGrades) == 0 {
			lines = append(lines, "  Aucune note sur la période.")
			continue
		}

		sorted := make([]GradeEntry, len(studentGrades))
		copy(sorted, studentGrades)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Date.After(sorted[j].Date)
		})
		for _, g := range sorted {
			lines = append(lines, chatGradeLine(g))
		}
	}

	lines = append(lines, "\n"+strings.Repeat("=", 50))
	lines = append(lines, fmt.Sprintf("Généré le %s", today.Format("02/01/2006")))
	return strings.Join(lines, "\n")
}

// CleanChatText strips decorative separator lines from a chat message. Narrow
// message clients wrap long runs of dashes into garbage, so any line longer
// than 10 characters that is more than 80% '-', '─' or '=' is dropped.
func CleanChatText(text string) string {
	var cleaned []string
	for _, line := range strings.Split(text, "\n") {
		stripped := []rune(strings.TrimSpace(line))
		if len(stripped) > 10 {
			separators := 0
			for _, r := range stripped {
				if r == '-' || r == '─' || r == '=' {
					separators++
				}
			}
			if float64(separators)/float64(len(stripped)) > 0.8 {
				continue
			}
		}
		cleaned = append(cleaned, line)
	}
	return strings.Join(cleaned, "\n")
}

var subjectPalette = [...]string{
	"#3498db", "#e74c3c", "#2ecc71", "#9b59b6",
	"#f39c12", "#1abc9c", "#e67e22", "#34495e",
}

// subjectColor deterministically assigns a palette color to a subject name.
// Cosmetic only; used to tint timetable rows in the HTML report.
func subjectColor(subject string) string {
	h := fnv.New32a()
	h.Write([]byte(subject))
	return subjectPalette[h.Sum32()%uint32(len(subjectPalette))]
}

// BuildHTMLReport renders the self-contained HTML report. Every user-supplied
// field goes through html.EscapeString.
func BuildHTMLReport(
	grades map[string][]GradeEntry,
	homework map[string][]HomeworkEntry,
	timetable map[string][]TimetableEntry,
	days int,
	today time.Time,
) string {
	since, until := ReportRange(today, days)

	var children strings.Builder
	for _, name := range sortedStudents(grades) {
		children.WriteString(fmt.Sprintf(
			"\n<div style='margin-bottom:32px'>\n<h2 style='margin:0 0 12px;color:#2c3e50;border-left:4px solid #3498db;padding-left:10px'>%s</h2>\n",
			html.EscapeString(name)))

		writeHTMLTimetable(&children, timetable[name])
		writeHTMLHomework(&children, homework[name])
		writeHTMLGrades(&children, grades[name])

		children.WriteString("</div>")
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="fr">
<head><meta charset="UTF-8"></head>
<body style='font-family:Arial,sans-serif;color:#333;max-width:800px;margin:auto;padding:20px'>
<h1 style='color:#2c3e50'>Rapport Pronote</h1>
<p style='color:#888'>Du %s au %s</p>
<hr style='border:none;border-top:2px solid #eee;margin:20px 0'>%s
<hr style='border:none;border-top:1px solid #eee;margin:20px 0'>
<p style='color:#aaa;font-size:12px'>Rapport généré automatiquement le %s</p>
</body>
</html>`,
		since.Format("02/01/2006"), until.Format("02/01/2006"),
		children.String(), today.Format("02/01/2006"))
}

func writeHTMLTimetable(b *strings.Builder, lessons []TimetableEntry) {
	b.WriteString("<h3 style='margin:16px 0 8px;color:#2c3e50'>Emploi du temps</h3>\n")
	if len(lessons) == 0 {
		b.WriteString("<p style='color:#888'>Aucun cours sur la période.</p>\n")
		return
	}
	b.WriteString("<table style='width:100%;border-collapse:collapse;font-size:14px'>\n<tbody>")
	var currentDay string
	for _, lesson := range lessons {
		day := fmtDateFR(lesson.Date)
		dayCell := ""
		if day != currentDay {
			dayCell = "<b>" + html.EscapeString(day) + "</b>"
			currentDay = day
		}
		room := ""
		if lesson.Room != "" {
			room = html.EscapeString(lesson.Room)
		}
		b.WriteString(fmt.Sprintf(`
<tr>
<td style='padding:4px 12px;color:#555;border-bottom:1px solid #f0f0f0'>%s</td>
<td style='padding:4px 12px;border-bottom:1px solid #f0f0f0'>%s–%s</td>
<td style='padding:4px 12px;border-bottom:1px solid #f0f0f0;border-left:4px solid %s'>%s</td>
<td style='padding:4px 12px;border-bottom:1px solid #f0f0f0;color:#666'>%s</td>
</tr>`,
			dayCell,
			lesson.Start.Format("15:04"), lesson.End.Format("15:04"),
			subjectColor(lesson.Subject), html.EscapeString(lesson.Subject),
			room))
	}
	b.WriteString("\n</tbody>\n</table>\n")
}

func writeHTMLHomework(b *strings.Builder, work []HomeworkEntry) {
	b.WriteString("<h3 style='margin:16px 0 8px;color:#2c3e50'>Devoirs</h3>\n")
	if len(work) == 0 {
		b.WriteString("<p style='color:#888'>Aucun devoir sur la période.</p>\n")
		return
	}
	b.WriteString("<ul style='margin:0;padding-left:20px;font-size:14px'>\n")
	for _, hw := range work {
		marker := "<span style='color:#c0392b'>✗</span>"
		if hw.Done {
			marker = "<span style='color:#27ae60'>✓</span>"
		}
		desc := ""
		if hw.Description != "" {
			desc = " <small style='color:#888'>" + html.EscapeString(hw.Description) + "</small>"
		}
		b.WriteString(fmt.Sprintf("<li style='margin:3px 0'>%s <b>%s</b> — pour %s%s</li>\n",
			marker, html.EscapeString(hw.Subject), html.EscapeString(fmtDateFR(hw.DueDate)), desc))
	}
	b.WriteString("</ul>\n")
}

func writeHTMLGrades(b *strings.Builder, grades []GradeEntry) {
	b.WriteString("<h3 style='margin:16px 0 8px;color:#2c3e50'>Notes</h3>\n")
	if len(grades) == 0 {
		b.WriteString("<p style='color:#888'>Aucune note sur la période.</p>\n")
		return
	}

	var rows strings.Builder
	subjects, bySubject := groupBySubject(grades)
	for _, subject := range subjects {
		first := true
		for _, g := range bySubject[subject] {
			subjectCell := ""
			if first {
				subjectCell = "<b>" + html.EscapeString(subject) + "</b>"
			}
			bonus := ""
			if g.IsBonus {
				bonus = " <span style='color:#e67e22;font-size:11px'>[BONUS]</span>"
			}
			coeff := ""
			if g.Coefficient != "" && g.Coefficient != "1" {
				coeff = "<br><small style='color:#888'>coeff " + html.EscapeString(g.Coefficient) + "</small>"
			}
			comment := ""
			if g.Comment != "" {
				comment = "<small style='color:#888;font-style:italic'>" + html.EscapeString(g.Comment) + "</small>"
			}
			rows.WriteString(fmt.Sprintf(`
<tr>
<td style='padding:6px 12px;color:#555;border-bottom:1px solid #f0f0f0'>%s</td>
<td style='padding:6px 12px;border-bottom:1px solid #f0f0f0'>%s</td>
<td style='padding:6px 12px;text-align:center;border-bottom:1px solid #f0f0f0;font-weight:bold'>%s/%s%s%s</td>
<td style='padding:6px 12px;border-bottom:1px solid #f0f0f0;color:#666'>%s</td>
</tr>`,
				subjectCell, html.EscapeString(fmtDateFR(g.Date)),
				html.EscapeString(g.Value), html.EscapeString(g.OutOf), bonus, coeff,
				comment))
			first = false
		}
	}

	b.WriteString(`<table style='width:100%;border-collapse:collapse;font-size:14px'>
<thead>
<tr style='background:#f5f5f5;text-align:left'>
<th style='padding:8px 12px;font-weight:600'>Matière</th>
<th style='padding:8px 12px;font-weight:600'>Date</th>
<th style='padding:8px 12px;font-weight:600;text-align:center'>Note</th>
<th style='padding:8px 12px;font-weight:600'>Commentaire</th>
</tr>
</thead>
<tbody>`)
	b.WriteString(rows.String())
	b.WriteString("\n</tbody>\n</table>\n")
}
