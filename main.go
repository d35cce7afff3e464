package main

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

func main() {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded .env")
	}

	cfg := LoadConfig()
	applied := ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)
	log.Printf("Config loaded. GradeWindow=%dd Lookahead=%dd EmailBackend=%s WhatsApp=%v Slack=%v Timezone=%s HTTPTimeout=%s",
		cfg.GradeWindowDays, cfg.LookaheadDays, cfg.EmailBackend,
		cfg.WhatsAppEnabled, cfg.SlackConfigured(), cfg.Timezone, applied)

	if cfg.Schedule != "" {
		runOnSchedule(cfg)
		return
	}

	if err := runReport(cfg, time.Now().In(cfg.Location)); err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	log.Println("Done.")
}

// runOnSchedule keeps the process resident and re-runs the report on a
// 5-field cron expression. Run failures are logged, not fatal; the next
// scheduled run still happens.
func runOnSchedule(cfg Config) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(cfg.Schedule)
	if err != nil {
		log.Fatalf("Invalid schedule '%s': %v", cfg.Schedule, err)
	}
	log.Printf("Report scheduled (cron: %s)", cfg.Schedule)

	for {
		now := time.Now().In(cfg.Location)
		next := sched.Next(now)
		wait := next.Sub(now)
		log.Printf("Next report at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

		time.Sleep(wait)

		if err := runReport(cfg, time.Now().In(cfg.Location)); err != nil {
			log.Printf("Scheduled run failed: %v", err)
		} else {
			log.Println("Scheduled run complete.")
		}
	}
}

// runReport performs one full fetch-render-deliver cycle. Grade fetch and
// email delivery failures are returned (fatal); homework, timetable, and chat
// problems only degrade the run.
func runReport(cfg Config, today time.Time) error {
	log.Println("Connecting to Pronote...")
	grades, err := FetchGrades(Login, cfg, today)
	if err != nil {
		return fmt.Errorf("could not fetch grades: %w", err)
	}

	total := 0
	for _, g := range grades {
		total += len(g)
	}
	log.Printf("Fetched %d grade(s) across %d child(ren).", total, len(grades))

	homework, degradations, err := FetchHomework(Login, cfg, today)
	if err != nil {
		log.Printf("WARNING: could not fetch homework: %v", err)
		homework = map[string][]HomeworkEntry{}
	}
	logDegradations("homework", degradations)

	timetable, degradations, err := FetchTimetable(Login, cfg, today)
	if err != nil {
		log.Printf("WARNING: could not fetch timetable: %v", err)
		timetable = map[string][]TimetableEntry{}
	}
	logDegradations("timetable", degradations)

	textBody := BuildTextReport(grades, homework, timetable, cfg.GradeWindowDays, today)
	htmlBody := BuildHTMLReport(grades, homework, timetable, cfg.GradeWindowDays, today)

	since, until := ReportRange(today, cfg.GradeWindowDays)
	subject := fmt.Sprintf("Rapport Pronote — semaine du %s au %s",
		since.Format("02/01"), until.Format("02/01/2006"))

	log.Println("Sending email...")
	if err := NewEmailSender(cfg).Send(subject, textBody, htmlBody, cfg.EmailTo); err != nil {
		return fmt.Errorf("could not send email: %w", err)
	}

	// Email is out the door; everything past this point is best-effort.
	if cfg.WhatsAppEnabled {
		log.Println("Sending WhatsApp message...")
		message := CleanChatText(BuildChatReport(grades, cfg.GradeWindowDays, today))
		client := &WhatsAppClient{
			AccessToken:   cfg.MetaAccessToken,
			PhoneNumberID: cfg.MetaPhoneNumberID,
		}
		BroadcastChat(client, message, cfg.ChatDestinations())
	}

	if cfg.SlackConfigured() {
		log.Println("Posting to Slack...")
		message := CleanChatText(BuildChatReport(grades, cfg.GradeWindowDays, today))
		BroadcastChat(newSlackSender(cfg.SlackBotToken), message, []string{cfg.SlackChannelID})
	}

	return nil
}

func logDegradations(kind string, degradations []Degradation) {
	if len(degradations) == 0 {
		return
	}
	parts := make([]string, 0, len(degradations))
	for _, d := range degradations {
		parts = append(parts, d.String())
	}
	log.Printf("WARNING: %s degraded for %d student(s): %s", kind, len(degradations), strings.Join(parts, "; "))
}
