package main

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultExternalHTTPTimeoutSeconds = 30

type Config struct {
	PronoteURL      string `yaml:"pronote_url"`
	PronoteUsername string `yaml:"pronote_username"`
	PronotePassword string `yaml:"pronote_password"`

	GradeWindowDays int `yaml:"grade_window_days"`
	LookaheadDays   int `yaml:"lookahead_days"`

	EmailBackend     string   `yaml:"email_backend"` // "smtp", "sendgrid", or "console"
	GmailAddress     string   `yaml:"gmail_address"`
	GmailAppPassword string   `yaml:"gmail_app_password"`
	SMTPHost         string   `yaml:"smtp_host"`
	SMTPPort         int      `yaml:"smtp_port"`
	SendGridAPIKey   string   `yaml:"sendgrid_api_key"`
	EmailTo          []string `yaml:"email_to"`

	WhatsAppEnabled      bool     `yaml:"whatsapp_enabled"`
	MetaAccessToken      string   `yaml:"meta_access_token"`
	MetaPhoneNumberID    string   `yaml:"meta_phone_number_id"`
	WhatsAppPhoneNumber  string   `yaml:"whatsapp_phone_number"`
	WhatsAppGroupNumbers []string `yaml:"whatsapp_group_numbers"`

	SlackBotToken  string `yaml:"slack_bot_token"`
	SlackChannelID string `yaml:"slack_channel_id"`

	Schedule string `yaml:"schedule"` // 5-field cron expression; empty = run once
	Timezone string `yaml:"timezone"`

	ExternalHTTPTimeoutSeconds int `yaml:"external_http_timeout_seconds"`

	Location *time.Location `yaml:"-"`
}

func LoadConfig() Config {
	var cfg Config

	// Load from config.yaml if it exists
	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	// Env vars override YAML values
	envOverride(&cfg.PronoteURL, "PRONOTE_URL")
	envOverride(&cfg.PronoteUsername, "PRONOTE_USERNAME")
	envOverride(&cfg.PronotePassword, "PRONOTE_PASSWORD")
	envOverrideInt(&cfg.GradeWindowDays, "GRADE_WINDOW_DAYS")
	envOverrideInt(&cfg.LookaheadDays, "LOOKAHEAD_DAYS")
	envOverride(&cfg.EmailBackend, "EMAIL_BACKEND")
	envOverride(&cfg.GmailAddress, "GMAIL_ADDRESS")
	envOverride(&cfg.GmailAppPassword, "GMAIL_APP_PASSWORD")
	envOverride(&cfg.SMTPHost, "SMTP_HOST")
	envOverrideInt(&cfg.SMTPPort, "SMTP_PORT")
	envOverride(&cfg.SendGridAPIKey, "SENDGRID_API_KEY")
	envOverrideList(&cfg.EmailTo, "EMAIL_TO")
	envOverrideBool(&cfg.WhatsAppEnabled, "WHATSAPP_ENABLED")
	envOverride(&cfg.MetaAccessToken, "META_ACCESS_TOKEN")
	envOverride(&cfg.MetaPhoneNumberID, "META_PHONE_NUMBER_ID")
	envOverride(&cfg.WhatsAppPhoneNumber, "WHATSAPP_PHONE_NUMBER")
	envOverrideList(&cfg.WhatsAppGroupNumbers, "WHATSAPP_GROUP_NUMBERS")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackChannelID, "SLACK_CHANNEL_ID")
	envOverride(&cfg.Schedule, "SCHEDULE")
	envOverride(&cfg.Timezone, "TIMEZONE")
	envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS")

	// Defaults
	if cfg.GradeWindowDays == 0 {
		cfg.GradeWindowDays = 14
	}
	if cfg.LookaheadDays == 0 {
		cfg.LookaheadDays = 7
	}
	if cfg.EmailBackend == "" {
		cfg.EmailBackend = "smtp"
	}
	if cfg.SMTPHost == "" {
		cfg.SMTPHost = "smtp.gmail.com"
	}
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = 465
	}
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = defaultExternalHTTPTimeoutSeconds
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}

	// Validate required fields
	required := map[string]string{
		"pronote_url":      cfg.PronoteURL,
		"pronote_username": cfg.PronoteUsername,
		"pronote_password": cfg.PronotePassword,
	}
	for name, val := range required {
		if val == "" {
			log.Fatalf("Required config '%s' is not set (via config.yaml or env var)", name)
		}
	}

	if cfg.GradeWindowDays < 0 {
		log.Fatalf("invalid grade_window_days '%d': must be >= 0", cfg.GradeWindowDays)
	}
	if cfg.LookaheadDays < 0 {
		log.Fatalf("invalid lookahead_days '%d': must be >= 0", cfg.LookaheadDays)
	}

	switch cfg.EmailBackend {
	case "smtp":
		if cfg.GmailAddress == "" || cfg.GmailAppPassword == "" {
			log.Fatalf("gmail_address and gmail_app_password are required when email_backend=smtp")
		}
		if len(cfg.EmailTo) == 0 {
			log.Fatalf("email_to is required when email_backend=smtp")
		}
	case "sendgrid":
		if cfg.SendGridAPIKey == "" {
			log.Fatalf("sendgrid_api_key is required when email_backend=sendgrid")
		}
		if cfg.GmailAddress == "" {
			log.Fatalf("gmail_address (sender address) is required when email_backend=sendgrid")
		}
		if len(cfg.EmailTo) == 0 {
			log.Fatalf("email_to is required when email_backend=sendgrid")
		}
	case "console":
		// Nothing to send with; recipients optional.
	default:
		log.Fatalf("email_backend must be 'smtp', 'sendgrid', or 'console', got '%s'", cfg.EmailBackend)
	}

	if cfg.WhatsAppEnabled {
		if cfg.MetaAccessToken == "" || cfg.MetaPhoneNumberID == "" {
			log.Fatalf("meta_access_token and meta_phone_number_id are required when whatsapp_enabled=true")
		}
		if cfg.WhatsAppPhoneNumber == "" && len(cfg.WhatsAppGroupNumbers) == 0 {
			log.Fatalf("whatsapp_phone_number or whatsapp_group_numbers is required when whatsapp_enabled=true")
		}
	}

	if (cfg.SlackBotToken == "") != (cfg.SlackChannelID == "") {
		log.Fatalf("slack_bot_token and slack_channel_id must be set together")
	}

	if strings.EqualFold(cfg.Timezone, "Local") {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			log.Fatalf("invalid timezone '%s': %v", cfg.Timezone, err)
		}
		cfg.Location = loc
	}

	return cfg
}

// SlackConfigured reports whether the optional Slack delivery channel is set up.
func (c Config) SlackConfigured() bool {
	return c.SlackBotToken != "" && c.SlackChannelID != ""
}

// ChatDestinations returns the WhatsApp recipients for this run. Group
// numbers take precedence over the single recipient.
func (c Config) ChatDestinations() []string {
	if len(c.WhatsAppGroupNumbers) > 0 {
		return c.WhatsAppGroupNumbers
	}
	if c.WhatsAppPhoneNumber != "" {
		return []string{c.WhatsAppPhoneNumber}
	}
	return nil
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func envOverrideBool(field *bool, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseBool(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func envOverrideList(field *[]string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = nil
		for _, item := range strings.Split(val, ",") {
			item = strings.TrimSpace(item)
			if item != "" {
				*field = append(*field, item)
			}
		}
	}
}
