package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dotnet/mbmlbook-sub000/internal/features"
	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	DBHost      string
	DBPort      string
	DBUsername  string
	DBPassword  string
	DBName      string
	DBSSLMode   string
	DBMaxConns  int

	// MailboxOwner is the owner's email address; messages from it are the replies we learn from.
	MailboxOwner string
	UserName     string

	IMAPServerHost string
	IMAPUsername   string
	IMAPPassword   string
	IMAPUseTLS     bool

	FeatureSet string
	SenderTopN int
	// MergeConfidence is the display-name confidence at which two people sharing a name are merged.
	MergeConfidence       float64
	IncludeSharedFeatures bool
	TrainEnd              time.Time
	ValidationEnd         time.Time
	ExportPath            string

	LogLevel  string
	LogFormat string
}

func NewConfig() (*Config, error) {
	env := os.Getenv("REPLYPREP_ENV")
	if env == "" {
		env = "development"
	}

	if env == "development" {
		if err := godotenv.Load(); err != nil {
			fmt.Println("Warning: .env file not found, using environment variables")
		}
	}

	topN, err := strconv.Atoi(getEnvOrDefault("REPLYPREP_SENDER_TOP_N", strconv.Itoa(features.DefaultOptions.SenderTopN)))
	if err != nil {
		return nil, fmt.Errorf("REPLYPREP_SENDER_TOP_N must be a number: %w", err)
	}

	maxConns, err := strconv.Atoi(getEnvOrDefault("REPLYPREP_DB_MAX_CONNS", "4"))
	if err != nil {
		return nil, fmt.Errorf("REPLYPREP_DB_MAX_CONNS must be a number: %w", err)
	}

	mergeConfidence, err := strconv.ParseFloat(getEnvOrDefault("REPLYPREP_MERGE_CONFIDENCE", "1"), 64)
	if err != nil {
		return nil, fmt.Errorf("REPLYPREP_MERGE_CONFIDENCE must be a number: %w", err)
	}

	trainEnd, err := parseDate("REPLYPREP_TRAIN_END")
	if err != nil {
		return nil, err
	}
	validationEnd, err := parseDate("REPLYPREP_VALIDATION_END")
	if err != nil {
		return nil, err
	}

	owner := strings.TrimSpace(os.Getenv("REPLYPREP_MAILBOX_OWNER"))
	config := &Config{
		Environment:           env,
		DBHost:                getEnvOrDefault("REPLYPREP_DB_HOST", "localhost"),
		DBPort:                getEnvOrDefault("REPLYPREP_DB_PORT", "5432"),
		DBUsername:            getEnvOrDefault("REPLYPREP_DB_USER", "replyprep"),
		DBPassword:            os.Getenv("REPLYPREP_DB_PASSWORD"),
		DBName:                getEnvOrDefault("REPLYPREP_DB_NAME", "replyprep"),
		DBSSLMode:             getEnvOrDefault("REPLYPREP_DB_SSLMODE", "disable"),
		DBMaxConns:            maxConns,
		MailboxOwner:          owner,
		UserName:              getEnvOrDefault("REPLYPREP_USER_NAME", owner),
		IMAPServerHost:        os.Getenv("REPLYPREP_IMAP_HOST"),
		IMAPUsername:          os.Getenv("REPLYPREP_IMAP_USER"),
		IMAPPassword:          os.Getenv("REPLYPREP_IMAP_PASSWORD"),
		IMAPUseTLS:            getEnvOrDefault("REPLYPREP_IMAP_TLS", "true") == "true",
		FeatureSet:            getEnvOrDefault("REPLYPREP_FEATURE_SET", features.Combined),
		SenderTopN:            topN,
		MergeConfidence:       mergeConfidence,
		IncludeSharedFeatures: getEnvOrDefault("REPLYPREP_INCLUDE_SHARED", "true") == "true",
		TrainEnd:              trainEnd,
		ValidationEnd:         validationEnd,
		ExportPath:            getEnvOrDefault("REPLYPREP_EXPORT_PATH", "replyprep.sqlite"),
		LogLevel:              getEnvOrDefault("REPLYPREP_LOG_LEVEL", "info"),
		LogFormat:             getEnvOrDefault("REPLYPREP_LOG_FORMAT", "json"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.MailboxOwner == "" {
		return fmt.Errorf("REPLYPREP_MAILBOX_OWNER is required")
	}

	if c.DBPassword == "" {
		return fmt.Errorf("REPLYPREP_DB_PASSWORD is required")
	}

	if port, err := strconv.Atoi(c.DBPort); err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("REPLYPREP_DB_PORT must be a valid port, got %q", c.DBPort)
	}

	if c.DBMaxConns < 0 {
		return fmt.Errorf("REPLYPREP_DB_MAX_CONNS must not be negative")
	}

	if c.IMAPServerHost != "" && (c.IMAPUsername == "" || c.IMAPPassword == "") {
		return fmt.Errorf("REPLYPREP_IMAP_USER and REPLYPREP_IMAP_PASSWORD are required when REPLYPREP_IMAP_HOST is set")
	}

	if _, err := features.VariantIDs(c.FeatureSet); err != nil {
		return fmt.Errorf("REPLYPREP_FEATURE_SET: %w", err)
	}

	if c.SenderTopN < 0 {
		return fmt.Errorf("REPLYPREP_SENDER_TOP_N must not be negative")
	}

	if c.MergeConfidence < 0 {
		return fmt.Errorf("REPLYPREP_MERGE_CONFIDENCE must not be negative")
	}

	if c.TrainEnd.IsZero() || c.ValidationEnd.IsZero() {
		return fmt.Errorf("REPLYPREP_TRAIN_END and REPLYPREP_VALIDATION_END are required")
	}

	if !c.TrainEnd.Before(c.ValidationEnd) {
		return fmt.Errorf("REPLYPREP_TRAIN_END must be before REPLYPREP_VALIDATION_END")
	}

	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("REPLYPREP_LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}

	return nil
}

func (c *Config) GetDatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUsername, c.DBPassword),
		Host:     c.DBHost + ":" + c.DBPort,
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

// FeatureOptions returns the options for building features.
func (c *Config) FeatureOptions() features.Options {
	return features.Options{SenderTopN: c.SenderTopN}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDate accepts RFC 3339 timestamps or plain dates. An unset variable is the zero time.
func parseDate(key string) (time.Time, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be an RFC 3339 timestamp or a date, got %q", key, value)
	}
	return t, nil
}
