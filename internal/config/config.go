package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the ingestion pipeline needs: database access,
// the extraction oracle credentials, attachment storage, and the classifier
// vocabulary. Keyword sets and thresholds live here rather than as package
// constants so the classifier can be unit tested in isolation.
type Config struct {
	Environment         string
	EncryptionKeyBase64 string

	DBHost     string
	DBPort     string
	DBUsername string
	DBPassword string
	DBName     string
	DBSSLMode  string

	OpenAIAPIKey   string
	OpenAIModel    string
	AttachmentsDir string

	Classifier ClassifierConfig

	BatchWindow  time.Duration
	PollWindow   time.Duration
	PollInterval time.Duration
}

// ClassifierConfig is the full vocabulary of the relevance classifier.
type ClassifierConfig struct {
	PrimarySender    string
	TargetGroup      string
	SubjectKeywords  []string
	JobKeywords      []string
	StrongIndicators []string
	NonJobKeywords   []string
	MinConfidence    float64
}

func NewConfig() (*Config, error) {
	env := os.Getenv("INGEST_ENV")
	if env == "" {
		env = "development"
	}

	if env == "development" {
		if err := godotenv.Load(); err != nil {
			fmt.Println("Warning: .env file not found, using environment variables")
		}
	}

	config := &Config{
		Environment:         env,
		EncryptionKeyBase64: os.Getenv("INGEST_ENCRYPTION_KEY_BASE64"),
		DBHost:              getEnvOrDefault("INGEST_DB_HOST", "localhost"),
		DBPort:              getEnvOrDefault("INGEST_DB_PORT", "5432"),
		DBUsername:          getEnvOrDefault("INGEST_DB_USER", "placement"),
		DBPassword:          os.Getenv("INGEST_DB_PASSWORD"),
		DBName:              getEnvOrDefault("INGEST_DB_NAME", "placement_portal"),
		DBSSLMode:           getEnvOrDefault("INGEST_DB_SSLMODE", "disable"),
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:         getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		AttachmentsDir:      getEnvOrDefault("INGEST_ATTACHMENTS_DIR", "uploads/email_attachments"),
		Classifier:          defaultClassifierConfig(),
		BatchWindow:         getDurationOrDefault("INGEST_BATCH_WINDOW", 60*24*time.Hour),
		PollWindow:          getDurationOrDefault("INGEST_POLL_WINDOW", time.Hour),
		PollInterval:        getDurationOrDefault("INGEST_POLL_INTERVAL", 5*time.Second),
	}

	if sender := os.Getenv("INGEST_PRIMARY_SENDER"); sender != "" {
		config.Classifier.PrimarySender = sender
	}
	if group := os.Getenv("INGEST_TARGET_GROUP"); group != "" {
		config.Classifier.TargetGroup = group
	}
	if raw := os.Getenv("INGEST_MIN_CONFIDENCE"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid INGEST_MIN_CONFIDENCE %q: %w", raw, err)
		}
		config.Classifier.MinConfidence = v
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func defaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		PrimarySender: "spr@thapar.edu",
		TargetGroup:   "CampusNotice2026",
		SubjectKeywords: []string{
			"internship", "campus", "campus notice", "placement", "registration", "job",
		},
		JobKeywords: []string{
			"job", "internship", "position", "role", "opening", "vacancy",
			"recruitment", "hiring", "placement", "opportunity",
			"ctc", "salary", "package", "compensation", "stipend", "lpa",
			"apply", "application", "deadline", "eligibility", "cgpa",
			"interview", "assessment", "jd", "offer", "designation",
			"process", "test", "exam", "screening",
		},
		StrongIndicators: []string{
			"apply", "deadline", "ctc", "jd", "designation", "offer",
			"eligibility", "interview",
		},
		NonJobKeywords: []string{
			"workshop", "seminar", "webinar", "guest lecture", "guest speaker",
			"competition", "case study competition", "hackathon announcement",
			"interview prep", "interview preparation", "preparation guide",
			"questions shared", "study material", "resources shared",
		},
		MinConfidence: 0.4,
	}
}

func (c *Config) Validate() error {
	if c.EncryptionKeyBase64 == "" {
		return fmt.Errorf("INGEST_ENCRYPTION_KEY_BASE64 is required")
	}

	if c.DBPassword == "" {
		return fmt.Errorf("INGEST_DB_PASSWORD is required")
	}

	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}

	if c.Classifier.MinConfidence < 0 || c.Classifier.MinConfidence > 1 {
		return fmt.Errorf("minimum confidence must be within [0, 1], got %v", c.Classifier.MinConfidence)
	}

	return nil
}

func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUsername,
		c.DBPassword,
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBSSLMode,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue
	}
	return d
}
