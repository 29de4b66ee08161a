package models

import (
	"fmt"
	"time"
)

// JobStatusActive is the lifecycle state every job is created in. Closing a
// job happens outside the ingestion pipeline.
const JobStatusActive = "active"

// Job is a persisted job posting extracted from one or more emails.
type Job struct {
	ID           int64      `json:"job_id"`
	Company      string     `json:"company"`
	Position     string     `json:"position"`
	CTC          *string    `json:"ctc"`
	Location     *string    `json:"location"`
	JobType      string     `json:"job_type"`
	Deadline     *string    `json:"deadline"`
	Description  *string    `json:"description"`
	Requirements *string    `json:"requirements"`
	Eligibility  *string    `json:"eligibility"`
	EmailDate    *time.Time `json:"email_date"`
	Status       string     `json:"status"`
	JobLink      *string    `json:"job_link"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ProcessedEmail is the idempotency ledger: one row per evaluated message,
// keyed by the globally unique Message-ID header. Its existence is what
// prevents a message from ever being reprocessed.
type ProcessedEmail struct {
	ID          int64      `json:"id"`
	MessageID   string     `json:"message_id"`
	Subject     string     `json:"subject"`
	FromEmail   string     `json:"from_email"`
	EmailDate   time.Time  `json:"email_date"`
	ProcessedAt time.Time  `json:"processed_at"`
	JobID       *int64     `json:"job_id"`
	JobCreated  bool       `json:"job_created"`
	Skipped     bool       `json:"skipped"`
	SkipReason  *string    `json:"skip_reason"`
	UserID      int64      `json:"user_id"`
}

// EmailAttachment records a file retained through content extraction,
// linked to the ledger row of the message that carried it.
type EmailAttachment struct {
	ID          int64     `json:"id"`
	EmailID     int64     `json:"email_id"`
	Filename    string    `json:"filename"`
	FilePath    string    `json:"file_path"`
	FileSize    int64     `json:"file_size"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// EmailConfig is a mailbox credential row from email_configurations.
// AppPassword is decrypted on load; it must never appear in logs.
type EmailConfig struct {
	UserID      int64  `json:"user_id"`
	Address     string `json:"email_address"`
	AppPassword string `json:"-"`
	IMAPServer  string `json:"imap_server"`
	IMAPPort    int    `json:"imap_port"`
	Enabled     bool   `json:"is_enabled"`
}

// Addr returns the host:port dial target for the IMAP server.
func (c EmailConfig) Addr() string {
	host := c.IMAPServer
	if host == "" {
		host = "imap.gmail.com"
	}
	port := c.IMAPPort
	if port == 0 {
		port = 993
	}
	return fmt.Sprintf("%s:%d", host, port)
}
