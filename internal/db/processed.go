package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusplace/ingest/internal/models"
)

// MarkProcessed records a processed message in the idempotency ledger.
// Replaying the same Message-ID overwrites the previous verdict, so a
// re-run after a code change records the latest outcome.
func MarkProcessed(ctx context.Context, pool *pgxpool.Pool, email *models.ProcessedEmail) error {
	err := pool.QueryRow(ctx, `
		INSERT INTO processed_emails (
			message_id,
			subject,
			from_email,
			email_date,
			job_id,
			job_created,
			skipped,
			skip_reason,
			user_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (message_id) DO UPDATE SET
			subject = EXCLUDED.subject,
			from_email = EXCLUDED.from_email,
			email_date = EXCLUDED.email_date,
			processed_at = now(),
			job_id = EXCLUDED.job_id,
			job_created = EXCLUDED.job_created,
			skipped = EXCLUDED.skipped,
			skip_reason = EXCLUDED.skip_reason,
			user_id = EXCLUDED.user_id
		RETURNING id, processed_at
	`,
		email.MessageID,
		email.Subject,
		email.FromEmail,
		email.EmailDate,
		email.JobID,
		email.JobCreated,
		email.Skipped,
		email.SkipReason,
		email.UserID,
	).Scan(&email.ID, &email.ProcessedAt)

	if err != nil {
		return fmt.Errorf("failed to mark email processed: %w", err)
	}

	return nil
}

// ListProcessedMessageIDs returns the set of Message-IDs already recorded
// for a user, used to short-circuit a batch before any expensive work.
func ListProcessedMessageIDs(ctx context.Context, pool *pgxpool.Pool, userID int64) (map[string]struct{}, error) {
	rows, err := pool.Query(ctx, `
		SELECT message_id FROM processed_emails WHERE user_id = $1
	`, userID)

	if err != nil {
		return nil, fmt.Errorf("failed to list processed emails: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan message id: %w", err)
		}
		seen[id] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating processed emails: %w", err)
	}

	return seen, nil
}

// GetProcessedEmail returns the ledger row for a Message-ID, or nil when
// the message has never been evaluated.
func GetProcessedEmail(ctx context.Context, pool *pgxpool.Pool, messageID string) (*models.ProcessedEmail, error) {
	rows, err := pool.Query(ctx, `
		SELECT
			id,
			message_id,
			subject,
			from_email,
			email_date,
			processed_at,
			job_id,
			job_created,
			skipped,
			skip_reason,
			user_id
		FROM processed_emails
		WHERE message_id = $1
	`, messageID)

	if err != nil {
		return nil, fmt.Errorf("failed to get processed email: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	var email models.ProcessedEmail
	if err := rows.Scan(
		&email.ID,
		&email.MessageID,
		&email.Subject,
		&email.FromEmail,
		&email.EmailDate,
		&email.ProcessedAt,
		&email.JobID,
		&email.JobCreated,
		&email.Skipped,
		&email.SkipReason,
		&email.UserID,
	); err != nil {
		return nil, fmt.Errorf("failed to scan processed email: %w", err)
	}

	return &email, nil
}
