package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusplace/ingest/internal/models"
)

// SaveAttachment records a retained attachment against its ledger row.
func SaveAttachment(ctx context.Context, pool *pgxpool.Pool, attachment *models.EmailAttachment) error {
	err := pool.QueryRow(ctx, `
		INSERT INTO email_attachments (email_id, filename, file_path, file_size, content_type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`,
		attachment.EmailID,
		attachment.Filename,
		attachment.FilePath,
		attachment.FileSize,
		attachment.ContentType,
	).Scan(&attachment.ID, &attachment.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to save attachment: %w", err)
	}

	return nil
}

// GetAttachmentsForEmail returns all attachments recorded for a ledger row.
func GetAttachmentsForEmail(ctx context.Context, pool *pgxpool.Pool, emailID int64) ([]*models.EmailAttachment, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, email_id, filename, file_path, file_size, content_type, created_at
		FROM email_attachments
		WHERE email_id = $1
		ORDER BY id
	`, emailID)

	if err != nil {
		return nil, fmt.Errorf("failed to get attachments: %w", err)
	}
	defer rows.Close()

	var attachments []*models.EmailAttachment
	for rows.Next() {
		var att models.EmailAttachment
		if err := rows.Scan(
			&att.ID,
			&att.EmailID,
			&att.Filename,
			&att.FilePath,
			&att.FileSize,
			&att.ContentType,
			&att.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		attachments = append(attachments, &att)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attachments: %w", err)
	}

	return attachments, nil
}
