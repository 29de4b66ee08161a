package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusplace/ingest/internal/crypto"
	"github.com/campusplace/ingest/internal/models"
)

// ErrNoEnabledConfig is returned when no enabled mailbox configuration exists.
var ErrNoEnabledConfig = errors.New("no enabled email configuration")

// GetEnabledConfig loads a mailbox configuration with its app password
// decrypted. With userID > 0 it loads that user's config; otherwise the
// first enabled config wins. The decrypted password lives only in the
// returned struct and must never be logged.
func GetEnabledConfig(ctx context.Context, pool *pgxpool.Pool, enc *crypto.Encryptor, userID int64) (*models.EmailConfig, error) {
	query := `
		SELECT user_id, email_address, app_password, imap_server, imap_port, is_enabled
		FROM email_configurations
		WHERE is_enabled = true
		ORDER BY user_id
		LIMIT 1
	`
	args := []any{}
	if userID > 0 {
		query = `
			SELECT user_id, email_address, app_password, imap_server, imap_port, is_enabled
			FROM email_configurations
			WHERE is_enabled = true AND user_id = $1
		`
		args = append(args, userID)
	}

	var cfg models.EmailConfig
	var encrypted []byte
	err := pool.QueryRow(ctx, query, args...).Scan(
		&cfg.UserID,
		&cfg.Address,
		&encrypted,
		&cfg.IMAPServer,
		&cfg.IMAPPort,
		&cfg.Enabled,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoEnabledConfig
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get email configuration: %w", err)
	}

	password, err := enc.Decrypt(encrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt app password: %w", err)
	}
	cfg.AppPassword = password

	return &cfg, nil
}

// SaveConfig inserts or updates a user's mailbox configuration, encrypting
// the app password before it touches the database.
func SaveConfig(ctx context.Context, pool *pgxpool.Pool, enc *crypto.Encryptor, cfg *models.EmailConfig) error {
	encrypted, err := enc.Encrypt(cfg.AppPassword)
	if err != nil {
		return fmt.Errorf("failed to encrypt app password: %w", err)
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO email_configurations (user_id, email_address, app_password, imap_server, imap_port, is_enabled)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			email_address = EXCLUDED.email_address,
			app_password = EXCLUDED.app_password,
			imap_server = EXCLUDED.imap_server,
			imap_port = EXCLUDED.imap_port,
			is_enabled = EXCLUDED.is_enabled
	`, cfg.UserID, cfg.Address, encrypted, cfg.IMAPServer, cfg.IMAPPort, cfg.Enabled)

	if err != nil {
		return fmt.Errorf("failed to save email configuration: %w", err)
	}

	return nil
}
