package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusplace/ingest/internal/models"
	"github.com/campusplace/ingest/internal/oracle"
)

// ErrNoCompany is returned when a candidate arrives without a company name.
var ErrNoCompany = errors.New("candidate has no company name")

// ErrDuplicateJob is returned when an equivalent active job already exists.
var ErrDuplicateJob = errors.New("job already exists")

// CreateJob normalizes an oracle candidate and inserts it as an active job.
// Duplicates are detected against active jobs only, so a closed posting can
// be re-announced later without being swallowed. A posting that names its
// position is matched on (company, position); one that does not can only be
// tied to an existing row through (company, deadline). The check runs on the
// candidate's raw fields, before any defaults are filled in.
func CreateJob(ctx context.Context, pool *pgxpool.Pool, cand oracle.CandidateJob, emailDate time.Time) (*models.Job, error) {
	company := strings.TrimSpace(cand.Company)
	if company == "" {
		return nil, ErrNoCompany
	}

	if err := findDuplicate(ctx, pool, company, strings.TrimSpace(cand.Position), strings.TrimSpace(cand.Deadline)); err != nil {
		return nil, err
	}

	job := buildJob(cand, emailDate)

	err := pool.QueryRow(ctx, `
		INSERT INTO jobs (
			company,
			position,
			ctc,
			location,
			job_type,
			deadline,
			description,
			requirements,
			eligibility,
			email_date,
			status,
			job_link
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT DO NOTHING
		RETURNING job_id, created_at
	`,
		job.Company,
		job.Position,
		job.CTC,
		job.Location,
		job.JobType,
		job.Deadline,
		job.Description,
		job.Requirements,
		job.Eligibility,
		job.EmailDate,
		job.Status,
		job.JobLink,
	).Scan(&job.ID, &job.CreatedAt)

	// The partial unique indexes are the last line of defense: another
	// pipeline instance may have inserted the same posting between the
	// duplicate check and this insert.
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDuplicateJob
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	return job, nil
}

// buildJob applies the fallback rules that keep the schema's NOT NULL
// columns satisfied no matter how sparse the oracle's answer was. Defaults
// are filled in here, after the duplicate check has seen the raw fields.
func buildJob(cand oracle.CandidateJob, emailDate time.Time) *models.Job {
	company := strings.TrimSpace(cand.Company)
	position := strings.TrimSpace(cand.Position)
	if position == "" {
		position = "Position"
	}

	jobType := strings.TrimSpace(cand.JobType)
	if jobType == "" {
		jobType = "Full-time"
	}

	// Internship announcements report a stipend instead of a CTC.
	ctc := cand.CTC
	if strings.TrimSpace(ctc) == "" {
		ctc = cand.Stipend
	}

	description := strings.TrimSpace(cand.Description)
	if d := strings.TrimSpace(cand.TestDate); d != "" {
		description = appendLine(description, "Test Date: "+d)
	}
	if d := strings.TrimSpace(cand.InterviewDate); d != "" {
		description = appendLine(description, "Interview Date: "+d)
	}

	date := emailDate
	return &models.Job{
		Company:     company,
		Position:    position,
		CTC:         nullable(ctc),
		Location:    nullable(cand.Location),
		JobType:     jobType,
		Deadline:    nullable(cand.Deadline),
		Description: nullable(description),
		Eligibility: nullable(cand.Eligibility),
		EmailDate:   &date,
		Status:      models.JobStatusActive,
		JobLink:     nullable(cand.ApplyLink),
	}
}

// findDuplicate takes the candidate's trimmed raw fields. The deadline
// match applies only to a candidate with no position of its own: two
// distinct roles announced together often share one deadline, and must not
// collapse into each other.
func findDuplicate(ctx context.Context, pool *pgxpool.Pool, company, position, deadline string) error {
	var existingID int64

	if position != "" {
		err := pool.QueryRow(ctx, `
			SELECT job_id FROM jobs
			WHERE status = $1
			  AND lower(trim(company)) = lower($2)
			  AND lower(trim(position)) = lower($3)
		`, models.JobStatusActive, company, position).Scan(&existingID)
		if err == nil {
			return ErrDuplicateJob
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to check for duplicate job: %w", err)
		}
		return nil
	}

	if deadline == "" {
		return nil
	}

	err := pool.QueryRow(ctx, `
		SELECT job_id FROM jobs
		WHERE status = $1
		  AND lower(trim(company)) = lower($2)
		  AND deadline = $3
	`, models.JobStatusActive, company, deadline).Scan(&existingID)
	if err == nil {
		return ErrDuplicateJob
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("failed to check for duplicate job: %w", err)
	}

	return nil
}

// GetActiveJobs returns all active jobs, newest first.
func GetActiveJobs(ctx context.Context, pool *pgxpool.Pool) ([]*models.Job, error) {
	rows, err := pool.Query(ctx, `
		SELECT
			job_id,
			company,
			position,
			ctc,
			location,
			job_type,
			deadline,
			description,
			requirements,
			eligibility,
			email_date,
			status,
			job_link,
			created_at
		FROM jobs
		WHERE status = $1
		ORDER BY created_at DESC
	`, models.JobStatusActive)

	if err != nil {
		return nil, fmt.Errorf("failed to get jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		var job models.Job
		if err := rows.Scan(
			&job.ID,
			&job.Company,
			&job.Position,
			&job.CTC,
			&job.Location,
			&job.JobType,
			&job.Deadline,
			&job.Description,
			&job.Requirements,
			&job.Eligibility,
			&job.EmailDate,
			&job.Status,
			&job.JobLink,
			&job.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, &job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}

	return jobs, nil
}

func nullable(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func appendLine(base, line string) string {
	if base == "" {
		return line
	}
	return base + "\n" + line
}
