package pipeline

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusplace/ingest/internal/db"
	"github.com/campusplace/ingest/internal/models"
	"github.com/campusplace/ingest/internal/oracle"
)

// Store is the persistence surface the runner depends on. The production
// implementation wraps internal/db; tests use an in-memory fake.
type Store interface {
	ListProcessedMessageIDs(ctx context.Context, userID int64) (map[string]struct{}, error)
	MarkProcessed(ctx context.Context, email *models.ProcessedEmail) error
	// CreateJob returns db.ErrDuplicateJob for an already-known posting and
	// db.ErrNoCompany for a candidate without a company.
	CreateJob(ctx context.Context, cand oracle.CandidateJob, emailDate time.Time) (*models.Job, error)
	SaveAttachment(ctx context.Context, attachment *models.EmailAttachment) error
}

type pgStore struct {
	pool *pgxpool.Pool
}

// NewStore returns a Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

func (s *pgStore) ListProcessedMessageIDs(ctx context.Context, userID int64) (map[string]struct{}, error) {
	return db.ListProcessedMessageIDs(ctx, s.pool, userID)
}

func (s *pgStore) MarkProcessed(ctx context.Context, email *models.ProcessedEmail) error {
	return db.MarkProcessed(ctx, s.pool, email)
}

func (s *pgStore) CreateJob(ctx context.Context, cand oracle.CandidateJob, emailDate time.Time) (*models.Job, error) {
	return db.CreateJob(ctx, s.pool, cand, emailDate)
}

func (s *pgStore) SaveAttachment(ctx context.Context, attachment *models.EmailAttachment) error {
	return db.SaveAttachment(ctx, s.pool, attachment)
}
