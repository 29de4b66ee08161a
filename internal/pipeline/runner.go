// Package pipeline drives ingestion end to end: search the mailbox,
// decode, classify, assemble threads, extract content, consult the
// oracle, and persist the outcome. One message failing never stops
// the batch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/campusplace/ingest/internal/classify"
	"github.com/campusplace/ingest/internal/config"
	"github.com/campusplace/ingest/internal/content"
	"github.com/campusplace/ingest/internal/db"
	"github.com/campusplace/ingest/internal/mailbox"
	"github.com/campusplace/ingest/internal/models"
	"github.com/campusplace/ingest/internal/oracle"
	"github.com/campusplace/ingest/internal/thread"
)

// DefaultBatchSize caps how many recent messages a single batch run evaluates.
const DefaultBatchSize = 50

// reconnectEvery forces a fresh IMAP session periodically in watch mode;
// long-lived Gmail sessions go stale without failing the connection.
const reconnectEvery = 100

// watchFetchLimit bounds one watch pass to the newest messages. SINCE is
// day-granular, so every pass re-finds the whole day's traffic.
const watchFetchLimit = 20

const skipReasonLimit = 500

// Mailbox is the IMAP session surface the runner depends on.
// internal/mailbox.Client satisfies it; tests use a fake.
type Mailbox interface {
	thread.Searcher
	SearchSince(since time.Time) ([]uint32, error)
	Close()
}

// Stats summarizes one batch run or one watch pass.
type Stats struct {
	Processed  int
	NewJobs    int
	Duplicates int
	Skipped    int
	Errors     int
	BySource   map[string]int
}

func newStats() *Stats {
	return &Stats{BySource: make(map[string]int)}
}

// Options configures a Runner. Dial is called once per session; watch mode
// redials periodically.
type Options struct {
	Config    *config.Config
	Dial      func() (Mailbox, error)
	Store     Store
	Oracle    oracle.Extractor
	Content   *content.Extractor
	BatchSize int
	UserID    int64
	Log       *logrus.Entry
}

// Runner owns one ingestion flow for one mailbox.
type Runner struct {
	cfg        *config.Config
	dial       func() (Mailbox, error)
	store      Store
	oracle     oracle.Extractor
	classifier *classify.Classifier
	content    *content.Extractor
	batchSize  int
	userID     int64
	log        *logrus.Entry
}

func NewRunner(opts Options) *Runner {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Runner{
		cfg:        opts.Config,
		dial:       opts.Dial,
		store:      opts.Store,
		oracle:     opts.Oracle,
		classifier: classify.New(opts.Config.Classifier),
		content:    opts.Content,
		batchSize:  batchSize,
		userID:     opts.UserID,
		log:        log,
	}
}

// RunBatch evaluates the most recent unprocessed messages inside the
// configured batch window and returns what happened to them.
func (r *Runner) RunBatch(ctx context.Context) (*Stats, error) {
	session, err := r.dial()
	if err != nil {
		return nil, fmt.Errorf("failed to open mailbox session: %w", err)
	}
	defer session.Close()

	ledger, err := r.store.ListProcessedMessageIDs(ctx, r.userID)
	if err != nil {
		return nil, err
	}

	since := time.Now().Add(-r.cfg.BatchWindow)
	uids, err := session.SearchSince(since)
	if err != nil {
		return nil, fmt.Errorf("failed to search mailbox: %w", err)
	}
	if len(uids) > r.batchSize {
		uids = uids[len(uids)-r.batchSize:]
	}

	stats := newStats()
	r.processBatch(ctx, session, uids, time.Time{}, ledger, stats)

	r.log.WithFields(logrus.Fields{
		"processed":  stats.Processed,
		"new_jobs":   stats.NewJobs,
		"duplicates": stats.Duplicates,
		"skipped":    stats.Skipped,
		"errors":     stats.Errors,
		"by_source":  stats.BySource,
	}).Info("Batch run complete")

	return stats, nil
}

// Watch polls the mailbox for new messages until the context is cancelled.
// The watermark only advances after a pass completes, so a failed pass is
// retried over the same window.
func (r *Runner) Watch(ctx context.Context) error {
	session, err := r.dial()
	if err != nil {
		return fmt.Errorf("failed to open mailbox session: %w", err)
	}
	defer func() { session.Close() }()

	ledger, err := r.store.ListProcessedMessageIDs(ctx, r.userID)
	if err != nil {
		return err
	}

	lastCheck := time.Now().Add(-r.cfg.PollWindow)
	checks := 0

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		checks++
		if checks%reconnectEvery == 0 {
			session.Close()
			session, err = r.dial()
			if err != nil {
				return fmt.Errorf("failed to reopen mailbox session: %w", err)
			}
		}

		passStart := time.Now()
		uids, err := session.SearchSince(lastCheck)
		if err != nil {
			r.log.WithError(err).Warn("Mailbox search failed, reconnecting")
			session.Close()
			session, err = r.dial()
			if err != nil {
				return fmt.Errorf("failed to reopen mailbox session: %w", err)
			}
			continue
		}

		if len(uids) > watchFetchLimit {
			uids = uids[len(uids)-watchFetchLimit:]
		}

		if len(uids) > 0 {
			stats := newStats()
			r.processBatch(ctx, session, uids, lastCheck, ledger, stats)
			if stats.Processed > 0 {
				r.log.WithFields(logrus.Fields{
					"processed": stats.Processed,
					"new_jobs":  stats.NewJobs,
				}).Info("Watch pass complete")
			}
		}
		lastCheck = passStart
	}
}

// processBatch runs the per-message pipeline over uids. A non-zero cutoff
// drops messages dated before it without a verdict; the watch loop uses it
// to skip the day's history its day-granular search keeps returning. The
// ledger set is grown in place as verdicts land, so it doubles as the
// run-scoped seen set shared with thread assembly.
func (r *Runner) processBatch(ctx context.Context, session Mailbox, uids []uint32, cutoff time.Time, ledger map[string]struct{}, stats *Stats) {
	assembler := thread.NewAssembler(session, ledger, r.log)
	seenThreads := make(map[string]struct{})

	for _, uid := range uids {
		if ctx.Err() != nil {
			return
		}

		raw, err := session.FetchRaw(uid)
		if err != nil {
			r.log.WithError(err).WithField("uid", uid).Warn("Fetch failed")
			stats.Errors++
			continue
		}

		msg, err := mailbox.Decode(raw)
		if err != nil {
			// No ledger row: an undecodable message gets another chance
			// on the next run.
			r.log.WithError(err).WithField("uid", uid).Warn("Decode failed")
			stats.Errors++
			continue
		}

		if !cutoff.IsZero() && msg.Date.Before(cutoff) {
			continue
		}

		if _, done := ledger[msg.MessageID]; done {
			continue
		}

		decision := r.classifier.Classify(msg)
		if !decision.Accept {
			r.markSkipped(ctx, msg, decision.Reason, ledger)
			stats.Processed++
			stats.Skipped++
			continue
		}

		threadID := thread.DeriveID(msg)
		if _, done := seenThreads[threadID]; done {
			r.markSkipped(ctx, msg, "Part of processed thread", ledger)
			stats.Processed++
			stats.Skipped++
			continue
		}
		seenThreads[threadID] = struct{}{}

		if err := r.processMessage(ctx, assembler, msg, ledger, stats); err != nil {
			r.log.WithError(err).WithField("message_id", msg.MessageID).Warn("Message processing failed")
			r.markSkipped(ctx, msg, truncateReason("Processing error: "+err.Error()), ledger)
			stats.Errors++
		}
		stats.Processed++
		stats.BySource[decision.Source()]++
	}
}

// processMessage runs a relevant message through assembly, extraction, the
// oracle, and persistence.
func (r *Runner) processMessage(ctx context.Context, assembler *thread.Assembler, msg *mailbox.Message, ledger map[string]struct{}, stats *Stats) error {
	msgs := assembler.Assemble(msg)
	cnt := r.content.Extract(msgs)

	candidates, err := r.oracle.ExtractJobs(ctx, cnt.CombinedText, cnt.URLs)
	if err != nil {
		return err
	}

	var lastJobID *int64
	created, duplicates := 0, 0
	for _, cand := range candidates {
		job, err := r.store.CreateJob(ctx, cand, msg.Date)
		switch {
		case err == nil:
			created++
			id := job.ID
			lastJobID = &id
			r.log.WithFields(logrus.Fields{
				"company":  job.Company,
				"position": job.Position,
			}).Info("Created job")
		case errors.Is(err, db.ErrDuplicateJob):
			duplicates++
		case errors.Is(err, db.ErrNoCompany):
			// Oracle slipped one past its own rules; drop it.
		default:
			return err
		}
	}
	stats.NewJobs += created
	stats.Duplicates += duplicates

	entry := &models.ProcessedEmail{
		MessageID:  msg.MessageID,
		Subject:    msg.Subject,
		FromEmail:  mailbox.ExtractAddress(msg.From),
		EmailDate:  msg.Date,
		JobID:      lastJobID,
		JobCreated: created > 0,
		UserID:     r.userID,
	}
	if created == 0 {
		entry.Skipped = true
		reason := "Not a job posting"
		if duplicates > 0 {
			reason = "Duplicate job posting"
		}
		entry.SkipReason = &reason
		stats.Skipped++
	}
	if err := r.store.MarkProcessed(ctx, entry); err != nil {
		return err
	}
	ledger[msg.MessageID] = struct{}{}

	for _, att := range cnt.Attachments {
		if err := r.store.SaveAttachment(ctx, &models.EmailAttachment{
			EmailID:     entry.ID,
			Filename:    att.Filename,
			FilePath:    att.StoredPath,
			FileSize:    att.Size,
			ContentType: att.ContentType,
		}); err != nil {
			r.log.WithError(err).WithField("filename", att.Filename).Warn("Failed to record attachment")
		}
	}

	// The rest of the thread is settled by the seed's verdict.
	for _, member := range msgs {
		if member.MessageID == msg.MessageID {
			continue
		}
		r.markSkipped(ctx, member, "Part of processed thread", ledger)
	}

	return nil
}

func (r *Runner) markSkipped(ctx context.Context, msg *mailbox.Message, reason string, ledger map[string]struct{}) {
	entry := &models.ProcessedEmail{
		MessageID:  msg.MessageID,
		Subject:    msg.Subject,
		FromEmail:  mailbox.ExtractAddress(msg.From),
		EmailDate:  msg.Date,
		Skipped:    true,
		SkipReason: &reason,
		UserID:     r.userID,
	}
	if err := r.store.MarkProcessed(ctx, entry); err != nil {
		r.log.WithError(err).WithField("message_id", msg.MessageID).Warn("Failed to record skip")
		return
	}
	ledger[msg.MessageID] = struct{}{}
}

func truncateReason(reason string) string {
	if len(reason) > skipReasonLimit {
		return reason[:skipReasonLimit]
	}
	return reason
}
