package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/campusplace/ingest/internal/config"
	"github.com/campusplace/ingest/internal/content"
	"github.com/campusplace/ingest/internal/crypto"
	"github.com/campusplace/ingest/internal/db"
	"github.com/campusplace/ingest/internal/mailbox"
	"github.com/campusplace/ingest/internal/oracle"
	"github.com/campusplace/ingest/internal/pipeline"
)

func main() {
	batchSize := flag.Int("batch-size", pipeline.DefaultBatchSize, "maximum messages to evaluate in one batch run")
	userID := flag.Int64("user-id", 0, "mailbox owner to ingest for (0 = first enabled configuration)")
	continuous := flag.Bool("continuous", false, "keep polling the mailbox for new messages after the initial batch")
	interval := flag.Duration("interval", 0, "poll interval override for continuous mode")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.NewConfig()
	if err != nil {
		log.WithError(err).Fatal("Failed to load config")
	}
	if *interval > 0 {
		cfg.PollInterval = *interval
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	encryptor, err := crypto.NewEncryptor(cfg.EncryptionKeyBase64)
	if err != nil {
		log.WithError(err).Fatal("Failed to create encryptor")
	}

	pool, err := db.NewConnection(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.CloseConnection(pool)

	mailCfg, err := db.GetEnabledConfig(ctx, pool, encryptor, *userID)
	if err != nil {
		log.WithError(err).Fatal("Failed to load email configuration")
	}
	log.WithField("address", mailCfg.Address).Info("Ingesting mailbox")

	extractor, err := content.NewExtractor(cfg.AttachmentsDir, logrus.NewEntry(log))
	if err != nil {
		log.WithError(err).Fatal("Failed to prepare attachments directory")
	}

	runner := pipeline.NewRunner(pipeline.Options{
		Config: cfg,
		Dial: func() (pipeline.Mailbox, error) {
			session, err := mailbox.Connect(*mailCfg, true)
			if err != nil {
				return nil, err
			}
			return session, nil
		},
		Store:     pipeline.NewStore(pool),
		Oracle:    oracle.NewGPTExtractor(cfg.OpenAIAPIKey, cfg.OpenAIModel, logrus.NewEntry(log)),
		Content:   extractor,
		BatchSize: *batchSize,
		UserID:    mailCfg.UserID,
		Log:       logrus.NewEntry(log),
	})

	start := time.Now()
	stats, err := runner.RunBatch(ctx)
	if err != nil {
		log.WithError(err).Fatal("Batch run failed")
	}
	log.WithFields(logrus.Fields{
		"new_jobs": stats.NewJobs,
		"duration": time.Since(start).Round(time.Second).String(),
	}).Info("Batch finished")

	if !*continuous {
		return
	}

	log.WithField("interval", cfg.PollInterval.String()).Info("Watching mailbox for new messages")
	if err := runner.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("Watch failed")
	}
	log.Info("Shutting down")
}
