package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sjperalta/covenantops-api/internal/config"
	"github.com/sjperalta/covenantops-api/internal/database"
	"github.com/sjperalta/covenantops-api/internal/extractor"
	"github.com/sjperalta/covenantops-api/internal/metrics"
	"github.com/sjperalta/covenantops-api/internal/repository"
	"github.com/sjperalta/covenantops-api/internal/services"
	"github.com/sjperalta/covenantops-api/internal/storage"
	"github.com/sjperalta/covenantops-api/pkg/logger"
)

// remind sends the reminder digest once, for one loan or for all of them.
// Meant for cron when the API runs without REMINDER_INTERVAL.
func main() {
	loanID := flag.Uint("loan", 0, "only this loan (default: every loan)")
	timeout := flag.Duration("timeout", 5*time.Minute, "give up after this long")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Setup(cfg.Environment, cfg.LogLevel)

	if len(cfg.ReminderRecipients) == 0 {
		log.Fatal("REMINDER_RECIPIENTS is not set")
	}
	if cfg.ResendAPIKey == "" {
		logger.Warn("RESEND_API_KEY is not set, digests will only be logged")
	}

	db, err := database.Connect(cfg.DatabaseURL, cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	store, err := storage.NewLocalStorage(cfg.StorageDir)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	ex, err := extractor.New(cfg.ExtractorProvider, nil)
	if err != nil {
		log.Fatalf("Failed to initialize extractor: %v", err)
	}

	svcs := services.NewServices(services.Deps{
		Repos:     repository.NewRepositories(db),
		Storage:   store,
		Extractor: ex,
		Mailer:    services.NewMailer(cfg.ResendAPIKey, cfg.FromEmail),
		Metrics:   metrics.New(prometheus.NewRegistry()),
		Config:    cfg,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if *loanID != 0 {
		digest, err := svcs.Reminder.SendLoanDigest(ctx, uint(*loanID))
		if err != nil {
			log.Fatalf("Failed to send digest: %v", err)
		}
		logger.Info("Digest processed", "loan_id", digest.LoanID, "overdue", len(digest.Overdue), "due_soon", len(digest.DueSoon), "sent", digest.Sent)
		return
	}

	if err := svcs.Reminder.SendAllDigests(ctx); err != nil {
		log.Fatalf("Some digests failed: %v", err)
	}
}
