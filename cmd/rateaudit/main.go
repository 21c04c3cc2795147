package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"GoldPledge/internal/audit"
	"GoldPledge/internal/config"
	"GoldPledge/internal/repo"
	"GoldPledge/internal/share"
)

func main() {
	once := flag.Bool("once", false, "run a single audit and exit")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}
	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL missing")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := repo.OpenDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	job := &audit.Job{
		Rates:  repo.NewPostgresRepository(db),
		To:     cfg.AdminEmail,
		MaxAge: cfg.RateMaxAge,
		Log:    logger,
	}
	if cfg.MailEnabled() && cfg.AdminEmail != "" {
		job.Mail = share.NewMailer(cfg, logger)
	} else {
		logger.Warn("SMTP or ADMIN_EMAIL not configured, stale rates will only be logged")
	}

	run := func() {
		if _, err := job.Run(ctx); err != nil {
			logger.WithError(err).Error("rate audit failed")
		}
	}

	if *once {
		run()
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.AuditSchedule, run); err != nil {
		logger.Fatalf("Invalid AUDIT_SCHEDULE %q: %v", cfg.AuditSchedule, err)
	}
	c.Start()
	logger.Infof("Rate audit scheduled: %s", cfg.AuditSchedule)

	<-ctx.Done()
	logger.Info("Shutdown signal received")
	<-c.Stop().Done()
}
