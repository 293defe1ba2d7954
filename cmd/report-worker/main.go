// Command report-worker periodically regenerates the monthly report, runs the
// spending warning rules, and archives a report summary row to Google Sheets.
// It also consumes warning alerts from the broker and logs them, so a
// broker-attached deployment has a durable, acked record of every alert.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finhealth/internal/amqp"
	"finhealth/internal/config"
	"finhealth/internal/export/sheets"
	applog "finhealth/internal/log"
	"finhealth/internal/services"
	"finhealth/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logCfg := applog.DefaultConfig()
	logCfg.Component = "report-worker"
	logger := applog.New(logCfg)
	applog.SetDefault(logger)

	logger.Info("Starting report-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Google Sheets archiving is optional.
	var exporter *sheets.Client
	if cfg.GoogleSpreadsheetID != "" {
		exporter, err = sheets.New(ctx, sheets.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleCredentialsJSON,
			CredentialsFile: cfg.GoogleCredentialsFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	// The broker is optional too: without it the worker still generates
	// reports on its schedule, it just cannot publish or consume alerts.
	var (
		alerts     services.AlertPublisher
		amqpClient *amqp.Client
	)
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		alerts = amqpClient
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	reportSvc := services.NewReportService(repo, alerts, cfg.AnalysisMonths, cfg.ProjectionMonths)

	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeWarningAlerts(ctx, func(msg *amqp.WarningAlertMessage) error {
				logger.Warn("Spending alert received",
					"warning_id", msg.WarningID,
					"severity", msg.Severity,
					"category", msg.Category,
					"amount", msg.Amount,
					"year", msg.Year,
					"month", msg.Month)
				return nil
			})
			if err != nil && err != context.Canceled {
				logger.Error("Alert consumption failed", "error", err)
				cancel()
			}
		}()
	}

	runCycle := func() {
		now := time.Now()
		year, month := now.Year(), int(now.Month())

		cycleCtx, cycleCancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cycleCancel()

		warnings, err := reportSvc.Warnings(cycleCtx, year, month)
		if err != nil {
			logger.Error("Warning scan failed", "error", err, "year", year, "month", month)
		} else {
			logger.Info("Warning scan complete", "year", year, "month", month, "warnings", len(warnings))
		}

		if exporter == nil {
			return
		}

		report, err := reportSvc.MonthlyReport(cycleCtx, year, month)
		if err != nil {
			logger.Error("Report generation failed", "error", err, "year", year, "month", month)
			return
		}
		score, err := reportSvc.HealthScore(cycleCtx, year, month)
		if err != nil {
			logger.Error("Health score failed", "error", err, "year", year, "month", month)
			return
		}
		if err := exporter.AppendReport(cycleCtx, report, score); err != nil {
			logger.Error("Report archive failed", "error", err, "year", year, "month", month)
		}
	}

	// One cycle at startup, then on the configured interval.
	runCycle()

	ticker := time.NewTicker(cfg.ReportInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runCycle()
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	cancel()
	logger.Info("Worker stopped")
}
