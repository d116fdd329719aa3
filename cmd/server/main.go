package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/veckopay/verification/internal/application/port"
	"github.com/veckopay/verification/internal/application/service"
	"github.com/veckopay/verification/internal/audit"
	"github.com/veckopay/verification/internal/config"
	"github.com/veckopay/verification/internal/fraud"
	"github.com/veckopay/verification/internal/infrastructure/external/openai"
	"github.com/veckopay/verification/internal/infrastructure/notify"
	httpserver "github.com/veckopay/verification/internal/interfaces/http"
	"github.com/veckopay/verification/internal/repository"
	"github.com/veckopay/verification/internal/worker"
	"github.com/veckopay/verification/pkg/database"
	"github.com/veckopay/verification/pkg/utils"
)

func main() {
	// Local development credentials; ignored when the file is absent
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting payment verification service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	// Database
	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Repositories
	batchRepo := repository.NewBatchRepository(db, logger)
	sessionRepo := repository.NewSessionRepository(db, logger)
	resultRepo := repository.NewResultRepository(db, logger)
	auditRepo := repository.NewAuditRepository(db, logger)

	// Audit events go to both the log and the database
	auditSink := audit.NewFanout(audit.NewZapSink(logger), auditRepo)

	// Fraud scoring and pattern detection; the advisory provider is optional
	scorer := fraud.NewScorer(cfg.Fraud.Scorer, logger)
	detector := fraud.NewPatternDetector(cfg.Fraud.Detector, logger)

	var assessor port.RiskAssessor
	if cfg.Assessment.APIKey != "" {
		assessor = openai.NewAssessor(
			cfg.Assessment.APIKey,
			cfg.Assessment.Model,
			cfg.Assessment.Temperature,
			cfg.Assessment.MaxTokens,
			logger,
		)
		logger.Info("Advisory risk assessor enabled", zap.String("model", cfg.Assessment.Model))
	} else {
		logger.Info("No assessment API key; using rule-based scoring only")
	}

	notifier := notify.NewLogNotifier(logger)
	kvlog := utils.NewKVLogger(logger)

	policy := service.DecisionPolicy{
		RejectRiskThreshold:   cfg.Verification.RejectRiskThreshold,
		AutoApproveMinQuality: cfg.Verification.AutoApproveMinQuality,
		AutoRejectMaxQuality:  cfg.Verification.AutoRejectMaxQuality,
		CommissionRate:        cfg.Verification.CommissionRate,
	}

	// Services
	batchService := service.NewBatchService(batchRepo, auditSink, allowAll{}, kvlog, nil)

	verificationCfg := service.VerificationConfig{
		DeadlineDays:          cfg.Verification.DeadlineDays,
		AutoApprovalThreshold: cfg.Verification.AutoApprovalThreshold,
		PauseCutoff:           cfg.Verification.PauseCutoff,
		AssessmentTimeout:     cfg.Assessment.Timeout,
		HighValueAmount:       cfg.Verification.HighValueAmount,
		MaxRetries:            cfg.Verification.MaxRetries,
	}
	verificationService := service.NewVerificationService(
		batchRepo, sessionRepo, resultRepo, db,
		assessor, scorer, detector, policy, auditSink, notifier,
		allowAll{}, kvlog, verificationCfg, nil,
	)

	resolver := service.NewResolver(sessionRepo, batchRepo, auditSink, notifier, kvlog, service.ResolverConfig{
		GracePeriod:         cfg.Scheduler.GracePeriod,
		ThresholdPercentage: cfg.Scheduler.ThresholdPercentage,
		RiskThreshold:       cfg.Scheduler.RiskThreshold,
		BatchSize:           cfg.Scheduler.BatchSize,
	})

	// Background workers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := worker.NewManager(logger)
	manager.Register(worker.NewDeadlineWorker(resolver, cfg.Scheduler.Interval, logger))
	if err := manager.StartAll(ctx); err != nil {
		logger.Fatal("Failed to start workers", zap.Error(err))
	}

	// HTTP server
	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, batchService, verificationService, auditRepo, kvlog)

	go func() {
		if err := server.Start(ctx); err != nil {
			logger.Error("HTTP server stopped with error", zap.Error(err))
			cancel()
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")

	cancel()
	manager.StopAll()
	if err := server.Stop(); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}

// allowAll authorizes every actor on every business. Tenancy checks
// belong to the upstream identity service; the port stays in place so a
// real policy can be dropped in.
type allowAll struct{}

func (allowAll) Authorize(actor, businessID string) bool { return true }
