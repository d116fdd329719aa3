package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/veckopay/verification/internal/application/service"
)

// DeadlineWorker periodically runs the auto-resolution pass over active
// sessions. The pass itself is stateless; the worker only supplies the
// schedule and the clock.
type DeadlineWorker struct {
	resolver *service.Resolver
	logger   *zap.Logger

	interval time.Duration

	mu        sync.RWMutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewDeadlineWorker creates a new deadline resolution worker
func NewDeadlineWorker(resolver *service.Resolver, interval time.Duration, logger *zap.Logger) *DeadlineWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &DeadlineWorker{
		resolver: resolver,
		logger:   logger,
		interval: interval,
	}
}

// Start starts the resolution loop
func (w *DeadlineWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return fmt.Errorf("deadline worker is already running")
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.isRunning = true
	w.startTime = time.Now()

	w.logger.Info("DeadlineWorker started", zap.Duration("interval", w.interval))

	go w.runLoop()

	return nil
}

// Stop stops the resolution loop
func (w *DeadlineWorker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.isRunning {
		return
	}

	w.isRunning = false
	if w.cancel != nil {
		w.cancel()
	}

	w.logger.Info("DeadlineWorker stopped")
}

// Name returns the worker name for identification
func (w *DeadlineWorker) Name() string {
	return "DeadlineWorker"
}

// runLoop runs the main resolution loop
func (w *DeadlineWorker) runLoop() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run immediately on start so overdue sessions are not left waiting
	// a full interval after a restart.
	w.runOnce()

	for {
		select {
		case <-w.ctx.Done():
			w.logger.Debug("Resolution loop context cancelled")
			return

		case <-ticker.C:
			w.runOnce()
		}
	}
}

// runOnce executes a single resolution pass
func (w *DeadlineWorker) runOnce() {
	ctx, cancel := context.WithTimeout(w.ctx, w.interval)
	defer cancel()

	report, err := w.resolver.ResolvePass(ctx, time.Now())
	if err != nil {
		w.logger.Error("Resolution pass failed", zap.Error(err))
		return
	}

	if report.AutoApproved > 0 || report.Expired > 0 || len(report.Errors) > 0 {
		w.logger.Info("Resolution pass report",
			zap.Int("scanned", report.Scanned),
			zap.Int("auto_approved", report.AutoApproved),
			zap.Int("expired", report.Expired),
			zap.Int("skipped", report.Skipped),
			zap.Int("errors", len(report.Errors)))
	}
}
