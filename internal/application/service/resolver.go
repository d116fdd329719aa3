package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/veckopay/verification/internal/application/port"
	"github.com/veckopay/verification/internal/domain/entity"
	"github.com/veckopay/verification/internal/domain/event"
)

// ResolverConfig holds the auto-resolution settings
type ResolverConfig struct {
	GracePeriod         time.Duration // extra time past the deadline before resolution
	ThresholdPercentage int           // floor for the completion requirement
	RiskThreshold       float64       // average risk above this blocks auto-approval
	BatchSize           int           // sessions scanned per pass
}

// DefaultResolverConfig returns the production settings
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		GracePeriod:         2 * time.Hour,
		ThresholdPercentage: 30,
		RiskThreshold:       70,
		BatchSize:           100,
	}
}

// Urgency classifies how close a session is to its deadline. Display
// only; it has no side effects.
type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyHigh     Urgency = "high"
	UrgencyMedium   Urgency = "medium"
	UrgencyLow      Urgency = "low"
)

// SessionError records one session's failure during a pass
type SessionError struct {
	SessionID string `json:"session_id"`
	Err       error  `json:"-"`
	Message   string `json:"message"`
}

// PassReport summarizes one reconciliation pass
type PassReport struct {
	Scanned      int            `json:"scanned"`
	AutoApproved int            `json:"auto_approved"`
	Expired      int            `json:"expired"`
	Skipped      int            `json:"skipped"`
	Errors       []SessionError `json:"errors,omitempty"`
}

// Resolver is the deadline-driven auto-resolution pass. It is stateless:
// the caller supplies "now", so passes are replayable and testable. Safe
// under at-least-once concurrent execution; every resolution is a single
// conditional update keyed by session id with a status precondition.
type Resolver struct {
	sessionRepo port.SessionRepository
	batchRepo   port.BatchRepository
	audit       port.AuditSink
	notifier    port.ProgressNotifier
	logger      Logger
	cfg         ResolverConfig
}

// NewResolver creates the auto-resolution pass
func NewResolver(
	sessionRepo port.SessionRepository,
	batchRepo port.BatchRepository,
	audit port.AuditSink,
	notifier port.ProgressNotifier,
	logger Logger,
	cfg ResolverConfig,
) *Resolver {
	return &Resolver{
		sessionRepo: sessionRepo,
		batchRepo:   batchRepo,
		audit:       audit,
		notifier:    notifier,
		logger:      logger,
		cfg:         cfg,
	}
}

// ResolvePass scans active sessions and resolves those past their grace
// deadline. One session's failure never halts the pass; per-session
// errors are collected into the report.
func (r *Resolver) ResolvePass(ctx context.Context, now time.Time) (*PassReport, error) {
	sessions, err := r.sessionRepo.ListActive(ctx, r.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}

	report := &PassReport{Scanned: len(sessions)}
	for _, session := range sessions {
		outcome, err := r.resolveOne(ctx, session, now)
		switch {
		case err != nil:
			report.Errors = append(report.Errors, SessionError{
				SessionID: session.ID,
				Err:       err,
				Message:   err.Error(),
			})
			r.logger.Error("Session resolution failed", "error", err, "session_id", session.ID)
		case outcome == entity.SessionAutoApproved:
			report.AutoApproved++
		case outcome == entity.SessionExpired:
			report.Expired++
		default:
			report.Skipped++
		}
	}

	if report.AutoApproved > 0 || report.Expired > 0 || len(report.Errors) > 0 {
		r.logger.Info("Resolution pass completed",
			"scanned", report.Scanned,
			"auto_approved", report.AutoApproved,
			"expired", report.Expired,
			"errors", len(report.Errors))
	}
	return report, nil
}

// resolveOne resolves a single session. Returns the terminal status it
// applied, or empty when the session was skipped.
func (r *Resolver) resolveOne(ctx context.Context, session *entity.VerificationSession, now time.Time) (entity.SessionStatus, error) {
	if !now.After(session.GraceDeadline(r.cfg.GracePeriod)) {
		return "", nil
	}

	target := entity.SessionExpired
	if r.eligibleForAutoApproval(session) {
		target = entity.SessionAutoApproved
	}

	// The status precondition makes concurrent passes race-safe: only
	// one update can observe the session still active.
	err := r.sessionRepo.UpdateStatusIf(ctx, session.ID, entity.ActiveSessionStatuses, target, now)
	if errors.Is(err, entity.ErrConcurrentModification) {
		// Another worker resolved it; the next pass re-evaluates nothing.
		return "", nil
	}
	if err != nil {
		return "", err
	}

	session.Status = target
	session.CompletedAt = &now
	r.cascadeBatch(ctx, session, target)
	r.recordResolution(ctx, session, target)
	if r.notifier != nil {
		r.notifier.Notify(ctx, progressOf(session))
	}
	return target, nil
}

// eligibleForAutoApproval requires the completion percentage to reach the
// stricter of the session's and the configured threshold, with average
// risk at or below the risk threshold.
func (r *Resolver) eligibleForAutoApproval(session *entity.VerificationSession) bool {
	threshold := session.AutoApprovalThreshold
	if r.cfg.ThresholdPercentage > threshold {
		threshold = r.cfg.ThresholdPercentage
	}
	return session.CompletionPercentage() >= threshold &&
		session.AverageRiskScore <= r.cfg.RiskThreshold
}

func (r *Resolver) cascadeBatch(ctx context.Context, session *entity.VerificationSession, status entity.SessionStatus) {
	target, ok := status.BatchStatusFor()
	if !ok {
		return
	}
	from := []entity.BatchStatus{entity.BatchPendingVerification, entity.BatchInProgress}
	if target == entity.BatchAutoApproved {
		from = append(from, entity.BatchExpired)
	}
	if err := r.batchRepo.UpdateStatusIf(ctx, session.BatchID, from, target); err != nil {
		r.logger.Warn("Batch cascade failed", "error", err, "batch_id", session.BatchID, "target", target.String())
	}
}

// recordResolution emits exactly one audit event per resolved session
func (r *Resolver) recordResolution(ctx context.Context, session *entity.VerificationSession, status entity.SessionStatus) {
	var e *event.Event
	if status == entity.SessionAutoApproved {
		e = event.New(event.ActorSystem, event.SeverityInfo, "session auto-approved at deadline", event.SessionAutoApproved{
			Completion:       session.CompletionPercentage(),
			AverageRiskScore: session.AverageRiskScore,
		})
	} else {
		e = event.New(event.ActorSystem, event.SeverityWarning, "session expired at deadline", event.SessionExpired{
			Completion:       session.CompletionPercentage(),
			AverageRiskScore: session.AverageRiskScore,
		})
	}
	if err := r.audit.Record(ctx, e.WithRefs(session.BusinessID, session.BatchID, session.ID)); err != nil {
		r.logger.Warn("Audit record failed", "error", err, "kind", e.Kind.String())
	}
}

// CountdownFor classifies deadline proximity for display
func CountdownFor(session *entity.VerificationSession, now time.Time) Urgency {
	remaining := session.Deadline.Sub(now)
	switch {
	case remaining < 6*time.Hour: // includes overdue
		return UrgencyCritical
	case remaining < 24*time.Hour:
		return UrgencyHigh
	case remaining < 72*time.Hour:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}
