package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veckopay/verification/internal/application/port"
	"github.com/veckopay/verification/internal/domain/entity"
	"github.com/veckopay/verification/internal/domain/event"
	"github.com/veckopay/verification/internal/domain/workflow"
	"github.com/veckopay/verification/internal/fraud"
)

// VerificationConfig holds the orchestrator's tunables
type VerificationConfig struct {
	DeadlineDays          int
	AutoApprovalThreshold int           // completion % required for auto-approval
	PauseCutoff           time.Duration // pausing closer to the deadline than this is rejected
	AssessmentTimeout     time.Duration
	HighValueAmount       float64 // amounts at or above this always get assessed
	MaxRetries            int     // bounded retries on optimistic-lock conflicts
}

// DefaultVerificationConfig returns the production settings
func DefaultVerificationConfig() VerificationConfig {
	return VerificationConfig{
		DeadlineDays:          7,
		AutoApprovalThreshold: 30,
		PauseCutoff:           6 * time.Hour,
		AssessmentTimeout:     5 * time.Second,
		HighValueAmount:       1000,
		MaxRetries:            3,
	}
}

// VerifyInput is one verification request
type VerifyInput struct {
	TransactionID   string                    `json:"transaction_id"`
	Decision        entity.Decision           `json:"decision"`
	RejectionReason *entity.RejectionReason   `json:"rejection_reason,omitempty"`
	Notes           string                    `json:"notes,omitempty"`
	DurationSeconds int                       `json:"duration_seconds"`
	QualityScore    float64                   `json:"quality_score"`
	Context         *fraud.TransactionContext `json:"context,omitempty"`
}

// AutoVerifyOutcome is the result of an automatic decision attempt
type AutoVerifyOutcome struct {
	Result         *entity.VerificationResult `json:"result,omitempty"`
	Assessment     *entity.FraudAssessment    `json:"assessment,omitempty"`
	ManualRequired bool                       `json:"manual_required"`
}

// VerificationService is the workflow orchestrator: it validates and
// executes session transitions and records verification results.
type VerificationService interface {
	CreateSession(ctx context.Context, actor, batchID string) (*entity.VerificationSession, error)
	Start(ctx context.Context, actor, sessionID string) (*entity.VerificationSession, error)
	Verify(ctx context.Context, actor, sessionID string, input VerifyInput) (*entity.VerificationResult, error)
	AutoVerify(ctx context.Context, sessionID string, input VerifyInput) (*AutoVerifyOutcome, error)
	Pause(ctx context.Context, actor, sessionID, reason string) (*entity.VerificationSession, error)
	Resume(ctx context.Context, actor, sessionID string) (*entity.VerificationSession, error)
	Complete(ctx context.Context, actor, sessionID, notes string) (*entity.VerificationSession, error)
	Cancel(ctx context.Context, actor, sessionID, reason string) (*entity.VerificationSession, error)
	Supersede(ctx context.Context, actor, sessionID string, input VerifyInput) (*entity.VerificationResult, error)
	Progress(ctx context.Context, sessionID string) (*port.Progress, error)
	Analytics(ctx context.Context, sessionID string) (*entity.SessionAnalytics, error)
	Patterns(ctx context.Context, sessionID string) ([]entity.PatternMatch, error)
}

type verificationServiceImpl struct {
	batchRepo   port.BatchRepository
	sessionRepo port.SessionRepository
	resultRepo  port.ResultRepository
	txManager   port.TransactionManager
	assessor    port.RiskAssessor // optional advisory provider, may be nil
	scorer      *fraud.Scorer
	detector    *fraud.PatternDetector
	policy      DecisionPolicy
	audit       port.AuditSink
	notifier    port.ProgressNotifier
	authorizer  port.Authorizer
	logger      Logger
	cfg         VerificationConfig
	now         Clock

	// Per-session transaction windows fed to the pattern detector.
	// Windows live for the duration of the session in this process.
	windowMu sync.Mutex
	windows  map[string][]fraud.TransactionContext
	reported map[string]map[entity.PatternType]bool
}

// NewVerificationService creates the workflow orchestrator
func NewVerificationService(
	batchRepo port.BatchRepository,
	sessionRepo port.SessionRepository,
	resultRepo port.ResultRepository,
	txManager port.TransactionManager,
	assessor port.RiskAssessor,
	scorer *fraud.Scorer,
	detector *fraud.PatternDetector,
	policy DecisionPolicy,
	audit port.AuditSink,
	notifier port.ProgressNotifier,
	authorizer port.Authorizer,
	logger Logger,
	cfg VerificationConfig,
	now Clock,
) VerificationService {
	if now == nil {
		now = time.Now
	}
	return &verificationServiceImpl{
		batchRepo:   batchRepo,
		sessionRepo: sessionRepo,
		resultRepo:  resultRepo,
		txManager:   txManager,
		assessor:    assessor,
		scorer:      scorer,
		detector:    detector,
		policy:      policy,
		audit:       audit,
		notifier:    notifier,
		authorizer:  authorizer,
		logger:      logger,
		cfg:         cfg,
		now:         now,
		windows:     make(map[string][]fraud.TransactionContext),
		reported:    make(map[string]map[entity.PatternType]bool),
	}
}

// CreateSession derives a new not_started session from a released batch
func (s *verificationServiceImpl) CreateSession(ctx context.Context, actor, batchID string) (*entity.VerificationSession, error) {
	batch, err := s.batchRepo.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if !s.authorizer.Authorize(actor, batch.BusinessID) {
		return nil, fmt.Errorf("%w: %s on %s", entity.ErrUnauthorized, actor, batch.BusinessID)
	}
	if batch.Status != entity.BatchPendingVerification {
		return nil, fmt.Errorf("%w: cannot start verification for batch in %s", entity.ErrInvalidTransition, batch.Status)
	}

	if existing, err := s.sessionRepo.FindActiveByBatch(ctx, batchID); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: session %s", entity.ErrDuplicateSession, existing.ID)
	} else if err != nil && !errors.Is(err, entity.ErrNotFound) {
		return nil, err
	}

	now := s.now()
	session := &entity.VerificationSession{
		ID:                    uuid.NewString(),
		BatchID:               batch.ID,
		BusinessID:            batch.BusinessID,
		Status:                entity.SessionNotStarted,
		TotalTransactions:     batch.TotalTransactions,
		Deadline:              entity.SessionDeadline(now, s.cfg.DeadlineDays),
		AutoApprovalThreshold: s.cfg.AutoApprovalThreshold,
		Version:               1,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		s.logger.Error("Failed to create session", "error", err, "batch_id", batchID)
		return nil, err
	}

	s.logger.Info("Session created", "session_id", session.ID, "batch_id", batchID, "deadline", session.Deadline)
	return session, nil
}

// Start transitions a session to in_progress and mirrors the batch
func (s *verificationServiceImpl) Start(ctx context.Context, actor, sessionID string) (*entity.VerificationSession, error) {
	session, err := s.loadAuthorized(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}

	if err := s.fire(ctx, session, workflow.TriggerStart); err != nil {
		return nil, err
	}
	now := s.now()
	session.StartedAt = &now

	if err := s.sessionRepo.Update(ctx, session); err != nil {
		return nil, err
	}
	if err := s.batchRepo.UpdateStatusIf(ctx, session.BatchID,
		[]entity.BatchStatus{entity.BatchPendingVerification}, entity.BatchInProgress); err != nil {
		s.logger.Warn("Batch mirror to in_progress failed", "error", err, "batch_id", session.BatchID)
	}

	s.record(ctx, event.New(actor, event.SeverityInfo, "verification session started", event.SessionStarted{
		TotalTransactions: session.TotalTransactions,
		Deadline:          session.Deadline,
	}).WithRefs(session.BusinessID, session.BatchID, session.ID))
	s.notify(ctx, session)

	return session, nil
}

// Verify records a human decision for one transaction. Retries on
// optimistic-lock conflicts up to the configured bound.
func (s *verificationServiceImpl) Verify(ctx context.Context, actor, sessionID string, input VerifyInput) (*entity.VerificationResult, error) {
	if input.Decision != entity.DecisionApproved && input.Decision != entity.DecisionRejected {
		return nil, fmt.Errorf("%w: decision must be approved or rejected", entity.ErrValidation)
	}

	var result *entity.VerificationResult
	err := s.withRetry(func() error {
		var err error
		result, err = s.verifyOnce(ctx, actor, sessionID, input)
		return err
	})
	return result, err
}

// AutoVerify applies the automatic decision policy. When the policy
// cannot decide, nothing is persisted and manual review is signalled.
func (s *verificationServiceImpl) AutoVerify(ctx context.Context, sessionID string, input VerifyInput) (*AutoVerifyOutcome, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	assessment := s.assess(ctx, session, input)

	var risk *float64
	if assessment != nil {
		risk = &assessment.RiskScore
	}
	decision, final := s.policy.AutoDecide(input.QualityScore, risk)
	if !final {
		return &AutoVerifyOutcome{Assessment: assessment, ManualRequired: true}, nil
	}

	auto := input
	auto.Decision = decision
	if decision == entity.DecisionRejected && auto.RejectionReason == nil {
		reason := entity.ReasonQualityIssue
		if risk != nil && *risk > s.policy.RejectRiskThreshold {
			reason = entity.ReasonFraudSuspected
		}
		auto.RejectionReason = &reason
	}

	var result *entity.VerificationResult
	err = s.withRetry(func() error {
		var err error
		// Empty actor marks the result as automated.
		result, err = s.verifyWith(ctx, "", sessionID, auto, assessment)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &AutoVerifyOutcome{Result: result, Assessment: assessment}, nil
}

func (s *verificationServiceImpl) verifyOnce(ctx context.Context, actor, sessionID string, input VerifyInput) (*entity.VerificationResult, error) {
	session, err := s.loadAuthorized(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}
	assessment := s.assess(ctx, session, input)
	return s.verifyWith(ctx, actor, sessionID, input, assessment)
}

// verifyWith appends the result and updates session progress in one
// storage transaction. The session status precondition rides on the
// version check inside Update.
func (s *verificationServiceImpl) verifyWith(ctx context.Context, actor, sessionID string, input VerifyInput, assessment *entity.FraudAssessment) (*entity.VerificationResult, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != entity.SessionInProgress {
		return nil, fmt.Errorf("%w: verify requires in_progress, session is %s", entity.ErrInvalidTransition, session.Status)
	}

	if existing, err := s.resultRepo.GetEffective(ctx, sessionID, input.TransactionID); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: %s", entity.ErrTransactionAlreadyVerified, input.TransactionID)
	} else if err != nil && !errors.Is(err, entity.ErrNotFound) {
		return nil, err
	}

	now := s.now()
	result := &entity.VerificationResult{
		ID:              uuid.NewString(),
		SessionID:       sessionID,
		TransactionID:   input.TransactionID,
		Decision:        input.Decision,
		Verified:        true,
		RejectionReason: input.RejectionReason,
		ReviewerID:      actor,
		Notes:           input.Notes,
		DurationSeconds: input.DurationSeconds,
		CreatedAt:       now,
	}
	if assessment != nil {
		result.RiskScore = &assessment.RiskScore
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}

	session.RecordDecision(result.Decision, result.RiskScore)
	if err := session.CheckInvariants(); err != nil {
		return nil, err
	}

	completedNow := session.VerifiedTransactions == session.TotalTransactions
	if completedNow {
		if err := s.fire(ctx, session, workflow.TriggerComplete); err != nil {
			return nil, err
		}
		session.CompletedAt = &now
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.resultRepo.Create(txCtx, result); err != nil {
			return fmt.Errorf("create result: %w", err)
		}
		if err := s.sessionRepo.Update(txCtx, session); err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	matches := s.observePatterns(ctx, session, input)
	if assessment != nil && len(matches) > 0 {
		assessment.Patterns = matches
	}

	if completedNow {
		s.cascadeBatch(ctx, session, entity.SessionCompleted)
		s.record(ctx, event.New(s.actorOrSystem(actor), event.SeverityInfo, "session completed by full verification",
			event.SessionCompleted{Completion: session.CompletionPercentage()}).
			WithRefs(session.BusinessID, session.BatchID, session.ID))
		s.dropWindow(session.ID)
	}

	s.record(ctx, event.New(s.actorOrSystem(actor), event.SeverityInfo, "transaction verified", event.TransactionVerified{
		TransactionID: input.TransactionID,
		Decision:      result.Decision,
		Automated:     result.Automated(),
		RiskScore:     result.RiskScore,
		Completion:    session.CompletionPercentage(),
	}).WithRefs(session.BusinessID, session.BatchID, session.ID))
	s.notify(ctx, session)

	return result, nil
}

// Pause suspends an in_progress session unless the deadline is too close
func (s *verificationServiceImpl) Pause(ctx context.Context, actor, sessionID, reason string) (*entity.VerificationSession, error) {
	session, err := s.loadAuthorized(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if session.Status == entity.SessionInProgress && !session.CanPauseAt(now, s.cfg.PauseCutoff) {
		return nil, fmt.Errorf("%w: %s remaining, cutoff is %s",
			entity.ErrTooCloseToDeadline, session.Deadline.Sub(now).Round(time.Minute), s.cfg.PauseCutoff)
	}

	if err := s.fire(ctx, session, workflow.TriggerPause); err != nil {
		return nil, err
	}
	session.PausedAt = &now
	session.PauseCount++

	if err := s.sessionRepo.Update(ctx, session); err != nil {
		return nil, err
	}

	s.record(ctx, event.New(actor, event.SeverityInfo, "session paused", event.SessionPaused{
		Reason:     reason,
		PauseCount: session.PauseCount,
	}).WithRefs(session.BusinessID, session.BatchID, session.ID))
	s.notify(ctx, session)

	return session, nil
}

// Resume returns a paused session to in_progress unless the deadline passed
func (s *verificationServiceImpl) Resume(ctx context.Context, actor, sessionID string) (*entity.VerificationSession, error) {
	session, err := s.loadAuthorized(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if session.Status == entity.SessionPaused && !session.CanResumeAt(now) {
		return nil, fmt.Errorf("%w: deadline was %s", entity.ErrDeadlinePassed, session.Deadline.Format(time.RFC3339))
	}

	if err := s.fire(ctx, session, workflow.TriggerResume); err != nil {
		return nil, err
	}
	session.PausedAt = nil

	if err := s.sessionRepo.Update(ctx, session); err != nil {
		return nil, err
	}

	s.record(ctx, event.New(actor, event.SeverityInfo, "session resumed", event.SessionResumed{}).
		WithRefs(session.BusinessID, session.BatchID, session.ID))
	s.notify(ctx, session)

	return session, nil
}

// Complete closes an in_progress session early and mirrors the batch
func (s *verificationServiceImpl) Complete(ctx context.Context, actor, sessionID, notes string) (*entity.VerificationSession, error) {
	session, err := s.loadAuthorized(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != entity.SessionInProgress {
		return nil, fmt.Errorf("%w: complete requires in_progress, session is %s", entity.ErrInvalidTransition, session.Status)
	}

	if err := s.fire(ctx, session, workflow.TriggerComplete); err != nil {
		return nil, err
	}
	now := s.now()
	session.CompletedAt = &now

	if err := s.sessionRepo.Update(ctx, session); err != nil {
		return nil, err
	}
	s.cascadeBatch(ctx, session, entity.SessionCompleted)
	s.dropWindow(session.ID)

	s.record(ctx, event.New(actor, event.SeverityInfo, "session completed", event.SessionCompleted{
		Notes:      notes,
		Completion: session.CompletionPercentage(),
	}).WithRefs(session.BusinessID, session.BatchID, session.ID))
	s.notify(ctx, session)

	return session, nil
}

// Cancel terminates an active session. The batch returns to
// pending_verification so a fresh session can be opened.
func (s *verificationServiceImpl) Cancel(ctx context.Context, actor, sessionID, reason string) (*entity.VerificationSession, error) {
	session, err := s.loadAuthorized(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}

	if err := s.fire(ctx, session, workflow.TriggerCancel); err != nil {
		return nil, err
	}

	if err := s.sessionRepo.Update(ctx, session); err != nil {
		return nil, err
	}
	if err := s.batchRepo.UpdateStatusIf(ctx, session.BatchID,
		[]entity.BatchStatus{entity.BatchInProgress}, entity.BatchPendingVerification); err != nil {
		s.logger.Warn("Batch release after cancel failed", "error", err, "batch_id", session.BatchID)
	}
	s.dropWindow(session.ID)

	s.record(ctx, event.New(actor, event.SeverityWarning, "session cancelled", event.SessionCancelled{
		Reason: reason,
	}).WithRefs(session.BusinessID, session.BatchID, session.ID))
	s.notify(ctx, session)

	return session, nil
}

// Supersede appends a correcting result for an already-verified
// transaction, keeping the original record.
func (s *verificationServiceImpl) Supersede(ctx context.Context, actor, sessionID string, input VerifyInput) (*entity.VerificationResult, error) {
	if input.Decision != entity.DecisionApproved && input.Decision != entity.DecisionRejected {
		return nil, fmt.Errorf("%w: decision must be approved or rejected", entity.ErrValidation)
	}

	var result *entity.VerificationResult
	err := s.withRetry(func() error {
		session, err := s.loadAuthorized(ctx, actor, sessionID)
		if err != nil {
			return err
		}
		if session.Status != entity.SessionInProgress {
			return fmt.Errorf("%w: supersede requires in_progress, session is %s", entity.ErrInvalidTransition, session.Status)
		}

		old, err := s.resultRepo.GetEffective(ctx, sessionID, input.TransactionID)
		if err != nil {
			return err
		}

		now := s.now()
		result = &entity.VerificationResult{
			ID:              uuid.NewString(),
			SessionID:       sessionID,
			TransactionID:   input.TransactionID,
			Decision:        input.Decision,
			Verified:        true,
			RejectionReason: input.RejectionReason,
			ReviewerID:      actor,
			Notes:           input.Notes,
			DurationSeconds: input.DurationSeconds,
			RiskScore:       old.RiskScore,
			Supersedes:      old.ID,
			CreatedAt:       now,
		}
		if err := result.Validate(); err != nil {
			return err
		}

		// Verified count is unchanged; only the approve/reject split moves.
		if old.Decision != result.Decision {
			switch result.Decision {
			case entity.DecisionApproved:
				session.ApprovedCount++
				session.RejectedCount--
			case entity.DecisionRejected:
				session.ApprovedCount--
				session.RejectedCount++
			}
		}
		if err := session.CheckInvariants(); err != nil {
			return err
		}

		err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := s.resultRepo.Create(txCtx, result); err != nil {
				return fmt.Errorf("create superseding result: %w", err)
			}
			if err := s.sessionRepo.Update(txCtx, session); err != nil {
				return fmt.Errorf("update session: %w", err)
			}
			return nil
		})
		if err != nil {
			return err
		}

		s.record(ctx, event.New(actor, event.SeverityWarning, "verification result superseded", event.ResultSuperseded{
			TransactionID: input.TransactionID,
			OldResultID:   old.ID,
			NewResultID:   result.ID,
			NewDecision:   result.Decision,
		}).WithRefs(session.BusinessID, session.BatchID, session.ID))
		s.notify(ctx, session)
		return nil
	})
	return result, err
}

// Progress returns the broadcastable snapshot for a session
func (s *verificationServiceImpl) Progress(ctx context.Context, sessionID string) (*port.Progress, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	p := progressOf(session)
	return &p, nil
}

// Analytics returns the derived read-only view over the result set
func (s *verificationServiceImpl) Analytics(ctx context.Context, sessionID string) (*entity.SessionAnalytics, error) {
	return s.resultRepo.Analytics(ctx, sessionID)
}

// Patterns rescans the session's accumulated transaction window and
// returns every current match ranked by risk impact
func (s *verificationServiceImpl) Patterns(ctx context.Context, sessionID string) ([]entity.PatternMatch, error) {
	if _, err := s.sessionRepo.GetByID(ctx, sessionID); err != nil {
		return nil, err
	}
	if s.detector == nil {
		return nil, nil
	}

	s.windowMu.Lock()
	window := append([]fraud.TransactionContext(nil), s.windows[sessionID]...)
	s.windowMu.Unlock()
	if len(window) == 0 {
		return nil, nil
	}
	return s.detector.Detect(window), nil
}

// observePatterns folds one verified transaction into the session's
// window, rescans it, and reports each pattern the first time it
// surfaces. Detection is advisory and never fails verification.
func (s *verificationServiceImpl) observePatterns(ctx context.Context, session *entity.VerificationSession, input VerifyInput) []entity.PatternMatch {
	if s.detector == nil || input.Context == nil {
		return nil
	}
	tc := *input.Context
	tc.SessionID = session.ID
	if tc.TransactionID == "" {
		tc.TransactionID = input.TransactionID
	}

	s.windowMu.Lock()
	s.windows[session.ID] = append(s.windows[session.ID], tc)
	window := append([]fraud.TransactionContext(nil), s.windows[session.ID]...)
	s.windowMu.Unlock()

	matches := s.detector.Detect(window)
	for _, m := range matches {
		if !s.firstSighting(session.ID, m.Type) {
			continue
		}
		s.record(ctx, event.New(event.ActorSystem, patternSeverity(m.RiskLevel), "fraud pattern detected",
			event.PatternDetected{
				Pattern:        string(m.Type),
				RiskLevel:      string(m.RiskLevel),
				Confidence:     m.Confidence,
				TransactionIDs: m.TransactionIDs,
				Description:    m.Description,
			}).WithRefs(session.BusinessID, session.BatchID, session.ID))
	}
	return matches
}

// firstSighting reports whether this pattern type is new for the session
// and marks it reported
func (s *verificationServiceImpl) firstSighting(sessionID string, p entity.PatternType) bool {
	s.windowMu.Lock()
	defer s.windowMu.Unlock()
	seen := s.reported[sessionID]
	if seen == nil {
		seen = make(map[entity.PatternType]bool)
		s.reported[sessionID] = seen
	}
	if seen[p] {
		return false
	}
	seen[p] = true
	return true
}

func (s *verificationServiceImpl) dropWindow(sessionID string) {
	s.windowMu.Lock()
	delete(s.windows, sessionID)
	delete(s.reported, sessionID)
	s.windowMu.Unlock()
}

func patternSeverity(level entity.RiskLevel) event.Severity {
	switch level {
	case entity.RiskCritical:
		return event.SeverityCritical
	case entity.RiskHigh:
		return event.SeverityWarning
	}
	return event.SeverityInfo
}

// assess obtains the advisory assessment: the external provider first,
// bounded by a timeout, then the rule-based scorer, then the static
// fallback. Assessment failure never fails verification.
func (s *verificationServiceImpl) assess(ctx context.Context, session *entity.VerificationSession, input VerifyInput) *entity.FraudAssessment {
	if input.Context == nil {
		return nil
	}
	tc := *input.Context
	tc.SessionID = session.ID

	needsAssessment := input.Decision == entity.DecisionRejected ||
		input.Decision == "" || // automatic path always assesses
		tc.Amount >= s.cfg.HighValueAmount
	if !needsAssessment {
		return nil
	}

	if s.assessor != nil {
		assessCtx, cancel := context.WithTimeout(ctx, s.cfg.AssessmentTimeout)
		defer cancel()
		assessment, err := s.assessor.Assess(assessCtx, tc)
		if err == nil {
			return assessment
		}
		s.logger.Warn("Advisory assessment failed, falling back to rule-based scoring",
			"error", err, "transaction_id", tc.TransactionID)
		s.record(ctx, event.New(event.ActorSystem, event.SeverityWarning, "assessment provider fallback",
			event.AssessmentFallback{TransactionID: tc.TransactionID, Cause: err.Error()}).
			WithRefs(session.BusinessID, session.BatchID, session.ID))
	}

	if s.scorer != nil {
		return s.scorer.Score(tc)
	}
	return entity.FallbackAssessment(session.ID, tc.TransactionID, s.now())
}

// fire runs the trigger through the session state machine and applies
// the resulting state. The machine's pause and resume guards evaluate
// the same deadline predicates the callers use for their sentinels.
func (s *verificationServiceImpl) fire(ctx context.Context, session *entity.VerificationSession, trigger workflow.Trigger) error {
	guards := workflow.SessionGuards{
		CanPause:  func(context.Context) bool { return session.CanPauseAt(s.now(), s.cfg.PauseCutoff) },
		CanResume: func(context.Context) bool { return session.CanResumeAt(s.now()) },
	}
	m := workflow.NewSessionMachine(workflow.State(session.Status), guards)
	if err := m.Fire(ctx, trigger); err != nil {
		if errors.Is(err, workflow.ErrInvalidTransition) {
			return fmt.Errorf("%w: %s from %s", entity.ErrInvalidTransition, trigger, session.Status)
		}
		return err
	}
	session.Status = entity.SessionStatus(m.State())
	return nil
}

// cascadeBatch mirrors a resolved session status onto the owning batch
func (s *verificationServiceImpl) cascadeBatch(ctx context.Context, session *entity.VerificationSession, status entity.SessionStatus) {
	target, ok := status.BatchStatusFor()
	if !ok {
		return
	}
	from := []entity.BatchStatus{entity.BatchPendingVerification, entity.BatchInProgress}
	if target == entity.BatchAutoApproved {
		from = append(from, entity.BatchExpired) // late resolution
	}
	if err := s.batchRepo.UpdateStatusIf(ctx, session.BatchID, from, target); err != nil {
		s.logger.Warn("Batch cascade failed", "error", err, "batch_id", session.BatchID, "target", target.String())
	}
}

func (s *verificationServiceImpl) loadAuthorized(ctx context.Context, actor, sessionID string) (*entity.VerificationSession, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !s.authorizer.Authorize(actor, session.BusinessID) {
		return nil, fmt.Errorf("%w: %s on %s", entity.ErrUnauthorized, actor, session.BusinessID)
	}
	return session, nil
}

// withRetry re-runs fn on optimistic-lock conflicts up to the bound,
// then surfaces ErrConcurrentModification to the caller.
func (s *verificationServiceImpl) withRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, entity.ErrConcurrentModification) {
			return err
		}
	}
	return err
}

func (s *verificationServiceImpl) record(ctx context.Context, e *event.Event) {
	if err := s.audit.Record(ctx, e); err != nil {
		s.logger.Warn("Audit record failed", "error", err, "kind", e.Kind.String())
	}
}

func (s *verificationServiceImpl) notify(ctx context.Context, session *entity.VerificationSession) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, progressOf(session))
}

func (s *verificationServiceImpl) actorOrSystem(actor string) string {
	if actor == "" {
		return event.ActorSystem
	}
	return actor
}

func progressOf(session *entity.VerificationSession) port.Progress {
	return port.Progress{
		SessionID:  session.ID,
		BatchID:    session.BatchID,
		Verified:   session.VerifiedTransactions,
		Total:      session.TotalTransactions,
		Approved:   session.ApprovedCount,
		Rejected:   session.RejectedCount,
		Completion: session.CompletionPercentage(),
		Status:     session.Status,
	}
}
