package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/veckopay/verification/internal/application/service"
	"github.com/veckopay/verification/internal/domain/entity"
	"github.com/veckopay/verification/internal/repository"
)

// actorHeader carries the caller identity. Authentication happens
// upstream; the services authorize the actor against the business.
const actorHeader = "X-Reviewer-ID"

// Handlers contains all HTTP request handlers
type Handlers struct {
	batchService        service.BatchService
	verificationService service.VerificationService
	auditRepo           *repository.AuditRepository
	logger              Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	batchService service.BatchService,
	verificationService service.VerificationService,
	auditRepo *repository.AuditRepository,
	logger Logger,
) *Handlers {
	return &Handlers{
		batchService:        batchService,
		verificationService: verificationService,
		auditRepo:           auditRepo,
		logger:              logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// CreateBatch handles POST /api/v1/batches
func (h *Handlers) CreateBatch(c *gin.Context) {
	var req service.CreateBatchInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	batch, err := h.batchService.Create(c.Request.Context(), h.actor(c), req)
	if err != nil {
		h.fail(c, err, "failed to create batch")
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: batch})
}

// GetBatch handles GET /api/v1/batches/:id
func (h *Handlers) GetBatch(c *gin.Context) {
	batch, err := h.batchService.Get(c.Request.Context(), h.actor(c), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to get batch")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: batch})
}

// ListUrgentBatches handles GET /api/v1/batches?business_id=...
func (h *Handlers) ListUrgentBatches(c *gin.Context) {
	businessID := c.Query("business_id")
	if businessID == "" {
		h.badRequest(c, "business_id is required")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	batches, err := h.batchService.ListUrgent(c.Request.Context(), h.actor(c), businessID, limit)
	if err != nil {
		h.fail(c, err, "failed to list batches")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: batches})
}

// ReleaseBatch handles POST /api/v1/batches/:id/release
func (h *Handlers) ReleaseBatch(c *gin.Context) {
	batch, err := h.batchService.Release(c.Request.Context(), h.actor(c), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to release batch")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: batch})
}

// CreateSession handles POST /api/v1/batches/:id/sessions
func (h *Handlers) CreateSession(c *gin.Context) {
	session, err := h.verificationService.CreateSession(c.Request.Context(), h.actor(c), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to create session")
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: session})
}

// StartSession handles POST /api/v1/sessions/:id/start
func (h *Handlers) StartSession(c *gin.Context) {
	session, err := h.verificationService.Start(c.Request.Context(), h.actor(c), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to start session")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: session})
}

// VerifyTransaction handles POST /api/v1/sessions/:id/verify
func (h *Handlers) VerifyTransaction(c *gin.Context) {
	var req service.VerifyInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	result, err := h.verificationService.Verify(c.Request.Context(), h.actor(c), c.Param("id"), req)
	if err != nil {
		h.fail(c, err, "failed to verify transaction")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// AutoVerifyTransaction handles POST /api/v1/sessions/:id/auto-verify
func (h *Handlers) AutoVerifyTransaction(c *gin.Context) {
	var req service.VerifyInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	outcome, err := h.verificationService.AutoVerify(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.fail(c, err, "failed to auto-verify transaction")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: outcome})
}

// SupersedeResult handles POST /api/v1/sessions/:id/supersede
func (h *Handlers) SupersedeResult(c *gin.Context) {
	var req service.VerifyInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	result, err := h.verificationService.Supersede(c.Request.Context(), h.actor(c), c.Param("id"), req)
	if err != nil {
		h.fail(c, err, "failed to supersede result")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// reasonRequest is the body for pause and cancel
type reasonRequest struct {
	Reason string `json:"reason"`
}

// PauseSession handles POST /api/v1/sessions/:id/pause
func (h *Handlers) PauseSession(c *gin.Context) {
	var req reasonRequest
	_ = c.ShouldBindJSON(&req) // reason is optional

	session, err := h.verificationService.Pause(c.Request.Context(), h.actor(c), c.Param("id"), req.Reason)
	if err != nil {
		h.fail(c, err, "failed to pause session")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: session})
}

// ResumeSession handles POST /api/v1/sessions/:id/resume
func (h *Handlers) ResumeSession(c *gin.Context) {
	session, err := h.verificationService.Resume(c.Request.Context(), h.actor(c), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to resume session")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: session})
}

// completeRequest is the body for complete
type completeRequest struct {
	Notes string `json:"notes"`
}

// CompleteSession handles POST /api/v1/sessions/:id/complete
func (h *Handlers) CompleteSession(c *gin.Context) {
	var req completeRequest
	_ = c.ShouldBindJSON(&req) // notes are optional

	session, err := h.verificationService.Complete(c.Request.Context(), h.actor(c), c.Param("id"), req.Notes)
	if err != nil {
		h.fail(c, err, "failed to complete session")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: session})
}

// CancelSession handles POST /api/v1/sessions/:id/cancel
func (h *Handlers) CancelSession(c *gin.Context) {
	var req reasonRequest
	_ = c.ShouldBindJSON(&req)

	session, err := h.verificationService.Cancel(c.Request.Context(), h.actor(c), c.Param("id"), req.Reason)
	if err != nil {
		h.fail(c, err, "failed to cancel session")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: session})
}

// SessionProgress handles GET /api/v1/sessions/:id/progress
func (h *Handlers) SessionProgress(c *gin.Context) {
	progress, err := h.verificationService.Progress(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to get progress")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: progress})
}

// SessionAnalytics handles GET /api/v1/sessions/:id/analytics
func (h *Handlers) SessionAnalytics(c *gin.Context) {
	analytics, err := h.verificationService.Analytics(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to get analytics")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: analytics})
}

// SessionPatterns handles GET /api/v1/sessions/:id/patterns
func (h *Handlers) SessionPatterns(c *gin.Context) {
	matches, err := h.verificationService.Patterns(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to scan patterns")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: matches})
}

// SessionAuditTrail handles GET /api/v1/sessions/:id/audit
func (h *Handlers) SessionAuditTrail(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))
	if limit <= 0 || limit > 1000 {
		limit = 200
	}

	events, err := h.auditRepo.ListBySession(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.fail(c, err, "failed to get audit trail")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: events})
}

func (h *Handlers) actor(c *gin.Context) string {
	return c.GetHeader(actorHeader)
}

func (h *Handlers) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

// fail maps domain errors to HTTP status codes
func (h *Handlers) fail(c *gin.Context, err error, logMsg string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, entity.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, entity.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, entity.ErrValidation),
		errors.Is(err, entity.ErrInvalidWeek),
		errors.Is(err, entity.ErrFutureBatch):
		status = http.StatusBadRequest
	case errors.Is(err, entity.ErrDuplicateBatch),
		errors.Is(err, entity.ErrDuplicateSession),
		errors.Is(err, entity.ErrTransactionAlreadyVerified),
		errors.Is(err, entity.ErrInvalidTransition),
		errors.Is(err, entity.ErrConcurrentModification),
		errors.Is(err, entity.ErrTooCloseToDeadline),
		errors.Is(err, entity.ErrDeadlinePassed):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		h.logger.Error(logMsg, "error", err)
		c.JSON(status, Response{Success: false, Error: logMsg})
		return
	}
	c.JSON(status, Response{Success: false, Error: err.Error()})
}
