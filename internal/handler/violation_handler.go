package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/examguard-backend/internal/middleware"
	"github.com/stemsi/examguard-backend/internal/model"
	"github.com/stemsi/examguard-backend/internal/response"
	"github.com/stemsi/examguard-backend/internal/service"
	"github.com/stemsi/examguard-backend/internal/validator"
)

// ViolationHandler handles proctoring violation endpoints.
type ViolationHandler struct {
	sessions *service.ExamSessionService
}

// NewViolationHandler creates a new ViolationHandler.
func NewViolationHandler(sessions *service.ExamSessionService) *ViolationHandler {
	return &ViolationHandler{sessions: sessions}
}

// RecordViolation godoc
// POST /api/v1/violations
// Records a violation reported by the proctoring client. should_submit is
// advisory; the client decides when to submit.
func (h *ViolationHandler) RecordViolation(c *gin.Context) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.RecordViolationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
			map[string]string{"session_id": "session_id must be a valid UUID"})
		return
	}

	out, err := h.sessions.RecordViolation(c.Request.Context(), p.UserID, sessionID,
		model.ViolationType(req.ViolationType), req.Details)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, out)
}

// ListSessionViolations godoc
// GET /api/v1/violations/session/:id
// Admins see any session; students only their own.
func (h *ViolationHandler) ListSessionViolations(c *gin.Context) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, ok := parseID(c, "id")
	if !ok {
		return
	}

	violations, err := h.sessions.ListViolations(c.Request.Context(), p, sessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"violations": violations, "total": len(violations)})
}
