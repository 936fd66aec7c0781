package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/examguard-backend/internal/response"
	"github.com/stemsi/examguard-backend/internal/service"
)

// AnalyticsHandler handles admin analytics endpoints.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Overview godoc
// GET /api/v1/admin/analytics
// Returns system totals and the ten newest results.
func (h *AnalyticsHandler) Overview(c *gin.Context) {
	data, err := h.analytics.Overview(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, data)
}

// ExamAnalytics godoc
// GET /api/v1/admin/exams/:id/analytics
func (h *AnalyticsHandler) ExamAnalytics(c *gin.Context) {
	examID, ok := parseID(c, "id")
	if !ok {
		return
	}

	data, err := h.analytics.ExamAnalytics(c.Request.Context(), examID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, data)
}
