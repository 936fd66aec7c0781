package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/examguard-backend/internal/middleware"
	"github.com/stemsi/examguard-backend/internal/model"
	"github.com/stemsi/examguard-backend/internal/response"
	"github.com/stemsi/examguard-backend/internal/service"
	"github.com/stemsi/examguard-backend/internal/validator"
)

// ExamHandler handles exam management endpoints.
type ExamHandler struct {
	catalog *service.CatalogService
	results *service.ResultService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(catalog *service.CatalogService, results *service.ResultService) *ExamHandler {
	return &ExamHandler{catalog: catalog, results: results}
}

// ListExams godoc
// GET /api/v1/admin/exams
// Lists every exam, newest first.
func (h *ExamHandler) ListExams(c *gin.Context) {
	exams, err := h.catalog.ListExams(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exams": exams, "total": len(exams)})
}

// CreateExam godoc
// POST /api/v1/admin/exams
func (h *ExamHandler) CreateExam(c *gin.Context) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.catalog.CreateExam(c.Request.Context(), p.UserID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}

// GetExam godoc
// GET /api/v1/admin/exams/:id
// Returns the exam with its questions, answer keys included.
func (h *ExamHandler) GetExam(c *gin.Context) {
	examID, ok := parseID(c, "id")
	if !ok {
		return
	}

	detail, err := h.catalog.GetExam(c.Request.Context(), examID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": detail})
}

// UpdateExam godoc
// PUT /api/v1/admin/exams/:id
// Partial update; start_time and end_time accept null to clear them.
func (h *ExamHandler) UpdateExam(c *gin.Context) {
	examID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req model.UpdateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.catalog.UpdateExam(c.Request.Context(), examID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// DeleteExam godoc
// DELETE /api/v1/admin/exams/:id
// Deletes the exam together with its questions, sessions and results.
func (h *ExamHandler) DeleteExam(c *gin.Context) {
	examID, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.catalog.DeleteExam(c.Request.Context(), examID); err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "exam deleted"})
}

// ListExamResults godoc
// GET /api/v1/admin/exams/:id/results
func (h *ExamHandler) ListExamResults(c *gin.Context) {
	examID, ok := parseID(c, "id")
	if !ok {
		return
	}

	results, err := h.results.ListByExam(c.Request.Context(), examID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"results": results, "total": len(results)})
}
