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

// StudentPortalHandler handles the endpoints a student uses to take exams.
type StudentPortalHandler struct {
	sessions *service.ExamSessionService
	results  *service.ResultService
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(sessions *service.ExamSessionService, results *service.ResultService) *StudentPortalHandler {
	return &StudentPortalHandler{sessions: sessions, results: results}
}

// ListExams godoc
// GET /api/v1/student/exams
// Lists active exams with the caller's availability and lobby status.
func (h *StudentPortalHandler) ListExams(c *gin.Context) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	exams, err := h.sessions.ListStudentExams(c.Request.Context(), p.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exams": exams, "total": len(exams)})
}

// StartExam godoc
// POST /api/v1/student/exams/:id/start
// 201 with a new session, 200 when an open session is resumed.
func (h *StudentPortalHandler) StartExam(c *gin.Context) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := parseID(c, "id")
	if !ok {
		return
	}

	out, err := h.sessions.Start(c.Request.Context(), p.UserID, examID)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if out.Resumed {
		status = http.StatusOK
	}
	response.Success(c, status, out)
}

// SubmitExam godoc
// POST /api/v1/student/sessions/:id/submit
// Grades the session and returns the result.
func (h *StudentPortalHandler) SubmitExam(c *gin.Context) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req model.SubmitExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.sessions.Submit(c.Request.Context(), p.UserID, sessionID, req.Answers)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// ListMyResults godoc
// GET /api/v1/student/results
func (h *StudentPortalHandler) ListMyResults(c *gin.Context) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	results, err := h.results.ListForStudent(c.Request.Context(), p.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"results": results, "total": len(results)})
}

// GetMyResult godoc
// GET /api/v1/student/results/:id
func (h *StudentPortalHandler) GetMyResult(c *gin.Context) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	resultID, ok := parseID(c, "id")
	if !ok {
		return
	}

	result, err := h.results.Get(c.Request.Context(), p, resultID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}
