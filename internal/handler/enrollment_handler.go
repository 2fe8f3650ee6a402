package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/training-ledger-api/internal/dto"
	"github.com/noah-isme/training-ledger-api/internal/models"
	"github.com/noah-isme/training-ledger-api/pkg/response"
)

type enrollmentService interface {
	Enroll(ctx context.Context, scope models.Scope, batchID, studentID string) (*models.Enrollment, error)
	Unenroll(ctx context.Context, scope models.Scope, batchID, studentID string) (*models.Enrollment, error)
	ListEnrollments(ctx context.Context, scope models.Scope, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error)
}

// EnrollmentHandler exposes enrollment endpoints.
type EnrollmentHandler struct {
	enrollments enrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param student_id query string false "Filter by student"
// @Param batch_id query string false "Filter by batch"
// @Param training_center_id query string false "Filter by training center"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	filter := models.EnrollmentFilter{
		Status:    models.EnrollmentStatus(strings.ToUpper(c.Query("status"))),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}
	if !queryIDs(c, map[string]*string{
		"student_id":         &filter.StudentID,
		"batch_id":           &filter.BatchID,
		"training_center_id": &filter.TrainingCenterID,
	}) {
		return
	}
	filter.Page, filter.PageSize = pageParams(c)

	enrollments, pagination, err := h.enrollments.ListEnrollments(c.Request.Context(), scope, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Enroll godoc
// @Summary Enroll student into batch
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Batch ID"
// @Param payload body dto.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /batches/{id}/enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	var req dto.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	enrollment, err := h.enrollments.Enroll(c.Request.Context(), scope, id, req.StudentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Unenroll godoc
// @Summary Remove student from batch
// @Tags Enrollments
// @Produce json
// @Param id path string true "Batch ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /batches/{id}/enrollments/{studentId} [delete]
func (h *EnrollmentHandler) Unenroll(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	studentID, ok := pathID(c, "studentId")
	if !ok {
		return
	}
	enrollment, err := h.enrollments.Unenroll(c.Request.Context(), scope, id, studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}
