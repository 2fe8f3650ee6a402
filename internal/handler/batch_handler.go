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

type batchService interface {
	CreateBatch(ctx context.Context, scope models.Scope, req dto.CreateBatchRequest) (*models.Batch, error)
	GetBatch(ctx context.Context, scope models.Scope, id string) (*models.BatchDetail, error)
	ListBatches(ctx context.Context, scope models.Scope, filter models.BatchFilter) ([]models.BatchDetail, *models.Pagination, error)
	UpdateBatch(ctx context.Context, scope models.Scope, id string, req dto.UpdateBatchRequest) (*models.Batch, error)
	UpdateBatchStatus(ctx context.Context, scope models.Scope, id string, status models.BatchStatus) (*models.Batch, error)
	DeleteBatch(ctx context.Context, scope models.Scope, id string) error
}

// BatchHandler exposes batch scheduling endpoints.
type BatchHandler struct {
	batches batchService
}

// NewBatchHandler constructs BatchHandler.
func NewBatchHandler(batches batchService) *BatchHandler {
	return &BatchHandler{batches: batches}
}

// List godoc
// @Summary List batches
// @Tags Batches
// @Produce json
// @Param course_id query string false "Filter by course"
// @Param training_center_id query string false "Filter by training center"
// @Param status query string false "Filter by status"
// @Param include_deleted query bool false "Include deleted batches (admin only)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /batches [get]
func (h *BatchHandler) List(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	filter := models.BatchFilter{
		Status:         models.BatchStatus(strings.ToUpper(c.Query("status"))),
		IncludeDeleted: c.Query("include_deleted") == "true",
		SortBy:         c.Query("sort"),
		SortOrder:      c.Query("order"),
	}
	if !queryIDs(c, map[string]*string{
		"course_id":          &filter.CourseID,
		"training_center_id": &filter.TrainingCenterID,
	}) {
		return
	}
	filter.Page, filter.PageSize = pageParams(c)

	batches, pagination, err := h.batches.ListBatches(c.Request.Context(), scope, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batches, pagination)
}

// Get godoc
// @Summary Get batch
// @Tags Batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /batches/{id} [get]
func (h *BatchHandler) Get(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	batch, err := h.batches.GetBatch(c.Request.Context(), scope, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batch, nil)
}

// Create godoc
// @Summary Schedule batch
// @Tags Batches
// @Accept json
// @Produce json
// @Param payload body dto.CreateBatchRequest true "Batch payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /batches [post]
func (h *BatchHandler) Create(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	batch, err := h.batches.CreateBatch(c.Request.Context(), scope, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, batch)
}

// Update godoc
// @Summary Edit batch
// @Tags Batches
// @Accept json
// @Produce json
// @Param id path string true "Batch ID"
// @Param payload body dto.UpdateBatchRequest true "Batch changes"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /batches/{id} [put]
func (h *BatchHandler) Update(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	batch, err := h.batches.UpdateBatch(c.Request.Context(), scope, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batch, nil)
}

// UpdateStatus godoc
// @Summary Change batch status
// @Tags Batches
// @Accept json
// @Produce json
// @Param id path string true "Batch ID"
// @Param payload body dto.UpdateBatchStatusRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /batches/{id}/status [patch]
func (h *BatchHandler) UpdateStatus(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateBatchStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	status := models.BatchStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	batch, err := h.batches.UpdateBatchStatus(c.Request.Context(), scope, id, status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batch, nil)
}

// Delete godoc
// @Summary Delete batch
// @Tags Batches
// @Param id path string true "Batch ID"
// @Success 204
// @Security BearerAuth
// @Router /batches/{id} [delete]
func (h *BatchHandler) Delete(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.batches.DeleteBatch(c.Request.Context(), scope, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
