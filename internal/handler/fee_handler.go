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

type feeService interface {
	RecordFee(ctx context.Context, scope models.Scope, req dto.RecordFeeRequest) (*models.Fee, error)
	GetFee(ctx context.Context, scope models.Scope, id string) (*models.FeeDetail, error)
	ListFees(ctx context.Context, scope models.Scope, filter models.FeeFilter) ([]models.FeeDetail, *models.Pagination, error)
	MarkPaid(ctx context.Context, scope models.Scope, id string, req dto.MarkFeePaidRequest) (*models.Fee, error)
	Approve(ctx context.Context, scope models.Scope, id string) (*models.Fee, error)
	Reject(ctx context.Context, scope models.Scope, id string, req dto.RejectFeeRequest) (*models.Fee, error)
}

// FeeHandler exposes the fee ledger.
type FeeHandler struct {
	fees feeService
}

// NewFeeHandler constructs FeeHandler.
func NewFeeHandler(fees feeService) *FeeHandler {
	return &FeeHandler{fees: fees}
}

// Record godoc
// @Summary Record fee
// @Tags Fees
// @Accept json
// @Produce json
// @Param payload body dto.RecordFeeRequest true "Fee payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /fees [post]
func (h *FeeHandler) Record(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	var req dto.RecordFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	req.FeeType = strings.ToUpper(strings.TrimSpace(req.FeeType))
	fee, err := h.fees.RecordFee(c.Request.Context(), scope, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, fee)
}

// List godoc
// @Summary List fees
// @Tags Fees
// @Produce json
// @Param student_id query string false "Filter by student"
// @Param training_center_id query string false "Filter by training center"
// @Param status query string false "Filter by status"
// @Param fee_type query string false "Filter by fee type"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /fees [get]
func (h *FeeHandler) List(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	filter := models.FeeFilter{
		Status:    models.FeeStatus(strings.ToUpper(c.Query("status"))),
		FeeType:   models.FeeType(strings.ToUpper(c.Query("fee_type"))),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}
	if !queryIDs(c, map[string]*string{
		"student_id":         &filter.StudentID,
		"training_center_id": &filter.TrainingCenterID,
	}) {
		return
	}
	filter.Page, filter.PageSize = pageParams(c)

	fees, pagination, err := h.fees.ListFees(c.Request.Context(), scope, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fees, pagination)
}

// Get godoc
// @Summary Get fee
// @Tags Fees
// @Produce json
// @Param id path string true "Fee ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /fees/{id} [get]
func (h *FeeHandler) Get(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	fee, err := h.fees.GetFee(c.Request.Context(), scope, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fee, nil)
}

// Pay godoc
// @Summary Mark fee paid
// @Tags Fees
// @Accept json
// @Produce json
// @Param id path string true "Fee ID"
// @Param payload body dto.MarkFeePaidRequest true "Payment details"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /fees/{id}/pay [post]
func (h *FeeHandler) Pay(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	var req dto.MarkFeePaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	fee, err := h.fees.MarkPaid(c.Request.Context(), scope, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fee, nil)
}

// Approve godoc
// @Summary Approve fee
// @Tags Fees
// @Produce json
// @Param id path string true "Fee ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /fees/{id}/approve [post]
func (h *FeeHandler) Approve(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	fee, err := h.fees.Approve(c.Request.Context(), scope, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fee, nil)
}

// Reject godoc
// @Summary Reject fee
// @Tags Fees
// @Accept json
// @Produce json
// @Param id path string true "Fee ID"
// @Param payload body dto.RejectFeeRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /fees/{id}/reject [post]
func (h *FeeHandler) Reject(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	var req dto.RejectFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	fee, err := h.fees.Reject(c.Request.Context(), scope, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fee, nil)
}
