package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/training-ledger-api/internal/dto"
	"github.com/noah-isme/training-ledger-api/internal/middleware"
	"github.com/noah-isme/training-ledger-api/internal/models"
	"github.com/noah-isme/training-ledger-api/internal/service"
	"github.com/noah-isme/training-ledger-api/pkg/response"
)

type reportService interface {
	Summary(ctx context.Context, scope models.Scope, query dto.ReportQuery) (*models.ReportSummary, bool, error)
}

type exportService interface {
	Export(ctx context.Context, scope models.Scope, query dto.ReportQuery) (*service.ExportResult, error)
}

// ReportHandler exposes reporting endpoints.
type ReportHandler struct {
	reports reportService
	exports exportService
}

// NewReportHandler constructs handler.
func NewReportHandler(reports reportService, exports exportService) *ReportHandler {
	return &ReportHandler{reports: reports, exports: exports}
}

// Summary godoc
// @Summary Ledger summary
// @Tags Reports
// @Produce json
// @Param date_from query string false "Inclusive start date (YYYY-MM-DD)"
// @Param date_to query string false "Inclusive end date (YYYY-MM-DD)"
// @Param batch_id query string false "Batch ID"
// @Param course_id query string false "Course ID"
// @Param center_id query string false "Training center ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/summary [get]
func (h *ReportHandler) Summary(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	var query dto.ReportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err))
		return
	}
	summary, hit, err := h.reports.Summary(c.Request.Context(), scope, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, summary, nil, middleware.ExtractMeta(c))
}

// Export godoc
// @Summary Download ledger summary
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Param date_from query string false "Inclusive start date (YYYY-MM-DD)"
// @Param date_to query string false "Inclusive end date (YYYY-MM-DD)"
// @Param batch_id query string false "Batch ID"
// @Param course_id query string false "Course ID"
// @Param center_id query string false "Training center ID"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /reports/summary/export [get]
func (h *ReportHandler) Export(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		return
	}
	var query dto.ReportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err))
		return
	}
	result, err := h.exports.Export(c.Request.Context(), scope, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Data)
}
