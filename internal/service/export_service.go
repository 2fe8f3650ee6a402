package service

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/training-ledger-api/internal/dto"
	"github.com/noah-isme/training-ledger-api/internal/models"
	appErrors "github.com/noah-isme/training-ledger-api/pkg/errors"
	"github.com/noah-isme/training-ledger-api/pkg/export"
)

// Supported export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type summaryProvider interface {
	Summary(ctx context.Context, scope models.Scope, query dto.ReportQuery) (*models.ReportSummary, bool, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
}

// ExportResult is a rendered report ready to stream.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders aggregator output as CSV or PDF. It performs no aggregation itself.
type ExportService struct {
	reports   summaryProvider
	renderers map[string]datasetRenderer
	logger    *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(reports summaryProvider, csv, pdf datasetRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		reports:   reports,
		renderers: map[string]datasetRenderer{ExportFormatCSV: csv, ExportFormatPDF: pdf},
		logger:    logger,
	}
}

// Export renders the scoped summary in the requested format (csv when empty).
func (s *ExportService) Export(ctx context.Context, scope models.Scope, query dto.ReportQuery) (*ExportResult, error) {
	format := query.Format
	if format == "" {
		format = ExportFormatCSV
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	summary, _, err := s.reports.Summary(ctx, scope, query)
	if err != nil {
		return nil, err
	}
	data, err := renderer.Render(summaryDataset(summary))
	if err != nil {
		return nil, internalError(err, "failed to render report")
	}
	s.logger.Debug("report exported", zap.String("format", format), zap.Int("bytes", len(data)))
	return &ExportResult{
		Filename:    fmt.Sprintf("ledger-summary-%s.%s", summary.GeneratedAt.Format("20060102-150405"), format),
		ContentType: renderer.ContentType(),
		Data:        data,
	}, nil
}

func summaryDataset(summary *models.ReportSummary) export.Dataset {
	amount := func(v int64) string { return strconv.FormatInt(v, 10) }
	count := strconv.Itoa

	dataset := export.Dataset{
		Title: "Training ledger summary",
		Meta: []export.MetaLine{
			{Label: "Generated at", Value: summary.GeneratedAt.Format("2006-01-02 15:04 MST")},
			{Label: "Active students", Value: count(summary.ActiveStudents)},
			{Label: "Completed students", Value: count(summary.CompletedStudents)},
			{Label: "Dropped students", Value: count(summary.DroppedStudents)},
			{Label: "Total enrollments", Value: count(summary.TotalEnrollments)},
			{Label: "Course fee liability", Value: amount(summary.CourseFeeLiability)},
			{Label: "Total collected", Value: amount(summary.TotalCollected)},
			{Label: "Pending dues", Value: amount(summary.PendingDues)},
			{Label: "Pending fees", Value: amount(summary.PendingFeeAmount)},
			{Label: "Rejected fees", Value: amount(summary.RejectedFeeAmount)},
		},
		Headers: []string{"batch_code", "course", "training_center", "max_capacity", "active_enrollments", "course_fee_liability"},
	}
	for _, line := range summary.Batches {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"batch_code":           line.BatchCode,
			"course":               line.CourseName,
			"training_center":      line.TrainingCenterName,
			"max_capacity":         count(line.MaxCapacity),
			"active_enrollments":   count(line.ActiveEnrollments),
			"course_fee_liability": amount(line.CourseFeeLiability),
		})
	}
	return dataset
}
