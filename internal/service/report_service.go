package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/training-ledger-api/internal/dto"
	"github.com/noah-isme/training-ledger-api/internal/models"
	appErrors "github.com/noah-isme/training-ledger-api/pkg/errors"
)

const reportSummaryPrefix = "report:summary:"

type reportStore interface {
	Totals(ctx context.Context, filter models.ReportFilter) (*models.ReportTotals, error)
	BatchLines(ctx context.Context, filter models.ReportFilter) ([]models.BatchSummaryLine, error)
}

// ReportService aggregates the enrollment and fee ledgers into read-only summaries.
type ReportService struct {
	repo      reportStore
	cache     *CacheService
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewReportService constructs the aggregator. cache may be nil.
func NewReportService(repo reportStore, cache *CacheService, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *ReportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		repo:      repo,
		cache:     cache,
		cacheTTL:  cacheTTL,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Summary returns ledger totals for the query narrowed to the scope. The boolean reports a
// cache hit.
func (s *ReportService) Summary(ctx context.Context, scope models.Scope, query dto.ReportQuery) (*models.ReportSummary, bool, error) {
	filter, err := s.resolveFilter(scope, query)
	if err != nil {
		return nil, false, err
	}

	key := cacheKey(reportSummaryPrefix, filter)
	var cached models.ReportSummary
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}

	totals, err := s.repo.Totals(ctx, filter)
	if err != nil {
		return nil, false, internalError(err, "failed to aggregate ledger")
	}
	lines, err := s.repo.BatchLines(ctx, filter)
	if err != nil {
		return nil, false, internalError(err, "failed to aggregate batches")
	}
	if lines == nil {
		lines = []models.BatchSummaryLine{}
	}

	summary := &models.ReportSummary{
		ActiveStudents:     totals.ActiveStudents,
		CompletedStudents:  totals.CompletedStudents,
		DroppedStudents:    totals.DroppedStudents,
		TotalEnrollments:   totals.TotalEnrollments,
		CourseFeeLiability: totals.CourseFeeLiability,
		TotalCollected:     totals.TotalCollected,
		PendingDues:        totals.CourseFeeLiability - totals.TotalCollected,
		PendingFeeAmount:   totals.PendingFeeAmount,
		RejectedFeeAmount:  totals.RejectedFeeAmount,
		Batches:            lines,
		Filter:             filter,
		GeneratedAt:        s.now(),
	}
	_ = s.cache.Set(ctx, key, summary, s.cacheTTL)
	return summary, false, nil
}

func (s *ReportService) resolveFilter(scope models.Scope, query dto.ReportQuery) (models.ReportFilter, error) {
	if err := s.validator.Struct(query); err != nil {
		return models.ReportFilter{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid filter")
	}
	filter := models.ReportFilter{BatchID: query.BatchID, CourseID: query.CourseID, CenterID: query.CenterID}
	if query.DateFrom != "" {
		from, err := parseDate(query.DateFrom, "date_from")
		if err != nil {
			return models.ReportFilter{}, err
		}
		filter.DateFrom = &from
	}
	if query.DateTo != "" {
		to, err := parseDate(query.DateTo, "date_to")
		if err != nil {
			return models.ReportFilter{}, err
		}
		filter.DateTo = &to
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateFrom.After(*filter.DateTo) {
		return models.ReportFilter{}, appErrors.Clone(appErrors.ErrValidation, "date_from must not be after date_to")
	}

	switch scope.Role {
	case models.RoleAdmin:
	case models.RoleOperator:
		if filter.CenterID != "" && !scope.CoversCenter(filter.CenterID) {
			return models.ReportFilter{}, appErrors.Clone(appErrors.ErrPermissionDenied, "training center outside your scope")
		}
		filter.CenterID = scope.CenterID
	case models.RoleStudent:
		if filter.CenterID != "" && !scope.CoversCenter(filter.CenterID) {
			return models.ReportFilter{}, appErrors.Clone(appErrors.ErrPermissionDenied, "training center outside your scope")
		}
		filter.StudentID = scope.StudentID
	default:
		return models.ReportFilter{}, appErrors.ErrPermissionDenied
	}
	return filter, nil
}
