package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/training-ledger-api/internal/dto"
	"github.com/noah-isme/training-ledger-api/internal/models"
	"github.com/noah-isme/training-ledger-api/internal/repository"
	appErrors "github.com/noah-isme/training-ledger-api/pkg/errors"
)

const feeResource = "fee"

type feeStore interface {
	Create(ctx context.Context, fee *models.Fee) error
	FindByID(ctx context.Context, id string) (*models.FeeDetail, error)
	List(ctx context.Context, filter models.FeeFilter) ([]models.FeeDetail, int, error)
	MarkPaid(ctx context.Context, id string, paidDate time.Time, receipt *string) (*models.Fee, error)
	Review(ctx context.Context, params repository.ReviewFeeParams) (*models.Fee, error)
}

// FeeService records fees and advances them through PENDING → PAID → APPROVED|REJECTED.
type FeeService struct {
	repo      feeStore
	students  studentReader
	validator *validator.Validate
	effects   ledgerEffects
	logger    *zap.Logger
	now       func() time.Time
}

// NewFeeService constructs the service.
func NewFeeService(repo feeStore, students studentReader, audit auditLogger, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *FeeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeeService{
		repo:      repo,
		students:  students,
		validator: validate,
		effects:   ledgerEffects{audit: audit, cache: cache, metrics: metrics, logger: logger},
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RecordFee creates a PENDING fee for a student inside the scope.
func (s *FeeService) RecordFee(ctx context.Context, scope models.Scope, req dto.RecordFeeRequest) (*models.Fee, error) {
	if !scope.CanManage() {
		return nil, appErrors.Clone(appErrors.ErrPermissionDenied, "only administrators and operators may record fees")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	feeType := models.FeeType(req.FeeType)
	if !feeType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown fee type")
	}
	due, err := parseOptionalDate(req.DueDate, "due_date")
	if err != nil {
		return nil, err
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student not found")
		}
		return nil, internalError(err, "failed to load student")
	}
	if student.Status == models.StudentStatusDeleted {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student not found")
	}
	if !scope.CoversStudent(student.ID, student.CenterID()) {
		return nil, appErrors.Clone(appErrors.ErrPermissionDenied, "student outside your scope")
	}

	fee := &models.Fee{
		StudentID:  student.ID,
		Amount:     req.Amount,
		FeeType:    feeType,
		DueDate:    due,
		Notes:      trimmedOrNil(req.Notes),
		RecordedBy: scope.PrincipalID,
	}
	if err := s.repo.Create(ctx, fee); err != nil {
		return nil, internalError(err, "failed to record fee")
	}
	s.effects.metrics.RecordFeeTransition(string(models.FeeStatusPending), OutcomeSuccess)
	s.effects.record(ctx, scope, models.AuditActionFeeRecord, feeResource, fee.ID, nil, fee)
	s.effects.invalidateReports(ctx)
	return fee, nil
}

// GetFee returns a fee visible to the scope.
func (s *FeeService) GetFee(ctx context.Context, scope models.Scope, id string) (*models.FeeDetail, error) {
	fee, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee not found")
		}
		return nil, internalError(err, "failed to load fee")
	}
	if !scope.CoversStudent(fee.StudentID, fee.CenterID()) {
		return nil, appErrors.Clone(appErrors.ErrPermissionDenied, "fee outside your scope")
	}
	return fee, nil
}

// ListFees lists fees visible to the scope. Students see their own fees only.
func (s *FeeService) ListFees(ctx context.Context, scope models.Scope, filter models.FeeFilter) ([]models.FeeDetail, *models.Pagination, error) {
	switch scope.Role {
	case models.RoleAdmin:
	case models.RoleOperator:
		if filter.TrainingCenterID != "" && !scope.CoversCenter(filter.TrainingCenterID) {
			return nil, nil, appErrors.Clone(appErrors.ErrPermissionDenied, "training center outside your scope")
		}
		filter.TrainingCenterID = scope.CenterID
	case models.RoleStudent:
		if filter.StudentID != "" && filter.StudentID != scope.StudentID {
			return nil, nil, appErrors.Clone(appErrors.ErrPermissionDenied, "students may only view their own fees")
		}
		filter.StudentID = scope.StudentID
	default:
		return nil, nil, appErrors.ErrPermissionDenied
	}
	fees, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list fees")
	}
	return fees, pagination(filter.Page, filter.PageSize, total), nil
}

// MarkPaid settles a PENDING fee.
func (s *FeeService) MarkPaid(ctx context.Context, scope models.Scope, id string, req dto.MarkFeePaidRequest) (*models.Fee, error) {
	fee, err := s.markPaid(ctx, scope, id, req)
	s.recordTransition(models.FeeStatusPaid, err)
	return fee, err
}

func (s *FeeService) markPaid(ctx context.Context, scope models.Scope, id string, req dto.MarkFeePaidRequest) (*models.Fee, error) {
	if !scope.CanManage() {
		return nil, appErrors.Clone(appErrors.ErrPermissionDenied, "only administrators and operators may mark fees paid")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	paidDate, err := parseDate(req.PaidDate, "paid_date")
	if err != nil {
		return nil, err
	}
	if paidDate.After(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "paid_date cannot be in the future")
	}
	current, err := s.GetFee(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if current.Status != models.FeeStatusPending {
		return nil, invalidFeeTransition(current.Status, models.FeeStatusPaid)
	}

	fee, err := s.repo.MarkPaid(ctx, current.ID, paidDate, trimmedOrNil(req.ReceiptNumber))
	if err != nil {
		return nil, s.transitionError(ctx, current.ID, models.FeeStatusPaid, err)
	}
	s.effects.record(ctx, scope, models.AuditActionFeePaid, feeResource, fee.ID, &current.Fee, fee)
	s.effects.invalidateReports(ctx)
	return fee, nil
}

// Approve accepts a PENDING or PAID fee. Administrators only.
func (s *FeeService) Approve(ctx context.Context, scope models.Scope, id string) (*models.Fee, error) {
	fee, err := s.review(ctx, scope, id, models.FeeStatusApproved, nil)
	s.recordTransition(models.FeeStatusApproved, err)
	return fee, err
}

// Reject declines a PENDING or PAID fee with a reason. Administrators only.
func (s *FeeService) Reject(ctx context.Context, scope models.Scope, id string, req dto.RejectFeeRequest) (*models.Fee, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	if err := s.validator.Struct(req); err != nil {
		appErr := appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "rejection reason is required")
		s.recordTransition(models.FeeStatusRejected, appErr)
		return nil, appErr
	}
	fee, err := s.review(ctx, scope, id, models.FeeStatusRejected, &req.Reason)
	s.recordTransition(models.FeeStatusRejected, err)
	return fee, err
}

func (s *FeeService) review(ctx context.Context, scope models.Scope, id string, target models.FeeStatus, reason *string) (*models.Fee, error) {
	if !scope.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrPermissionDenied, "only administrators may approve or reject fees")
	}
	current, err := s.GetFee(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if current.Status.Terminal() {
		return nil, invalidFeeTransition(current.Status, target)
	}

	fee, err := s.repo.Review(ctx, repository.ReviewFeeParams{
		ID:         current.ID,
		Status:     target,
		ReviewerID: scope.PrincipalID,
		ReviewedAt: s.now(),
		Reason:     reason,
	})
	if err != nil {
		return nil, s.transitionError(ctx, current.ID, target, err)
	}
	action := models.AuditActionFeeApprove
	if target == models.FeeStatusRejected {
		action = models.AuditActionFeeReject
	}
	s.effects.record(ctx, scope, action, feeResource, fee.ID, &current.Fee, fee)
	s.effects.invalidateReports(ctx)
	return fee, nil
}

// transitionError re-reads the fee after a failed conditional update to tell a vanished fee
// from one another writer already advanced.
func (s *FeeService) transitionError(ctx context.Context, id string, target models.FeeStatus, err error) error {
	if !errors.Is(err, sql.ErrNoRows) {
		return internalError(err, "failed to update fee")
	}
	fee, findErr := s.repo.FindByID(ctx, id)
	if findErr != nil {
		if errors.Is(findErr, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "fee not found")
		}
		return internalError(findErr, "failed to load fee")
	}
	return invalidFeeTransition(fee.Status, target)
}

func (s *FeeService) recordTransition(target models.FeeStatus, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = appErrors.FromError(err).Code
	}
	s.effects.metrics.RecordFeeTransition(string(target), outcome)
}

func invalidFeeTransition(from, to models.FeeStatus) *appErrors.Error {
	return appErrors.Clone(appErrors.ErrInvalidTransition, "fee cannot move from "+string(from)+" to "+string(to))
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
