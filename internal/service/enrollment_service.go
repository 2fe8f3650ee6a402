package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/training-ledger-api/internal/models"
	"github.com/noah-isme/training-ledger-api/internal/repository"
	appErrors "github.com/noah-isme/training-ledger-api/pkg/errors"
)

const enrollmentResource = "enrollment"

type enrollmentStore interface {
	Enroll(ctx context.Context, params repository.EnrollParams) (*models.Enrollment, error)
	Unenroll(ctx context.Context, studentID, batchID, removedBy string) (*models.Enrollment, bool, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
}

type batchReader interface {
	FindByID(ctx context.Context, id string) (*models.Batch, error)
}

// EnrollmentService assigns students to capacity-bounded batches.
type EnrollmentService struct {
	repo     enrollmentStore
	batches  batchReader
	students studentReader
	effects  ledgerEffects
	logger   *zap.Logger
}

// NewEnrollmentService constructs the service.
func NewEnrollmentService(repo enrollmentStore, batches batchReader, students studentReader, audit auditLogger, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:     repo,
		batches:  batches,
		students: students,
		effects:  ledgerEffects{audit: audit, cache: cache, metrics: metrics, logger: logger},
		logger:   logger,
	}
}

// Enroll adds the student to the batch. The duplicate and capacity checks and the insert
// commit together; concurrent callers on one batch are serialized by the store.
func (s *EnrollmentService) Enroll(ctx context.Context, scope models.Scope, batchID, studentID string) (*models.Enrollment, error) {
	enrollment, err := s.enroll(ctx, scope, batchID, studentID)
	outcome := OutcomeSuccess
	if err != nil {
		outcome = appErrors.FromError(err).Code
	}
	s.effects.metrics.RecordEnrollment(outcome)
	return enrollment, err
}

func (s *EnrollmentService) enroll(ctx context.Context, scope models.Scope, batchID, studentID string) (*models.Enrollment, error) {
	if !scope.CanManage() {
		return nil, appErrors.Clone(appErrors.ErrPermissionDenied, "only administrators and operators may enroll students")
	}
	if batchID == "" || studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "batch and student are required")
	}

	batch, err := s.batches.FindByID(ctx, batchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, internalError(err, "failed to load batch")
	}
	if batch.Status == models.BatchStatusDeleted {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
	}
	if !scope.CoversCenter(batch.TrainingCenterID) {
		return nil, appErrors.Clone(appErrors.ErrPermissionDenied, "batch belongs to another training center")
	}
	if !batch.Status.AcceptsEnrollments() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "batch is not accepting enrollments")
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, internalError(err, "failed to load student")
	}
	if student.Status != models.StudentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student is not active")
	}
	params := repository.EnrollParams{StudentID: student.ID, BatchID: batch.ID, EnrolledBy: scope.PrincipalID}
	switch student.CenterID() {
	case "":
		params.BindCenterID = batch.TrainingCenterID
	case batch.TrainingCenterID:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "student belongs to a different training center")
	}

	enrollment, err := s.repo.Enroll(ctx, params)
	if err != nil {
		return nil, s.translateEnrollError(err)
	}

	s.logger.Info("student enrolled", zap.String("batch_id", batch.ID), zap.String("student_id", student.ID), zap.String("principal_id", scope.PrincipalID))
	s.effects.record(ctx, scope, models.AuditActionEnroll, enrollmentResource, enrollment.ID, nil, enrollment)
	s.effects.invalidateReports(ctx)
	return enrollment, nil
}

func (s *EnrollmentService) translateEnrollError(err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "batch not found")
	case errors.Is(err, repository.ErrAlreadyEnrolled):
		return appErrors.ErrAlreadyEnrolled
	case errors.Is(err, repository.ErrCapacityExceeded):
		return appErrors.ErrCapacityExceeded
	case errors.Is(err, repository.ErrBatchNotOpen):
		return appErrors.Clone(appErrors.ErrValidation, "batch is not accepting enrollments")
	case errors.Is(err, repository.ErrCourseDeleted):
		return appErrors.Clone(appErrors.ErrValidation, "course of this batch has been deleted")
	case errors.Is(err, repository.ErrCenterMismatch):
		return appErrors.Clone(appErrors.ErrValidation, "student belongs to a different training center")
	}
	if conflict, ok := txConflict(err); ok {
		return conflict
	}
	return internalError(err, "failed to enroll student")
}

// Unenroll removes the student from the batch. Removing an already removed enrollment succeeds
// without changes.
func (s *EnrollmentService) Unenroll(ctx context.Context, scope models.Scope, batchID, studentID string) (*models.Enrollment, error) {
	if !scope.CanManage() {
		return nil, appErrors.Clone(appErrors.ErrPermissionDenied, "only administrators and operators may remove enrollments")
	}
	batch, err := s.batches.FindByID(ctx, batchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, internalError(err, "failed to load batch")
	}
	if !scope.CoversCenter(batch.TrainingCenterID) {
		return nil, appErrors.Clone(appErrors.ErrPermissionDenied, "batch belongs to another training center")
	}

	enrollment, removed, err := s.repo.Unenroll(ctx, studentID, batch.ID, scope.PrincipalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, internalError(err, "failed to remove enrollment")
	}
	if removed {
		s.effects.record(ctx, scope, models.AuditActionUnenroll, enrollmentResource, enrollment.ID,
			map[string]models.EnrollmentStatus{"status": models.EnrollmentStatusActive}, enrollment)
		s.effects.invalidateReports(ctx)
	}
	return enrollment, nil
}

// ListEnrollments lists enrollments visible to the scope.
func (s *EnrollmentService) ListEnrollments(ctx context.Context, scope models.Scope, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	switch scope.Role {
	case models.RoleAdmin:
	case models.RoleOperator:
		if filter.TrainingCenterID != "" && !scope.CoversCenter(filter.TrainingCenterID) {
			return nil, nil, appErrors.Clone(appErrors.ErrPermissionDenied, "training center outside your scope")
		}
		filter.TrainingCenterID = scope.CenterID
	case models.RoleStudent:
		if filter.StudentID != "" && filter.StudentID != scope.StudentID {
			return nil, nil, appErrors.Clone(appErrors.ErrPermissionDenied, "students may only view their own enrollments")
		}
		filter.StudentID = scope.StudentID
	default:
		return nil, nil, appErrors.ErrPermissionDenied
	}
	if filter.Status != "" && filter.Status != models.EnrollmentStatusActive && filter.Status != models.EnrollmentStatusRemoved {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown enrollment status")
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list enrollments")
	}
	return items, pagination(filter.Page, filter.PageSize, total), nil
}
