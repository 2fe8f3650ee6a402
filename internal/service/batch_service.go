package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/training-ledger-api/internal/dto"
	"github.com/noah-isme/training-ledger-api/internal/models"
	"github.com/noah-isme/training-ledger-api/internal/repository"
	appErrors "github.com/noah-isme/training-ledger-api/pkg/errors"
)

const batchResource = "batch"

type batchStore interface {
	Create(ctx context.Context, batch *models.Batch) error
	FindByID(ctx context.Context, id string) (*models.Batch, error)
	FindDetailByID(ctx context.Context, id string) (*models.BatchDetail, error)
	List(ctx context.Context, filter models.BatchFilter) ([]models.BatchDetail, int, error)
	Update(ctx context.Context, params repository.UpdateBatchParams) error
	UpdateStatus(ctx context.Context, id string, from, to models.BatchStatus) error
	SoftDelete(ctx context.Context, id string) (bool, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// BatchService owns batch scheduling, the batch state machine and the delete guard.
type BatchService struct {
	batches   batchStore
	courses   courseReader
	centers   trainingCenterReader
	validator *validator.Validate
	effects   ledgerEffects
	logger    *zap.Logger
}

// NewBatchService constructs a BatchService.
func NewBatchService(batches batchStore, courses courseReader, centers trainingCenterReader, audit auditLogger, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *BatchService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchService{
		batches:   batches,
		courses:   courses,
		centers:   centers,
		validator: validate,
		effects:   ledgerEffects{audit: audit, cache: cache, logger: logger},
		logger:    logger,
	}
}

// CreateBatch schedules a new UPCOMING batch.
func (s *BatchService) CreateBatch(ctx context.Context, scope models.Scope, req dto.CreateBatchRequest) (*models.Batch, error) {
	if !scope.CanManage() {
		return nil, appErrors.Clone(appErrors.ErrPermissionDenied, "only administrators and operators may create batches")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	start, err := parseDate(req.StartDate, "start_date")
	if err != nil {
		return nil, err
	}
	end, err := parseOptionalDate(req.EndDate, "end_date")
	if err != nil {
		return nil, err
	}
	if end != nil && !end.After(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must be after start_date")
	}
	if !scope.CoversCenter(req.TrainingCenterID) {
		return nil, appErrors.Clone(appErrors.ErrPermissionDenied, "training center outside your scope")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, internalError(err, "failed to load course")
	}
	if course.Status == models.CourseStatusDeleted {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	center, err := s.centers.FindByID(ctx, req.TrainingCenterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "training center not found")
		}
		return nil, internalError(err, "failed to load training center")
	}
	if center.Status == models.TrainingCenterStatusDeleted {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "training center not found")
	}

	creator := scope.PrincipalID
	batch := &models.Batch{
		Code:             strings.TrimSpace(req.Code),
		Name:             strings.TrimSpace(req.Name),
		CourseID:         course.ID,
		TrainingCenterID: center.ID,
		MaxCapacity:      req.MaxCapacity,
		StartDate:        start,
		EndDate:          end,
		Status:           models.BatchStatusUpcoming,
		CreatedBy:        &creator,
	}
	if err := s.batches.Create(ctx, batch); err != nil {
		if errors.Is(err, repository.ErrCourseDeleted) || errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		if repository.IsUniqueViolation(err, "") {
			return nil, appErrors.Clone(appErrors.ErrValidation, "batch code already in use")
		}
		return nil, internalError(err, "failed to create batch")
	}
	s.effects.record(ctx, scope, models.AuditActionBatchCreate, batchResource, batch.ID, nil, batch)
	s.effects.invalidateReports(ctx)
	return batch, nil
}

// GetBatch returns a batch visible to the scope.
func (s *BatchService) GetBatch(ctx context.Context, scope models.Scope, id string) (*models.BatchDetail, error) {
	batch, err := s.batches.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, internalError(err, "failed to load batch")
	}
	if batch.Status == models.BatchStatusDeleted && !scope.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
	}
	if !scope.CoversCenter(batch.TrainingCenterID) {
		return nil, appErrors.Clone(appErrors.ErrPermissionDenied, "batch outside your scope")
	}
	return batch, nil
}

// ListBatches lists batches inside the scope. Deleted batches are visible to administrators only.
func (s *BatchService) ListBatches(ctx context.Context, scope models.Scope, filter models.BatchFilter) ([]models.BatchDetail, *models.Pagination, error) {
	if !scope.IsAdmin() {
		if filter.TrainingCenterID != "" && !scope.CoversCenter(filter.TrainingCenterID) {
			return nil, nil, appErrors.Clone(appErrors.ErrPermissionDenied, "training center outside your scope")
		}
		if scope.CenterID == "" || filter.Status == models.BatchStatusDeleted {
			return []models.BatchDetail{}, emptyPagination(filter.Page, filter.PageSize), nil
		}
		filter.TrainingCenterID = scope.CenterID
		filter.IncludeDeleted = false
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown batch status")
	}
	batches, total, err := s.batches.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list batches")
	}
	return batches, pagination(filter.Page, filter.PageSize, total), nil
}

// UpdateBatch edits a batch. Capacity may not drop below the active enrollment count.
func (s *BatchService) UpdateBatch(ctx context.Context, scope models.Scope, id string, req dto.UpdateBatchRequest) (*models.Batch, error) {
	if !scope.CanManage() {
		return nil, appErrors.Clone(appErrors.ErrPermissionDenied, "only administrators and operators may edit batches")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	batch, err := s.loadManaged(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	before := *batch

	params := repository.UpdateBatchParams{
		ID:          batch.ID,
		Name:        batch.Name,
		MaxCapacity: batch.MaxCapacity,
		StartDate:   batch.StartDate,
		EndDate:     batch.EndDate,
	}
	if req.Name != nil {
		params.Name = strings.TrimSpace(*req.Name)
	}
	if req.MaxCapacity != nil {
		params.MaxCapacity = *req.MaxCapacity
	}
	if req.StartDate != nil {
		if params.StartDate, err = parseDate(*req.StartDate, "start_date"); err != nil {
			return nil, err
		}
	}
	if req.ClearEnd {
		params.EndDate = nil
	} else if req.EndDate != nil {
		if params.EndDate, err = parseOptionalDate(req.EndDate, "end_date"); err != nil {
			return nil, err
		}
	}
	if params.EndDate != nil && !params.EndDate.After(params.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must be after start_date")
	}

	if err := s.batches.Update(ctx, params); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		case errors.Is(err, repository.ErrCapacityBelow):
			return nil, appErrors.Clone(appErrors.ErrValidation, "max_capacity is below the number of active enrollments")
		}
		if conflict, ok := txConflict(err); ok {
			return nil, conflict
		}
		return nil, internalError(err, "failed to update batch")
	}

	batch.Name = params.Name
	batch.MaxCapacity = params.MaxCapacity
	batch.StartDate = params.StartDate
	batch.EndDate = params.EndDate
	s.effects.record(ctx, scope, models.AuditActionBatchUpdate, batchResource, batch.ID, before, batch)
	s.effects.invalidateReports(ctx)
	return batch, nil
}

// UpdateBatchStatus moves a batch through its state machine. Requests for the current status
// are a no-op; DELETED is delegated to DeleteBatch.
func (s *BatchService) UpdateBatchStatus(ctx context.Context, scope models.Scope, id string, status models.BatchStatus) (*models.Batch, error) {
	if !scope.CanManage() {
		return nil, appErrors.Clone(appErrors.ErrPermissionDenied, "only administrators and operators may change batch status")
	}
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown batch status")
	}
	batch, err := s.loadInScope(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if batch.Status == status {
		return batch, nil
	}
	if status == models.BatchStatusDeleted {
		if err := s.DeleteBatch(ctx, scope, id); err != nil {
			return nil, err
		}
		batch.Status = models.BatchStatusDeleted
		return batch, nil
	}
	if !batch.Status.CanTransitionTo(status) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "batch cannot move from "+string(batch.Status)+" to "+string(status))
	}

	if err := s.batches.UpdateStatus(ctx, batch.ID, batch.Status, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "batch status changed concurrently")
		}
		return nil, internalError(err, "failed to update batch status")
	}
	previous := batch.Status
	batch.Status = status
	s.effects.record(ctx, scope, models.AuditActionBatchStatus, batchResource, batch.ID,
		map[string]models.BatchStatus{"status": previous}, map[string]models.BatchStatus{"status": status})
	s.effects.invalidateReports(ctx)
	return batch, nil
}

// DeleteBatch soft-deletes a batch with no active enrollments. Repeat deletes succeed silently.
func (s *BatchService) DeleteBatch(ctx context.Context, scope models.Scope, id string) error {
	if !scope.CanManage() {
		return appErrors.Clone(appErrors.ErrPermissionDenied, "only administrators and operators may delete batches")
	}
	batch, err := s.loadInScope(ctx, scope, id)
	if err != nil {
		return err
	}
	deleted, err := s.batches.SoftDelete(ctx, batch.ID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		case errors.Is(err, repository.ErrHasDependents):
			return appErrors.Clone(appErrors.ErrHasDependents, "batch still has active enrollments")
		}
		if conflict, ok := txConflict(err); ok {
			return conflict
		}
		return internalError(err, "failed to delete batch")
	}
	if deleted {
		s.effects.record(ctx, scope, models.AuditActionBatchDelete, batchResource, batch.ID,
			map[string]models.BatchStatus{"status": batch.Status}, map[string]models.BatchStatus{"status": models.BatchStatusDeleted})
		s.effects.invalidateReports(ctx)
	}
	return nil
}

// loadInScope returns the batch, including deleted rows, when the scope covers its center.
func (s *BatchService) loadInScope(ctx context.Context, scope models.Scope, id string) (*models.Batch, error) {
	batch, err := s.batches.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return nil, internalError(err, "failed to load batch")
	}
	if !scope.CoversCenter(batch.TrainingCenterID) {
		return nil, appErrors.Clone(appErrors.ErrPermissionDenied, "batch outside your scope")
	}
	return batch, nil
}

// loadManaged is loadInScope restricted to batches that are not deleted.
func (s *BatchService) loadManaged(ctx context.Context, scope models.Scope, id string) (*models.Batch, error) {
	batch, err := s.loadInScope(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if batch.Status == models.BatchStatusDeleted {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
	}
	return batch, nil
}

func pagination(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}

func emptyPagination(page, size int) *models.Pagination {
	return pagination(page, size, 0)
}
