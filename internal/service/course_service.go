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

const courseResource = "course"

type courseStore interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	SoftDelete(ctx context.Context, id string) (bool, error)
}

// CourseService guards removal of catalog courses still in use.
type CourseService struct {
	repo    courseStore
	effects ledgerEffects
}

// NewCourseService constructs a CourseService.
func NewCourseService(repo courseStore, audit auditLogger, cache *CacheService, logger *zap.Logger) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, effects: ledgerEffects{audit: audit, cache: cache, logger: logger}}
}

// GetCourse returns a course by id.
func (s *CourseService) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, internalError(err, "failed to load course")
	}
	return course, nil
}

// DeleteCourse soft-deletes a course unless one of its live batches has active enrollments.
func (s *CourseService) DeleteCourse(ctx context.Context, scope models.Scope, id string) error {
	if !scope.IsAdmin() {
		return appErrors.Clone(appErrors.ErrPermissionDenied, "only administrators may delete courses")
	}
	deleted, err := s.repo.SoftDelete(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		case errors.Is(err, repository.ErrHasDependents):
			return appErrors.Clone(appErrors.ErrHasDependents, "course still has active enrollments")
		}
		if conflict, ok := txConflict(err); ok {
			return conflict
		}
		return internalError(err, "failed to delete course")
	}
	if deleted {
		s.effects.record(ctx, scope, models.AuditActionCourseDelete, courseResource, id,
			nil, map[string]models.CourseStatus{"status": models.CourseStatusDeleted})
		s.effects.invalidateReports(ctx)
	}
	return nil
}
