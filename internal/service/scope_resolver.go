package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/training-ledger-api/internal/models"
	appErrors "github.com/noah-isme/training-ledger-api/pkg/errors"
)

type trainingCenterReader interface {
	FindByID(ctx context.Context, id string) (*models.TrainingCenter, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByUserID(ctx context.Context, userID string) (*models.Student, error)
}

// ScopeResolver turns verified JWT claims into the Scope every ledger operation is called with.
type ScopeResolver struct {
	centers  trainingCenterReader
	students studentReader
	logger   *zap.Logger
}

// NewScopeResolver constructs a ScopeResolver.
func NewScopeResolver(centers trainingCenterReader, students studentReader, logger *zap.Logger) *ScopeResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScopeResolver{centers: centers, students: students, logger: logger}
}

// Resolve fails closed: any principal that cannot be tied to a live center or student record
// is denied.
func (r *ScopeResolver) Resolve(ctx context.Context, claims *models.JWTClaims) (models.Scope, error) {
	if claims == nil || claims.UserID == "" {
		return models.Scope{}, appErrors.ErrUnauthorized
	}
	scope := models.Scope{PrincipalID: claims.UserID, Role: claims.Role}

	switch claims.Role {
	case models.RoleAdmin:
		return scope, nil
	case models.RoleOperator:
		if claims.TrainingCenterID == "" {
			return models.Scope{}, appErrors.Clone(appErrors.ErrPermissionDenied, "operator is not bound to a training center")
		}
		center, err := r.centers.FindByID(ctx, claims.TrainingCenterID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return models.Scope{}, appErrors.Clone(appErrors.ErrPermissionDenied, "operator training center not found")
			}
			return models.Scope{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve training center")
		}
		if center.Status != models.TrainingCenterStatusActive {
			r.logger.Info("operator denied for inactive center", zap.String("user_id", claims.UserID), zap.String("center_id", center.ID))
			return models.Scope{}, appErrors.Clone(appErrors.ErrPermissionDenied, "operator training center is not active")
		}
		scope.CenterID = center.ID
		return scope, nil
	case models.RoleStudent:
		student, err := r.students.FindByUserID(ctx, claims.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return models.Scope{}, appErrors.Clone(appErrors.ErrPermissionDenied, "no student record linked to this account")
			}
			return models.Scope{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student")
		}
		scope.StudentID = student.ID
		scope.CenterID = student.CenterID()
		return scope, nil
	default:
		return models.Scope{}, appErrors.Clone(appErrors.ErrPermissionDenied, "unsupported role")
	}
}
