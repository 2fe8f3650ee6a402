package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/training-ledger-api/internal/models"
)

// TrainingCenterRepository reads training center reference data.
type TrainingCenterRepository struct {
	db *sqlx.DB
}

// NewTrainingCenterRepository constructs the repository.
func NewTrainingCenterRepository(db *sqlx.DB) *TrainingCenterRepository {
	return &TrainingCenterRepository{db: db}
}

// FindByID returns the center by id, including soft-deleted rows.
func (r *TrainingCenterRepository) FindByID(ctx context.Context, id string) (*models.TrainingCenter, error) {
	const query = `SELECT id, code, name, email, phone, address, status, created_at, updated_at, deleted_at
        FROM training_centers WHERE id = $1`
	var center models.TrainingCenter
	if err := r.db.GetContext(ctx, &center, query, id); err != nil {
		return nil, err
	}
	return &center, nil
}
