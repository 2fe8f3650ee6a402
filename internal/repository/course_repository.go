package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/training-ledger-api/internal/models"
)

// CourseRepository reads courses and guards their soft deletion.
type CourseRepository struct {
	db *sqlx.DB
	tx *Transactor
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB, tx *Transactor) *CourseRepository {
	return &CourseRepository{db: db, tx: tx}
}

// FindByID returns a course by id, including soft-deleted rows.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, code, name, course_fee, registration_fee, duration_days, status, created_at, updated_at, deleted_at
        FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// SoftDelete marks the course DELETED unless a non-deleted batch of the course still holds an
// active enrollment. It reports false when the course was already deleted.
func (r *CourseRepository) SoftDelete(ctx context.Context, id string) (bool, error) {
	deleted := false
	err := r.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		deleted = false
		var status models.CourseStatus
		if err := tx.GetContext(ctx, &status, `SELECT status FROM courses WHERE id = $1 FOR UPDATE`, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return err
			}
			return fmt.Errorf("lock course: %w", err)
		}
		if status == models.CourseStatusDeleted {
			return nil
		}

		const dependents = `SELECT COUNT(*) FROM enrollments e
        JOIN batches b ON b.id = e.batch_id
        WHERE b.course_id = $1 AND b.status <> $2 AND e.status = $3`
		var active int
		if err := tx.GetContext(ctx, &active, dependents, id, models.BatchStatusDeleted, models.EnrollmentStatusActive); err != nil {
			return fmt.Errorf("count course enrollments: %w", err)
		}
		if active > 0 {
			return ErrHasDependents
		}

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, `UPDATE courses SET status = $2, deleted_at = $3, updated_at = $3 WHERE id = $1`,
			id, models.CourseStatusDeleted, now); err != nil {
			return fmt.Errorf("soft delete course: %w", err)
		}
		deleted = true
		return nil
	})
	return deleted, err
}
