package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/training-ledger-api/internal/models"
)

const lockBatchCourseQuery = `SELECT c.status FROM courses c JOIN batches b ON b.course_id = c.id
        WHERE b.id = $1 FOR SHARE OF c`

const enrollmentColumns = `id, student_id, batch_id, status, enrolled_at, removed_at, enrolled_by, removed_by, created_at, updated_at`

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
	tx *Transactor
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB, tx *Transactor) *EnrollmentRepository {
	return &EnrollmentRepository{db: db, tx: tx}
}

// EnrollParams describes a single enrollment attempt.
type EnrollParams struct {
	StudentID  string
	BatchID    string
	EnrolledBy string
	// BindCenterID assigns a student without a center to the batch's center in the same
	// transaction.
	BindCenterID string
}

// Enroll atomically checks the duplicate and capacity rules and inserts an ACTIVE enrollment.
// The batch row is locked first so concurrent enrollers on one batch are serialized; the
// partial unique index on active enrollments backs up the duplicate check. The course row is
// share-locked so a concurrent course delete either waits for the insert or is seen here.
func (r *EnrollmentRepository) Enroll(ctx context.Context, params EnrollParams) (*models.Enrollment, error) {
	var created *models.Enrollment
	err := r.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		batch, err := lockBatch(ctx, tx, params.BatchID)
		if err != nil {
			return err
		}
		if !batch.Status.AcceptsEnrollments() {
			return ErrBatchNotOpen
		}
		var courseStatus models.CourseStatus
		if err := tx.GetContext(ctx, &courseStatus, lockBatchCourseQuery, params.BatchID); err != nil {
			return fmt.Errorf("lock batch course: %w", err)
		}
		if courseStatus == models.CourseStatusDeleted {
			return ErrCourseDeleted
		}

		var exists bool
		const existsQuery = `SELECT EXISTS(SELECT 1 FROM enrollments WHERE student_id = $1 AND batch_id = $2 AND status = $3)`
		if err := tx.GetContext(ctx, &exists, existsQuery, params.StudentID, params.BatchID, models.EnrollmentStatusActive); err != nil {
			return fmt.Errorf("check active enrollment: %w", err)
		}
		if exists {
			return ErrAlreadyEnrolled
		}

		active, err := countActiveEnrollments(ctx, tx, params.BatchID)
		if err != nil {
			return err
		}
		if active >= batch.MaxCapacity {
			return ErrCapacityExceeded
		}

		now := time.Now().UTC()
		if params.BindCenterID != "" {
			const bindQuery = `UPDATE students SET training_center_id = $2, updated_at = $3
        WHERE id = $1 AND (training_center_id IS NULL OR training_center_id = $2)`
			res, err := tx.ExecContext(ctx, bindQuery, params.StudentID, params.BindCenterID, now)
			if err != nil {
				return fmt.Errorf("bind student center: %w", err)
			}
			rows, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("check student center rows: %w", err)
			}
			if rows == 0 {
				return ErrCenterMismatch
			}
		}

		enrollment := &models.Enrollment{
			ID:         uuid.NewString(),
			StudentID:  params.StudentID,
			BatchID:    params.BatchID,
			Status:     models.EnrollmentStatusActive,
			EnrolledAt: now,
			EnrolledBy: params.EnrolledBy,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		const insertQuery = `INSERT INTO enrollments (id, student_id, batch_id, status, enrolled_at, enrolled_by, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		if _, err := tx.ExecContext(ctx, insertQuery, enrollment.ID, enrollment.StudentID, enrollment.BatchID,
			enrollment.Status, enrollment.EnrolledAt, enrollment.EnrolledBy, enrollment.CreatedAt, enrollment.UpdatedAt); err != nil {
			if IsUniqueViolation(err, activeEnrollmentConstraint) {
				return ErrAlreadyEnrolled
			}
			return fmt.Errorf("create enrollment: %w", err)
		}
		created = enrollment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Unenroll marks the active enrollment for the pair REMOVED. When nothing is active it returns
// the latest historical row with removed=false, or sql.ErrNoRows when the pair was never enrolled.
func (r *EnrollmentRepository) Unenroll(ctx context.Context, studentID, batchID, removedBy string) (*models.Enrollment, bool, error) {
	now := time.Now().UTC()
	query := `UPDATE enrollments SET status = $3, removed_at = $4, removed_by = $5, updated_at = $4
        WHERE student_id = $1 AND batch_id = $2 AND status = $6
        RETURNING ` + enrollmentColumns
	var enrollment models.Enrollment
	err := r.db.GetContext(ctx, &enrollment, query, studentID, batchID, models.EnrollmentStatusRemoved, now, removedBy, models.EnrollmentStatusActive)
	if err == nil {
		return &enrollment, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("remove enrollment: %w", err)
	}

	latest, err := r.FindLatest(ctx, studentID, batchID)
	if err != nil {
		return nil, false, err
	}
	return latest, false, nil
}

// FindLatest returns the most recent enrollment row for a student and batch.
func (r *EnrollmentRepository) FindLatest(ctx context.Context, studentID, batchID string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments
        WHERE student_id = $1 AND batch_id = $2 ORDER BY enrolled_at DESC LIMIT 1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, batchID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
JOIN students s ON s.id = e.student_id
JOIN batches b ON b.id = e.batch_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.BatchID != "" {
		conditions = append(conditions, fmt.Sprintf("e.batch_id = $%d", len(args)+1))
		args = append(args, filter.BatchID)
	}
	if filter.TrainingCenterID != "" {
		conditions = append(conditions, fmt.Sprintf("b.training_center_id = $%d", len(args)+1))
		args = append(args, filter.TrainingCenterID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"enrolled_at":  "e.enrolled_at",
		"student_name": "s.full_name",
		"batch_code":   "b.code",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.enrolled_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page, size := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.batch_id, e.status, e.enrolled_at, e.removed_at, e.enrolled_by, e.removed_by,
        e.created_at, e.updated_at, s.full_name AS student_name, s.enrollment_no, b.code AS batch_code, b.name AS batch_name,
        b.training_center_id
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}
