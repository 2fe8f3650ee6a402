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

const batchColumns = `b.id, b.code, b.name, b.course_id, b.training_center_id, b.max_capacity, b.start_date, b.end_date,
        b.status, b.created_by, b.created_at, b.updated_at, b.deleted_at`

const batchDetailColumns = batchColumns + `,
        c.name AS course_name, tc.name AS training_center_name,
        (SELECT COUNT(*) FROM enrollments e WHERE e.batch_id = b.id AND e.status = 'ACTIVE') AS active_enrollments`

// BatchRepository persists batches and their capacity ledger.
type BatchRepository struct {
	db *sqlx.DB
	tx *Transactor
}

// NewBatchRepository constructs the repository.
func NewBatchRepository(db *sqlx.DB, tx *Transactor) *BatchRepository {
	return &BatchRepository{db: db, tx: tx}
}

// Create inserts a new batch.
func (r *BatchRepository) Create(ctx context.Context, batch *models.Batch) error {
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	if batch.Status == "" {
		batch.Status = models.BatchStatusUpcoming
	}
	now := time.Now().UTC()
	batch.CreatedAt = now
	batch.UpdatedAt = now
	const query = `INSERT INTO batches (id, code, name, course_id, training_center_id, max_capacity, start_date, end_date, status, created_by, created_at, updated_at)
        VALUES (:id, :code, :name, :course_id, :training_center_id, :max_capacity, :start_date, :end_date, :status, :created_by, :created_at, :updated_at)`
	return r.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		// Share lock on the course so a concurrent soft delete cannot slip in under the new batch.
		var courseStatus models.CourseStatus
		if err := tx.GetContext(ctx, &courseStatus, `SELECT status FROM courses WHERE id = $1 FOR SHARE`, batch.CourseID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return err
			}
			return fmt.Errorf("lock course: %w", err)
		}
		if courseStatus == models.CourseStatusDeleted {
			return ErrCourseDeleted
		}
		if _, err := tx.NamedExecContext(ctx, query, batch); err != nil {
			return fmt.Errorf("create batch: %w", err)
		}
		return nil
	})
}

// FindByID returns a batch by id, including soft-deleted rows.
func (r *BatchRepository) FindByID(ctx context.Context, id string) (*models.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches b WHERE b.id = $1`
	var batch models.Batch
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		return nil, err
	}
	return &batch, nil
}

// FindDetailByID returns a batch with names and live seat usage.
func (r *BatchRepository) FindDetailByID(ctx context.Context, id string) (*models.BatchDetail, error) {
	query := `SELECT ` + batchDetailColumns + `
        FROM batches b
        JOIN courses c ON c.id = b.course_id
        JOIN training_centers tc ON tc.id = b.training_center_id
        WHERE b.id = $1`
	var detail models.BatchDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns batches filtered by the provided criteria.
func (r *BatchRepository) List(ctx context.Context, filter models.BatchFilter) ([]models.BatchDetail, int, error) {
	base := `FROM batches b
JOIN courses c ON c.id = b.course_id
JOIN training_centers tc ON tc.id = b.training_center_id`
	var conditions []string
	var args []interface{}

	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("b.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.TrainingCenterID != "" {
		conditions = append(conditions, fmt.Sprintf("b.training_center_id = $%d", len(args)+1))
		args = append(args, filter.TrainingCenterID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("b.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	} else if !filter.IncludeDeleted {
		conditions = append(conditions, fmt.Sprintf("b.status <> $%d", len(args)+1))
		args = append(args, models.BatchStatusDeleted)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"start_date": "b.start_date",
		"code":       "b.code",
		"name":       "b.name",
		"created_at": "b.created_at",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "b.start_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page, size := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d`, batchDetailColumns, base+clause, orderBy, order, size, offset)

	var batches []models.BatchDetail
	if err := r.db.SelectContext(ctx, &batches, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list batches: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count batches: %w", err)
	}
	return batches, total, nil
}

// UpdateBatchParams carries the complete set of editable batch fields.
type UpdateBatchParams struct {
	ID          string
	Name        string
	MaxCapacity int
	StartDate   time.Time
	EndDate     *time.Time
}

// Update applies edits to a non-deleted batch. The new capacity is checked against the
// active enrollment count while the batch row is locked.
func (r *BatchRepository) Update(ctx context.Context, params UpdateBatchParams) error {
	return r.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := lockBatch(ctx, tx, params.ID); err != nil {
			return err
		}
		active, err := countActiveEnrollments(ctx, tx, params.ID)
		if err != nil {
			return err
		}
		if params.MaxCapacity < active {
			return ErrCapacityBelow
		}
		const query = `UPDATE batches SET name = $2, max_capacity = $3, start_date = $4, end_date = $5, updated_at = $6 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, query, params.ID, params.Name, params.MaxCapacity, params.StartDate, params.EndDate, time.Now().UTC()); err != nil {
			return fmt.Errorf("update batch: %w", err)
		}
		return nil
	})
}

// UpdateStatus moves a batch from one status to another. It returns sql.ErrNoRows when the
// batch is not currently in the expected status.
func (r *BatchRepository) UpdateStatus(ctx context.Context, id string, from, to models.BatchStatus) error {
	const query = `UPDATE batches SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	result, err := r.db.ExecContext(ctx, query, id, from, to, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update batch status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check batch status rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SoftDelete marks the batch DELETED when it has no active enrollments. It returns false
// without error when the batch was already deleted.
func (r *BatchRepository) SoftDelete(ctx context.Context, id string) (bool, error) {
	deleted := false
	err := r.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		deleted = false
		var status models.BatchStatus
		if err := tx.GetContext(ctx, &status, `SELECT status FROM batches WHERE id = $1 FOR UPDATE`, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return err
			}
			return fmt.Errorf("lock batch: %w", err)
		}
		if status == models.BatchStatusDeleted {
			return nil
		}
		active, err := countActiveEnrollments(ctx, tx, id)
		if err != nil {
			return err
		}
		if active > 0 {
			return ErrHasDependents
		}
		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, `UPDATE batches SET status = $2, deleted_at = $3, updated_at = $3 WHERE id = $1`,
			id, models.BatchStatusDeleted, now); err != nil {
			return fmt.Errorf("soft delete batch: %w", err)
		}
		deleted = true
		return nil
	})
	return deleted, err
}

// AdvanceByDate moves batches whose dates have been reached: UPCOMING batches that started
// on or before asOf become ONGOING, ONGOING batches whose end date is before asOf become
// COMPLETED. It returns the number of rows moved by each step.
func (r *BatchRepository) AdvanceByDate(ctx context.Context, asOf time.Time) (started, completed int64, err error) {
	err = r.tx.WithinTx(ctx, func(tx *sqlx.Tx) error {
		now := time.Now().UTC()
		res, err := tx.ExecContext(ctx, `UPDATE batches SET status = $1, updated_at = $3
        WHERE status = $2 AND start_date <= $4`,
			models.BatchStatusOngoing, models.BatchStatusUpcoming, now, asOf)
		if err != nil {
			return fmt.Errorf("start batches: %w", err)
		}
		if started, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("check started batches: %w", err)
		}
		res, err = tx.ExecContext(ctx, `UPDATE batches SET status = $1, updated_at = $3
        WHERE status = $2 AND end_date IS NOT NULL AND end_date < $4`,
			models.BatchStatusCompleted, models.BatchStatusOngoing, now, asOf)
		if err != nil {
			return fmt.Errorf("complete batches: %w", err)
		}
		if completed, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("check completed batches: %w", err)
		}
		return nil
	})
	return started, completed, err
}

type lockedBatch struct {
	MaxCapacity int                `db:"max_capacity"`
	Status      models.BatchStatus `db:"status"`
}

// lockBatch takes a row lock on a non-deleted batch. Concurrent writers on the same batch
// queue behind this lock.
func lockBatch(ctx context.Context, tx *sqlx.Tx, id string) (*lockedBatch, error) {
	const query = `SELECT max_capacity, status FROM batches WHERE id = $1 AND status <> $2 FOR UPDATE`
	var batch lockedBatch
	if err := tx.GetContext(ctx, &batch, query, id, models.BatchStatusDeleted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock batch: %w", err)
	}
	return &batch, nil
}

func countActiveEnrollments(ctx context.Context, tx *sqlx.Tx, batchID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE batch_id = $1 AND status = $2`
	var active int
	if err := tx.GetContext(ctx, &active, query, batchID, models.EnrollmentStatusActive); err != nil {
		return 0, fmt.Errorf("count active enrollments: %w", err)
	}
	return active, nil
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}
