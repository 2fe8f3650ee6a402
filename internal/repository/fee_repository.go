package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/training-ledger-api/internal/models"
)

const feeColumns = `id, student_id, amount, fee_type, status, due_date, paid_date, receipt_number, approved_by,
        approved_date, rejection_reason, notes, recorded_by, created_at, updated_at`

// FeeRepository persists fee records and their forward-only transitions.
type FeeRepository struct {
	db *sqlx.DB
}

// NewFeeRepository constructs the repository.
func NewFeeRepository(db *sqlx.DB) *FeeRepository {
	return &FeeRepository{db: db}
}

// Create inserts a PENDING fee.
func (r *FeeRepository) Create(ctx context.Context, fee *models.Fee) error {
	if fee.ID == "" {
		fee.ID = uuid.NewString()
	}
	fee.Status = models.FeeStatusPending
	now := time.Now().UTC()
	fee.CreatedAt = now
	fee.UpdatedAt = now
	const query = `INSERT INTO fees (id, student_id, amount, fee_type, status, due_date, notes, recorded_by, created_at, updated_at)
        VALUES (:id, :student_id, :amount, :fee_type, :status, :due_date, :notes, :recorded_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, fee); err != nil {
		return fmt.Errorf("create fee: %w", err)
	}
	return nil
}

// FindByID returns the fee together with the owning student's center.
func (r *FeeRepository) FindByID(ctx context.Context, id string) (*models.FeeDetail, error) {
	const query = `SELECT f.id, f.student_id, f.amount, f.fee_type, f.status, f.due_date, f.paid_date, f.receipt_number,
        f.approved_by, f.approved_date, f.rejection_reason, f.notes, f.recorded_by, f.created_at, f.updated_at,
        s.full_name AS student_name, s.training_center_id
        FROM fees f JOIN students s ON s.id = f.student_id
        WHERE f.id = $1`
	var fee models.FeeDetail
	if err := r.db.GetContext(ctx, &fee, query, id); err != nil {
		return nil, err
	}
	return &fee, nil
}

// List returns fees filtered by the provided criteria.
func (r *FeeRepository) List(ctx context.Context, filter models.FeeFilter) ([]models.FeeDetail, int, error) {
	base := `FROM fees f JOIN students s ON s.id = f.student_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("f.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.TrainingCenterID != "" {
		conditions = append(conditions, fmt.Sprintf("s.training_center_id = $%d", len(args)+1))
		args = append(args, filter.TrainingCenterID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("f.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.FeeType != "" {
		conditions = append(conditions, fmt.Sprintf("f.fee_type = $%d", len(args)+1))
		args = append(args, filter.FeeType)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at": "f.created_at",
		"due_date":   "f.due_date",
		"amount":     "f.amount",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "f.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page, size := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT f.id, f.student_id, f.amount, f.fee_type, f.status, f.due_date, f.paid_date, f.receipt_number,
        f.approved_by, f.approved_date, f.rejection_reason, f.notes, f.recorded_by, f.created_at, f.updated_at,
        s.full_name AS student_name, s.training_center_id
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var fees []models.FeeDetail
	if err := r.db.SelectContext(ctx, &fees, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list fees: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count fees: %w", err)
	}
	return fees, total, nil
}

// MarkPaid moves a PENDING fee to PAID. It returns sql.ErrNoRows when the fee is missing or
// no longer PENDING.
func (r *FeeRepository) MarkPaid(ctx context.Context, id string, paidDate time.Time, receipt *string) (*models.Fee, error) {
	query := `UPDATE fees SET status = $2, paid_date = $3, receipt_number = $4, updated_at = $5
        WHERE id = $1 AND status = $6
        RETURNING ` + feeColumns
	var fee models.Fee
	if err := r.db.GetContext(ctx, &fee, query, id, models.FeeStatusPaid, paidDate, receipt, time.Now().UTC(), models.FeeStatusPending); err != nil {
		return nil, wrapNoRows(err, "mark fee paid")
	}
	return &fee, nil
}

// ReviewFeeParams captures an approval or rejection.
type ReviewFeeParams struct {
	ID         string
	Status     models.FeeStatus
	ReviewerID string
	ReviewedAt time.Time
	Reason     *string
}

// Review moves a PENDING or PAID fee to APPROVED or REJECTED. It returns sql.ErrNoRows when
// the fee is missing or already terminal.
func (r *FeeRepository) Review(ctx context.Context, params ReviewFeeParams) (*models.Fee, error) {
	query := `UPDATE fees SET status = $2, approved_by = $3, approved_date = $4, rejection_reason = $5, updated_at = $4
        WHERE id = $1 AND status IN ($6, $7)
        RETURNING ` + feeColumns
	var fee models.Fee
	if err := r.db.GetContext(ctx, &fee, query, params.ID, params.Status, params.ReviewerID, params.ReviewedAt, params.Reason,
		models.FeeStatusPending, models.FeeStatusPaid); err != nil {
		return nil, wrapNoRows(err, "review fee")
	}
	return &fee, nil
}
