package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/training-ledger-api/internal/models"
)

// ReportRepository runs the read-only ledger aggregations.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// populationQuery builds two CTEs over enrollments in non-deleted batches that match the filter:
// roster holds every such enrollment whatever its status, population only the ACTIVE ones. The
// returned args are positional for the CTEs; callers append their own after them.
func populationQuery(filter models.ReportFilter) (string, []interface{}) {
	conditions := []string{"b.status <> $1"}
	args := []interface{}{models.BatchStatusDeleted}

	if filter.BatchID != "" {
		args = append(args, filter.BatchID)
		conditions = append(conditions, fmt.Sprintf("b.id = $%d", len(args)))
	}
	if filter.CourseID != "" {
		args = append(args, filter.CourseID)
		conditions = append(conditions, fmt.Sprintf("b.course_id = $%d", len(args)))
	}
	if filter.CenterID != "" {
		args = append(args, filter.CenterID)
		conditions = append(conditions, fmt.Sprintf("b.training_center_id = $%d", len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)))
	}
	if filter.DateFrom != nil {
		args = append(args, startOfDay(*filter.DateFrom))
		conditions = append(conditions, fmt.Sprintf("e.enrolled_at >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, startOfDay(*filter.DateTo).AddDate(0, 0, 1))
		conditions = append(conditions, fmt.Sprintf("e.enrolled_at < $%d", len(args)))
	}
	args = append(args, models.EnrollmentStatusActive)

	cte := `WITH roster AS (
    SELECT e.id AS enrollment_id, e.student_id, e.batch_id, e.status AS enrollment_status, b.code AS batch_code,
           b.max_capacity, c.name AS course_name, c.course_fee, tc.name AS training_center_name
    FROM enrollments e
    JOIN batches b ON b.id = e.batch_id
    JOIN courses c ON c.id = b.course_id
    JOIN training_centers tc ON tc.id = b.training_center_id
    WHERE ` + strings.Join(conditions, " AND ") + `
),
population AS (
    SELECT * FROM roster WHERE enrollment_status = $` + fmt.Sprint(len(args)) + `
)`
	return cte, args
}

// Totals returns the scalar summary for the filter. Liability and fee sums cover the students
// of the active population; completed and dropped counts cover every student enrolled in range
// so unenrolling a dropped student does not hide them. Collected sums PAID and APPROVED fees
// whose settlement date (paid date, else approval date) lies in the range.
func (r *ReportRepository) Totals(ctx context.Context, filter models.ReportFilter) (*models.ReportTotals, error) {
	cte, args := populationQuery(filter)

	settled := []string{fmt.Sprintf("f.status IN ($%d, $%d)", len(args)+1, len(args)+2)}
	args = append(args, models.FeeStatusPaid, models.FeeStatusApproved)
	if filter.DateFrom != nil {
		args = append(args, startOfDay(*filter.DateFrom))
		settled = append(settled, fmt.Sprintf("COALESCE(f.paid_date::timestamptz, f.approved_date) >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, startOfDay(*filter.DateTo).AddDate(0, 0, 1))
		settled = append(settled, fmt.Sprintf("COALESCE(f.paid_date::timestamptz, f.approved_date) < $%d", len(args)))
	}
	args = append(args, models.FeeStatusPending, models.FeeStatusRejected)
	pendingIdx, rejectedIdx := len(args)-1, len(args)
	args = append(args, models.StudentStatusActive, models.StudentStatusCompleted, models.StudentStatusDropped)
	activeIdx, completedIdx, droppedIdx := len(args)-2, len(args)-1, len(args)

	query := cte + fmt.Sprintf(`,
students_in AS (
    SELECT s.id, s.status FROM students s WHERE s.id IN (SELECT student_id FROM population)
),
students_seen AS (
    SELECT s.id, s.status FROM students s WHERE s.id IN (SELECT student_id FROM roster)
),
fee_totals AS (
    SELECT
        COALESCE(SUM(f.amount) FILTER (WHERE %s), 0) AS total_collected,
        COALESCE(SUM(f.amount) FILTER (WHERE f.status = $%d), 0) AS pending_fee_amount,
        COALESCE(SUM(f.amount) FILTER (WHERE f.status = $%d), 0) AS rejected_fee_amount
    FROM fees f WHERE f.student_id IN (SELECT id FROM students_in)
)
SELECT
    (SELECT COUNT(*) FROM students_in WHERE status = $%d) AS active_students,
    (SELECT COUNT(*) FROM students_seen WHERE status = $%d) AS completed_students,
    (SELECT COUNT(*) FROM students_seen WHERE status = $%d) AS dropped_students,
    (SELECT COUNT(*) FROM population) AS total_enrollments,
    (SELECT COALESCE(SUM(course_fee), 0) FROM population) AS course_fee_liability,
    ft.total_collected, ft.pending_fee_amount, ft.rejected_fee_amount
FROM fee_totals ft`, strings.Join(settled, " AND "), pendingIdx, rejectedIdx, activeIdx, completedIdx, droppedIdx)

	var totals models.ReportTotals
	if err := r.db.GetContext(ctx, &totals, query, args...); err != nil {
		return nil, fmt.Errorf("aggregate ledger totals: %w", err)
	}
	return &totals, nil
}

// BatchLines returns the per-batch breakdown of the population.
func (r *ReportRepository) BatchLines(ctx context.Context, filter models.ReportFilter) ([]models.BatchSummaryLine, error) {
	cte, args := populationQuery(filter)
	query := cte + `
SELECT batch_id, batch_code, course_name, training_center_name, max_capacity,
       COUNT(*) AS active_enrollments, COALESCE(SUM(course_fee), 0) AS course_fee_liability
FROM population
GROUP BY batch_id, batch_code, course_name, training_center_name, max_capacity
ORDER BY batch_code`

	var lines []models.BatchSummaryLine
	if err := r.db.SelectContext(ctx, &lines, query, args...); err != nil {
		return nil, fmt.Errorf("aggregate batch lines: %w", err)
	}
	return lines, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
