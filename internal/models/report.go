package models

import "time"

// ReportFilter bounds a summary. Dates are inclusive calendar days.
type ReportFilter struct {
	DateFrom *time.Time `json:"date_from,omitempty"`
	DateTo   *time.Time `json:"date_to,omitempty"`
	BatchID  string     `json:"batch_id,omitempty"`
	CourseID string     `json:"course_id,omitempty"`
	CenterID string     `json:"center_id,omitempty"`
	// StudentID is forced by the scope for student principals.
	StudentID string `json:"student_id,omitempty"`
}

// ReportSummary is the aggregated ledger view. Amounts are in minor units.
type ReportSummary struct {
	ActiveStudents     int                `json:"active_students"`
	CompletedStudents  int                `json:"completed_students"`
	DroppedStudents    int                `json:"dropped_students"`
	TotalEnrollments   int                `json:"total_enrollments"`
	CourseFeeLiability int64              `json:"course_fee_liability"`
	TotalCollected     int64              `json:"total_collected"`
	PendingDues        int64              `json:"pending_dues"`
	PendingFeeAmount   int64              `json:"pending_fee_amount"`
	RejectedFeeAmount  int64              `json:"rejected_fee_amount"`
	Batches            []BatchSummaryLine `json:"batches"`
	Filter             ReportFilter       `json:"filter"`
	GeneratedAt        time.Time          `json:"generated_at"`
}

// BatchSummaryLine is the per-batch breakdown of a summary.
type BatchSummaryLine struct {
	BatchID            string `db:"batch_id" json:"batch_id"`
	BatchCode          string `db:"batch_code" json:"batch_code"`
	CourseName         string `db:"course_name" json:"course_name"`
	TrainingCenterName string `db:"training_center_name" json:"training_center_name"`
	MaxCapacity        int    `db:"max_capacity" json:"max_capacity"`
	ActiveEnrollments  int    `db:"active_enrollments" json:"active_enrollments"`
	CourseFeeLiability int64  `db:"course_fee_liability" json:"course_fee_liability"`
}

// ReportTotals is the scalar row produced by the aggregation query.
type ReportTotals struct {
	ActiveStudents     int   `db:"active_students"`
	CompletedStudents  int   `db:"completed_students"`
	DroppedStudents    int   `db:"dropped_students"`
	TotalEnrollments   int   `db:"total_enrollments"`
	CourseFeeLiability int64 `db:"course_fee_liability"`
	TotalCollected     int64 `db:"total_collected"`
	PendingFeeAmount   int64 `db:"pending_fee_amount"`
	RejectedFeeAmount  int64 `db:"rejected_fee_amount"`
}
