package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive  EnrollmentStatus = "ACTIVE"
	EnrollmentStatusRemoved EnrollmentStatus = "REMOVED"
)

// Enrollment joins a student to a batch.
type Enrollment struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	BatchID    string           `db:"batch_id" json:"batch_id"`
	Status     EnrollmentStatus `db:"status" json:"status"`
	EnrolledAt time.Time        `db:"enrolled_at" json:"enrolled_at"`
	RemovedAt  *time.Time       `db:"removed_at" json:"removed_at,omitempty"`
	EnrolledBy string           `db:"enrolled_by" json:"enrolled_by"`
	RemovedBy  *string          `db:"removed_by" json:"removed_by,omitempty"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with student and batch info.
type EnrollmentDetail struct {
	Enrollment
	StudentName      string `db:"student_name" json:"student_name"`
	EnrollmentNo     string `db:"enrollment_no" json:"enrollment_no"`
	BatchCode        string `db:"batch_code" json:"batch_code"`
	BatchName        string `db:"batch_name" json:"batch_name"`
	TrainingCenterID string `db:"training_center_id" json:"training_center_id"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID        string
	BatchID          string
	TrainingCenterID string
	Status           EnrollmentStatus
	Page             int
	PageSize         int
	SortBy           string
	SortOrder        string
}
