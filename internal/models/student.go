package models

import "time"

// StudentStatus enumerates the learner lifecycle.
type StudentStatus string

const (
	StudentStatusActive    StudentStatus = "ACTIVE"
	StudentStatusInactive  StudentStatus = "INACTIVE"
	StudentStatusCompleted StudentStatus = "COMPLETED"
	StudentStatusDropped   StudentStatus = "DROPPED"
	StudentStatusDeleted   StudentStatus = "DELETED"
)

// Student represents a learner record. TrainingCenterID stays empty until the first enrollment.
type Student struct {
	ID               string        `db:"id" json:"id"`
	UserID           *string       `db:"user_id" json:"user_id,omitempty"`
	TrainingCenterID *string       `db:"training_center_id" json:"training_center_id,omitempty"`
	EnrollmentNo     string        `db:"enrollment_no" json:"enrollment_no"`
	FullName         string        `db:"full_name" json:"full_name"`
	Email            *string       `db:"email" json:"email,omitempty"`
	Phone            *string       `db:"phone" json:"phone,omitempty"`
	Status           StudentStatus `db:"status" json:"status"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
	DeletedAt        *time.Time    `db:"deleted_at" json:"deleted_at,omitempty"`
}

// CenterID returns the student's center or an empty string.
func (s Student) CenterID() string {
	if s.TrainingCenterID == nil {
		return ""
	}
	return *s.TrainingCenterID
}
