package models

import "time"

// CourseStatus enumerates catalog states of a course.
type CourseStatus string

const (
	CourseStatusActive   CourseStatus = "ACTIVE"
	CourseStatusInactive CourseStatus = "INACTIVE"
	CourseStatusDraft    CourseStatus = "DRAFT"
	CourseStatusDeleted  CourseStatus = "DELETED"
)

// Course is a catalog entry that batches are scheduled against. Fees are in minor units.
type Course struct {
	ID              string       `db:"id" json:"id"`
	Code            string       `db:"code" json:"code"`
	Name            string       `db:"name" json:"name"`
	CourseFee       int64        `db:"course_fee" json:"course_fee"`
	RegistrationFee int64        `db:"registration_fee" json:"registration_fee"`
	DurationDays    int          `db:"duration_days" json:"duration_days"`
	Status          CourseStatus `db:"status" json:"status"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updated_at"`
	DeletedAt       *time.Time   `db:"deleted_at" json:"deleted_at,omitempty"`
}
