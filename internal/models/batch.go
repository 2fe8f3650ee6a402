package models

import "time"

// BatchStatus enumerates batch lifecycle states.
type BatchStatus string

const (
	BatchStatusUpcoming  BatchStatus = "UPCOMING"
	BatchStatusOngoing   BatchStatus = "ONGOING"
	BatchStatusCompleted BatchStatus = "COMPLETED"
	BatchStatusCancelled BatchStatus = "CANCELLED"
	BatchStatusSuspended BatchStatus = "SUSPENDED"
	BatchStatusDeleted   BatchStatus = "DELETED"
)

var batchTransitions = map[BatchStatus][]BatchStatus{
	BatchStatusUpcoming:  {BatchStatusOngoing, BatchStatusCompleted, BatchStatusCancelled, BatchStatusSuspended},
	BatchStatusOngoing:   {BatchStatusCompleted, BatchStatusCancelled, BatchStatusSuspended},
	BatchStatusSuspended: {BatchStatusUpcoming, BatchStatusOngoing, BatchStatusCancelled},
}

// Valid reports whether the status is a known batch state.
func (s BatchStatus) Valid() bool {
	switch s {
	case BatchStatusUpcoming, BatchStatusOngoing, BatchStatusCompleted, BatchStatusCancelled, BatchStatusSuspended, BatchStatusDeleted:
		return true
	}
	return false
}

// CanTransitionTo reports whether a batch may move from s to next. DELETED is reachable
// from every state except itself; the dependent check is enforced separately.
func (s BatchStatus) CanTransitionTo(next BatchStatus) bool {
	if s == BatchStatusDeleted {
		return false
	}
	if next == BatchStatusDeleted {
		return true
	}
	for _, allowed := range batchTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AcceptsEnrollments reports whether new students may join a batch in this state.
func (s BatchStatus) AcceptsEnrollments() bool {
	return s == BatchStatusUpcoming || s == BatchStatusOngoing
}

// Batch is a scheduled run of a course at a training center with a seat limit.
type Batch struct {
	ID               string      `db:"id" json:"id"`
	Code             string      `db:"code" json:"code"`
	Name             string      `db:"name" json:"name"`
	CourseID         string      `db:"course_id" json:"course_id"`
	TrainingCenterID string      `db:"training_center_id" json:"training_center_id"`
	MaxCapacity      int         `db:"max_capacity" json:"max_capacity"`
	StartDate        time.Time   `db:"start_date" json:"start_date"`
	EndDate          *time.Time  `db:"end_date" json:"end_date,omitempty"`
	Status           BatchStatus `db:"status" json:"status"`
	CreatedBy        *string     `db:"created_by" json:"created_by,omitempty"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at" json:"updated_at"`
	DeletedAt        *time.Time  `db:"deleted_at" json:"deleted_at,omitempty"`
}

// BatchDetail enriches a batch with its live seat usage and display names.
type BatchDetail struct {
	Batch
	CourseName         string `db:"course_name" json:"course_name"`
	TrainingCenterName string `db:"training_center_name" json:"training_center_name"`
	ActiveEnrollments  int    `db:"active_enrollments" json:"active_enrollments"`
}

// BatchFilter provides filters for listing batches.
type BatchFilter struct {
	CourseID         string
	TrainingCenterID string
	Status           BatchStatus
	IncludeDeleted   bool
	Page             int
	PageSize         int
	SortBy           string
	SortOrder        string
}
