package models

import "time"

// FeeType classifies what a fee is charged for.
type FeeType string

const (
	FeeTypeRegistration FeeType = "REGISTRATION"
	FeeTypeCourse       FeeType = "COURSE"
	FeeTypeExam         FeeType = "EXAM"
	FeeTypeEMI          FeeType = "EMI"
	FeeTypeOther        FeeType = "OTHER"
)

// Valid reports whether the fee type is known.
func (t FeeType) Valid() bool {
	switch t {
	case FeeTypeRegistration, FeeTypeCourse, FeeTypeExam, FeeTypeEMI, FeeTypeOther:
		return true
	}
	return false
}

// FeeStatus tracks the approval workflow of a fee.
type FeeStatus string

const (
	FeeStatusPending  FeeStatus = "PENDING"
	FeeStatusPaid     FeeStatus = "PAID"
	FeeStatusApproved FeeStatus = "APPROVED"
	FeeStatusRejected FeeStatus = "REJECTED"
)

// Terminal reports whether no further transition is possible.
func (s FeeStatus) Terminal() bool {
	return s == FeeStatusApproved || s == FeeStatusRejected
}

// Fee is a single amount owed by a student. Amount is in the currency's minor unit.
type Fee struct {
	ID              string     `db:"id" json:"id"`
	StudentID       string     `db:"student_id" json:"student_id"`
	Amount          int64      `db:"amount" json:"amount"`
	FeeType         FeeType    `db:"fee_type" json:"fee_type"`
	Status          FeeStatus  `db:"status" json:"status"`
	DueDate         *time.Time `db:"due_date" json:"due_date,omitempty"`
	PaidDate        *time.Time `db:"paid_date" json:"paid_date,omitempty"`
	ReceiptNumber   *string    `db:"receipt_number" json:"receipt_number,omitempty"`
	ApprovedBy      *string    `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedDate    *time.Time `db:"approved_date" json:"approved_date,omitempty"`
	RejectionReason *string    `db:"rejection_reason" json:"rejection_reason,omitempty"`
	Notes           *string    `db:"notes" json:"notes,omitempty"`
	RecordedBy      string     `db:"recorded_by" json:"recorded_by"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// FeeDetail joins the fee with the owning student's center for scope checks.
type FeeDetail struct {
	Fee
	StudentName      string  `db:"student_name" json:"student_name"`
	TrainingCenterID *string `db:"training_center_id" json:"training_center_id,omitempty"`
}

// CenterID returns the owning student's center or an empty string.
func (f FeeDetail) CenterID() string {
	if f.TrainingCenterID == nil {
		return ""
	}
	return *f.TrainingCenterID
}

// FeeFilter provides filters for listing fees.
type FeeFilter struct {
	StudentID        string
	TrainingCenterID string
	Status           FeeStatus
	FeeType          FeeType
	Page             int
	PageSize         int
	SortBy           string
	SortOrder        string
}
