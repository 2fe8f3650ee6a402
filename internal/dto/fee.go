package dto

// RecordFeeRequest creates a PENDING fee. Amount is in minor currency units.
type RecordFeeRequest struct {
	StudentID string  `json:"student_id" binding:"required,uuid" validate:"required"`
	Amount    int64   `json:"amount" validate:"required,gt=0"`
	FeeType   string  `json:"fee_type" validate:"required,oneof=REGISTRATION COURSE EXAM EMI OTHER"`
	DueDate   *string `json:"due_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Notes     *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// MarkFeePaidRequest records settlement of a fee.
type MarkFeePaidRequest struct {
	PaidDate      string  `json:"paid_date" validate:"required,datetime=2006-01-02"`
	ReceiptNumber *string `json:"receipt_number,omitempty" validate:"omitempty,max=100"`
}

// RejectFeeRequest carries the mandatory rejection reason.
type RejectFeeRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}
