package dto

// CreateBatchRequest defines payload for scheduling a batch. Dates use YYYY-MM-DD.
type CreateBatchRequest struct {
	Code             string  `json:"code" validate:"required,max=50"`
	Name             string  `json:"name" validate:"required,max=255"`
	CourseID         string  `json:"course_id" binding:"required,uuid" validate:"required"`
	TrainingCenterID string  `json:"training_center_id" binding:"required,uuid" validate:"required"`
	MaxCapacity      int     `json:"max_capacity" validate:"required,gt=0"`
	StartDate        string  `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate          *string `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// UpdateBatchRequest carries optional edits; omitted fields keep their value.
type UpdateBatchRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	MaxCapacity *int    `json:"max_capacity,omitempty" validate:"omitempty,gt=0"`
	StartDate   *string `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate     *string `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ClearEnd    bool    `json:"clear_end_date,omitempty"`
}

// UpdateBatchStatusRequest moves a batch through its lifecycle.
type UpdateBatchStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=UPCOMING ONGOING COMPLETED CANCELLED SUSPENDED DELETED"`
}
