package dto

// EnrollRequest adds a student to the batch named in the path.
type EnrollRequest struct {
	StudentID string `json:"student_id" binding:"required,uuid"`
}
