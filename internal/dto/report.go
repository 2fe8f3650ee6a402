package dto

// ReportQuery is the query string of the summary endpoints. Dates use YYYY-MM-DD.
type ReportQuery struct {
	DateFrom string `form:"date_from" validate:"omitempty,datetime=2006-01-02"`
	DateTo   string `form:"date_to" validate:"omitempty,datetime=2006-01-02"`
	BatchID  string `form:"batch_id" binding:"omitempty,uuid"`
	CourseID string `form:"course_id" binding:"omitempty,uuid"`
	CenterID string `form:"center_id" binding:"omitempty,uuid"`
	Format   string `form:"format" validate:"omitempty,oneof=csv pdf"`
}
