package models

// Scope is the resolved authorization boundary of a principal. It is computed once per
// request and passed explicitly to every ledger operation.
type Scope struct {
	PrincipalID string   `json:"principal_id"`
	Role        UserRole `json:"role"`
	// CenterID is empty for administrators, who cover every center.
	CenterID string `json:"center_id,omitempty"`
	// StudentID is set only for student principals.
	StudentID string `json:"student_id,omitempty"`
}

// IsAdmin reports whether the scope spans all centers.
func (s Scope) IsAdmin() bool {
	return s.Role == RoleAdmin
}

// CanManage reports whether the principal may mutate batches, enrollments and fees.
func (s Scope) CanManage() bool {
	return s.Role == RoleAdmin || (s.Role == RoleOperator && s.CenterID != "")
}

// CoversCenter reports whether resources of the given center are visible to the scope.
func (s Scope) CoversCenter(centerID string) bool {
	switch s.Role {
	case RoleAdmin:
		return true
	case RoleOperator, RoleStudent:
		return s.CenterID != "" && s.CenterID == centerID
	}
	return false
}

// CoversStudent reports whether the student record belongs to the scope. centerID is the
// student's current training center and may be empty.
func (s Scope) CoversStudent(studentID, centerID string) bool {
	switch s.Role {
	case RoleAdmin:
		return true
	case RoleOperator:
		return s.CenterID != "" && s.CenterID == centerID
	case RoleStudent:
		return s.StudentID != "" && s.StudentID == studentID
	}
	return false
}
