package models

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin    UserRole = "ADMIN"
	RoleOperator UserRole = "OPERATOR"
	RoleStudent  UserRole = "STUDENT"
)

// Valid reports whether the role is one the ledger understands.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleOperator, RoleStudent:
		return true
	}
	return false
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
