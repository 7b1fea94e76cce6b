package models

// UserRole represents the roles carried by access tokens.
type UserRole string

const (
	RoleAdmin     UserRole = "ADMIN"
	RoleProfessor UserRole = "PROFESSOR"
	RoleStudent   UserRole = "STUDENT"
)

// Professor is the evaluator referenced by evaluations.
type Professor struct {
	ID       string `db:"id" json:"id"`
	FullName string `db:"full_name" json:"full_name"`
	Email    string `db:"email" json:"email,omitempty"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
