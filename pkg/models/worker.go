package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a worker's role within a workspace.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleEmployee Role = "EMPLOYEE"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleEmployee
}

// Worker is a member of a workspace who can be assigned jobs or review them.
type Worker struct {
	ID           uuid.UUID `db:"id"            json:"id"`
	WorkspaceID  uuid.UUID `db:"workspace_id"  json:"workspace_id"`
	EmployeeCode string    `db:"employee_code" json:"employee_code"`
	FullName     string    `db:"full_name"     json:"full_name"`
	Role         Role      `db:"role"          json:"role"`
	CreatedAt    time.Time `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"    json:"updated_at"`
}
