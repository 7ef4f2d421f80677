package domain

import "time"

// UserRole gates access to agent and admin surfaces.
type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAgent UserRole = "agent"
	RoleAdmin UserRole = "admin"
)

// User is the domain model for anyone who authenticates: ticket
// requesters, support agents and admins share one table with a role.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         UserRole
	CreatedAt    time.Time
}
