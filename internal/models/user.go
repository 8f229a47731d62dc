package models

import "time"

// Role decides which dashboard a signed-in user may open.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleDriver Role = "driver"
	RoleFamily Role = "family"
)

func AllRoles() []Role {
	return []Role{RoleAdmin, RoleDriver, RoleFamily}
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDriver, RoleFamily:
		return true
	}
	return false
}

func ParseRole(s string) (Role, bool) {
	r := Role(normalize(s))
	return r, r.Valid()
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}
