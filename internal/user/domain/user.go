package domain

import (
	"errors"
	"time"
)

// User is the identity row a member logs in as.
type User struct {
	ID        string
	LoginID   string // email address used to log in
	Status    UserStatus
	Role      string
	CompanyID string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Profile holds display data kept beside the identity row.
type Profile struct {
	UserID    string
	Name      string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

// Roles recognised by the role guard.
const (
	RoleMember     = "member"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

// Active reports whether the user may authenticate.
func (u *User) Active() bool {
	return u.Status == UserStatusActive && u.DeletedAt == nil
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.LoginID == "" {
		return errors.New("login id is required")
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	if u.Role == "" {
		u.Role = RoleMember
	}
	return nil
}
