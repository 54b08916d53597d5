package users

import (
	"strings"
	"time"
)

// Identity represents a user account (a principal).
type Identity struct {
	ID           int64
	Email        string
	Username     string
	FirstName    string
	LastName     string
	IsActive     bool
	IsStaff      bool
	IsSuperuser  bool
	IsDeleted    bool
	PasswordHash string
	RoleID       *int64
	DateJoined   time.Time
	LastLogin    *time.Time
	Groups       []GroupRef
}

// GroupRef is a lightweight reference to a group the identity belongs to.
type GroupRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// GetID implements shared.Principal.
func (u *Identity) GetID() int64 { return u.ID }

// GetUsername implements shared.Principal.
func (u *Identity) GetUsername() string { return u.Username }

// Active reports whether the account may act. Soft-deleted accounts are
// never active.
func (u *Identity) Active() bool { return u.IsActive && !u.IsDeleted }

// Staff implements shared.Principal.
func (u *Identity) Staff() bool { return u.IsStaff }

// SuperUser implements shared.Principal.
func (u *Identity) SuperUser() bool { return u.IsSuperuser }

// FullName returns the display name, falling back to the username.
func (u *Identity) FullName() string {
	full := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if full == "" {
		return u.Username
	}
	return full
}

// Profile is the JSON shape exposed for an identity. The password hash is
// never part of any response.
type Profile struct {
	ID          int64      `json:"id"`
	Email       string     `json:"email"`
	Username    string     `json:"username"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	FullName    string     `json:"full_name"`
	IsActive    bool       `json:"is_active"`
	IsStaff     bool       `json:"is_staff"`
	IsSuperuser bool       `json:"is_superuser"`
	DateJoined  time.Time  `json:"date_joined"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
	Groups      []GroupRef `json:"groups"`
}

// Profile converts the identity into its response representation.
func (u *Identity) Profile() Profile {
	groups := u.Groups
	if groups == nil {
		groups = []GroupRef{}
	}
	return Profile{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		FullName:    u.FullName(),
		IsActive:    u.IsActive,
		IsStaff:     u.IsStaff,
		IsSuperuser: u.IsSuperuser,
		DateJoined:  u.DateJoined,
		LastLogin:   u.LastLogin,
		Groups:      groups,
	}
}
