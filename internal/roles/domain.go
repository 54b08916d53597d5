package roles

import (
	"errors"
	"time"
)

// ErrDuplicateName indicates the role name is already taken.
var ErrDuplicateName = errors.New("role name already in use")

// Role is a named bundle of capability flags plus a hierarchy level. It is
// a lighter-weight authorization signal than the group/permission model;
// an identity may carry at most one role.
type Role struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Level        int             `json:"level"`
	Capabilities map[string]bool `json:"capabilities"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// HasLevel reports whether the role sits at or above the given tier.
func (r *Role) HasLevel(min int) bool {
	return r != nil && r.Level >= min
}
