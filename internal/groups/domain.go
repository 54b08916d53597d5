package groups

import (
	"time"

	"github.com/afnan2013/forewarn-ibf-portal/internal/rbac"
)

// Group is a named collection of permissions, many-to-many with identities
// and permissions.
type Group struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Detail is a group with its resolved permission grants and member count.
type Detail struct {
	Group
	Permissions []rbac.Permission `json:"permissions"`
	MemberCount int               `json:"member_count"`
}

// Snapshot captures a group's state just before deletion, for the audit
// trail and the delete response.
type Snapshot struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	PermissionCount int    `json:"permission_count"`
	MemberCount     int    `json:"member_count"`
}
