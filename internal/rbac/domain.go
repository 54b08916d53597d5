package rbac

import (
	"github.com/afnan2013/forewarn-ibf-portal/internal/shared"
)

// Permission represents an atomic capability as stored in the catalog.
// The catalog is provisioned by the system; this API only reads it and
// writes group associations.
type Permission struct {
	ID    int64             `json:"id"`
	Code  shared.Capability `json:"code"`
	Label string            `json:"label"`
}

// EnsureMutableTarget applies the protected-account rule: superuser
// identities cannot be modified through this API, no capability overrides
// that. Callers must pass the identity as read inside the mutation's own
// transaction.
func EnsureMutableTarget(target shared.Principal) error {
	if target != nil && target.SuperUser() {
		return shared.ErrProtectedAccount
	}
	return nil
}
