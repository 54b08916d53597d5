package auth

import "github.com/afnan2013/forewarn-ibf-portal/internal/shared"

// IdentitySummary is the snapshot returned on successful login.
type IdentitySummary struct {
	ID          int64               `json:"id"`
	Email       string              `json:"email"`
	Username    string              `json:"username"`
	FullName    string              `json:"full_name"`
	IsStaff     bool                `json:"is_staff"`
	Groups      []string            `json:"groups"`
	Permissions []shared.Capability `json:"permissions"`
}

// LoginResult bundles the issued tokens and the identity snapshot.
type LoginResult struct {
	AccessToken  string          `json:"access"`
	RefreshToken string          `json:"refresh"`
	ExpiresIn    int64           `json:"expires_in"`
	User         IdentitySummary `json:"user"`
}
