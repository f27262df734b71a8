package models

import "github.com/google/uuid"

// Role names granted by the identity provider
const (
	RoleUser    = "ROLE_USER"
	RoleManager = "ROLE_MANAGER"
)

// User is the authenticated principal for the duration of a request.
// It is resolved from the access token by the auth middleware and passed
// explicitly into every catalog operation; the core never reads ambient
// session state.
type User struct {
	UID      uuid.UUID `json:"uid"`
	Username string    `json:"username"`
	Roles    []string  `json:"roles"`
}

// HasRole reports whether the user holds the named role
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsManager reports whether the user holds catalog-wide curation rights
func (u *User) IsManager() bool {
	return u.HasRole(RoleManager)
}

// IsAuthenticated reports whether a principal is present at all
func (u *User) IsAuthenticated() bool {
	return u != nil && u.UID != uuid.Nil
}
