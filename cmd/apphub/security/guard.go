// Package security contains the access-control decision table for catalog
// operations. It is pure: no transport, no persistence, one function.
package security

import (
	"github.com/dhis2/dhis2-apptore/cmd/apphub/models"
)

// Operation is the kind of access being requested on an app
type Operation string

const (
	// ReadPublic reads an app through the public surface
	ReadPublic Operation = "read_public"
	// ReadPrivileged reads catalog state regardless of approval status
	ReadPrivileged Operation = "read_privileged"
	// MutateOwned mutates an app or its sub-resources as the owner
	MutateOwned Operation = "mutate_owned"
	// ApproveAsManager transitions an app's approval status
	ApproveAsManager Operation = "approve_as_manager"
	// ReviewAuthor attaches a review
	ReviewAuthor Operation = "review_author"
)

// Decision is the outcome of an access check
type Decision struct {
	Allowed bool
	// Reason is set on denial; it names the failed rule, not internals
	Reason string
	// AppUID identifies the target so denials are never anonymous
	AppUID string
}

func allow(app *models.App) Decision {
	return Decision{Allowed: true, AppUID: appUID(app)}
}

func deny(app *models.App, reason string) Decision {
	return Decision{Allowed: false, Reason: reason, AppUID: appUID(app)}
}

// appUID tolerates a nil app for catalog-wide operations
func appUID(app *models.App) string {
	if app == nil {
		return ""
	}
	return app.UID.String()
}

// Decide evaluates whether principal may perform op on app.
//
// Rule table:
//
//	ReadPublic       app approved OR principal is a manager
//	ReadPrivileged   principal holds ROLE_MANAGER (app may be nil)
//	MutateOwned      principal.uid == app.owner.uid (role is irrelevant)
//	ApproveAsManager principal holds ROLE_MANAGER
//	ReviewAuthor     principal is authenticated
//
// Ownership checks deliberately ignore the manager role: a manager who does
// not own an app cannot update or delete it.
func Decide(principal *models.User, app *models.App, op Operation) Decision {
	switch op {
	case ReadPublic:
		if app.IsApproved() {
			return allow(app)
		}
		if principal.IsAuthenticated() && principal.IsManager() {
			return allow(app)
		}
		return deny(app, "app is not approved")

	case ReadPrivileged:
		if principal.IsAuthenticated() && principal.IsManager() {
			return allow(app)
		}
		return deny(app, "manager role required")

	case MutateOwned:
		if !principal.IsAuthenticated() {
			return deny(app, "authentication required")
		}
		if principal.UID == app.OwnerUID {
			return allow(app)
		}
		return deny(app, "only the owner may modify this app")

	case ApproveAsManager:
		if principal.IsAuthenticated() && principal.IsManager() {
			return allow(app)
		}
		return deny(app, "manager role required")

	case ReviewAuthor:
		if principal.IsAuthenticated() {
			return allow(app)
		}
		return deny(app, "authentication required")

	default:
		return deny(app, "unknown operation")
	}
}
