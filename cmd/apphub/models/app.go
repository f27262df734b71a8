package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AppStatus represents the approval state of an app
type AppStatus string

const (
	StatusPending     AppStatus = "PENDING"
	StatusApproved    AppStatus = "APPROVED"
	StatusRejected    AppStatus = "REJECTED"
	StatusNotApproved AppStatus = "NOT_APPROVED"
)

// ParseAppStatus parses a status string (case-insensitive)
func ParseAppStatus(raw string) (AppStatus, error) {
	switch AppStatus(strings.ToUpper(raw)) {
	case StatusPending:
		return StatusPending, nil
	case StatusApproved:
		return StatusApproved, nil
	case StatusRejected:
		return StatusRejected, nil
	case StatusNotApproved:
		return StatusNotApproved, nil
	default:
		return "", fmt.Errorf("unknown app status: %q", raw)
	}
}

// AppType represents the declared type of an app
type AppType string

const (
	TypeApp                    AppType = "APP"
	TypeDashboardWidget        AppType = "DASHBOARD_WIDGET"
	TypeTrackerDashboardWidget AppType = "TRACKER_DASHBOARD_WIDGET"
)

// ParseAppType parses a type string (case-insensitive)
func ParseAppType(raw string) (AppType, error) {
	switch AppType(strings.ToUpper(raw)) {
	case TypeApp:
		return TypeApp, nil
	case TypeDashboardWidget:
		return TypeDashboardWidget, nil
	case TypeTrackerDashboardWidget:
		return TypeTrackerDashboardWidget, nil
	default:
		return "", fmt.Errorf("unknown app type: %q", raw)
	}
}

// App is the catalog aggregate root. Versions and reviews live inside the app
// and are only ever reached through it; uid, owner and status never change
// through Update.
type App struct {
	UID                uuid.UUID `db:"uid" json:"uid"`
	Name               string    `db:"name" json:"name"`
	Description        string    `db:"description" json:"description"`
	AppType            AppType   `db:"app_type" json:"app_type"`
	MinPlatformVersion string    `db:"min_platform_version" json:"min_platform_version,omitempty"`

	// Link to the app's source code, carried through from submission
	SourceURL string `db:"source_url" json:"source_url,omitempty"`

	// Owner is fixed at creation; ownership is not transferable
	OwnerUID  uuid.UUID `db:"owner_uid" json:"owner_uid"`
	OwnerName string    `db:"owner_name" json:"owner_name,omitempty"`

	Status AppStatus `db:"status" json:"status"`

	// Versions preserve insertion order; duplicates on version string are
	// legal, the uid disambiguates
	Versions []AppVersion `json:"versions"`

	// Reviews iterate in insertion order
	Reviews []Review `json:"reviews"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// IsApproved reports whether the app is publicly listed
func (a *App) IsApproved() bool {
	return a.Status == StatusApproved
}

// VersionByUID finds an attached version by uid
func (a *App) VersionByUID(uid uuid.UUID) (*AppVersion, bool) {
	for i := range a.Versions {
		if a.Versions[i].UID == uid {
			return &a.Versions[i], true
		}
	}
	return nil, false
}

// ReviewByUID finds an attached review by uid
func (a *App) ReviewByUID(uid uuid.UUID) (*Review, bool) {
	for i := range a.Reviews {
		if a.Reviews[i].UID == uid {
			return &a.Reviews[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy of the app and its embedded collections.
// Repositories hand out clones so readers never observe a torn aggregate.
func (a *App) Clone() *App {
	cp := *a
	cp.Versions = make([]AppVersion, len(a.Versions))
	copy(cp.Versions, a.Versions)
	cp.Reviews = make([]Review, len(a.Reviews))
	copy(cp.Reviews, a.Reviews)
	return &cp
}

// AppDraft carries the caller-supplied fields for app creation and update
type AppDraft struct {
	Name               string `json:"name"`
	Description        string `json:"description"`
	AppType            string `json:"app_type"`
	MinPlatformVersion string `json:"min_platform_version"`
	SourceURL          string `json:"source_url"`
}
