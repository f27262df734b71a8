package models

import (
	"time"

	"github.com/google/uuid"
)

// AppVersion is a downloadable release attached to exactly one app.
// The uid is unique across the whole catalog, so version lookups are id-only.
type AppVersion struct {
	UID     uuid.UUID `db:"uid" json:"uid"`
	AppUID  uuid.UUID `db:"app_uid" json:"app_uid"`
	Version string    `db:"version" json:"version"`

	// ArtifactRef is the opaque handle returned by the artifact store
	ArtifactRef string `db:"artifact_ref" json:"artifact_ref"`

	DemoURL string `db:"demo_url" json:"demo_url,omitempty"`

	// Per-version platform compatibility range; empty means unbounded
	MinPlatformVersion string `db:"min_platform_version" json:"min_platform_version,omitempty"`
	MaxPlatformVersion string `db:"max_platform_version" json:"max_platform_version,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// VersionDraft carries the caller-supplied fields for attaching a version
type VersionDraft struct {
	Version            string `json:"version"`
	DemoURL            string `json:"demo_url"`
	MinPlatformVersion string `json:"min_platform_version"`
	MaxPlatformVersion string `json:"max_platform_version"`
}
