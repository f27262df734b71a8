package models

import (
	"time"

	"github.com/google/uuid"
)

// Review is a user-submitted review attached to exactly one app.
// The author is fixed at creation.
type Review struct {
	UID        uuid.UUID `db:"uid" json:"uid"`
	AppUID     uuid.UUID `db:"app_uid" json:"app_uid"`
	AuthorUID  uuid.UUID `db:"author_uid" json:"author_uid"`
	AuthorName string    `db:"author_name" json:"author_name,omitempty"`
	Text       string    `db:"review_text" json:"text"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ReviewDraft carries the caller-supplied review body
type ReviewDraft struct {
	Text string `json:"text"`
}
