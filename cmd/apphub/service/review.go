package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dhis2/dhis2-apptore/cmd/apphub/models"
	"github.com/dhis2/dhis2-apptore/cmd/apphub/security"
	"github.com/dhis2/dhis2-apptore/common/errs"
)

// ReviewLedger manages the reviews attached to an app. Any authenticated
// principal may write one; only the app owner may remove one. The asymmetry
// is intentional: moderation of a review is the app owner's call, and an
// author cannot retract through this surface.
type ReviewLedger struct {
	catalog *AppCatalog
}

// NewReviewLedger creates the ledger bound to a catalog
func NewReviewLedger(catalog *AppCatalog) *ReviewLedger {
	return &ReviewLedger{catalog: catalog}
}

// AddReview attaches a review to the app. Duplicate reviews by the same
// author are legal; the uid disambiguates.
func (l *ReviewLedger) AddReview(ctx context.Context, principal *models.User, appUID uuid.UUID, draft models.ReviewDraft) (*models.Review, error) {
	if strings.TrimSpace(draft.Text) == "" {
		return nil, fmt.Errorf("%w: review text is required", errs.ErrInvalidArgument)
	}

	c := l.catalog

	c.locks.lock(appUID)
	defer c.locks.unlock(appUID)

	app, err := c.repo.Get(ctx, appUID)
	if err != nil {
		return nil, err
	}

	if decision := security.Decide(principal, app, security.ReviewAuthor); !decision.Allowed {
		if !principal.IsAuthenticated() {
			return nil, errs.ErrUnauthenticated
		}
		return nil, errs.Forbidden(decision.AppUID)
	}

	review := &models.Review{
		UID:        uuid.New(),
		AppUID:     appUID,
		AuthorUID:  principal.UID,
		AuthorName: principal.Username,
		Text:       draft.Text,
		CreatedAt:  time.Now(),
	}

	if err := c.repo.AddReview(ctx, review); err != nil {
		return nil, err
	}

	c.log.Info("review added",
		"app_id", appUID,
		"review_id", review.UID,
		"author", principal.UID)

	return review, nil
}

// ListReviews returns the app's reviews in insertion order. Authentication
// is the only gate; there is no extra visibility check beyond resolving the
// app itself.
func (l *ReviewLedger) ListReviews(ctx context.Context, principal *models.User, appUID uuid.UUID) ([]models.Review, error) {
	if !principal.IsAuthenticated() {
		return nil, errs.ErrUnauthenticated
	}

	app, err := l.catalog.repo.Get(ctx, appUID)
	if err != nil {
		return nil, err
	}

	return app.Reviews, nil
}

// RemoveReview detaches a review. App owner only; the review's author gets
// Forbidden unless they also own the app.
func (l *ReviewLedger) RemoveReview(ctx context.Context, principal *models.User, appUID, reviewUID uuid.UUID) error {
	c := l.catalog

	c.locks.lock(appUID)
	defer c.locks.unlock(appUID)

	app, err := c.repo.Get(ctx, appUID)
	if err != nil {
		return err
	}

	if _, ok := app.ReviewByUID(reviewUID); !ok {
		return errs.NotFound(reviewUID.String())
	}

	if decision := security.Decide(principal, app, security.MutateOwned); !decision.Allowed {
		return errs.Forbidden(decision.AppUID)
	}

	if err := c.repo.RemoveReview(ctx, reviewUID); err != nil {
		return err
	}

	c.log.Info("review removed", "app_id", appUID, "review_id", reviewUID)

	return nil
}
