package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhis2/dhis2-apptore/cmd/apphub/models"
	"github.com/dhis2/dhis2-apptore/common/errs"
)

func TestAddReview_AnyAuthenticatedPrincipal(t *testing.T) {
	env := newTestEnv(t)
	owner := newUser(models.RoleUser)
	app := env.approvedApp(t, owner, "reviewed")

	reviewer := newUser(models.RoleUser)
	review, err := env.reviews.AddReview(context.Background(), reviewer, app.UID,
		models.ReviewDraft{Text: "solid app"})
	require.NoError(t, err)
	assert.Equal(t, reviewer.UID, review.AuthorUID)

	// The owner may review their own app too
	_, err = env.reviews.AddReview(context.Background(), owner, app.UID,
		models.ReviewDraft{Text: "I like my own work"})
	require.NoError(t, err)

	_, err = env.reviews.AddReview(context.Background(), nil, app.UID,
		models.ReviewDraft{Text: "drive-by"})
	assert.ErrorIs(t, err, errs.ErrUnauthenticated)

	_, err = env.reviews.AddReview(context.Background(), reviewer, app.UID, models.ReviewDraft{})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestListReviews_InsertionOrderRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	owner := newUser(models.RoleUser)
	app := env.approvedApp(t, owner, "ordered")
	reviewer := newUser(models.RoleUser)

	texts := []string{"first", "second", "third"}
	for _, text := range texts {
		_, err := env.reviews.AddReview(context.Background(), reviewer, app.UID,
			models.ReviewDraft{Text: text})
		require.NoError(t, err)
	}

	reviews, err := env.reviews.ListReviews(context.Background(), reviewer, app.UID)
	require.NoError(t, err)
	require.Len(t, reviews, 3)
	for i, text := range texts {
		assert.Equal(t, text, reviews[i].Text)
	}

	_, err = env.reviews.ListReviews(context.Background(), nil, app.UID)
	assert.ErrorIs(t, err, errs.ErrUnauthenticated)

	_, err = env.reviews.ListReviews(context.Background(), reviewer, uuid.New())
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestRemoveReview_AppOwnerNotAuthor(t *testing.T) {
	env := newTestEnv(t)
	owner := newUser(models.RoleUser)
	app := env.approvedApp(t, owner, "moderated")
	author := newUser(models.RoleUser)

	review, err := env.reviews.AddReview(context.Background(), author, app.UID,
		models.ReviewDraft{Text: "to be removed"})
	require.NoError(t, err)

	// The author cannot retract their own review
	err = env.reviews.RemoveReview(context.Background(), author, app.UID, review.UID)
	assert.ErrorIs(t, err, errs.ErrForbidden)

	// Neither can a manager who does not own the app
	err = env.reviews.RemoveReview(context.Background(), newManager(), app.UID, review.UID)
	assert.ErrorIs(t, err, errs.ErrForbidden)

	// The app owner can
	require.NoError(t, env.reviews.RemoveReview(context.Background(), owner, app.UID, review.UID))

	reviews, err := env.reviews.ListReviews(context.Background(), author, app.UID)
	require.NoError(t, err)
	assert.Empty(t, reviews)
}

func TestRemoveReview_MustBelongToNamedApp(t *testing.T) {
	env := newTestEnv(t)
	owner := newUser(models.RoleUser)
	appA := env.approvedApp(t, owner, "app-a")
	appB := env.approvedApp(t, owner, "app-b")

	review, err := env.reviews.AddReview(context.Background(), newUser(models.RoleUser), appA.UID,
		models.ReviewDraft{Text: "on app a"})
	require.NoError(t, err)

	err = env.reviews.RemoveReview(context.Background(), owner, appB.UID, review.UID)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	err = env.reviews.RemoveReview(context.Background(), owner, appA.UID, uuid.New())
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
