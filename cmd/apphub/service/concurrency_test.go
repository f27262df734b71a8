package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhis2/dhis2-apptore/cmd/apphub/models"
)

// Concurrent sub-resource mutations against the same app must serialize, so
// every successful add lands in the aggregate exactly once.
func TestConcurrentMutations_SameAppSerialized(t *testing.T) {
	env := newTestEnv(t)
	owner := newUser(models.RoleUser)
	app := env.approvedApp(t, owner, "contended")
	reviewer := newUser(models.RoleUser)

	const n = 20
	var wg sync.WaitGroup
	wg.Add(2 * n)

	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			_, err := env.versions.AddVersion(context.Background(), owner, app.UID,
				testVersionDraft(fmt.Sprintf("1.0.%d", i)), []byte(fmt.Sprintf("v%d", i)), "application/zip")
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := env.reviews.AddReview(context.Background(), reviewer, app.UID,
				models.ReviewDraft{Text: fmt.Sprintf("review %d", i)})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := env.catalog.Get(context.Background(), nil, app.UID)
	require.NoError(t, err)
	assert.Len(t, got.Versions, n+1)
	assert.Len(t, got.Reviews, n)
}

// Mutations on distinct apps must not block each other; a delete racing adds
// on another app leaves that other app intact.
func TestConcurrentMutations_DistinctAppsIndependent(t *testing.T) {
	env := newTestEnv(t)
	owner := newUser(models.RoleUser)
	victim := env.approvedApp(t, owner, "deleted-under-load")
	survivor := env.approvedApp(t, owner, "untouched")

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		assert.NoError(t, env.catalog.Delete(context.Background(), owner, victim.UID))
	}()
	go func() {
		defer wg.Done()
		_, err := env.versions.AddVersion(context.Background(), owner, survivor.UID,
			testVersionDraft("2.0.0"), []byte("v2"), "application/zip")
		assert.NoError(t, err)
	}()
	wg.Wait()

	got, err := env.catalog.Get(context.Background(), nil, survivor.UID)
	require.NoError(t, err)
	assert.Len(t, got.Versions, 2)
}
