package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dhis2/dhis2-apptore/cmd/apphub/models"
	"github.com/dhis2/dhis2-apptore/cmd/apphub/security"
	"github.com/dhis2/dhis2-apptore/common/errs"
	"github.com/dhis2/dhis2-apptore/common/queue"
)

// ApprovalWorkflow owns status transitions. It shares the catalog's
// repository and per-app locks so an approval and a delete on the same app
// never interleave.
type ApprovalWorkflow struct {
	catalog *AppCatalog
}

// NewApprovalWorkflow creates the workflow bound to a catalog
func NewApprovalWorkflow(catalog *AppCatalog) *ApprovalWorkflow {
	return &ApprovalWorkflow{catalog: catalog}
}

// SetApproval moves the app to the given status. Manager only. The status is
// overwritten unconditionally, so a curator can re-decide in either
// direction, and repeating the current status is a harmless no-op.
func (w *ApprovalWorkflow) SetApproval(ctx context.Context, principal *models.User, appUID uuid.UUID, rawStatus string) (*models.App, error) {
	status, err := models.ParseAppStatus(rawStatus)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidArgument, err)
	}

	c := w.catalog

	c.locks.lock(appUID)
	defer c.locks.unlock(appUID)

	app, err := c.repo.Get(ctx, appUID)
	if err != nil {
		return nil, err
	}

	if decision := security.Decide(principal, app, security.ApproveAsManager); !decision.Allowed {
		return nil, errs.Forbidden(decision.AppUID)
	}

	previous := app.Status
	if err := c.repo.SetStatus(ctx, appUID, status); err != nil {
		return nil, err
	}
	app.Status = status
	app.UpdatedAt = time.Now()

	c.log.Info("app approval decided",
		"app_id", appUID,
		"manager", principal.UID,
		"from", previous,
		"to", status)

	c.invalidateListing(ctx)
	c.publish(ctx, queue.TopicAppApproval, app, principal, string(status))

	return app, nil
}
