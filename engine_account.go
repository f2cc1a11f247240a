package authcore

import (
	"context"
	"strconv"

	"github.com/MrEthical07/authcore/risk"
	"github.com/MrEthical07/authcore/session"
)

// DeactivateAccount disables login for userID and revokes all of its
// sessions. Deactivating an inactive account is a no-op.
func (e *Engine) DeactivateAccount(ctx context.Context, userID string) (err error) {
	ctx, span := e.startSpan(ctx, "DeactivateAccount")
	defer endSpan(span, &err)

	if err := e.ready(); err != nil {
		return err
	}
	if err := requireNonEmpty("user id", userID); err != nil {
		return err
	}
	user, err := e.getUser(ctx, userID)
	if err != nil {
		return userError(err)
	}
	if !user.Active {
		return nil
	}

	dctx, cancel := e.depCtx(ctx)
	err = e.users.Deactivate(dctx, userID)
	cancel()
	if err != nil {
		return dependencyError(err)
	}
	n, err := e.revokeAllSessions(ctx, userID, "", session.ReasonAccountDeactivated)
	if err != nil {
		return err
	}

	e.metrics.Inc(MetricAccountDeactivated)
	e.audit(ctx, auditRecord{
		action:   risk.ActionAccountDeactivated,
		userID:   userID,
		metadata: map[string]string{"revoked": strconv.Itoa(n)},
	})
	return nil
}

// DeleteAccount soft-deletes userID: the record is anonymized and
// deactivated, its credentials and provider links are cleared and every
// session is revoked. Audit events keep the user id.
func (e *Engine) DeleteAccount(ctx context.Context, userID string) (err error) {
	ctx, span := e.startSpan(ctx, "DeleteAccount")
	defer endSpan(span, &err)

	if err := e.ready(); err != nil {
		return err
	}
	if err := requireNonEmpty("user id", userID); err != nil {
		return err
	}
	user, err := e.getUser(ctx, userID)
	if err != nil {
		return userError(err)
	}
	if user.Deleted() {
		return nil
	}

	actx, cancel := e.depCtx(ctx)
	err = e.users.Anonymize(actx, userID, e.now())
	cancel()
	if err != nil {
		return dependencyError(err)
	}
	n, err := e.revokeAllSessions(ctx, userID, "", session.ReasonAccountDeactivated)
	if err != nil {
		return err
	}

	e.metrics.Inc(MetricAccountDeleted)
	e.audit(ctx, auditRecord{
		action:   risk.ActionAccountDeleted,
		userID:   userID,
		metadata: map[string]string{"revoked": strconv.Itoa(n)},
	})
	return nil
}
