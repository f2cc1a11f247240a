package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/risk"
)

// auditRecord is what a flow knows about an outcome. The emitter adds client
// context, risk assessment and identifiers.
type auditRecord struct {
	action    risk.Action
	userID    string
	sessionID string
	err       error
	// status overrides the status derived from err, for non-error outcomes
	// such as a pending two-factor challenge.
	status int
	// reason is the precise internal cause. It may be more specific than the
	// error returned to the caller.
	reason   string
	metadata map[string]string
}

// audit scores the outcome, appends it to the audit store and fans it out to
// the dispatcher. It never fails the calling flow.
func (e *Engine) audit(ctx context.Context, rec auditRecord) {
	ip := clientIPFromContext(ctx)
	ua := userAgentFromContext(ctx)

	status := rec.status
	if status == 0 {
		status = StatusFor(KindOf(rec.err))
	}

	md := rec.metadata
	unusual := false
	if geo := e.lookupGeo(ctx, ip, rec.userID); geo != nil {
		unusual = geo.UnusualLocation
		if geo.Country != "" {
			if md == nil {
				md = map[string]string{}
			}
			md["country"] = geo.Country
		}
	}

	assessment := risk.Score(risk.Input{
		Action:          rec.action,
		StatusCode:      status,
		UnusualLocation: unusual,
		UserAgent:       ua,
	})

	reason := rec.reason
	if reason == "" && rec.err != nil {
		reason = strings.ToLower(string(KindOf(rec.err)))
	}

	event := AuditEvent{
		ID:         internal.NewID(),
		UserID:     rec.userID,
		SessionID:  rec.sessionID,
		Action:     string(rec.action),
		Category:   string(assessment.Category),
		Severity:   string(assessment.Severity),
		RiskScore:  assessment.Score,
		Flagged:    assessment.Flagged,
		IP:         ip,
		UserAgent:  ua,
		StatusCode: status,
		Success:    rec.err == nil,
		Reason:     reason,
		Metadata:   md,
		CreatedAt:  e.now().UTC(),
	}

	if e.auditStore != nil {
		actx, cancel := e.depCtx(ctx)
		err := e.auditStore.Append(actx, event)
		cancel()
		if err != nil {
			e.metrics.Inc(MetricAuditWriteFailed)
			e.warn("audit append", err, "action", event.Action, "user_id", event.UserID)
		}
	}
	if event.Flagged {
		e.metrics.Inc(MetricAuditFlagged)
	}
	e.dispatcher.Emit(ctx, event)
}

func (e *Engine) lookupGeo(ctx context.Context, ip, userID string) *GeoContext {
	if e.geo == nil || ip == "" {
		return nil
	}
	ctx, cancel := e.depCtx(ctx)
	defer cancel()
	geo, err := e.geo.Lookup(ctx, ip, userID)
	if err != nil {
		e.warn("geo lookup", err, "user_id", userID)
		return nil
	}
	return geo
}

// ReviewAuditEvent clears the flag of a reviewed event. It is the only
// mutation the audit log permits.
func (e *Engine) ReviewAuditEvent(ctx context.Context, eventID string) (err error) {
	ctx, span := e.startSpan(ctx, "ReviewAuditEvent")
	defer endSpan(span, &err)

	if err := e.ready(); err != nil {
		return err
	}
	if e.auditStore == nil {
		return fmt.Errorf("%w: no audit store configured", ErrDependencyUnavailable)
	}
	if strings.TrimSpace(eventID) == "" {
		return fmt.Errorf("%w: event id required", ErrValidation)
	}

	sctx, cancel := e.depCtx(ctx)
	err = e.auditStore.ClearFlag(sctx, eventID)
	cancel()
	if err != nil {
		if errors.Is(err, ErrAuditEventNotFound) {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return dependencyError(err)
	}

	e.audit(ctx, auditRecord{
		action:   risk.ActionAuditReviewed,
		metadata: map[string]string{"event_id": eventID},
	})
	return nil
}

// QueryAuditEvents reads the durable audit log.
func (e *Engine) QueryAuditEvents(ctx context.Context, q AuditQuery) ([]AuditEvent, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.auditStore == nil {
		return nil, fmt.Errorf("%w: no audit store configured", ErrDependencyUnavailable)
	}
	ctx, cancel := e.depCtx(ctx)
	defer cancel()
	events, err := e.auditStore.Query(ctx, q)
	if err != nil {
		return nil, dependencyError(err)
	}
	return events, nil
}
