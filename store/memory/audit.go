package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/MrEthical07/authcore"
)

// Audit is an append-only in-memory authcore.AuditStore.
type Audit struct {
	mu     sync.RWMutex
	events []authcore.AuditEvent
	index  map[string]int
}

// NewAudit returns an empty audit log.
func NewAudit() *Audit {
	return &Audit{index: make(map[string]int)}
}

func (a *Audit) Append(_ context.Context, event authcore.AuditEvent) error {
	if event.ID == "" || event.Action == "" {
		return authcore.ErrValidation
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, dup := a.index[event.ID]; dup {
		return authcore.ErrConflict
	}
	a.index[event.ID] = len(a.events)
	a.events = append(a.events, event.Clone())
	return nil
}

func (a *Audit) ClearFlag(_ context.Context, eventID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	i, ok := a.index[eventID]
	if !ok {
		return authcore.ErrAuditEventNotFound
	}
	a.events[i].Flagged = false
	return nil
}

// Query returns matching events newest first.
func (a *Audit) Query(_ context.Context, q authcore.AuditQuery) ([]authcore.AuditEvent, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []authcore.AuditEvent
	for i := len(a.events) - 1; i >= 0; i-- {
		ev := a.events[i]
		if q.UserID != "" && ev.UserID != q.UserID {
			continue
		}
		if q.FlaggedOnly && !ev.Flagged {
			continue
		}
		if q.Severity != "" && ev.Severity != q.Severity {
			continue
		}
		if !q.Since.IsZero() && ev.CreatedAt.Before(q.Since) {
			continue
		}
		out = append(out, ev.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Len returns the number of stored events.
func (a *Audit) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.events)
}

var _ authcore.AuditStore = (*Audit)(nil)
