package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authcore"
)

func TestAuditAppendQueryAndReview(t *testing.T) {
	ctx := context.Background()
	a := NewAudit()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	events := []authcore.AuditEvent{
		{ID: "e1", UserID: "u1", Action: "login_success", Severity: "medium", CreatedAt: base},
		{ID: "e2", UserID: "u1", Action: "login_failed", Severity: "critical", Flagged: true, CreatedAt: base.Add(time.Minute)},
		{ID: "e3", UserID: "u2", Action: "register", Severity: "low", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, ev := range events {
		require.NoError(t, a.Append(ctx, ev))
	}
	assert.ErrorIs(t, a.Append(ctx, events[0]), authcore.ErrConflict)
	assert.ErrorIs(t, a.Append(ctx, authcore.AuditEvent{Action: "x"}), authcore.ErrValidation)

	got, err := a.Query(ctx, authcore.AuditQuery{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "e2", got[0].ID)

	got, err = a.Query(ctx, authcore.AuditQuery{FlaggedOnly: true})
	require.NoError(t, err)
	require.Len(t, got, 1)

	got, err = a.Query(ctx, authcore.AuditQuery{Since: base.Add(30 * time.Second), Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "e3", got[0].ID)

	require.NoError(t, a.ClearFlag(ctx, "e2"))
	got, err = a.Query(ctx, authcore.AuditQuery{FlaggedOnly: true})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.ErrorIs(t, a.ClearFlag(ctx, "missing"), authcore.ErrAuditEventNotFound)
	assert.Equal(t, 3, a.Len())
}
