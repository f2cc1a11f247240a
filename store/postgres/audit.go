package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrEthical07/authcore"
)

// Audit is a PostgreSQL authcore.AuditStore. Rows are never updated except
// for the flagged column.
type Audit struct {
	pool *pgxpool.Pool
}

// NewAudit returns a store over pool.
func NewAudit(pool *pgxpool.Pool) *Audit {
	return &Audit{pool: pool}
}

const auditColumns = `id, user_id, session_id, action, category, severity, risk_score,
	flagged, ip, user_agent, status_code, success, reason, metadata, created_at`

func (a *Audit) Append(ctx context.Context, ev authcore.AuditEvent) error {
	if ev.ID == "" || ev.Action == "" {
		return authcore.ErrValidation
	}
	var metadata []byte
	if len(ev.Metadata) > 0 {
		var err error
		if metadata, err = json.Marshal(ev.Metadata); err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
	}
	_, err := a.pool.Exec(ctx, `
		INSERT INTO audit_events (`+auditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		ev.ID, ev.UserID, ev.SessionID, ev.Action, ev.Category, ev.Severity, ev.RiskScore,
		ev.Flagged, ev.IP, ev.UserAgent, ev.StatusCode, ev.Success, ev.Reason, metadata, ev.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return authcore.ErrConflict
		}
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (a *Audit) ClearFlag(ctx context.Context, eventID string) error {
	tag, err := a.pool.Exec(ctx, `UPDATE audit_events SET flagged = FALSE WHERE id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("clear audit flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authcore.ErrAuditEventNotFound
	}
	return nil
}

// Query returns matching events newest first.
func (a *Audit) Query(ctx context.Context, q authcore.AuditQuery) ([]authcore.AuditEvent, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if q.UserID != "" {
		add("user_id = $%d", q.UserID)
	}
	if q.FlaggedOnly {
		where = append(where, "flagged")
	}
	if q.Severity != "" {
		add("severity = $%d", q.Severity)
	}
	if !q.Since.IsZero() {
		add("created_at >= $%d", q.Since.UTC())
	}

	query := `SELECT ` + auditColumns + ` FROM audit_events`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := a.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var out []authcore.AuditEvent
	for rows.Next() {
		var (
			ev       authcore.AuditEvent
			metadata []byte
		)
		if err := rows.Scan(
			&ev.ID, &ev.UserID, &ev.SessionID, &ev.Action, &ev.Category, &ev.Severity, &ev.RiskScore,
			&ev.Flagged, &ev.IP, &ev.UserAgent, &ev.StatusCode, &ev.Success, &ev.Reason, &metadata, &ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &ev.Metadata); err != nil {
				return nil, fmt.Errorf("decode audit metadata %s: %w", ev.ID, err)
			}
		}
		ev.CreatedAt = ev.CreatedAt.UTC()
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	return out, nil
}

var _ authcore.AuditStore = (*Audit)(nil)
