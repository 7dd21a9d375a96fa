package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/arklim/social-platform-revocation/internal/core/domain"
	"github.com/arklim/social-platform-revocation/internal/core/port"
)

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AuditLogRepository persists revocation audit entries in an append-only table.
type AuditLogRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAuditLogRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewAuditLogRepository(exec pgExecutor) *AuditLogRepository {
	return &AuditLogRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Append inserts a new audit entry.
func (r *AuditLogRepository) Append(ctx context.Context, entry domain.AuditEntry) error {
	metadata, err := marshalMetadata(entry.Metadata)
	if err != nil {
		return fmt.Errorf("prepare audit metadata: %w", err)
	}

	sql, args, err := r.builder.Insert("revocation.audit_log").
		Columns(
			"id",
			"user_id",
			"action",
			"reason",
			"metadata",
			"created_at",
		).
		Values(
			entry.ID,
			entry.UserID,
			entry.Action,
			string(entry.Reason),
			metadata,
			entry.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert audit entry sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListByUser returns the most recent audit entries for the supplied user.
func (r *AuditLogRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	sql, args, err := r.builder.Select(
		"id",
		"user_id",
		"action",
		"reason",
		"metadata",
		"created_at",
	).
		From("revocation.audit_log").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select audit entries sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var (
			entry    domain.AuditEntry
			reason   string
			metadata []byte
		)
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Action, &reason, &metadata, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.Reason = domain.Reason(reason)
		entry.Metadata, err = unmarshalMetadata(metadata)
		if err != nil {
			return nil, fmt.Errorf("decode audit metadata: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}

	return entries, nil
}

func marshalMetadata(meta map[string]any) ([]byte, error) {
	if meta == nil {
		return nil, nil
	}

	payload, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return payload, nil
}

func unmarshalMetadata(payload []byte) (map[string]any, error) {
	if len(payload) == 0 {
		return nil, nil
	}

	var meta map[string]any
	if err := json.Unmarshal(payload, &meta); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return meta, nil
}

var _ port.AuditLog = (*AuditLogRepository)(nil)
