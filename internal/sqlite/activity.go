package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sonetyo/ledger/internal/domain/activity"
	"github.com/sonetyo/ledger/internal/domain/ledger"
)

// ActivityRepository implements activity.Repository for SQLite
type ActivityRepository struct {
	db *DB
}

// NewActivityRepository creates a new ActivityRepository
func NewActivityRepository(db *DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Log inserts a new activity entry. A second entry for the same event id
// fails with repository.ErrConflict.
func (r *ActivityRepository) Log(ctx context.Context, entry *activity.ActivityEntry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO activity_log (
			event_id, record_id, actor, counterparty,
			activity_type, summary, details, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	var counterparty sql.NullString
	if !entry.Counterparty.IsZero() {
		counterparty = sql.NullString{String: entry.Counterparty.String(), Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query,
		entry.EventID,
		entry.RecordID,
		entry.Actor,
		counterparty,
		entry.ActivityType,
		entry.Summary,
		entry.Details,
		createdAt.UnixNano(),
	)
	if err != nil {
		return mapConstraintError("log activity", err)
	}

	id, err := result.LastInsertId()
	if err == nil {
		entry.ID = id
	}

	entry.CreatedAt = createdAt

	return nil
}

// List returns activity entries matching the given filters, newest first
func (r *ActivityRepository) List(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	query := `
		SELECT
			id, event_id, record_id, actor, counterparty,
			activity_type, summary, details, created_at
		FROM activity_log
	`

	args := []any{}
	conditions := []string{}

	if opts.RecordID != nil {
		conditions = append(conditions, "record_id = ?")
		args = append(args, *opts.RecordID)
	}
	if opts.Actor != nil {
		conditions = append(conditions, "(actor = ? OR counterparty = ?)")
		args = append(args, *opts.Actor, *opts.Actor)
	}
	if len(opts.Types) > 0 {
		placeholders := make([]string, len(opts.Types))
		for i, typ := range opts.Types {
			placeholders[i] = "?"
			args = append(args, typ)
		}
		conditions = append(conditions, "activity_type IN ("+strings.Join(placeholders, ", ")+")")
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY created_at DESC, id DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	} else if opts.Offset > 0 {
		query += " LIMIT -1"
	}
	if opts.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, opts.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	entries := []activity.ActivityEntry{}
	for rows.Next() {
		var entry activity.ActivityEntry
		var counterparty sql.NullString
		var details sql.NullString
		var createdAt int64
		if err := rows.Scan(
			&entry.ID,
			&entry.EventID,
			&entry.RecordID,
			&entry.Actor,
			&counterparty,
			&entry.ActivityType,
			&entry.Summary,
			&details,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan activity entry: %w", err)
		}
		if counterparty.Valid {
			entry.Counterparty = ledger.Identity(counterparty.String)
		}
		entry.Details = details.String
		entry.CreatedAt = time.Unix(0, createdAt).UTC()
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity rows: %w", err)
	}

	return entries, nil
}
