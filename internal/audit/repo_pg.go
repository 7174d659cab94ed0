package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Record(ctx context.Context, e Event) (bool, error) {
	const query = `
INSERT INTO workflow_events (id, type, user_id, tender_id, evaluation_id, payload, occurred_at, recorded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO NOTHING`
	res, err := r.DB.ExecContext(ctx, query,
		e.ID,
		e.Type,
		e.UserID,
		nullableInt(e.TenderID),
		nullableString(e.EvaluationID),
		[]byte(e.Payload),
		e.OccurredAt,
		e.RecordedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *PGRepo) List(ctx context.Context, f Filter) ([]Event, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		args = append(args, f.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.TenderID != 0 {
		args = append(args, f.TenderID)
		where = append(where, fmt.Sprintf("tender_id = $%d", len(args)))
	}
	query := `
SELECT id, type, user_id, tender_id, evaluation_id, payload, occurred_at, recorded_at
FROM workflow_events`
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.limit())
	query += fmt.Sprintf("\nORDER BY occurred_at DESC\nLIMIT $%d", len(args))

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var tenderID sql.NullInt64
		var evaluationID sql.NullString
		var payload []byte
		if err := rows.Scan(&e.ID, &e.Type, &e.UserID, &tenderID, &evaluationID, &payload, &e.OccurredAt, &e.RecordedAt); err != nil {
			return nil, err
		}
		if tenderID.Valid {
			e.TenderID = tenderID.Int64
		}
		if evaluationID.Valid {
			e.EvaluationID = evaluationID.String
		}
		e.Payload = payload
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullableString(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}

func nullableInt(v int64) interface{} {
	if v == 0 {
		return nil
	}
	return v
}
