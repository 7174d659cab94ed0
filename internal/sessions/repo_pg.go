package sessions

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Create(ctx context.Context, s Session) error {
	const query = `
INSERT INTO sessions (id, user_id, role, backend_token, created_at, expires_at, last_seen_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.DB.ExecContext(ctx, query,
		s.ID,
		s.UserID,
		nullableString(s.Role),
		s.Token,
		s.CreatedAt,
		s.ExpiresAt,
		s.LastSeenAt,
	)
	return err
}

func (r *PGRepo) Get(ctx context.Context, id string) (Session, error) {
	const query = `
SELECT id, user_id, role, backend_token, created_at, expires_at, last_seen_at
FROM sessions
WHERE id = $1
LIMIT 1`
	var s Session
	var role sql.NullString
	var lastSeen sql.NullTime
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&s.ID,
		&s.UserID,
		&role,
		&s.Token,
		&s.CreatedAt,
		&s.ExpiresAt,
		&lastSeen,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	if role.Valid {
		s.Role = role.String
	}
	if lastSeen.Valid {
		s.LastSeenAt = lastSeen.Time
	} else {
		s.LastSeenAt = s.CreatedAt
	}
	return s, nil
}

func (r *PGRepo) Touch(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE sessions SET last_seen_at = $2 WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, id, at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) Delete(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (r *PGRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullableString(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}
