package database

import (
	"context"
	"database/sql"
	"time"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

type Querier interface {
	GetSession(ctx context.Context, id string) (Session, error)
	UpsertSession(ctx context.Context, arg UpsertSessionParams) error
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type Session struct {
	ID               string
	AuthorizationURL string
	State            string
	Code             string
	CodeVerified     bool
	AccessToken      string
	RefreshToken     string
	TokenExpiry      sql.NullTime
	Created          time.Time
	Expires          time.Time
}

type UpsertSessionParams Session

type Queries struct {
	db DBTX
}

var _ Querier = &Queries{}

func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

const getSession = `SELECT id, authorization_url, state, code, code_verified, access_token, refresh_token, token_expiry, created, expires
FROM sessions
WHERE id = $1 AND expires > NOW()`

// GetSession returns sql.ErrNoRows for unknown and expired sessions.
func (q *Queries) GetSession(ctx context.Context, id string) (Session, error) {
	var s Session

	err := q.db.QueryRowContext(ctx, getSession, id).Scan(
		&s.ID,
		&s.AuthorizationURL,
		&s.State,
		&s.Code,
		&s.CodeVerified,
		&s.AccessToken,
		&s.RefreshToken,
		&s.TokenExpiry,
		&s.Created,
		&s.Expires,
	)

	return s, err
}

const upsertSession = `INSERT INTO sessions (id, authorization_url, state, code, code_verified, access_token, refresh_token, token_expiry, created, expires)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET
    authorization_url = EXCLUDED.authorization_url,
    state = EXCLUDED.state,
    code = EXCLUDED.code,
    code_verified = EXCLUDED.code_verified,
    access_token = EXCLUDED.access_token,
    refresh_token = EXCLUDED.refresh_token,
    token_expiry = EXCLUDED.token_expiry,
    expires = EXCLUDED.expires`

func (q *Queries) UpsertSession(ctx context.Context, arg UpsertSessionParams) error {
	_, err := q.db.ExecContext(ctx, upsertSession,
		arg.ID,
		arg.AuthorizationURL,
		arg.State,
		arg.Code,
		arg.CodeVerified,
		arg.AccessToken,
		arg.RefreshToken,
		arg.TokenExpiry,
		arg.Created,
		arg.Expires,
	)

	return err
}

const deleteSession = `DELETE FROM sessions WHERE id = $1`

func (q *Queries) DeleteSession(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, deleteSession, id)

	return err
}

const deleteExpiredSessions = `DELETE FROM sessions WHERE expires <= $1`

func (q *Queries) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteExpiredSessions, now)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
