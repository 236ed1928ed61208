package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/navikt/meraki-connect/pkg/database"
	"github.com/navikt/meraki-connect/pkg/errs"
	"github.com/navikt/meraki-connect/pkg/service"
)

var _ service.SessionStorage = &sessionStorage{}

type sessionStorage struct {
	queries database.Querier
}

func (s *sessionStorage) GetSession(ctx context.Context, id string) (*service.Session, error) {
	const op errs.Op = "sessionStorage.GetSession"

	raw, err := s.queries.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.E(errs.NotExist, op, errs.Parameter("session"), err)
		}

		return nil, errs.E(errs.Database, op, err)
	}

	return sessionFromSQL(raw), nil
}

func (s *sessionStorage) SaveSession(ctx context.Context, session *service.Session) error {
	const op errs.Op = "sessionStorage.SaveSession"

	err := s.queries.UpsertSession(ctx, database.UpsertSessionParams{
		ID:               session.ID,
		AuthorizationURL: session.AuthorizationURL,
		State:            session.State,
		Code:             session.Code,
		CodeVerified:     session.CodeVerified,
		AccessToken:      session.AccessToken,
		RefreshToken:     session.RefreshToken,
		TokenExpiry: sql.NullTime{
			Time:  session.TokenExpiry,
			Valid: !session.TokenExpiry.IsZero(),
		},
		Created: session.Created,
		Expires: session.Expires,
	})
	if err != nil {
		return errs.E(errs.Database, op, err)
	}

	return nil
}

func (s *sessionStorage) DeleteSession(ctx context.Context, id string) error {
	const op errs.Op = "sessionStorage.DeleteSession"

	err := s.queries.DeleteSession(ctx, id)
	if err != nil {
		return errs.E(errs.Database, op, err)
	}

	return nil
}

func (s *sessionStorage) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	const op errs.Op = "sessionStorage.DeleteExpiredSessions"

	n, err := s.queries.DeleteExpiredSessions(ctx, time.Now().UTC())
	if err != nil {
		return 0, errs.E(errs.Database, op, err)
	}

	return n, nil
}

func sessionFromSQL(raw database.Session) *service.Session {
	var expiry time.Time
	if raw.TokenExpiry.Valid {
		expiry = raw.TokenExpiry.Time.UTC()
	}

	return &service.Session{
		ID:               raw.ID,
		AuthorizationURL: raw.AuthorizationURL,
		State:            raw.State,
		Code:             raw.Code,
		CodeVerified:     raw.CodeVerified,
		AccessToken:      raw.AccessToken,
		RefreshToken:     raw.RefreshToken,
		TokenExpiry:      expiry,
		Created:          raw.Created.UTC(),
		Expires:          raw.Expires.UTC(),
	}
}

func NewSessionStorage(queries database.Querier) *sessionStorage {
	return &sessionStorage{
		queries: queries,
	}
}
