package mock

import (
	"context"
	"time"

	"github.com/navikt/meraki-connect/pkg/database"
	"github.com/stretchr/testify/mock"
)

var _ database.Querier = &SessionQueriesMock{}

type SessionQueriesMock struct {
	mock.Mock
}

func (m *SessionQueriesMock) GetSession(ctx context.Context, id string) (database.Session, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(database.Session), args.Error(1)
}

func (m *SessionQueriesMock) UpsertSession(ctx context.Context, arg database.UpsertSessionParams) error {
	args := m.Called(ctx, arg)
	return args.Error(0)
}

func (m *SessionQueriesMock) DeleteSession(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *SessionQueriesMock) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}
