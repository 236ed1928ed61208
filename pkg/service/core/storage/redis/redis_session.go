package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/navikt/meraki-connect/pkg/errs"
	"github.com/navikt/meraki-connect/pkg/service"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "meraki-connect:session:"

var _ service.SessionStorage = &sessionStorage{}

// sessionStorage keeps each session as a JSON value that redis expires
// together with the session.
type sessionStorage struct {
	client *redis.Client
	now    func() time.Time
}

func (s *sessionStorage) GetSession(ctx context.Context, id string) (*service.Session, error) {
	const op errs.Op = "redisSessionStorage.GetSession"

	val, err := s.client.Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errs.E(errs.NotExist, op, errs.Parameter("session"), errs.Str("session not found"))
		}

		return nil, errs.E(errs.Database, op, err)
	}

	session := &service.Session{}

	err = json.Unmarshal(val, session)
	if err != nil {
		return nil, errs.E(errs.Internal, op, fmt.Errorf("decoding session: %w", err))
	}

	return session, nil
}

func (s *sessionStorage) SaveSession(ctx context.Context, session *service.Session) error {
	const op errs.Op = "redisSessionStorage.SaveSession"

	ttl := session.Expires.Sub(s.now())
	if ttl <= 0 {
		return s.DeleteSession(ctx, session.ID)
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return errs.E(errs.Internal, op, fmt.Errorf("encoding session: %w", err))
	}

	err = s.client.Set(ctx, key(session.ID), payload, ttl).Err()
	if err != nil {
		return errs.E(errs.Database, op, err)
	}

	return nil
}

func (s *sessionStorage) DeleteSession(ctx context.Context, id string) error {
	const op errs.Op = "redisSessionStorage.DeleteSession"

	err := s.client.Del(ctx, key(id)).Err()
	if err != nil {
		return errs.E(errs.Database, op, err)
	}

	return nil
}

// DeleteExpiredSessions is a no-op, redis expires the keys itself.
func (s *sessionStorage) DeleteExpiredSessions(_ context.Context) (int64, error) {
	return 0, nil
}

func key(id string) string {
	return keyPrefix + id
}

// NewClient parses a redis:// or rediss:// url and checks the connection.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)

	err = client.Ping(ctx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return client, nil
}

func NewSessionStorage(client *redis.Client, now func() time.Time) *sessionStorage {
	if now == nil {
		now = time.Now
	}

	return &sessionStorage{
		client: client,
		now:    now,
	}
}
