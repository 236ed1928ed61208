// Package sessioncleaner removes sessions that have outlived their cookie.
package sessioncleaner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/navikt/meraki-connect/pkg/service"
	"github.com/rs/zerolog"
)

var ErrNotLeader = errors.New("not leader")

type Leader interface {
	IsLeader(ctx context.Context) (bool, error)
}

type SessionCleaner struct {
	store  service.SessionStorage
	leader Leader
	log    zerolog.Logger
}

// New returns a cleaner for store. A nil leader runs on every replica,
// which is what a process local store needs.
func New(store service.SessionStorage, leader Leader, log zerolog.Logger) *SessionCleaner {
	return &SessionCleaner{
		store:  store,
		leader: leader,
		log:    log,
	}
}

// Run deletes expired sessions every frequency until ctx is done.
func (c *SessionCleaner) Run(ctx context.Context, startupDelay, frequency time.Duration) {
	c.log.Info().Dur("cleanup_frequency", frequency).Msg("starting session cleaner")

	select {
	case <-time.After(startupDelay):
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(frequency)
	defer ticker.Stop()

	c.runAndLog(ctx)

	for {
		select {
		case <-ticker.C:
			c.runAndLog(ctx)
		case <-ctx.Done():
			c.log.Info().Msg("stopping session cleaner")
			return
		}
	}
}

func (c *SessionCleaner) runAndLog(ctx context.Context) {
	n, err := c.RunOnce(ctx)
	if errors.Is(err, ErrNotLeader) {
		c.log.Debug().Msg("not leader, skipping session cleanup")
		return
	}

	if err != nil {
		c.log.Error().Err(err).Msg("cleaning up sessions")
		return
	}

	c.log.Debug().Int64("deleted", n).Msg("expired sessions deleted")
}

func (c *SessionCleaner) RunOnce(ctx context.Context) (int64, error) {
	if c.leader != nil {
		isLeader, err := c.leader.IsLeader(ctx)
		if err != nil {
			return 0, fmt.Errorf("checking leader: %w", err)
		}

		if !isLeader {
			return 0, ErrNotLeader
		}
	}

	n, err := c.store.DeleteExpiredSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}

	return n, nil
}
