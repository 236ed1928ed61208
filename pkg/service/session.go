package service

import (
	"context"
	"time"
)

// SessionStorage persists sessions between requests. GetSession returns an
// errs.NotExist error when no live session has the given id.
type SessionStorage interface {
	GetSession(ctx context.Context, id string) (*Session, error)
	SaveSession(ctx context.Context, session *Session) error
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// Session holds the OAuth flow state of one browser session.
type Session struct {
	ID string `json:"id"`

	AuthorizationURL string `json:"authorization_url"`
	// State is the pending state of the last authorization URL, cleared
	// once a callback has been verified against it
	State string `json:"state"`

	Code string `json:"code"`
	// CodeVerified is set when the code arrived with the state we issued
	CodeVerified bool `json:"code_verified"`

	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenExpiry  time.Time `json:"token_expiry"`

	Created time.Time `json:"created"`
	Expires time.Time `json:"expires"`
}

func NewSession(id string, now time.Time, lifetime time.Duration) *Session {
	return &Session{
		ID:      id,
		Created: now.UTC(),
		Expires: now.UTC().Add(lifetime),
	}
}

// SetTokens replaces the token triple in one step, so the three values always
// come from the same token response.
func (s *Session) SetTokens(pair *TokenPair) {
	s.AccessToken = pair.AccessToken
	s.RefreshToken = pair.RefreshToken
	s.TokenExpiry = pair.Expiry.UTC()
}

func (s *Session) HasAccessToken() bool {
	return s.AccessToken != ""
}

func (s *Session) HasRefreshToken() bool {
	return s.RefreshToken != ""
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.Expires)
}
