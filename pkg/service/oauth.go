package service

import (
	"context"
	"time"
)

// OAuthAPI talks to the vendor authorization server.
type OAuthAPI interface {
	// AuthCodeURL returns the consent URL carrying the given state
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
}

type AuthService interface {
	BuildAuthorizationURL(ctx context.Context, session *Session) (string, error)
	ConnectURL(ctx context.Context, session *Session) (string, error)
	HandleCallback(ctx context.Context, session *Session, code, state string) error
	ExchangeCode(ctx context.Context, session *Session) (*TokenPair, error)
	RefreshTokens(ctx context.Context, session *Session) (*TokenPair, error)
}

// TokenPair is the result of a token request. Expiry is zero when the vendor
// did not say when the access token expires.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
}
