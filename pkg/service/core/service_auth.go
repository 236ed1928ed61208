package core

import (
	"context"
	"fmt"
	"time"

	"github.com/navikt/meraki-connect/pkg/errs"
	"github.com/navikt/meraki-connect/pkg/service"
	"github.com/rs/zerolog"
)

const (
	StatePrefix     = "time"
	StateTimeLayout = "20060102T150405"

	DefaultTokenLifetime = 60 * time.Minute
)

var _ service.AuthService = &authService{}

type authService struct {
	oauthAPI         service.OAuthAPI
	fallbackLifetime time.Duration
	now              func() time.Time
	log              zerolog.Logger
}

// NewState returns the state for an authorization URL built at t, formatted
// in local time.
func NewState(t time.Time) string {
	return StatePrefix + t.Local().Format(StateTimeLayout)
}

func (s *authService) BuildAuthorizationURL(_ context.Context, session *service.Session) (string, error) {
	state := NewState(s.now())
	authURL := s.oauthAPI.AuthCodeURL(state)

	session.AuthorizationURL = authURL
	session.State = state

	return authURL, nil
}

func (s *authService) ConnectURL(ctx context.Context, session *service.Session) (string, error) {
	const op errs.Op = "authService.ConnectURL"

	if session.AuthorizationURL != "" {
		return session.AuthorizationURL, nil
	}

	authURL, err := s.BuildAuthorizationURL(ctx, session)
	if err != nil {
		return "", errs.E(op, err)
	}

	return authURL, nil
}

// HandleCallback stores the authorization code. When an authorization URL has
// been built for the session the state must match it, and the code is marked
// as verified.
func (s *authService) HandleCallback(_ context.Context, session *service.Session, code, state string) error {
	const op errs.Op = "authService.HandleCallback"

	if code == "" {
		session.Code = ""
		session.CodeVerified = false

		return errs.E(errs.InvalidRequest, op, errs.Parameter("code"), "Error: No code provided")
	}

	if session.State != "" && state != session.State {
		s.log.Warn().Str("session", session.ID).Msg("callback state does not match the pending state")

		return errs.E(errs.InvalidRequest, op, errs.Parameter("state"), "Error: invalid state")
	}

	session.Code = code
	session.CodeVerified = session.State != ""
	session.State = ""

	return nil
}

func (s *authService) ExchangeCode(ctx context.Context, session *service.Session) (*service.TokenPair, error) {
	const op errs.Op = "authService.ExchangeCode"

	if session.Code == "" {
		return nil, errs.E(errs.InvalidRequest, op, errs.Parameter("code"), "Error: No code provided")
	}

	if !session.CodeVerified {
		return nil, errs.E(errs.InvalidRequest, op, errs.Parameter("code"), "Error: authorization code was not issued for this session")
	}

	pair, err := s.oauthAPI.Exchange(ctx, session.Code)
	if err != nil {
		return nil, errs.E(op, fmt.Sprintf("Error obtaining token: %v", err), err)
	}

	pair.Expiry = s.expiry(pair)
	session.SetTokens(pair)

	return pair, nil
}

func (s *authService) RefreshTokens(ctx context.Context, session *service.Session) (*service.TokenPair, error) {
	const op errs.Op = "authService.RefreshTokens"

	if !session.HasRefreshToken() {
		return nil, errs.E(errs.InvalidRequest, op, "No refresh token available")
	}

	pair, err := s.oauthAPI.Refresh(ctx, session.RefreshToken)
	if err != nil {
		return nil, errs.E(op, fmt.Sprintf("Error refreshing token: %v", err), err)
	}

	pair.Expiry = s.expiry(pair)
	session.SetTokens(pair)

	return pair, nil
}

// expiry is always in UTC, falling back to a fixed lifetime when the token
// response had no expires_in.
func (s *authService) expiry(pair *service.TokenPair) time.Time {
	if pair.Expiry.IsZero() {
		return s.now().UTC().Add(s.fallbackLifetime)
	}

	return pair.Expiry.UTC()
}

func NewAuthService(oauthAPI service.OAuthAPI, fallbackLifetime time.Duration, now func() time.Time, log zerolog.Logger) *authService {
	if fallbackLifetime <= 0 {
		fallbackLifetime = DefaultTokenLifetime
	}

	if now == nil {
		now = time.Now
	}

	return &authService{
		oauthAPI:         oauthAPI,
		fallbackLifetime: fallbackLifetime,
		now:              now,
		log:              log,
	}
}
