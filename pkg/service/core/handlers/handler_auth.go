package handlers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/navikt/meraki-connect/pkg/auth"
	"github.com/navikt/meraki-connect/pkg/errs"
	"github.com/navikt/meraki-connect/pkg/service"
	"github.com/navikt/meraki-connect/pkg/service/core/transport"
	"github.com/navikt/meraki-connect/pkg/web"
	"github.com/rs/zerolog"
)

const PathAfterRefresh = "/organizations"

type CallbackRequest struct {
	Code  string
	State string
}

// CallbackRequestFromQuery never fails, a missing code is reported by the
// auth service so the session is cleared first.
func CallbackRequestFromQuery(q url.Values) (CallbackRequest, error) {
	return CallbackRequest{
		Code:  q.Get("code"),
		State: q.Get("state"),
	}, nil
}

type authHandler struct {
	authService    service.AuthService
	sessionStorage service.SessionStorage
	log            zerolog.Logger
}

func (h *authHandler) Index(_ context.Context, _ *http.Request, _ any) (*web.Page, error) {
	return web.NewIndexPage(), nil
}

func (h *authHandler) AuthURL(ctx context.Context, _ *http.Request, _ any) (*web.Page, error) {
	const op errs.Op = "authHandler.AuthURL"

	session, err := sessionFromContext(ctx, op)
	if err != nil {
		return nil, err
	}

	authURL, err := h.authService.BuildAuthorizationURL(ctx, session)
	if err != nil {
		return nil, errs.E(op, err)
	}

	err = h.sessionStorage.SaveSession(ctx, session)
	if err != nil {
		return nil, errs.E(op, err)
	}

	return web.NewAuthURLPage(authURL), nil
}

func (h *authHandler) Connect(ctx context.Context, r *http.Request, _ any) (*transport.Redirect, error) {
	const op errs.Op = "authHandler.Connect"

	session, err := sessionFromContext(ctx, op)
	if err != nil {
		return nil, err
	}

	authURL, err := h.authService.ConnectURL(ctx, session)
	if err != nil {
		return nil, errs.E(op, err)
	}

	err = h.sessionStorage.SaveSession(ctx, session)
	if err != nil {
		return nil, errs.E(op, err)
	}

	h.log.Debug().Str("session", session.ID).Str("authorization_url", authURL).Msg("redirecting to authorization server")

	return transport.NewRedirect(authURL, r), nil
}

func (h *authHandler) Callback(ctx context.Context, _ *http.Request, in CallbackRequest) (*web.Page, error) {
	const op errs.Op = "authHandler.Callback"

	session, err := sessionFromContext(ctx, op)
	if err != nil {
		return nil, err
	}

	callbackErr := h.authService.HandleCallback(ctx, session, in.Code, in.State)

	// A callback without a code clears the stored code, so persist either way
	err = h.sessionStorage.SaveSession(ctx, session)
	if err != nil {
		return nil, errs.E(op, err)
	}

	if callbackErr != nil {
		return nil, errs.E(op, callbackErr)
	}

	return web.NewAuthCodePage(session.Code), nil
}

func (h *authHandler) GenerateAccessToken(ctx context.Context, _ *http.Request, _ any) (*web.Page, error) {
	const op errs.Op = "authHandler.GenerateAccessToken"

	session, err := sessionFromContext(ctx, op)
	if err != nil {
		return nil, err
	}

	_, err = h.authService.ExchangeCode(ctx, session)
	if err != nil {
		return nil, errs.E(op, err)
	}

	err = h.sessionStorage.SaveSession(ctx, session)
	if err != nil {
		return nil, errs.E(op, err)
	}

	return web.NewTokensPage(session), nil
}

func (h *authHandler) Refresh(ctx context.Context, r *http.Request, _ any) (*transport.Redirect, error) {
	const op errs.Op = "authHandler.Refresh"

	session, err := sessionFromContext(ctx, op)
	if err != nil {
		return nil, err
	}

	_, err = h.authService.RefreshTokens(ctx, session)
	if err != nil {
		return nil, errs.E(op, err)
	}

	err = h.sessionStorage.SaveSession(ctx, session)
	if err != nil {
		return nil, errs.E(op, err)
	}

	return transport.NewRedirect(PathAfterRefresh, r), nil
}

func sessionFromContext(ctx context.Context, op errs.Op) (*service.Session, error) {
	session := auth.GetSession(ctx)
	if session == nil {
		return nil, errs.E(errs.Internal, op, errs.Str("no session in request context"))
	}

	return session, nil
}

func NewAuthHandler(authService service.AuthService, sessionStorage service.SessionStorage, log zerolog.Logger) *authHandler {
	return &authHandler{
		authService:    authService,
		sessionStorage: sessionStorage,
		log:            log,
	}
}
