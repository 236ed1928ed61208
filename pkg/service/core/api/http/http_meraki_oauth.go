package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/navikt/meraki-connect/pkg/errs"
	"github.com/navikt/meraki-connect/pkg/service"
	"golang.org/x/oauth2"
)

var _ service.OAuthAPI = &merakiOAuthAPI{}

type merakiOAuthAPI struct {
	config *oauth2.Config
	client *http.Client
}

func (a *merakiOAuthAPI) AuthCodeURL(state string) string {
	return a.config.AuthCodeURL(state)
}

func (a *merakiOAuthAPI) Exchange(ctx context.Context, code string) (*service.TokenPair, error) {
	const op errs.Op = "merakiOAuthAPI.Exchange"

	token, err := a.config.Exchange(
		a.withClient(ctx),
		code,
		oauth2.SetAuthURLParam("scope", strings.Join(a.config.Scopes, " ")),
	)
	if err != nil {
		return nil, errs.E(errs.IO, op, err)
	}

	if token.RefreshToken == "" {
		return nil, errs.E(errs.IO, op, errs.Str("server response missing refresh_token"))
	}

	return toTokenPair(token), nil
}

// Refresh keeps the current refresh token when the server does not rotate it.
func (a *merakiOAuthAPI) Refresh(ctx context.Context, refreshToken string) (*service.TokenPair, error) {
	const op errs.Op = "merakiOAuthAPI.Refresh"

	token, err := a.config.TokenSource(a.withClient(ctx), &oauth2.Token{
		RefreshToken: refreshToken,
	}).Token()
	if err != nil {
		return nil, errs.E(errs.IO, op, err)
	}

	return toTokenPair(token), nil
}

func (a *merakiOAuthAPI) withClient(ctx context.Context) context.Context {
	if a.client == nil {
		return ctx
	}

	return context.WithValue(ctx, oauth2.HTTPClient, a.client)
}

func toTokenPair(token *oauth2.Token) *service.TokenPair {
	return &service.TokenPair{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}
}

// NewMerakiOAuthAPI authenticates against the token endpoint with HTTP Basic.
func NewMerakiOAuthAPI(clientID, clientSecret, redirectURL, authURL, tokenURL string, scopes []string, client *http.Client) *merakiOAuthAPI {
	return &merakiOAuthAPI{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		client: client,
	}
}
