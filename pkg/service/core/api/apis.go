package api

import (
	"net/http"

	"github.com/navikt/meraki-connect/pkg/cache"
	"github.com/navikt/meraki-connect/pkg/config/v2"
	"github.com/navikt/meraki-connect/pkg/meraki"
	"github.com/navikt/meraki-connect/pkg/service"
	httpapi "github.com/navikt/meraki-connect/pkg/service/core/api/http"
	"github.com/navikt/meraki-connect/pkg/service/core/cache/postgres"
)

type Clients struct {
	OAuthAPI  service.OAuthAPI
	MerakiAPI service.MerakiAPI
}

// NewClients wires the vendor adapters, the dashboard API is read through
// cache when one is given.
func NewClients(
	cache cache.Cacher,
	fetcher meraki.Fetcher,
	tokenClient *http.Client,
	cfg config.Config,
) *Clients {
	var merakiAPI service.MerakiAPI = httpapi.NewMerakiAPI(fetcher)
	if cache != nil {
		merakiAPI = postgres.NewMerakiCache(merakiAPI, cache)
	}

	return &Clients{
		OAuthAPI: httpapi.NewMerakiOAuthAPI(
			cfg.Oauth.ClientID,
			cfg.Oauth.ClientSecret,
			cfg.Oauth.RedirectURL,
			cfg.Oauth.AuthURL,
			cfg.Oauth.TokenURL,
			cfg.Oauth.Scopes,
			tokenClient,
		),
		MerakiAPI: merakiAPI,
	}
}
