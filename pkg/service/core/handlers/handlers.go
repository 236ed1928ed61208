package handlers

import (
	"github.com/navikt/meraki-connect/pkg/service/core"
	"github.com/navikt/meraki-connect/pkg/service/core/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type Handlers struct {
	AuthHandler   *authHandler
	MerakiHandler *merakiHandler
}

func NewHandlers(
	s *core.Services,
	stores *storage.Stores,
	refreshRedirects prometheus.Counter,
	log zerolog.Logger,
) *Handlers {
	return &Handlers{
		AuthHandler:   NewAuthHandler(s.AuthService, stores.SessionStorage, log.With().Str("handler", "auth").Logger()),
		MerakiHandler: NewMerakiHandler(s.MerakiService, refreshRedirects, log.With().Str("handler", "meraki").Logger()),
	}
}
