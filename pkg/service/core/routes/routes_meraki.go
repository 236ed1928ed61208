package routes

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/navikt/meraki-connect/pkg/service/core/handlers"
	"github.com/navikt/meraki-connect/pkg/service/core/transport"
	"github.com/rs/zerolog"
)

type MerakiEndpoints struct {
	Organizations http.HandlerFunc
	Networks      http.HandlerFunc
}

func NewMerakiEndpoints(log zerolog.Logger, h *handlers.Handlers) *MerakiEndpoints {
	return &MerakiEndpoints{
		Organizations: transport.For(h.MerakiHandler.Organizations).Build(log),
		Networks:      transport.For(h.MerakiHandler.Networks).RequestFromQuery(handlers.NetworksRequestFromQuery).Build(log),
	}
}

func NewMerakiRoutes(endpoints *MerakiEndpoints, session func(http.Handler) http.Handler) AddRoutesFn {
	return func(router chi.Router) {
		router.Group(func(r chi.Router) {
			r.Use(session)
			r.Get("/organizations", endpoints.Organizations)
			r.Get("/networks", endpoints.Networks)
		})
	}
}
