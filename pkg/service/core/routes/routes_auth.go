package routes

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/navikt/meraki-connect/pkg/service/core/handlers"
	"github.com/navikt/meraki-connect/pkg/service/core/transport"
	"github.com/rs/zerolog"
)

type AuthEndpoints struct {
	Index               http.HandlerFunc
	AuthURL             http.HandlerFunc
	Connect             http.HandlerFunc
	Callback            http.HandlerFunc
	GenerateAccessToken http.HandlerFunc
	Refresh             http.HandlerFunc
}

func NewAuthEndpoints(log zerolog.Logger, h *handlers.Handlers) *AuthEndpoints {
	return &AuthEndpoints{
		Index:               transport.For(h.AuthHandler.Index).Build(log),
		AuthURL:             transport.For(h.AuthHandler.AuthURL).Build(log),
		Connect:             transport.For(h.AuthHandler.Connect).Build(log),
		Callback:            transport.For(h.AuthHandler.Callback).RequestFromQuery(handlers.CallbackRequestFromQuery).Build(log),
		GenerateAccessToken: transport.For(h.AuthHandler.GenerateAccessToken).Build(log),
		Refresh:             transport.For(h.AuthHandler.Refresh).Build(log),
	}
}

func NewAuthRoutes(endpoints *AuthEndpoints, session func(http.Handler) http.Handler) AddRoutesFn {
	return func(router chi.Router) {
		router.Group(func(r chi.Router) {
			r.Use(session)
			r.Get("/", endpoints.Index)
			r.Get("/authurl", endpoints.AuthURL)
			r.Get("/connect", endpoints.Connect)
			r.Get("/callback", endpoints.Callback)
			r.Get("/generate_access_token", endpoints.GenerateAccessToken)
			r.Get("/refresh", endpoints.Refresh)
		})
	}
}
