package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/navikt/meraki-connect/pkg/service/core/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type Health struct {
	Status string `json:"status"`
}

func healthz(_ context.Context, _ *http.Request, _ any) (*Health, error) {
	return &Health{Status: "ok"}, nil
}

type MetricsEndpoints struct {
	GetMetrics http.Handler
	Healthz    http.HandlerFunc
}

func NewMetricsEndpoints(log zerolog.Logger, promReg *prometheus.Registry) *MetricsEndpoints {
	return &MetricsEndpoints{
		GetMetrics: promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}),
		Healthz:    transport.For(healthz).Build(log),
	}
}

func NewMetricsRoutes(endpoints *MetricsEndpoints) AddRoutesFn {
	return func(router chi.Router) {
		router.Handle("/internal/metrics", endpoints.GetMetrics)
		router.Get("/internal/healthz", endpoints.Healthz)
	}
}
