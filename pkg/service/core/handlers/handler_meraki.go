package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/navikt/meraki-connect/pkg/errs"
	"github.com/navikt/meraki-connect/pkg/service"
	"github.com/navikt/meraki-connect/pkg/service/core/transport"
	"github.com/navikt/meraki-connect/pkg/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const PathRefresh = "/refresh"

type NetworksRequest struct {
	OrgID string
}

// NetworksRequestFromQuery leaves validation of the organization id to the
// service, which checks the access token first.
func NetworksRequestFromQuery(q url.Values) (NetworksRequest, error) {
	return NetworksRequest{
		OrgID: q.Get("org"),
	}, nil
}

func NewRefreshRedirectsCounter() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "meraki_connect",
		Name:      "refresh_redirects_total",
		Help:      "Number of requests sent to the refresh flow because the access token was missing or expired.",
	})
}

type merakiHandler struct {
	merakiService    service.MerakiService
	refreshRedirects prometheus.Counter
	log              zerolog.Logger
}

func (h *merakiHandler) Organizations(ctx context.Context, r *http.Request, _ any) (transport.Encoder, error) {
	const op errs.Op = "merakiHandler.Organizations"

	session, err := sessionFromContext(ctx, op)
	if err != nil {
		return nil, err
	}

	orgs, err := h.merakiService.GetOrganizations(ctx, session)
	if err != nil {
		if errors.Is(err, service.ErrRefreshRequired) {
			return h.toRefresh(r, session), nil
		}

		return nil, errs.E(op, err)
	}

	return web.NewOrganizationsPage(orgs), nil
}

func (h *merakiHandler) Networks(ctx context.Context, r *http.Request, in NetworksRequest) (transport.Encoder, error) {
	const op errs.Op = "merakiHandler.Networks"

	session, err := sessionFromContext(ctx, op)
	if err != nil {
		return nil, err
	}

	networks, err := h.merakiService.GetNetworks(ctx, session, in.OrgID)
	if err != nil {
		if errors.Is(err, service.ErrRefreshRequired) {
			return h.toRefresh(r, session), nil
		}

		return nil, errs.E(op, err)
	}

	return web.NewNetworksPage(in.OrgID, networks), nil
}

func (h *merakiHandler) toRefresh(r *http.Request, session *service.Session) *transport.Redirect {
	h.refreshRedirects.Inc()
	h.log.Debug().Str("session", session.ID).Str("path", r.URL.Path).Msg("access token missing or expired")

	return transport.NewRedirect(PathRefresh, r)
}

func NewMerakiHandler(merakiService service.MerakiService, refreshRedirects prometheus.Counter, log zerolog.Logger) *merakiHandler {
	return &merakiHandler{
		merakiService:    merakiService,
		refreshRedirects: refreshRedirects,
		log:              log,
	}
}
