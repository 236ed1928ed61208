package core

import (
	"context"
	"fmt"
	"time"

	"github.com/navikt/meraki-connect/pkg/errs"
	"github.com/navikt/meraki-connect/pkg/service"
)

var _ service.MerakiService = &merakiService{}

type merakiService struct {
	merakiAPI service.MerakiAPI
	now       func() time.Time
}

// CheckAccessToken lets a request through only if the session holds an
// access token that has not yet expired at now.
func CheckAccessToken(session *service.Session, now time.Time) error {
	if session == nil || !session.HasAccessToken() {
		return service.ErrRefreshRequired
	}

	if !now.UTC().Before(session.TokenExpiry) {
		return service.ErrRefreshRequired
	}

	return nil
}

func (s *merakiService) GetOrganizations(ctx context.Context, session *service.Session) ([]service.Resource, error) {
	const op errs.Op = "merakiService.GetOrganizations"

	err := CheckAccessToken(session, s.now())
	if err != nil {
		return nil, errs.E(errs.Unauthenticated, op, err)
	}

	orgs, err := s.merakiAPI.GetOrganizations(ctx, session.AccessToken)
	if err != nil {
		return nil, errs.E(op, fmt.Sprintf("API call error: %v", err), err)
	}

	return orgs, nil
}

func (s *merakiService) GetNetworks(ctx context.Context, session *service.Session, orgID string) ([]service.Resource, error) {
	const op errs.Op = "merakiService.GetNetworks"

	err := CheckAccessToken(session, s.now())
	if err != nil {
		return nil, errs.E(errs.Unauthenticated, op, err)
	}

	networks, err := s.merakiAPI.GetNetworks(ctx, session.AccessToken, orgID)
	if err != nil {
		if errs.KindIs(errs.InvalidRequest, err) {
			return nil, errs.E(op, errs.Parameter("org"), "Error: invalid organization id", err)
		}

		return nil, errs.E(op, fmt.Sprintf("API call error: %v", err), err)
	}

	return networks, nil
}

func NewMerakiService(merakiAPI service.MerakiAPI, now func() time.Time) *merakiService {
	if now == nil {
		now = time.Now
	}

	return &merakiService{
		merakiAPI: merakiAPI,
		now:       now,
	}
}
