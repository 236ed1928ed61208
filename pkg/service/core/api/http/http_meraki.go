package http

import (
	"context"
	"errors"

	"github.com/navikt/meraki-connect/pkg/errs"
	"github.com/navikt/meraki-connect/pkg/meraki"
	"github.com/navikt/meraki-connect/pkg/service"
)

var _ service.MerakiAPI = &merakiAPI{}

type merakiAPI struct {
	fetcher meraki.Fetcher
}

func (a *merakiAPI) GetOrganizations(ctx context.Context, accessToken string) ([]service.Resource, error) {
	const op errs.Op = "merakiAPI.GetOrganizations"

	orgs, err := a.fetcher.GetOrganizations(ctx, accessToken)
	if err != nil {
		return nil, errs.E(errs.IO, op, err)
	}

	return toResources(orgs), nil
}

func (a *merakiAPI) GetNetworks(ctx context.Context, accessToken, orgID string) ([]service.Resource, error) {
	const op errs.Op = "merakiAPI.GetNetworks"

	networks, err := a.fetcher.GetNetworks(ctx, accessToken, orgID)
	if err != nil {
		if errors.Is(err, meraki.ErrInvalidOrganizationID) {
			return nil, errs.E(errs.InvalidRequest, op, errs.Parameter("org"), err)
		}

		return nil, errs.E(errs.IO, op, err)
	}

	return toResources(networks), nil
}

func toResources(objects []meraki.Object) []service.Resource {
	resources := make([]service.Resource, len(objects))
	for i, o := range objects {
		resources[i] = service.Resource(o)
	}

	return resources
}

func NewMerakiAPI(fetcher meraki.Fetcher) *merakiAPI {
	return &merakiAPI{
		fetcher: fetcher,
	}
}
