package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/navikt/meraki-connect/pkg/cache"
	"github.com/navikt/meraki-connect/pkg/errs"
	"github.com/navikt/meraki-connect/pkg/service"
)

var _ service.MerakiAPI = &merakiCache{}

// merakiCache caches responses per access token, so one user never sees
// resources fetched with the token of another.
type merakiCache struct {
	api   service.MerakiAPI
	cache cache.Cacher
}

func (m *merakiCache) GetOrganizations(ctx context.Context, accessToken string) ([]service.Resource, error) {
	const op errs.Op = "merakiCache.GetOrganizations"

	key := cacheKey(accessToken, "organizations")

	orgs := []service.Resource{}
	if m.cache.Get(ctx, key, &orgs) {
		return orgs, nil
	}

	orgs, err := m.api.GetOrganizations(ctx, accessToken)
	if err != nil {
		return nil, errs.E(op, err)
	}

	m.cache.Set(ctx, key, orgs)

	return orgs, nil
}

func (m *merakiCache) GetNetworks(ctx context.Context, accessToken, orgID string) ([]service.Resource, error) {
	const op errs.Op = "merakiCache.GetNetworks"

	key := cacheKey(accessToken, fmt.Sprintf("organizations:%s:networks", orgID))

	networks := []service.Resource{}
	if m.cache.Get(ctx, key, &networks) {
		return networks, nil
	}

	networks, err := m.api.GetNetworks(ctx, accessToken, orgID)
	if err != nil {
		return nil, errs.E(op, err)
	}

	m.cache.Set(ctx, key, networks)

	return networks, nil
}

func cacheKey(accessToken, resource string) string {
	sum := sha256.Sum256([]byte(accessToken))

	return fmt.Sprintf("meraki:%s:%s", hex.EncodeToString(sum[:]), resource)
}

func NewMerakiCache(api service.MerakiAPI, cache cache.Cacher) *merakiCache {
	return &merakiCache{
		api:   api,
		cache: cache,
	}
}
