// Package merakitest provides an in-memory dashboard API for tests.
package merakitest

import (
	"context"
	"fmt"
	"sync"

	"github.com/navikt/meraki-connect/pkg/meraki"
)

// Static serves organizations and networks from memory, and records the
// calls made against it.
type Static struct {
	Organizations []meraki.Object
	// Networks by organization id
	Networks map[string][]meraki.Object
	// Token is the only access token accepted, any token when empty
	Token string

	mu    sync.Mutex
	calls int
}

var _ meraki.Fetcher = &Static{}

func (s *Static) GetOrganizations(_ context.Context, accessToken string) ([]meraki.Object, error) {
	err := s.record(accessToken)
	if err != nil {
		return nil, err
	}

	return s.Organizations, nil
}

func (s *Static) GetNetworks(_ context.Context, accessToken, orgID string) ([]meraki.Object, error) {
	err := meraki.ValidateOrganizationID(orgID)
	if err != nil {
		return nil, err
	}

	err = s.record(accessToken)
	if err != nil {
		return nil, err
	}

	networks, ok := s.Networks[orgID]
	if !ok {
		return nil, &meraki.StatusError{StatusCode: 404, Errors: []string{fmt.Sprintf("organization %s not found", orgID)}}
	}

	return networks, nil
}

// Calls returns the number of requests that reached the fetcher.
func (s *Static) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls
}

func (s *Static) record(accessToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++

	if s.Token != "" && accessToken != s.Token {
		return &meraki.StatusError{StatusCode: 401, Errors: []string{"Invalid API key"}}
	}

	return nil
}

func NewStatic(orgs []meraki.Object, networks map[string][]meraki.Object) *Static {
	return &Static{
		Organizations: orgs,
		Networks:      networks,
	}
}
