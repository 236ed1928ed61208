package service

import (
	"context"
	"errors"
)

// ErrRefreshRequired is returned when the session has no usable access token,
// the caller is expected to send the user through the refresh flow.
var ErrRefreshRequired = errors.New("access token missing or expired")

// Resource is a single object from the vendor API, kept as decoded JSON.
type Resource map[string]any

func (r Resource) ID() string {
	return r.str("id")
}

func (r Resource) Name() string {
	return r.str("name")
}

func (r Resource) str(key string) string {
	v, ok := r[key].(string)
	if !ok {
		return ""
	}

	return v
}

type MerakiAPI interface {
	GetOrganizations(ctx context.Context, accessToken string) ([]Resource, error)
	GetNetworks(ctx context.Context, accessToken, orgID string) ([]Resource, error)
}

type MerakiService interface {
	GetOrganizations(ctx context.Context, session *Session) ([]Resource, error)
	GetNetworks(ctx context.Context, session *Session, orgID string) ([]Resource, error)
}
