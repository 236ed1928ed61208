// Package meraki provides a client for the Meraki dashboard API.
// - https://developer.cisco.com/meraki/api-v1/
package meraki

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/goccy/go-json"
)

const (
	UserAgent = "MerakiConnect/1.0 navikt"

	maxOrganizationIDLength = 64
	maxErrorBodyBytes       = 4096
)

var (
	ErrInvalidOrganizationID = errors.New("invalid organization id")

	organizationIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

type Fetcher interface {
	GetOrganizations(ctx context.Context, accessToken string) ([]Object, error)
	GetNetworks(ctx context.Context, accessToken, orgID string) ([]Object, error)
}

// Object is a single item from a list endpoint, as returned by the API.
type Object map[string]any

type Client struct {
	client *http.Client
	apiURL string
}

// StatusError is returned when the API answers with a status outside 2xx.
type StatusError struct {
	StatusCode int
	Errors     []string
}

func (e *StatusError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
	}

	return fmt.Sprintf("unexpected status code: %d: %s", e.StatusCode, strings.Join(e.Errors, "; "))
}

// ValidateOrganizationID checks that id can be used as a single path segment.
func ValidateOrganizationID(id string) error {
	if id == "" || len(id) > maxOrganizationIDLength || !organizationIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidOrganizationID, id)
	}

	return nil
}

func (c *Client) GetOrganizations(ctx context.Context, accessToken string) ([]Object, error) {
	u := fmt.Sprintf("%s/organizations", c.apiURL)

	var orgs []Object
	err := c.sendRequestAndDeserialize(ctx, http.MethodGet, u, accessToken, &orgs)
	if err != nil {
		return nil, err
	}

	return orgs, nil
}

func (c *Client) GetNetworks(ctx context.Context, accessToken, orgID string) ([]Object, error) {
	err := ValidateOrganizationID(orgID)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/organizations/%s/networks", c.apiURL, url.PathEscape(orgID))

	var networks []Object
	err = c.sendRequestAndDeserialize(ctx, http.MethodGet, u, accessToken, &networks)
	if err != nil {
		return nil, err
	}

	return networks, nil
}

func (c *Client) sendRequestAndDeserialize(ctx context.Context, method, url, accessToken string, into any) error {
	req, err := c.newRequestWithHeaders(ctx, method, url, accessToken)
	if err != nil {
		return err
	}

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return statusError(res)
	}

	err = json.NewDecoder(res.Body).Decode(into)
	if err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}

func (c *Client) newRequestWithHeaders(ctx context.Context, method, url, accessToken string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("User-Agent", UserAgent)

	return req, nil
}

// statusError reads the {"errors": [...]} body the API uses for failures,
// when there is one.
func statusError(res *http.Response) error {
	e := &StatusError{
		StatusCode: res.StatusCode,
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxErrorBodyBytes))
	if err != nil {
		return e
	}

	var payload struct {
		Errors []string `json:"errors"`
	}

	if json.Unmarshal(body, &payload) == nil {
		e.Errors = payload.Errors
	}

	return e
}

func New(apiURL string, client *http.Client) *Client {
	return &Client{
		apiURL: strings.TrimSuffix(apiURL, "/"),
		client: client,
	}
}
