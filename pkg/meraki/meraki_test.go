package meraki_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/navikt/meraki-connect/pkg/meraki"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_GetOrganizations(t *testing.T) {
	testCases := []struct {
		name      string
		status    int
		body      any
		expect    []meraki.Object
		expectErr string
	}{
		{
			name:   "should return organizations",
			status: http.StatusOK,
			body: []map[string]any{
				{"id": "123", "name": "Org One", "url": "https://n1.meraki.com/o/abc"},
				{"id": "456", "name": "Org Two"},
			},
			expect: []meraki.Object{
				{"id": "123", "name": "Org One", "url": "https://n1.meraki.com/o/abc"},
				{"id": "456", "name": "Org Two"},
			},
		},
		{
			name:   "should return empty list",
			status: http.StatusOK,
			body:   []map[string]any{},
			expect: []meraki.Object{},
		},
		{
			name:   "should accept any 2xx status",
			status: http.StatusNonAuthoritativeInfo,
			body:   []map[string]any{{"id": "123", "name": "Org One"}},
			expect: []meraki.Object{{"id": "123", "name": "Org One"}},
		},
		{
			name:      "should reject non 2xx status",
			status:    http.StatusNotModified,
			expectErr: "unexpected status code: 304",
		},
		{
			name:      "should return api errors",
			status:    http.StatusUnauthorized,
			body:      map[string]any{"errors": []string{"Invalid API key"}},
			expectErr: "unexpected status code: 401: Invalid API key",
		},
		{
			name:      "should return status without body",
			status:    http.StatusInternalServerError,
			expectErr: "unexpected status code: 500",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/organizations", r.URL.Path)
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "Bearer access-token", r.Header.Get("Authorization"))
				assert.Equal(t, meraki.UserAgent, r.Header.Get("User-Agent"))

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)

				if tc.body != nil {
					err := json.NewEncoder(w).Encode(tc.body)
					assert.NoError(t, err)
				}
			}))
			defer testServer.Close()

			client := meraki.New(testServer.URL, http.DefaultClient)
			got, err := client.GetOrganizations(context.Background(), "access-token")
			if tc.expectErr != "" {
				require.Error(t, err)
				assert.Equal(t, tc.expectErr, err.Error())

				var statusErr *meraki.StatusError
				assert.ErrorAs(t, err, &statusErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expect, got)
		})
	}
}

func TestClient_GetNetworks(t *testing.T) {
	testCases := []struct {
		name      string
		orgID     string
		expect    []meraki.Object
		expectErr error
		calls     int
	}{
		{
			name:  "should return networks",
			orgID: "123",
			expect: []meraki.Object{
				{"id": "N_1", "name": "Office", "organizationId": "123"},
			},
			calls: 1,
		},
		{
			name:      "should reject empty organization id",
			orgID:     "",
			expectErr: meraki.ErrInvalidOrganizationID,
			calls:     0,
		},
		{
			name:      "should reject path traversal",
			orgID:     "../admins",
			expectErr: meraki.ErrInvalidOrganizationID,
			calls:     0,
		},
		{
			name:      "should reject query injection",
			orgID:     "123?perPage=1000",
			expectErr: meraki.ErrInvalidOrganizationID,
			calls:     0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0

			testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++

				assert.Equal(t, "/organizations/"+tc.orgID+"/networks", r.URL.Path)
				assert.Equal(t, "Bearer access-token", r.Header.Get("Authorization"))

				w.Header().Set("Content-Type", "application/json")
				err := json.NewEncoder(w).Encode(tc.expect)
				assert.NoError(t, err)
			}))
			defer testServer.Close()

			client := meraki.New(testServer.URL+"/", http.DefaultClient)
			got, err := client.GetNetworks(context.Background(), "access-token", tc.orgID)
			if tc.expectErr != nil {
				assert.ErrorIs(t, err, tc.expectErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.expect, got)
			}

			assert.Equal(t, tc.calls, calls)
		})
	}
}

func TestValidateOrganizationID(t *testing.T) {
	t.Parallel()

	valid := []string{"123", "549236", "L_1234_abc", "a-b"}
	for _, id := range valid {
		assert.NoError(t, meraki.ValidateOrganizationID(id), id)
	}

	invalid := []string{"", "a/b", "a b", "%2e%2e", "1234567890123456789012345678901234567890123456789012345678901234567890"}
	for _, id := range invalid {
		assert.ErrorIs(t, meraki.ValidateOrganizationID(id), meraki.ErrInvalidOrganizationID, id)
	}
}
