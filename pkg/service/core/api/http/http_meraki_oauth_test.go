package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/navikt/meraki-connect/pkg/errs"
	"github.com/navikt/meraki-connect/pkg/service"
	httpapi "github.com/navikt/meraki-connect/pkg/service/core/api/http"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	clientID     = "client-id"
	clientSecret = "client-secret"
	redirectURL  = "http://localhost:5000/callback"
	scope        = "dashboard:general:config:read"
)

func newTokenServer(t *testing.T, calls *atomic.Int32, expectForm url.Values, status int, body map[string]any) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, clientID, user)
		assert.Equal(t, clientSecret, pass)
		assert.Equal(t, "/oauth/token", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		err := r.ParseForm()
		assert.NoError(t, err)

		for key := range expectForm {
			assert.Equal(t, expectForm.Get(key), r.PostForm.Get(key), key)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
}

func newOAuthAPI(serverURL string) service.OAuthAPI {
	return httpapi.NewMerakiOAuthAPI(
		clientID,
		clientSecret,
		redirectURL,
		serverURL+"/oauth/authorize",
		serverURL+"/oauth/token",
		[]string{scope},
		http.DefaultClient,
	)
}

func TestMerakiOAuthAPI_AuthCodeURL(t *testing.T) {
	t.Parallel()

	api := newOAuthAPI("https://as.meraki.com")

	got, err := url.Parse(api.AuthCodeURL("time20240102T030405"))
	require.NoError(t, err)

	assert.Equal(t, "https", got.Scheme)
	assert.Equal(t, "as.meraki.com", got.Host)
	assert.Equal(t, "/oauth/authorize", got.Path)
	assert.Equal(t, url.Values{
		"response_type": {"code"},
		"client_id":     {clientID},
		"redirect_uri":  {redirectURL},
		"scope":         {scope},
		"state":         {"time20240102T030405"},
	}, got.Query())
}

func TestMerakiOAuthAPI_Exchange(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name         string
		status       int
		body         map[string]any
		expectAccess string
		expectExpiry bool
		expectErr    string
	}{
		{
			name:         "Token response without expires_in",
			status:       http.StatusOK,
			body:         map[string]any{"access_token": "A", "refresh_token": "R", "token_type": "Bearer"},
			expectAccess: "A",
		},
		{
			name:         "Token response with expires_in",
			status:       http.StatusOK,
			body:         map[string]any{"access_token": "A", "refresh_token": "R", "token_type": "Bearer", "expires_in": 3600},
			expectAccess: "A",
			expectExpiry: true,
		},
		{
			name:      "Missing access token",
			status:    http.StatusOK,
			body:      map[string]any{"refresh_token": "R"},
			expectErr: "oauth2: server response missing access_token",
		},
		{
			name:      "Missing refresh token",
			status:    http.StatusOK,
			body:      map[string]any{"access_token": "A"},
			expectErr: "server response missing refresh_token",
		},
		{
			name:      "Invalid grant",
			status:    http.StatusBadRequest,
			body:      map[string]any{"error": "invalid_grant", "error_description": "code expired"},
			expectErr: "invalid_grant",
		},
	}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			calls := &atomic.Int32{}
			server := newTokenServer(t, calls, url.Values{
				"grant_type":   {"authorization_code"},
				"code":         {"XYZ"},
				"redirect_uri": {redirectURL},
				"scope":        {scope},
			}, tc.status, tc.body)
			defer server.Close()

			before := time.Now()
			pair, err := newOAuthAPI(server.URL).Exchange(context.Background(), "XYZ")
			assert.Equal(t, int32(1), calls.Load())

			if tc.expectErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectErr)
				assert.True(t, errs.KindIs(errs.IO, err))

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expectAccess, pair.AccessToken)
			assert.Equal(t, "R", pair.RefreshToken)

			if tc.expectExpiry {
				assert.WithinDuration(t, before.Add(time.Hour), pair.Expiry, 5*time.Second)
			} else {
				assert.True(t, pair.Expiry.IsZero())
			}
		})
	}
}

func TestMerakiOAuthAPI_Refresh(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		body          map[string]any
		expectRefresh string
	}{
		{
			name:          "Rotated refresh token",
			body:          map[string]any{"access_token": "A2", "refresh_token": "R2"},
			expectRefresh: "R2",
		},
		{
			name:          "Refresh token kept when not rotated",
			body:          map[string]any{"access_token": "A2"},
			expectRefresh: "R1",
		},
	}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			calls := &atomic.Int32{}
			server := newTokenServer(t, calls, url.Values{
				"grant_type":    {"refresh_token"},
				"refresh_token": {"R1"},
			}, http.StatusOK, tc.body)
			defer server.Close()

			pair, err := newOAuthAPI(server.URL).Refresh(context.Background(), "R1")
			require.NoError(t, err)
			assert.Equal(t, int32(1), calls.Load())
			assert.Equal(t, "A2", pair.AccessToken)
			assert.Equal(t, tc.expectRefresh, pair.RefreshToken)
		})
	}
}

func TestNewInstrumentedClient(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	counter := httpapi.NewVendorRequestsCounter()
	client := httpapi.NewInstrumentedClient(time.Second, counter, httpapi.VendorAPIDashboard)

	res, err := client.Get(server.URL)
	require.NoError(t, err)
	_ = res.Body.Close()

	assert.Equal(t, 1.0, testutil.ToFloat64(counter.WithLabelValues(httpapi.VendorAPIDashboard, "418", "get")))
}
