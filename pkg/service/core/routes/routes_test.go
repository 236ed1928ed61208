package routes_test

import (
	"bytes"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/goccy/go-json"
	"github.com/navikt/meraki-connect/pkg/auth"
	"github.com/navikt/meraki-connect/pkg/config/v2"
	"github.com/navikt/meraki-connect/pkg/meraki"
	"github.com/navikt/meraki-connect/pkg/service/core"
	httpapi "github.com/navikt/meraki-connect/pkg/service/core/api/http"
	"github.com/navikt/meraki-connect/pkg/service/core/handlers"
	"github.com/navikt/meraki-connect/pkg/service/core/routes"
	"github.com/navikt/meraki-connect/pkg/service/core/storage"
	"github.com/navikt/meraki-connect/pkg/service/core/storage/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	clientID     = "client-id"
	clientSecret = "client-secret"
	redirectURL  = "http://localhost:5000/callback"
	scope        = "dashboard:general:config:read"
)

var statePattern = regexp.MustCompile(`state=(time\d{8}T\d{6})`)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.t = c.t.Add(d)
}

type vendor struct {
	tokenCalls atomic.Int32
	apiCalls   atomic.Int32

	mu         sync.Mutex
	lastBearer string
}

func (v *vendor) LastBearer() string {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.lastBearer
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (v *vendor) tokenHandler(w http.ResponseWriter, r *http.Request) {
	v.tokenCalls.Add(1)

	id, secret, ok := r.BasicAuth()
	if !ok || id != clientID || secret != clientSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}

	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		switch r.PostForm.Get("code") {
		case "XYZ":
			writeJSON(w, http.StatusOK, map[string]any{
				"access_token":  "access-1",
				"refresh_token": "refresh-1",
				"token_type":    "bearer",
			})
		case "NOACCESS":
			writeJSON(w, http.StatusOK, map[string]any{
				"refresh_token": "refresh-x",
				"token_type":    "bearer",
			})
		default:
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
		}
	case "refresh_token":
		if r.PostForm.Get("refresh_token") != "refresh-1" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "access-2",
			"refresh_token": "refresh-2",
			"token_type":    "bearer",
		})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
	}
}

func (v *vendor) apiHandler() http.Handler {
	r := chi.NewRouter()

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			v.apiCalls.Add(1)

			bearer := r.Header.Get("Authorization")
			v.mu.Lock()
			v.lastBearer = bearer
			v.mu.Unlock()

			if bearer != "Bearer access-1" && bearer != "Bearer access-2" {
				writeJSON(w, http.StatusUnauthorized, map[string][]string{"errors": {"Invalid API key"}})
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	r.Get("/organizations", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": "549236", "name": "DevNet Sandbox"},
		})
	})

	r.Get("/organizations/{org}/networks", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "org") != "549236" {
			writeJSON(w, http.StatusNotFound, map[string][]string{"errors": {"Not found"}})
			return
		}

		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": "L_646829496481105433", "name": "DevNet Office", "timeZone": "America/Los_Angeles"},
		})
	})

	return r
}

type app struct {
	server           *httptest.Server
	vendor           *vendor
	clock            *testClock
	refreshRedirects prometheus.Counter
	tokenServerURL   string
}

func newApp(t *testing.T) *app {
	t.Helper()

	return newAppWithOrigins(t, nil)
}

func newAppWithOrigins(t *testing.T, allowedOrigins []string) *app {
	t.Helper()

	v := &vendor{}

	tokenServer := httptest.NewServer(http.HandlerFunc(v.tokenHandler))
	t.Cleanup(tokenServer.Close)

	apiServer := httptest.NewServer(v.apiHandler())
	t.Cleanup(apiServer.Close)

	// Session cookies are checked against the wall clock, so start from now
	clock := &testClock{t: time.Now().UTC().Truncate(time.Second)}
	log := zerolog.Nop()

	oauthAPI := httpapi.NewMerakiOAuthAPI(
		clientID,
		clientSecret,
		redirectURL,
		tokenServer.URL+"/oauth/authorize",
		tokenServer.URL+"/oauth/token",
		[]string{scope},
		tokenServer.Client(),
	)
	merakiAPI := httpapi.NewMerakiAPI(meraki.New(apiServer.URL, apiServer.Client()))

	services := core.NewServices(
		core.NewAuthService(oauthAPI, core.DefaultTokenLifetime, clock.Now, log),
		core.NewMerakiService(merakiAPI, clock.Now),
	)

	sessionStorage := memory.NewSessionStorage(clock.Now)

	sessionManager, err := auth.NewSessionManager(sessionStorage, config.CookieSettings{
		Name:     "meraki_session",
		MaxAge:   86400,
		Path:     "/",
		SameSite: "Lax",
		HttpOnly: true,
	}, []byte("test-secret"), clock.Now, log)
	require.NoError(t, err)

	refreshRedirects := handlers.NewRefreshRedirectsCounter()
	h := handlers.NewHandlers(services, storage.NewStores(sessionStorage), refreshRedirects, log)

	router := chi.NewRouter()
	routes.Add(router, allowedOrigins,
		routes.NewAuthRoutes(routes.NewAuthEndpoints(log, h), sessionManager.Handler),
		routes.NewMerakiRoutes(routes.NewMerakiEndpoints(log, h), sessionManager.Handler),
		routes.NewMetricsRoutes(routes.NewMetricsEndpoints(log, prometheus.NewRegistry())),
	)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &app{
		server:           server,
		vendor:           v,
		clock:            clock,
		refreshRedirects: refreshRedirects,
		tokenServerURL:   tokenServer.URL,
	}
}

type response struct {
	status   int
	location string
	body     string
}

// newBrowser returns a client that keeps cookies and does not follow redirects
func newBrowser(t *testing.T) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &http.Client{
		Jar: jar,
		CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (a *app) get(t *testing.T, browser *http.Client, path string) response {
	t.Helper()

	res, err := browser.Get(a.server.URL + path)
	require.NoError(t, err)

	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	return response{
		status:   res.StatusCode,
		location: res.Header.Get("Location"),
		body:     string(body),
	}
}

func TestAuthorizationFlow(t *testing.T) {
	a := newApp(t)
	browser := newBrowser(t)

	res := a.get(t, browser, "/")
	require.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, `href="/authurl"`)

	res = a.get(t, browser, "/authurl")
	require.Equal(t, http.StatusOK, res.status)

	match := statePattern.FindStringSubmatch(res.body)
	require.Len(t, match, 2)
	state := match[1]

	res = a.get(t, browser, "/connect")
	require.Equal(t, http.StatusSeeOther, res.status)

	authURL, err := url.Parse(res.location)
	require.NoError(t, err)
	assert.Equal(t, a.tokenServerURL+"/oauth/authorize", authURL.Scheme+"://"+authURL.Host+authURL.Path)

	q := authURL.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, clientID, q.Get("client_id"))
	assert.Equal(t, redirectURL, q.Get("redirect_uri"))
	assert.Equal(t, scope, q.Get("scope"))
	assert.Equal(t, state, q.Get("state"))

	res = a.get(t, browser, "/callback?code=XYZ&state="+url.QueryEscape(state))
	require.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, "<code>XYZ</code>")

	issued := a.clock.Now()

	res = a.get(t, browser, "/generate_access_token")
	require.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, "access-1")
	assert.Contains(t, res.body, "refresh-1")
	assert.Contains(t, res.body, issued.Add(60*time.Minute).Format(time.RFC3339))
	assert.Equal(t, int32(1), a.vendor.tokenCalls.Load())

	res = a.get(t, browser, "/organizations")
	require.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, `<a href="/networks?org=549236">DevNet Sandbox</a>`)
	assert.Equal(t, "Bearer access-1", a.vendor.LastBearer())

	res = a.get(t, browser, "/networks?org=549236")
	require.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.body, "DevNet Office (L_646829496481105433) America/Los_Angeles")
	assert.Equal(t, int32(2), a.vendor.apiCalls.Load())

	a.clock.Advance(61 * time.Minute)

	res = a.get(t, browser, "/organizations")
	require.Equal(t, http.StatusSeeOther, res.status)
	assert.Equal(t, "/refresh", res.location)
	assert.Equal(t, int32(2), a.vendor.apiCalls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(a.refreshRedirects))

	res = a.get(t, browser, "/refresh")
	require.Equal(t, http.StatusSeeOther, res.status)
	assert.Equal(t, "/organizations", res.location)
	assert.Equal(t, int32(2), a.vendor.tokenCalls.Load())

	res = a.get(t, browser, "/organizations")
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "Bearer access-2", a.vendor.LastBearer())
}

func TestCallback(t *testing.T) {
	t.Run("Code without authorization URL is stored and shown", func(t *testing.T) {
		a := newApp(t)
		browser := newBrowser(t)

		res := a.get(t, browser, "/callback?code=XYZ")
		require.Equal(t, http.StatusOK, res.status)
		assert.Contains(t, res.body, "<code>XYZ</code>")

		res = a.get(t, browser, "/generate_access_token")
		assert.Equal(t, http.StatusBadRequest, res.status)
		assert.Equal(t, "Error: authorization code was not issued for this session", res.body)
		assert.Equal(t, int32(0), a.vendor.tokenCalls.Load())
	})

	t.Run("Missing code", func(t *testing.T) {
		a := newApp(t)
		browser := newBrowser(t)

		res := a.get(t, browser, "/callback")
		assert.Equal(t, http.StatusBadRequest, res.status)
		assert.Equal(t, "Error: No code provided", res.body)

		res = a.get(t, browser, "/generate_access_token")
		assert.Equal(t, http.StatusBadRequest, res.status)
		assert.Equal(t, "Error: No code provided", res.body)
		assert.Equal(t, int32(0), a.vendor.tokenCalls.Load())
	})

	t.Run("Mismatched state", func(t *testing.T) {
		a := newApp(t)
		browser := newBrowser(t)

		res := a.get(t, browser, "/authurl")
		require.Equal(t, http.StatusOK, res.status)

		res = a.get(t, browser, "/callback?code=XYZ&state=time19700101T000000")
		assert.Equal(t, http.StatusBadRequest, res.status)
		assert.Equal(t, "Error: invalid state", res.body)

		res = a.get(t, browser, "/generate_access_token")
		assert.Equal(t, http.StatusBadRequest, res.status)
		assert.Equal(t, int32(0), a.vendor.tokenCalls.Load())
	})

	t.Run("Missing state after authorization URL", func(t *testing.T) {
		a := newApp(t)
		browser := newBrowser(t)

		res := a.get(t, browser, "/authurl")
		require.Equal(t, http.StatusOK, res.status)

		res = a.get(t, browser, "/callback?code=XYZ")
		assert.Equal(t, http.StatusBadRequest, res.status)
		assert.Equal(t, "Error: invalid state", res.body)
	})
}

func TestConnectWithoutAuthorizationURL(t *testing.T) {
	a := newApp(t)
	browser := newBrowser(t)

	res := a.get(t, browser, "/connect")
	require.Equal(t, http.StatusSeeOther, res.status)
	assert.Regexp(t, statePattern, res.location)

	// The URL built by connect is kept, so the callback can be verified
	match := statePattern.FindStringSubmatch(res.location)
	require.Len(t, match, 2)

	res = a.get(t, browser, "/callback?code=XYZ&state="+match[1])
	require.Equal(t, http.StatusOK, res.status)

	res = a.get(t, browser, "/generate_access_token")
	assert.Equal(t, http.StatusOK, res.status)
}

func TestTokenExchangeFailure(t *testing.T) {
	a := newApp(t)
	browser := newBrowser(t)

	res := a.get(t, browser, "/authurl")
	match := statePattern.FindStringSubmatch(res.body)
	require.Len(t, match, 2)

	res = a.get(t, browser, "/callback?code=NOACCESS&state="+match[1])
	require.Equal(t, http.StatusOK, res.status)

	res = a.get(t, browser, "/generate_access_token")
	assert.Equal(t, http.StatusBadGateway, res.status)
	assert.Equal(t, "Error obtaining token: oauth2: server response missing access_token", res.body)

	res = a.get(t, browser, "/organizations")
	assert.Equal(t, http.StatusSeeOther, res.status)
	assert.Equal(t, "/refresh", res.location)
	assert.Equal(t, int32(0), a.vendor.apiCalls.Load())
}

func TestWithoutTokens(t *testing.T) {
	a := newApp(t)
	browser := newBrowser(t)

	for _, path := range []string{"/organizations", "/networks?org=549236", "/networks"} {
		res := a.get(t, browser, path)
		assert.Equal(t, http.StatusSeeOther, res.status, path)
		assert.Equal(t, "/refresh", res.location, path)
	}

	res := a.get(t, browser, "/refresh")
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "No refresh token available", res.body)

	assert.Equal(t, int32(0), a.vendor.apiCalls.Load())
	assert.Equal(t, int32(0), a.vendor.tokenCalls.Load())
	assert.Equal(t, 3.0, testutil.ToFloat64(a.refreshRedirects))
}

func TestNetworks(t *testing.T) {
	a := newApp(t)
	browser := newBrowser(t)

	res := a.get(t, browser, "/authurl")
	match := statePattern.FindStringSubmatch(res.body)
	require.Len(t, match, 2)

	res = a.get(t, browser, "/callback?code=XYZ&state="+match[1])
	require.Equal(t, http.StatusOK, res.status)

	res = a.get(t, browser, "/generate_access_token")
	require.Equal(t, http.StatusOK, res.status)

	testCases := []struct {
		name   string
		query  string
		status int
		body   string
		calls  int32
	}{
		{
			name:   "Path traversal",
			query:  "?org=" + url.QueryEscape("../admins"),
			status: http.StatusBadRequest,
			body:   "Error: invalid organization id",
		},
		{
			name:   "Missing org",
			query:  "",
			status: http.StatusBadRequest,
			body:   "Error: invalid organization id",
		},
		{
			name:   "Unknown org",
			query:  "?org=missing",
			status: http.StatusBadGateway,
			body:   "API call error: unexpected status code: 404: Not found",
			calls:  1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			before := a.vendor.apiCalls.Load()

			res := a.get(t, browser, "/networks"+tc.query)
			assert.Equal(t, tc.status, res.status)
			assert.Equal(t, tc.body, res.body)
			assert.Equal(t, tc.calls, a.vendor.apiCalls.Load()-before)
		})
	}
}

func TestInternalRoutes(t *testing.T) {
	a := newApp(t)

	res, err := http.Get(a.server.URL + "/internal/healthz")
	require.NoError(t, err)
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/json; charset=utf-8", res.Header.Get("Content-Type"))
	assert.Equal(t, "{\"status\":\"ok\"}\n", string(body))
	assert.Empty(t, res.Cookies())
}

func TestCrossOriginRequests(t *testing.T) {
	testCases := []struct {
		name              string
		allowedOrigins    []string
		origin            string
		expectAllowOrigin string
	}{
		{
			name:   "No origins configured",
			origin: "https://evil.example",
		},
		{
			name:           "Foreign origin",
			allowedOrigins: []string{"https://dashboard.example.com"},
			origin:         "https://evil.example",
		},
		{
			name:              "Allowed origin",
			allowedOrigins:    []string{"https://dashboard.example.com"},
			origin:            "https://dashboard.example.com",
			expectAllowOrigin: "https://dashboard.example.com",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := newAppWithOrigins(t, tc.allowedOrigins)

			for _, path := range []string{"/authurl", "/generate_access_token"} {
				req, err := http.NewRequest(http.MethodGet, a.server.URL+path, nil)
				require.NoError(t, err)
				req.Header.Set("Origin", tc.origin)

				res, err := newBrowser(t).Do(req)
				require.NoError(t, err)
				res.Body.Close()

				assert.Equal(t, tc.expectAllowOrigin, res.Header.Get("Access-Control-Allow-Origin"), path)
				assert.Empty(t, res.Header.Get("Access-Control-Allow-Credentials"), path)
			}
		})
	}
}

func TestPrint(t *testing.T) {
	r := chi.NewRouter()
	routes.Add(r, nil,
		routes.NewMetricsRoutes(routes.NewMetricsEndpoints(zerolog.Nop(), prometheus.NewRegistry())),
	)

	var buf bytes.Buffer
	err := routes.Print(r, &buf)
	require.NoError(t, err)

	assert.Regexp(t, `^Method\s+Route\s+Middlewares\n`, buf.String())
	assert.Regexp(t, `GET\s+/internal/healthz\s+\d+\n`, buf.String())
	assert.Regexp(t, `GET\s+/internal/metrics\s+\d+\n`, buf.String())
}
