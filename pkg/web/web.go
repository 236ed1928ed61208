// Package web renders the HTML pages that walk a user through the
// authorization flow.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/navikt/meraki-connect/pkg/service"
	"github.com/navikt/meraki-connect/pkg/service/core/transport"
)

//go:embed templates/*.html
var templatesFS embed.FS

const ContentTypeHTML = "text/html; charset=utf-8"

const (
	PageIndex         = "index.html"
	PageAuthURL       = "authurl.html"
	PageAuthCode      = "authcode.html"
	PageTokens        = "tokens.html"
	PageOrganizations = "organizations.html"
	PageNetworks      = "networks.html"
)

var pages = mustParse(
	PageIndex,
	PageAuthURL,
	PageAuthCode,
	PageTokens,
	PageOrganizations,
	PageNetworks,
)

func mustParse(names ...string) map[string]*template.Template {
	out := make(map[string]*template.Template, len(names))

	for _, name := range names {
		out[name] = template.Must(template.ParseFS(templatesFS, "templates/layout.html", "templates/"+name))
	}

	return out
}

type AuthURLData struct {
	AuthURL string
}

type AuthCodeData struct {
	Code string
}

type TokensData struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

type OrganizationsData struct {
	Organizations []service.Resource
}

type NetworksData struct {
	OrgID    string
	Networks []service.Resource
}

// Page is a rendered HTML response, it implements transport.Encoder
type Page struct {
	name string
	data any
}

func (p *Page) Name() string {
	return p.name
}

// Render executes the page template into a buffer, so a failing template
// never leaves a half written response behind
func (p *Page) Render() ([]byte, error) {
	tmpl, ok := pages[p.name]
	if !ok {
		return nil, fmt.Errorf("unknown page %q", p.name)
	}

	var buf bytes.Buffer

	err := tmpl.ExecuteTemplate(&buf, p.name, p.data)
	if err != nil {
		return nil, fmt.Errorf("rendering page %s: %w", p.name, err)
	}

	return buf.Bytes(), nil
}

func (p *Page) Encode(w http.ResponseWriter) error {
	body, err := p.Render()
	if err != nil {
		return err
	}

	return transport.NewByteWriter(ContentTypeHTML, "", body).Encode(w)
}

func NewIndexPage() *Page {
	return &Page{name: PageIndex}
}

func NewAuthURLPage(authURL string) *Page {
	return &Page{name: PageAuthURL, data: AuthURLData{AuthURL: authURL}}
}

func NewAuthCodePage(code string) *Page {
	return &Page{name: PageAuthCode, data: AuthCodeData{Code: code}}
}

func NewTokensPage(s *service.Session) *Page {
	return &Page{
		name: PageTokens,
		data: TokensData{
			AccessToken:  s.AccessToken,
			RefreshToken: s.RefreshToken,
			Expiry:       s.TokenExpiry.UTC(),
		},
	}
}

func NewOrganizationsPage(orgs []service.Resource) *Page {
	return &Page{name: PageOrganizations, data: OrganizationsData{Organizations: orgs}}
}

func NewNetworksPage(orgID string, networks []service.Resource) *Page {
	return &Page{name: PageNetworks, data: NetworksData{OrgID: orgID, Networks: networks}}
}
