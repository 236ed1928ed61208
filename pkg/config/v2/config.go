package config

import (
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-ozzo/ozzo-validation/v4/is"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/mitchellh/mapstructure"

	"github.com/spf13/viper"
)

const (
	defaultExtension = "yaml"
	defaultTagName   = "yaml"
)

const (
	SessionBackendMemory   = "memory"
	SessionBackendPostgres = "postgres"
	SessionBackendRedis    = "redis"
)

type Binder interface {
	Bind(v *viper.Viper) error
}

type Loader interface {
	Load(name, path, envPrefix string, binder Binder) (Config, error)
}

type Config struct {
	Oauth        Oauth        `yaml:"oauth"`
	Meraki       Meraki       `yaml:"meraki"`
	Token        Token        `yaml:"token"`
	Server       Server       `yaml:"server"`
	Cookies      Cookies      `yaml:"cookies"`
	SessionStore SessionStore `yaml:"session_store"`
	Postgres     Postgres     `yaml:"postgres"`
	Redis        Redis        `yaml:"redis"`
	AWSSecrets   AWSSecrets   `yaml:"aws_secrets"`

	SessionSecret        string `yaml:"session_secret"`
	LogLevel             string `yaml:"log_level"`
	CacheDurationSeconds int    `yaml:"cache_duration_seconds"`
	Debug                bool   `yaml:"debug"`
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Oauth, validation.Required),
		validation.Field(&c.Meraki, validation.Required),
		validation.Field(&c.Token, validation.Required),
		validation.Field(&c.Server, validation.Required),
		validation.Field(&c.Cookies, validation.Required),
		validation.Field(&c.SessionStore, validation.Required),
		validation.Field(&c.Postgres, validation.Skip.When(c.SessionStore.Backend != SessionBackendPostgres), validation.Required),
		validation.Field(&c.Redis, validation.Skip.When(c.SessionStore.Backend != SessionBackendRedis), validation.Required),
		validation.Field(&c.AWSSecrets),
		validation.Field(&c.LogLevel, validation.Required, validation.In("trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled")),
		validation.Field(&c.CacheDurationSeconds, validation.Min(0)),
	)
}

// CacheDuration is zero when caching of vendor resources is disabled.
func (c Config) CacheDuration() time.Duration {
	return time.Duration(c.CacheDurationSeconds) * time.Second
}

// Oauth holds the vendor application credentials and endpoints. The client
// id and secret are not required, since a missing value only surfaces as an
// error from the vendor.
type Oauth struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	RedirectURL  string   `yaml:"redirect_url"`
	AuthURL      string   `yaml:"auth_url"`
	TokenURL     string   `yaml:"token_url"`
	Scopes       []string `yaml:"scopes"`
}

func (o Oauth) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.RedirectURL, is.URL),
		validation.Field(&o.AuthURL, validation.Required, is.URL),
		validation.Field(&o.TokenURL, validation.Required, is.URL),
		validation.Field(&o.Scopes, validation.Required),
	)
}

type Meraki struct {
	APIURL         string `yaml:"api_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func (m Meraki) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.APIURL, validation.Required, is.URL),
		validation.Field(&m.TimeoutSeconds, validation.Min(0)),
	)
}

func (m Meraki) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

type Token struct {
	// FallbackLifetimeMinutes is used when the token response has no expires_in
	FallbackLifetimeMinutes int `yaml:"fallback_lifetime_minutes"`
}

func (t Token) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.FallbackLifetimeMinutes, validation.Required, validation.Min(1)),
	)
}

func (t Token) FallbackLifetime() time.Duration {
	return time.Duration(t.FallbackLifetimeMinutes) * time.Minute
}

type SessionStore struct {
	Backend                 string `yaml:"backend"`
	CleanupFrequencySeconds int    `yaml:"cleanup_frequency_seconds"`
	// ElectorPath is the leader election sidecar, every replica cleans
	// up sessions when empty
	ElectorPath string `yaml:"elector_path"`
}

func (s SessionStore) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Backend, validation.Required, validation.In(
			SessionBackendMemory,
			SessionBackendPostgres,
			SessionBackendRedis,
		)),
		validation.Field(&s.CleanupFrequencySeconds, validation.Min(0)),
	)
}

type Redis struct {
	URL string `yaml:"url"`
}

func (r Redis) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.URL, validation.Required, validation.Match(redisURLPattern)),
	)
}

// AWSSecrets points at an optional secret in AWS Secrets Manager, holding a
// JSON object of environment variables.
type AWSSecrets struct {
	SecretID     string `yaml:"secret_id"`
	Region       string `yaml:"region"`
	VersionStage string `yaml:"version_stage"`
	Overwrite    bool   `yaml:"overwrite"`
}

func (a AWSSecrets) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Region, validation.When(a.SecretID != "", validation.Required)),
	)
}

type Postgres struct {
	UserName      string                `yaml:"user_name"`
	Password      string                `yaml:"password"`
	Host          string                `yaml:"host"`
	Port          string                `yaml:"port"`
	DatabaseName  string                `yaml:"database_name"`
	SSLMode       string                `yaml:"ssl_mode"`
	Configuration PostgresConfiguration `yaml:"configuration"`
}

func (p Postgres) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.UserName, validation.Required),
		validation.Field(&p.Password, validation.Required),
		validation.Field(&p.Host, validation.Required, is.Host),
		validation.Field(&p.Port, validation.Required, is.Port),
		validation.Field(&p.DatabaseName, validation.Required),
		validation.Field(&p.SSLMode, validation.Required, validation.In("disable", "allow", "prefer", "require")),
	)
}

func (p Postgres) ConnectionString() string {
	return fmt.Sprintf("postgresql://%s:%s@%s/%s?sslmode=%s",
		p.UserName,
		p.Password,
		net.JoinHostPort(p.Host, p.Port),
		p.DatabaseName,
		p.SSLMode,
	)
}

type PostgresConfiguration struct {
	MaxIdleConnections int `yaml:"max_idle_connections"`
	MaxOpenConnections int `yaml:"max_open_connections"`
}

type Server struct {
	Hostname string `yaml:"hostname"`
	Address  string `yaml:"address"`
	Port     string `yaml:"port"`
	// AllowedOrigins may read pages cross-origin, without credentials
	AllowedOrigins []string `yaml:"allowed_origins"`
}

func (s Server) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Address, validation.Required, is.IP),
		validation.Field(&s.Hostname, validation.Required, is.Host),
		validation.Field(&s.Port, validation.Required, is.Port),
		validation.Field(&s.AllowedOrigins, validation.Each(validation.Required, validation.Match(originPattern))),
	)
}

type Cookies struct {
	Session CookieSettings `yaml:"session"`
}

func (c Cookies) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Session, validation.Required),
	)
}

type CookieSettings struct {
	Name     string `yaml:"name"`
	MaxAge   int    `yaml:"max_age"`
	Path     string `yaml:"path"`
	Domain   string `yaml:"domain"`
	SameSite string `yaml:"same_site"`
	Secure   bool   `yaml:"secure"`
	HttpOnly bool   `yaml:"http_only"`
}

func (c CookieSettings) GetSameSite() http.SameSite {
	switch c.SameSite {
	case "Strict":
		return http.SameSiteStrictMode
	case "Lax":
		return http.SameSiteLaxMode
	case "None":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}

func (c CookieSettings) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.MaxAge, validation.Required),
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Domain, is.Host),
		// Valid SameSite values:
		// - https://developer.mozilla.org/en-US/docs/Web/HTTP/Headers/Set-Cookie#samesitesamesite-value
		validation.Field(&c.SameSite, validation.Required, validation.In("Strict", "Lax", "None")),
	)
}

type FileParts struct {
	FileName string
	Path     string
}

func ProcessConfigPath(configFile string) (FileParts, error) {
	absolutePath, err := filepath.Abs(configFile)
	if err != nil {
		return FileParts{}, fmt.Errorf("convert to absolute path: %w", err)
	}

	fileName := filepath.Base(absolutePath)
	path := filepath.Dir(absolutePath)
	extension := filepath.Ext(fileName)

	if strings.ReplaceAll(strings.ToLower(extension), ".", "") != defaultExtension {
		return FileParts{}, fmt.Errorf("config file must have extension %s, got: %s", defaultExtension, extension)
	}

	return FileParts{
		FileName: fileName[:len(fileName)-len(extension)],
		Path:     path,
	}, nil
}

func NewFileSystemLoader() *FileSystemLoader {
	return &FileSystemLoader{}
}

type FileSystemLoader struct{}

func (fs *FileSystemLoader) Load(name, path, envPrefix string, b Binder) (Config, error) {
	v := viper.New()

	v.AddConfigPath(path)
	v.SetConfigName(name)
	v.SetConfigType(defaultExtension)

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // So that env vars are translated properly
	v.AutomaticEnv()

	if b != nil {
		err := b.Bind(v)
		if err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix(envPrefix)

	err := v.ReadInConfig()
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var config Config

	err = v.Unmarshal(&config, func(cfg *mapstructure.DecoderConfig) {
		cfg.TagName = defaultTagName // We use yaml tags in the config structs so we can marshal to yaml
	})
	if err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("oauth.auth_url", "https://as.meraki.com/oauth/authorize")
	v.SetDefault("oauth.token_url", "https://as.meraki.com/oauth/token")
	v.SetDefault("oauth.scopes", []string{"dashboard:general:config:read"})
	v.SetDefault("meraki.api_url", "https://api.meraki.com/api/v1")
	v.SetDefault("meraki.timeout_seconds", 10)
	v.SetDefault("token.fallback_lifetime_minutes", 60)
	v.SetDefault("server.hostname", "localhost")
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", "5000")
	v.SetDefault("session_store.backend", SessionBackendMemory)
	v.SetDefault("session_store.cleanup_frequency_seconds", 300)
	v.SetDefault("aws_secrets.version_stage", "AWSCURRENT")
	v.SetDefault("log_level", "info")
}

type EnvBinder struct {
	binders map[string]string
}

func (e *EnvBinder) Bind(v *viper.Viper) error {
	for envVar, key := range e.binders {
		err := v.BindEnv(key, envVar)
		if err != nil {
			return fmt.Errorf("bind env var %s to key %s: %w", envVar, key, err)
		}
	}

	return nil
}

func NewEnvBinder(binders map[string]string) *EnvBinder {
	return &EnvBinder{
		binders: binders,
	}
}

// NewDefaultEnvBinder binds the environment variables the vendor documents
// for OAuth integrations.
func NewDefaultEnvBinder() *EnvBinder {
	return NewEnvBinder(map[string]string{
		"MERAKI_CLIENT_ID":     "oauth.client_id",
		"MERAKI_CLIENT_SECRET": "oauth.client_secret",
		"MERAKI_REDIRECT_URI":  "oauth.redirect_url",
		"SESSION_SECRET":       "session_secret",
		"REDIS_URL":            "redis.url",
		"ELECTOR_PATH":         "session_store.elector_path",
	})
}

var (
	redisURLPattern = regexp.MustCompile(`^rediss?://`)
	// scheme and host with an optional port, no wildcards or paths
	originPattern = regexp.MustCompile(`^https?://[A-Za-z0-9.-]+(:[0-9]{1,5})?$`)
)
