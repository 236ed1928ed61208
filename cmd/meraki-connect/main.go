package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/navikt/meraki-connect/pkg/auth"
	"github.com/navikt/meraki-connect/pkg/cache"
	"github.com/navikt/meraki-connect/pkg/config/v2"
	"github.com/navikt/meraki-connect/pkg/database"
	"github.com/navikt/meraki-connect/pkg/leaderelection"
	"github.com/navikt/meraki-connect/pkg/meraki"
	"github.com/navikt/meraki-connect/pkg/requestlogger"
	"github.com/navikt/meraki-connect/pkg/secrets"
	"github.com/navikt/meraki-connect/pkg/service"
	"github.com/navikt/meraki-connect/pkg/service/core"
	"github.com/navikt/meraki-connect/pkg/service/core/api"
	httpapi "github.com/navikt/meraki-connect/pkg/service/core/api/http"
	"github.com/navikt/meraki-connect/pkg/service/core/handlers"
	"github.com/navikt/meraki-connect/pkg/service/core/routes"
	"github.com/navikt/meraki-connect/pkg/service/core/storage"
	"github.com/navikt/meraki-connect/pkg/service/core/storage/memory"
	"github.com/navikt/meraki-connect/pkg/service/core/storage/postgres"
	redisstore "github.com/navikt/meraki-connect/pkg/service/core/storage/redis"
	"github.com/navikt/meraki-connect/pkg/syncers/sessioncleaner"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

var (
	configFilePath = flag.String("config", "config.yaml", "path to config file")
	envFilePath    = flag.String("env-file", ".env", "path to env file, ignored when missing")
	printRoutes    = flag.Bool("print-routes", false, "print the routes and exit")
)

const (
	EnvPrefix = "MERAKI"

	SessionCleanerDelay = 10 * time.Second
	ShutdownTimeout     = 5 * time.Second
)

func main() {
	flag.Parse()

	zlog := zerolog.New(os.Stdout).With().Timestamp().Logger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	cfg, err := loadConfig(ctx, zlog)
	if err != nil {
		zlog.Fatal().Err(err).Msg("loading config")
	}

	err = cfg.Validate()
	if err != nil {
		zlog.Fatal().Err(err).Msg("validating config")
	}

	log, err := newLogger(cfg)
	if err != nil {
		zlog.Fatal().Err(err).Msg("setting up logger")
	}

	err = run(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("running meraki-connect")
	}
}

func loadConfig(ctx context.Context, log zerolog.Logger) (config.Config, error) {
	loaded, err := secrets.LoadDotEnv(*envFilePath)
	if err != nil {
		return config.Config{}, err
	}

	if loaded {
		log.Info().Str("path", *envFilePath).Msg("loaded env file")
	}

	fileParts, err := config.ProcessConfigPath(*configFilePath)
	if err != nil {
		return config.Config{}, fmt.Errorf("processing config path: %w", err)
	}

	loader := config.NewFileSystemLoader()

	cfg, err := loader.Load(fileParts.FileName, fileParts.Path, EnvPrefix, config.NewDefaultEnvBinder())
	if err != nil {
		return config.Config{}, err
	}

	if cfg.AWSSecrets.SecretID == "" {
		return cfg, nil
	}

	client, err := secrets.NewSecretsManagerClient(ctx, cfg.AWSSecrets.Region)
	if err != nil {
		return config.Config{}, err
	}

	_, err = secrets.NewLoader(client, log.With().Str("subsystem", "secrets").Logger()).Apply(ctx, secrets.Source{
		SecretID:     cfg.AWSSecrets.SecretID,
		VersionStage: cfg.AWSSecrets.VersionStage,
		Overwrite:    cfg.AWSSecrets.Overwrite,
	})
	if err != nil {
		return config.Config{}, err
	}

	// Read again so values from the secret override the file
	return loader.Load(fileParts.FileName, fileParts.Path, EnvPrefix, config.NewDefaultEnvBinder())
}

func newLogger(cfg config.Config) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("parsing log level: %w", err)
	}

	if cfg.Debug {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).Level(level).With().Timestamp().Logger(), nil
	}

	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger(), nil
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	vendorRequests := httpapi.NewVendorRequestsCounter()
	refreshRedirects := handlers.NewRefreshRedirectsCounter()

	var (
		sessionStorage service.SessionStorage
		cacher         cache.Cacher
		leader         sessioncleaner.Leader
	)

	switch cfg.SessionStore.Backend {
	case config.SessionBackendPostgres:
		repo, err := database.New(
			cfg.Postgres.ConnectionString(),
			cfg.Postgres.Configuration.MaxIdleConnections,
			cfg.Postgres.Configuration.MaxOpenConnections,
			log.With().Str("subsystem", "repo").Logger(),
		)
		if err != nil {
			return fmt.Errorf("setting up database: %w", err)
		}
		defer repo.Close()

		sessionStorage = postgres.NewSessionStorage(repo.Querier)

		if cfg.CacheDurationSeconds > 0 {
			cacher = cache.New(cfg.CacheDuration(), repo.GetDB(), log.With().Str("subsystem", "cache").Logger())
		}

		// Replicas share the table, so only the leader deletes from it
		leader = leaderelection.New(cfg.SessionStore.ElectorPath, nil)
	case config.SessionBackendRedis:
		client, err := redisstore.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("setting up redis: %w", err)
		}
		defer client.Close()

		sessionStorage = redisstore.NewSessionStorage(client, time.Now)
	default:
		sessionStorage = memory.NewSessionStorage(time.Now)
	}

	log.Info().Str("backend", cfg.SessionStore.Backend).Msg("session store ready")

	if cfg.Oauth.ClientID == "" || cfg.Oauth.ClientSecret == "" {
		log.Warn().Msg("oauth client id or secret is empty, token requests will be rejected")
	}

	clients := api.NewClients(
		cacher,
		meraki.New(
			cfg.Meraki.APIURL,
			httpapi.NewInstrumentedClient(cfg.Meraki.Timeout(), vendorRequests, httpapi.VendorAPIDashboard),
		),
		httpapi.NewInstrumentedClient(cfg.Meraki.Timeout(), vendorRequests, httpapi.VendorAPIToken),
		cfg,
	)

	services := core.NewServices(
		core.NewAuthService(clients.OAuthAPI, cfg.Token.FallbackLifetime(), time.Now, log.With().Str("subsystem", "auth_service").Logger()),
		core.NewMerakiService(clients.MerakiAPI, time.Now),
	)

	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		log.Warn().Msg("no session secret configured, sessions will not survive a restart")

		var err error

		secret, err = auth.NewSessionSecret()
		if err != nil {
			return err
		}
	}

	sessionManager, err := auth.NewSessionManager(
		sessionStorage,
		cfg.Cookies.Session,
		secret,
		time.Now,
		log.With().Str("subsystem", "sessions").Logger(),
	)
	if err != nil {
		return fmt.Errorf("setting up session manager: %w", err)
	}

	h := handlers.NewHandlers(services, storage.NewStores(sessionStorage), refreshRedirects, log)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(requestlogger.Middleware(log, "/internal/metrics", "/internal/healthz"))

	routes.Add(router, cfg.Server.AllowedOrigins,
		routes.NewAuthRoutes(routes.NewAuthEndpoints(log, h), sessionManager.Handler),
		routes.NewMerakiRoutes(routes.NewMerakiEndpoints(log, h), sessionManager.Handler),
		routes.NewMetricsRoutes(routes.NewMetricsEndpoints(log, prom(vendorRequests, refreshRedirects))),
	)

	if *printRoutes {
		return routes.Print(router, os.Stdout)
	}

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Address, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("address", server.Addr).Msg("listening")

		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}

		return nil
	})

	if cfg.SessionStore.CleanupFrequencySeconds > 0 {
		g.Go(func() error {
			sessioncleaner.New(sessionStorage, leader, log.With().Str("subsystem", "sessioncleaner").Logger()).Run(
				gctx,
				SessionCleanerDelay,
				time.Duration(cfg.SessionStore.CleanupFrequencySeconds)*time.Second,
			)

			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		if err != nil {
			log.Warn().Err(err).Msg("shutdown error")
		}

		return nil
	})

	return g.Wait()
}

func prom(cols ...prometheus.Collector) *prometheus.Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewGoCollector())
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(cols...)

	return r
}
