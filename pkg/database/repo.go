package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"embed"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/qustavo/sqlhooks/v2"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

type Repo struct {
	Querier Querier
	db      *sql.DB
	log     zerolog.Logger
}

func (r *Repo) GetDB() *sql.DB {
	return r.db
}

func (r *Repo) Close() error {
	return r.db.Close()
}

// New opens a connection pool with query logging and brings the schema up to
// date.
func New(dbConnDSN string, maxIdleConn, maxOpenConn int, log zerolog.Logger) (*Repo, error) {
	db := sql.OpenDB(&dsnConnector{
		dsn:    dbConnDSN,
		driver: sqlhooks.Wrap(&pq.Driver{}, &hooks{log: log}),
	})

	db.SetMaxIdleConns(maxIdleConn)
	db.SetMaxOpenConns(maxOpenConn)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(&gooseLogger{log: log})

	err = goose.SetDialect("postgres")
	if err != nil {
		return nil, fmt.Errorf("setting dialect: %w", err)
	}

	err = goose.Up(db, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return &Repo{
		Querier: NewQueries(db),
		db:      db,
		log:     log,
	}, nil
}

type dsnConnector struct {
	dsn    string
	driver driver.Driver
}

func (c *dsnConnector) Connect(_ context.Context) (driver.Conn, error) {
	return c.driver.Open(c.dsn)
}

func (c *dsnConnector) Driver() driver.Driver {
	return c.driver
}

type queryStartKey struct{}

// hooks logs every query with its duration at debug level.
type hooks struct {
	log zerolog.Logger
}

func (h *hooks) Before(ctx context.Context, _ string, _ ...interface{}) (context.Context, error) {
	return context.WithValue(ctx, queryStartKey{}, time.Now()), nil
}

func (h *hooks) After(ctx context.Context, query string, _ ...interface{}) (context.Context, error) {
	if start, ok := ctx.Value(queryStartKey{}).(time.Time); ok {
		h.log.Debug().Str("query", query).Dur("took", time.Since(start)).Msg("query")
	}

	return ctx, nil
}

func (h *hooks) OnError(ctx context.Context, err error, query string, _ ...interface{}) error {
	h.log.Debug().Err(err).Str("query", query).Msg("query failed")

	return err
}

type gooseLogger struct {
	log zerolog.Logger
}

func (l *gooseLogger) Fatalf(format string, v ...interface{}) {
	l.log.Fatal().Msgf(format, v...)
}

func (l *gooseLogger) Printf(format string, v ...interface{}) {
	l.log.Info().Msgf(format, v...)
}
