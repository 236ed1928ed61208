package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/navikt/meraki-connect/pkg/config/v2"
	"github.com/navikt/meraki-connect/pkg/errs"
	"github.com/navikt/meraki-connect/pkg/service"
	"github.com/rs/zerolog"
)

const (
	cookieIssuer = "meraki-connect"
	secretLength = 32
)

type contextKey int

const ContextSessionKey contextKey = 1

func GetSession(ctx context.Context) *service.Session {
	session := ctx.Value(ContextSessionKey)
	if session == nil {
		return nil
	}

	return session.(*service.Session)
}

func SetSession(ctx context.Context, session *service.Session) context.Context {
	return context.WithValue(ctx, ContextSessionKey, session)
}

// SessionManager loads the session of each request from the session cookie,
// holding a lock on the session until the request is done.
type SessionManager struct {
	store    service.SessionStorage
	cookie   config.CookieSettings
	secret   []byte
	lifetime time.Duration
	locks    *keyedMutex
	now      func() time.Time
	log      zerolog.Logger
}

func (m *SessionManager) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const op errs.Op = "SessionManager.Handler"

		ctx := r.Context()

		id, ok := m.sessionID(r)
		if !ok {
			id = uuid.NewString()
		}

		unlock := m.locks.Lock(id)
		defer unlock()

		session, err := m.store.GetSession(ctx, id)
		if err != nil && !errs.KindIs(errs.NotExist, err) {
			errs.HTTPErrorResponse(w, m.log, errs.E(op, err))
			return
		}

		if session == nil {
			session = service.NewSession(id, m.now(), m.lifetime)

			err = m.store.SaveSession(ctx, session)
			if err != nil {
				errs.HTTPErrorResponse(w, m.log, errs.E(op, err))
				return
			}

			err = m.setCookie(w, session)
			if err != nil {
				errs.HTTPErrorResponse(w, m.log, errs.E(errs.Internal, op, err))
				return
			}

			m.log.Debug().Str("session", session.ID).Msg("new session")
		}

		next.ServeHTTP(w, r.WithContext(SetSession(ctx, session)))
	})
}

// sessionID returns the session id from a valid, unexpired cookie.
func (m *SessionManager) sessionID(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(m.cookie.Name)
	if err != nil {
		return "", false
	}

	claims := &jwt.RegisteredClaims{}

	_, err = jwt.ParseWithClaims(cookie.Value, claims, func(_ *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		m.log.Debug().Err(err).Msg("ignoring invalid session cookie")
		return "", false
	}

	if claims.Issuer != cookieIssuer || claims.ID == "" {
		return "", false
	}

	_, err = uuid.Parse(claims.ID)
	if err != nil {
		return "", false
	}

	return claims.ID, true
}

func (m *SessionManager) setCookie(w http.ResponseWriter, session *service.Session) error {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        session.ID,
		Issuer:    cookieIssuer,
		IssuedAt:  jwt.NewNumericDate(session.Created),
		ExpiresAt: jwt.NewNumericDate(session.Expires),
	})

	value, err := token.SignedString(m.secret)
	if err != nil {
		return fmt.Errorf("signing session cookie: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookie.Name,
		Value:    value,
		Path:     m.cookie.Path,
		Domain:   m.cookie.Domain,
		MaxAge:   m.cookie.MaxAge,
		Expires:  session.Expires,
		Secure:   m.cookie.Secure,
		HttpOnly: m.cookie.HttpOnly,
		SameSite: m.cookie.GetSameSite(),
	})

	return nil
}

// NewSessionSecret returns a random key for signing session cookies, cookies
// signed with it do not survive a restart.
func NewSessionSecret() ([]byte, error) {
	secret := make([]byte, secretLength)

	_, err := rand.Read(secret)
	if err != nil {
		return nil, fmt.Errorf("generating session secret: %w", err)
	}

	return secret, nil
}

func NewSessionManager(
	store service.SessionStorage,
	cookie config.CookieSettings,
	secret []byte,
	now func() time.Time,
	log zerolog.Logger,
) (*SessionManager, error) {
	if len(secret) == 0 {
		return nil, errors.New("session secret is empty")
	}

	if cookie.MaxAge <= 0 {
		return nil, fmt.Errorf("session cookie max age must be positive, got: %d", cookie.MaxAge)
	}

	if now == nil {
		now = time.Now
	}

	return &SessionManager{
		store:    store,
		cookie:   cookie,
		secret:   secret,
		lifetime: time.Duration(cookie.MaxAge) * time.Second,
		locks:    newKeyedMutex(),
		now:      now,
		log:      log,
	}, nil
}
