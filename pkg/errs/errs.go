// Package errs provides the error type used throughout the service. An error
// carries the operation that produced it, a kind that decides the HTTP status,
// and an optional parameter and message that is safe to show to the user.
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// Op describes an operation, usually as the package and method,
// such as "authService.ExchangeCode".
type Op string

// Parameter is the name of the request parameter the error relates to.
type Parameter string

// Code is a short machine readable error code.
type Code string

// UserName identifies the user or session the error happened for.
type UserName string

type Kind uint8

const (
	Other           Kind = iota // Unclassified error
	InvalidRequest              // Missing or malformed input
	Validation                  // Input failed validation
	Unauthenticated             // No or invalid credentials
	Unauthorized                // Credentials lack permission
	NotExist                    // Item does not exist
	IO                          // External I/O error such as a vendor API call
	Database                    // Error from the session store
	Internal                    // Internal error or inconsistency
)

func (k Kind) String() string {
	switch k {
	case Other:
		return "other_error"
	case InvalidRequest:
		return "invalid_request_error"
	case Validation:
		return "validation_error"
	case Unauthenticated:
		return "unauthenticated_request"
	case Unauthorized:
		return "unauthorized_request"
	case NotExist:
		return "item_does_not_exist"
	case IO:
		return "io_error"
	case Database:
		return "database_error"
	case Internal:
		return "internal_error"
	}

	return "unknown_error_kind"
}

// Error is the error type of the service.
type Error struct {
	Op    Op
	Kind  Kind
	Param Parameter
	Code  Code
	User  UserName
	// Msg is shown to the user instead of the wrapped error, when set
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}

	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds an error from its arguments. The type of each argument decides
// its meaning. A plain string is used as the user-visible message, an error
// is wrapped. If the wrapped error is an *Error without its own kind, the
// kind of the wrapped error is lifted.
func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("call to errs.E with no arguments")
	}

	e := &Error{}

	for _, arg := range args {
		switch arg := arg.(type) {
		case Op:
			e.Op = arg
		case Kind:
			e.Kind = arg
		case Parameter:
			e.Param = arg
		case Code:
			e.Code = arg
		case UserName:
			e.User = arg
		case string:
			e.Msg = arg
		case *Error:
			cp := *arg
			e.Err = &cp
		case error:
			e.Err = arg
		case nil:
		default:
			return fmt.Errorf("unknown type %T, value %v in error call", arg, arg)
		}
	}

	prev, ok := e.Err.(*Error)
	if !ok {
		return e
	}

	if e.Kind == Other {
		e.Kind = prev.Kind
	}

	return e
}

// Str returns an error that formats as the given text, for use with E.
func Str(text string) error {
	return errors.New(text)
}

// KindIs reports whether err is an *Error of the given kind. When the outer
// error has no kind the inner errors are checked.
func KindIs(kind Kind, err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	if e.Kind != Other {
		return e.Kind == kind
	}

	if e.Err != nil {
		return KindIs(kind, e.Err)
	}

	return false
}

// OpStack returns the ops of the nested errors, outermost first.
func OpStack(err error) []string {
	var ops []string

	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			break
		}

		if e.Op != "" {
			ops = append(ops, string(e.Op))
		}

		err = e.Err
	}

	return ops
}

// InternalErrorMessage replaces the error text of server side failures
// that carry no message of their own.
const InternalErrorMessage = "internal error"

// Message returns the user-visible message of err, the innermost message
// set with E wins over the outer ones. Falls back to the error text.
func Message(err error) string {
	msg := explicitMessage(err)
	if msg != "" {
		return msg
	}

	if err == nil {
		return ""
	}

	return err.Error()
}

func explicitMessage(err error) string {
	msg := ""

	for cur := err; cur != nil; {
		var e *Error
		if !errors.As(cur, &e) {
			break
		}

		if e.Msg != "" {
			msg = e.Msg
		}

		cur = e.Err
	}

	return msg
}

// responseMessage is Message, except that store and other internal errors
// without a message are not shown to the user. Vendor errors are.
func responseMessage(err error, status int) string {
	msg := explicitMessage(err)
	if msg != "" {
		return msg
	}

	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		return InternalErrorMessage
	}

	return err.Error()
}

func httpStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}

	kind := e.Kind
	for kind == Other && e.Err != nil {
		var inner *Error
		if !errors.As(e.Err, &inner) {
			break
		}

		e = inner
		kind = e.Kind
	}

	switch kind {
	case InvalidRequest, Validation:
		return http.StatusBadRequest
	case Unauthenticated:
		return http.StatusUnauthorized
	case Unauthorized:
		return http.StatusForbidden
	case NotExist:
		return http.StatusNotFound
	case IO:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HTTPErrorResponse logs the error and writes the user-visible message of
// err as a plain text response with a status decided by its kind.
func HTTPErrorResponse(w http.ResponseWriter, lg zerolog.Logger, err error) {
	if err == nil {
		lg.Error().Msg("nil error passed to HTTPErrorResponse")
		w.WriteHeader(http.StatusInternalServerError)

		return
	}

	status := httpStatus(err)

	var e *Error
	event := lg.Error()
	if status < http.StatusInternalServerError {
		event = lg.Info()
	}

	if errors.As(err, &e) {
		event = event.Str("kind", e.Kind.String()).
			Str("param", string(e.Param)).
			Str("code", string(e.Code)).
			Str("ops", strings.Join(OpStack(err), " -> "))
	}

	event.Err(err).Int("status", status).Msg("request failed")

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = fmt.Fprint(w, responseMessage(err, status))
}
