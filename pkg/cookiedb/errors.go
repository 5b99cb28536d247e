package cookiedb

import (
	"errors"

	"github.com/cookiedb/cookiedb-go/internal/cookieapi"
)

// ServerError is a failure reported by the CookieDB server itself: the error
// field of a structured response, or a non-"success" text body. The message
// is surfaced verbatim; the protocol carries no machine-readable error
// codes, so not-found, validation, conflict and authorization failures are
// all distinguishable only by their message text.
type ServerError = cookieapi.ServerError

// TransportError is a failure below the protocol: connection errors,
// cancelled contexts, and response bodies that cannot be interpreted as
// either protocol shape. The driver never retries these.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return "cookiedb: " + e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// wrapErr classifies err for the named operation: server-reported errors
// pass through untouched, everything else becomes a *TransportError.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return serverErr
	}
	return &TransportError{Op: op, Err: err}
}
