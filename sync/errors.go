// ABOUTME: Typed failure taxonomy for the scan-and-sync pipeline
// ABOUTME: Maps each failure kind to a distinct HTTP status for callers
package sync

import (
	"context"
	"errors"
	"net/http"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	// KindInvalidInput: the image held no decodable QR code.
	KindInvalidInput Kind = "invalid_input"
	// KindNotFound: the decoded identifier has no stored record.
	KindNotFound Kind = "not_found"
	// KindStoreUnavailable: the record store could not be queried.
	KindStoreUnavailable Kind = "store_unavailable"
	// KindAuthentication: the CRM token exchange was rejected or malformed.
	KindAuthentication Kind = "authentication_error"
	// KindWriteFailed: the CRM accepted auth but did not create the record.
	KindWriteFailed Kind = "write_failed"
	// KindCanceled: the caller cancelled before the pipeline finished.
	KindCanceled Kind = "canceled"
	// KindTimeout: the caller's deadline passed before the pipeline finished.
	KindTimeout Kind = "timeout"
)

// StatusClientClosedRequest is the conventional status for a request the
// client abandoned. net/http has no constant for it.
const StatusClientClosedRequest = 499

// Error is the typed failure returned by every stage of the pipeline.
type Error struct {
	Kind    Kind
	Message string
	// Detail is diagnostic text from the failing peer, e.g. the CRM's
	// error body, preserved verbatim.
	Detail string
	// StatusCode is the peer's HTTP status when one was received.
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := string(e.Kind) + ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// HTTPStatus maps a failure kind to the status the route layer returns.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindStoreUnavailable:
		return http.StatusServiceUnavailable
	case KindAuthentication:
		return http.StatusInternalServerError
	case KindWriteFailed:
		return http.StatusBadGateway
	case KindCanceled:
		return StatusClientClosedRequest
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// aborted types a context error so callers always see a kind.
func aborted(stage string, err error) error {
	kind := KindCanceled
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Message: "request ended before " + stage, Err: err}
}
