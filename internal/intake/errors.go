// internal/intake/errors.go
//
// Intake – submission failure taxonomy.
//
// Context
//   A Creator reports failures as one of three categories.  The controller
//   never shows the wrapped error text or response body to the user; it asks
//   SafeMessage for text chosen from the category and sends the raw detail
//   to the diagnostic logger instead.
//
//------------------------------------------------------------------------------

package intake

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError is a response whose status falls outside 200-299.  RawBody is
// opaque diagnostic text and may be empty or truncated.
type HTTPError struct {
	StatusCode int
	RawBody    []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("create patient: unexpected status %d", e.StatusCode)
}

// NetworkError is a request that did not complete (dial, TLS, timeout,
// cancelled context).
type NetworkError struct{ Err error }

func (e *NetworkError) Error() string { return "create patient: request failed: " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

// DecodeError is a 2xx response whose body is not a CreatedPatientRef.
type DecodeError struct {
	Err     error
	RawBody []byte
}

func (e *DecodeError) Error() string { return "create patient: decode response: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// ErrEmptyID is wrapped by DecodeError when the body decodes but carries no id.
var ErrEmptyID = errors.New("response has no id")

// User-facing texts.  Kept together so consumers and tests can match them.
const (
	MsgReview       = "Some details were not accepted.  Please review the form and try again."
	MsgUnauthorized = "You are not allowed to register patients.  Please sign in again."
	MsgDuplicate    = "A matching patient record may already exist.  Please check before retrying."
	MsgUnavailable  = "The patient service is unavailable right now.  Please try again shortly."
	MsgRejected     = "The patient could not be registered.  Please try again."
	MsgNetwork      = "Could not reach the patient service.  Check your connection and try again."
	MsgDecode       = "The patient service sent an unexpected response.  Please confirm the record before retrying."
	MsgGeneric      = "Something went wrong.  Please try again."
)

// SafeMessage picks display text from the category of err.
func SafeMessage(err error) string {
	var (
		he *HTTPError
		ne *NetworkError
		de *DecodeError
	)
	switch {
	case errors.As(err, &he):
		return httpMessage(he.StatusCode)
	case errors.As(err, &ne):
		return MsgNetwork
	case errors.As(err, &de):
		return MsgDecode
	default:
		return MsgGeneric
	}
}

func httpMessage(status int) string {
	switch {
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return MsgReview
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return MsgUnauthorized
	case status == http.StatusConflict:
		return MsgDuplicate
	case status >= 500:
		return MsgUnavailable
	default:
		return MsgRejected
	}
}

// category names the failure kind for logs and metrics labels.
func category(err error) string {
	var (
		he *HTTPError
		ne *NetworkError
		de *DecodeError
	)
	switch {
	case errors.As(err, &he):
		return "http"
	case errors.As(err, &ne):
		return "network"
	case errors.As(err, &de):
		return "decode"
	default:
		return "unexpected"
	}
}
