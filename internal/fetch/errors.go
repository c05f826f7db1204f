package fetch

import (
	"errors"
	"fmt"
)

// Kind classifies why a fetch produced no data
type Kind int

const (
	// KindTransient covers timeouts, connection errors, 5xx and other
	// unexpected statuses. Retried with the standard backoff.
	KindTransient Kind = iota + 1
	// KindRateLimit is a 429. Retried with the aggressive backoff.
	KindRateLimit
	// KindAuthorization is a 401/403. Fatal to the whole run.
	KindAuthorization
	// KindBadRequest is a 400. The request will never succeed.
	KindBadRequest
	// KindContentType means structured output was wanted but the body is not JSON
	KindContentType
	// KindMalformed means the body claimed to be JSON but did not parse
	KindMalformed
	// KindEmpty means a 200 with nothing in it
	KindEmpty
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRateLimit:
		return "rate_limit"
	case KindAuthorization:
		return "authorization"
	case KindBadRequest:
		return "bad_request"
	case KindContentType:
		return "content_type"
	case KindMalformed:
		return "malformed_json"
	case KindEmpty:
		return "empty_body"
	default:
		return "unknown"
	}
}

// Retryable reports whether another attempt may produce a different outcome
func (k Kind) Retryable() bool {
	return k == KindTransient || k == KindRateLimit
}

// Error is the failed side of a fetch
type Error struct {
	Kind   Kind
	Status int // zero when no response was received
	URL    string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the failure kind of err, or zero if err is not a fetch error
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}

	return 0
}

// IsFatal reports whether err must stop the run instead of degrading to "no data"
func IsFatal(err error) bool {
	return KindOf(err) == KindAuthorization
}
