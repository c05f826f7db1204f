package codes

import "net/http"

// Class is how the fetcher treats an HTTP status
type Class int

const (
	// Success is a 200 response whose body may be used
	Success Class = iota
	// Authorization failures abort the run, credentials must be fixed
	Authorization
	// BadRequest means the upstream rejected our parameters, retrying won't help
	BadRequest
	// RateLimited responses are retried with the aggressive backoff
	RateLimited
	// Retryable covers 5xx and every other unexpected status
	Retryable
)

func (c Class) String() string {
	switch c {
	case Success:
		return "success"
	case Authorization:
		return "authorization"
	case BadRequest:
		return "bad-request"
	case RateLimited:
		return "rate-limited"
	default:
		return "retryable"
	}
}

// StatusDescriptions maps the status codes the upstream APIs are known to
// return to their meaning for an ingestion run
var StatusDescriptions = map[int]string{
	http.StatusOK:                  "Success",
	http.StatusBadRequest:          "API rejected request parameters",
	http.StatusUnauthorized:        "Missing or invalid API key",
	http.StatusForbidden:           "API key not allowed for this resource",
	http.StatusNotFound:            "Resource not found",
	http.StatusRequestTimeout:      "Upstream request timeout",
	http.StatusTooManyRequests:     "Rate limit exceeded",
	http.StatusInternalServerError: "Upstream internal error",
	http.StatusBadGateway:          "Upstream gateway error",
	http.StatusServiceUnavailable:  "Upstream unavailable",
	http.StatusGatewayTimeout:      "Upstream gateway timeout",
}

// Classify returns how a response with the given status must be handled
func Classify(status int) Class {
	switch status {
	case http.StatusOK:
		return Success
	case http.StatusUnauthorized, http.StatusForbidden:
		return Authorization
	case http.StatusBadRequest:
		return BadRequest
	case http.StatusTooManyRequests:
		return RateLimited
	default:
		return Retryable
	}
}

// IsCacheable reports whether a response with this status may ever be
// written to the response cache
func IsCacheable(status int) bool {
	return status == http.StatusOK
}

// Describe returns the description for a status code, or a generic message if unknown
func Describe(status int) string {
	if msg, ok := StatusDescriptions[status]; ok {
		return msg
	}

	if text := http.StatusText(status); text != "" {
		return text
	}

	return "Unknown status"
}
