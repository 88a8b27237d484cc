package upstream

import (
	"fmt"
	"net/http"
	"time"
)

// ErrorKind classifies a failed upstream interaction so the HTTP layer
// can map it to a status code without inspecting messages.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindAuth
	KindRateLimited
	KindNotFound
	KindUpstreamServer
	KindNetwork
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindRateLimited:
		return "rate_limited"
	case KindNotFound:
		return "not_found"
	case KindUpstreamServer:
		return "upstream_server"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// Error is the failure type every upstream path returns. StatusCode and
// Body are populated when an HTTP response was received; RateLimitReset
// is populated for 403 responses that carry a reset header.
type Error struct {
	Kind           ErrorKind
	StatusCode     int
	Body           string
	RateLimitReset time.Time
	Message        string
	Err            error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// ClassifyStatus maps an upstream HTTP status to an error kind. 403 is
// treated as rate limiting, which is how the GitHub API signals an
// exhausted quota for unauthenticated callers.
func ClassifyStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized:
		return KindAuth
	case status == http.StatusForbidden:
		return KindRateLimited
	case status == http.StatusNotFound:
		return KindNotFound
	case status >= 500:
		return KindUpstreamServer
	default:
		return KindUnknown
	}
}

// StatusError builds the classified error for a non-success upstream
// status.
func StatusError(status int, body string, reset time.Time) *Error {
	kind := ClassifyStatus(status)
	msg := fmt.Sprintf("upstream returned status %d", status)
	return &Error{
		Kind:           kind,
		StatusCode:     status,
		Body:           body,
		RateLimitReset: reset,
		Message:        msg,
	}
}
