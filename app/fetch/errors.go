package fetch

import (
	"fmt"
	"net/http"
)

type Kind string

const (
	KindTimeout    Kind = "timeout"
	KindHTTPStatus Kind = "http_status"
	KindTransport  Kind = "transport"
	KindTooLarge   Kind = "too_large"
)

// UpstreamError describes why a feed could not be retrieved.
type UpstreamError struct {
	Kind    Kind
	Source  string
	Status  int // upstream status, set for KindHTTPStatus
	Limit   int64
	Wrapped error
}

func (e *UpstreamError) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("upstream returned %d for %s", e.Status, e.Source)
	case KindTooLarge:
		return fmt.Sprintf("feed payload from %s exceeds maximum allowed size of %d bytes", e.Source, e.Limit)
	case KindTimeout:
		return fmt.Sprintf("upstream feed request to %s timed out", e.Source)
	default:
		if e.Wrapped != nil {
			return fmt.Sprintf("error fetching upstream feed %s: %v", e.Source, e.Wrapped)
		}
		return fmt.Sprintf("error fetching upstream feed %s", e.Source)
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Wrapped
}

// HTTPStatus maps the failure to the status this service answers with.
func (e *UpstreamError) HTTPStatus() int {
	switch e.Kind {
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusBadGateway
	}
}
