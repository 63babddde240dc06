package service

import (
	"errors"
	"net/http"

	"github.com/lysyi3m/rss-sift/app/feed"
	"github.com/lysyi3m/rss-sift/app/fetch"
)

var (
	ErrAdmissionRejected = errors.New("rate limit exceeded")
	ErrMissingSource     = errors.New("missing required parameter: source")
)

// StatusFor maps a pipeline error to the HTTP status reported to the client.
func StatusFor(err error) int {
	var upstreamErr *fetch.UpstreamError
	var patternErr *feed.PatternError

	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrAdmissionRejected):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrMissingSource), errors.As(err, &patternErr):
		return http.StatusBadRequest
	case errors.Is(err, feed.ErrPresetNotFound):
		return http.StatusNotFound
	case errors.As(err, &upstreamErr):
		return upstreamErr.HTTPStatus()
	default:
		return http.StatusInternalServerError
	}
}
