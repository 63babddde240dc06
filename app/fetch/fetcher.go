package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"
)

// Validators are the conditional request tokens replayed to upstream.
type Validators struct {
	ETag         string
	LastModified string
}

type Response struct {
	NotModified  bool
	Body         []byte
	ContentType  string
	ETag         string
	LastModified string
}

type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	timeout    time.Duration
	maxPayload int64
}

func NewFetcher(httpClient *http.Client, userAgent string, timeout time.Duration, maxPayload int64) *Fetcher {
	return &Fetcher{
		httpClient: httpClient,
		userAgent:  userAgent,
		timeout:    timeout,
		maxPayload: maxPayload,
	}
}

func IsRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Get issues a GET for url, attaching whichever validators are present.
// A 304 answer is returned as Response.NotModified, statuses >= 400 as *UpstreamError.
func (f *Fetcher) Get(ctx context.Context, url string, validators Validators) (*Response, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &UpstreamError{Kind: KindTransport, Source: url, Wrapped: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("User-Agent", f.userAgent)
	if validators.ETag != "" {
		req.Header.Set("If-None-Match", validators.ETag)
	}
	if validators.LastModified != "" {
		req.Header.Set("If-Modified-Since", validators.LastModified)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, f.classify(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return &Response{NotModified: true}, nil
	}

	if resp.StatusCode >= 400 {
		slog.Error("Upstream error", "source", url, "status", resp.StatusCode)
		return nil, &UpstreamError{Kind: KindHTTPStatus, Source: url, Status: resp.StatusCode}
	}

	body, err := f.readLimited(url, resp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		Body:         body,
		ContentType:  resp.Header.Get("Content-Type"),
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}, nil
}

// ReadLocal reads a feed from the filesystem, applying the same payload cap as remote fetches.
func (f *Fetcher) ReadLocal(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &UpstreamError{Kind: KindTransport, Source: path, Wrapped: err}
	}
	defer file.Close()

	return f.readLimited(path, file)
}

func (f *Fetcher) readLimited(source string, r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, f.maxPayload+1))
	if err != nil {
		return nil, f.classify(source, fmt.Errorf("failed to read response body: %w", err))
	}

	if int64(len(data)) > f.maxPayload {
		slog.Error("Payload too large", "source", source, "limit", f.maxPayload)
		return nil, &UpstreamError{Kind: KindTooLarge, Source: source, Limit: f.maxPayload}
	}

	return data, nil
}

func (f *Fetcher) classify(source string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		slog.Error("Timeout fetching feed", "source", source)
		return &UpstreamError{Kind: KindTimeout, Source: source, Wrapped: err}
	}

	slog.Error("Error fetching feed", "source", source, "error", err)
	return &UpstreamError{Kind: KindTransport, Source: source, Wrapped: err}
}

// IsFeedContentType reports whether a Content-Type header plausibly describes a feed.
// An absent header is accepted.
func IsFeedContentType(contentType string) bool {
	if contentType == "" {
		return true
	}

	lower := strings.ToLower(contentType)
	for _, marker := range []string{"rss", "atom", "xml", "feed"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
