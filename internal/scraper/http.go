package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	maxPageBytes  = 2 << 20
	maxImageBytes = 10 << 20
	maxJSONBytes  = 1 << 20
)

// Response is a fully read 2xx HTTP response.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
	// Truncated is set when the body was longer than the read limit and
	// Body holds only its first limit bytes.
	Truncated bool
}

// HTTPFetcher performs GET requests with a browser User-Agent, a fixed
// timeout and optional per-host rate limiting.
// HTTPFetcher is safe for concurrent use.
type HTTPFetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	limiter   *HostLimiter
	log       logrus.FieldLogger
}

// HTTPOption configures an HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithHTTPClient replaces the underlying client. Its own Timeout is kept.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(f *HTTPFetcher) {
		f.client = c
	}
}

// WithTimeout sets the request timeout. Defaults to DefaultFetchTimeout;
// d <= 0 keeps the default.
func WithTimeout(d time.Duration) HTTPOption {
	return func(f *HTTPFetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithUserAgent overrides DefaultUserAgent. An empty ua keeps the default.
func WithUserAgent(ua string) HTTPOption {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithRateLimit enables per-host rate limiting. rps <= 0 disables it.
func WithRateLimit(rps float64) HTTPOption {
	return func(f *HTTPFetcher) {
		if rps <= 0 {
			f.limiter = nil
			return
		}
		f.limiter = NewHostLimiter(rps)
	}
}

// NewHTTPFetcher creates a new HTTPFetcher.
func NewHTTPFetcher(logger logrus.FieldLogger, opts ...HTTPOption) *HTTPFetcher {
	f := &HTTPFetcher{
		timeout:   DefaultFetchTimeout,
		userAgent: DefaultUserAgent,
		log:       logger.WithField("component", "http_fetcher"),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = &http.Client{Timeout: f.timeout}
	}
	return f
}

// UserAgent returns the User-Agent sent with each request.
func (f *HTTPFetcher) UserAgent() string {
	return f.userAgent
}

// Get fetches rawURL and reads at most limit bytes of the body, marking the
// response Truncated when there was more. Transport failures and non-2xx
// statuses are reported as ErrNetwork.
func (f *HTTPFetcher) Get(ctx context.Context, rawURL string, limit int64) (resp *Response, err error) {
	defer func(begin time.Time) {
		fields := logrus.Fields{
			"url":      rawURL,
			"duration": time.Since(begin),
		}
		if resp != nil {
			fields["status"] = resp.StatusCode
			fields["bytes"] = len(resp.Body)
		}
		if err != nil {
			f.log.WithFields(fields).WithError(err).Debug("fetch failed")
			return
		}
		f.log.WithFields(fields).Debug("fetch")
	}(time.Now())

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid url %q: %v", ErrNetwork, rawURL, err)
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, u.Host); err != nil {
			return nil, fmt.Errorf("%w: rate limit wait: %v", ErrNetwork, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrNetwork, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	httpResp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(httpResp.Body, 4096))
		return &Response{StatusCode: httpResp.StatusCode}, fmt.Errorf("%w: HTTP %d for %s", ErrNetwork, httpResp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrNetwork, err)
	}
	truncated := int64(len(body)) > limit
	if truncated {
		body = body[:limit]
	}

	return &Response{
		StatusCode:  httpResp.StatusCode,
		ContentType: httpResp.Header.Get("Content-Type"),
		Body:        body,
		Truncated:   truncated,
	}, nil
}

// GetImage fetches image bytes in full. A body over maxImageBytes is an
// ErrDecode error since a cut-off image cannot be displayed.
func (f *HTTPFetcher) GetImage(ctx context.Context, rawURL string) (*Response, error) {
	resp, err := f.Get(ctx, rawURL, maxImageBytes)
	if err != nil {
		return resp, err
	}
	if resp.Truncated {
		err = fmt.Errorf("%w: image larger than %d bytes: %s", ErrDecode, maxImageBytes, rawURL)
		f.log.WithError(err).Debug("Rejected oversized image")
		return nil, err
	}
	return resp, nil
}

// FetchImage downloads image bytes. It returns nil on any failure, when
// the body is empty or when it exceeds maxImageBytes.
func (f *HTTPFetcher) FetchImage(ctx context.Context, rawURL string) []byte {
	resp, err := f.GetImage(ctx, rawURL)
	if err != nil || len(resp.Body) == 0 {
		return nil
	}
	return resp.Body
}
