package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func testLogger() logrus.FieldLogger {
	logger, _ := test.NewNullLogger()
	return logger
}

// rewriteTransport sends every request to target while keeping the requested
// Host header, so handlers can tell the intended site apart.
type rewriteTransport struct {
	target *url.URL
}

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.URL.Scheme = t.target.Scheme
	r.URL.Host = t.target.Host
	return http.DefaultTransport.RoundTrip(r)
}

// failingTransport simulates an unreachable network.
type failingTransport struct {
	calls atomic.Int32
}

func (t *failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	t.calls.Add(1)
	return nil, errors.New("network is unreachable")
}

// routedFetcher returns a fetcher whose requests all land on srv.
func routedFetcher(t *testing.T, srv *httptest.Server) *HTTPFetcher {
	t.Helper()
	target, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return NewHTTPFetcher(testLogger(), WithHTTPClient(&http.Client{
		Transport: rewriteTransport{target: target},
		Timeout:   DefaultFetchTimeout,
	}))
}

// fakeSurface records how a capture used it.
type fakeSurface struct {
	navigate  func(ctx context.Context) error
	image     []byte
	snapErr   error
	snapshots atomic.Int32
	closes    atomic.Int32
}

func (s *fakeSurface) Navigate(ctx context.Context, _ string) error {
	if s.navigate == nil {
		return nil
	}
	return s.navigate(ctx)
}

func (s *fakeSurface) Snapshot(context.Context) ([]byte, error) {
	s.snapshots.Add(1)
	if s.snapErr != nil {
		return nil, s.snapErr
	}
	return s.image, nil
}

func (s *fakeSurface) Close() error {
	s.closes.Add(1)
	return nil
}

type fakeSurfaces struct {
	surface *fakeSurface
	err     error
}

func (f fakeSurfaces) NewSurface(context.Context) (Surface, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.surface, nil
}

// countingCapturer completes every capture immediately with image.
type countingCapturer struct {
	image []byte
	calls atomic.Int32
}

func (c *countingCapturer) Start(ctx context.Context, rawURL string) *Capture {
	c.calls.Add(1)
	capture := newCapture(ctx, rawURL, 0, testLogger())
	capture.complete(c.image)
	return capture
}
