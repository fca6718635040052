package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"linkstash/internal/latch"
)

const (
	DefaultSettleDelay   = time.Second
	DefaultRenderTimeout = 30 * time.Second
)

// Surface is an offscreen page that can load a URL and snapshot itself.
type Surface interface {
	// Navigate loads rawURL and blocks until the page finished loading.
	Navigate(ctx context.Context, rawURL string) error
	// Snapshot returns a PNG of the current viewport.
	Snapshot(ctx context.Context) ([]byte, error)
	Close() error
}

// SurfaceFactory creates one Surface per capture.
type SurfaceFactory interface {
	NewSurface(ctx context.Context) (Surface, error)
}

// Capturer starts screenshot captures.
type Capturer interface {
	Start(ctx context.Context, rawURL string) *Capture
}

const (
	captureLoading int32 = iota
	captureSettling
	captureDone
)

// Capture is one in-flight screenshot. It moves from loading to settling on
// NavigationFinished and completes exactly once, with an image or with nil.
// Its surface is closed as soon as it completes.
type Capture struct {
	url     string
	surface Surface
	settle  time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
	state   atomic.Int32
	result  *latch.Latch[[]byte]
	log     logrus.FieldLogger
}

func newCapture(ctx context.Context, rawURL string, settle time.Duration, logger logrus.FieldLogger) *Capture {
	ctx, cancel := context.WithCancel(ctx)
	return &Capture{
		url:    rawURL,
		settle: settle,
		ctx:    ctx,
		cancel: cancel,
		result: latch.New[[]byte](),
		log:    logger.WithField("url", rawURL),
	}
}

// NavigationFinished schedules the snapshot after the settle delay. Calls
// after the first signal are ignored. Safe to call from any goroutine.
func (c *Capture) NavigationFinished() {
	if !c.state.CompareAndSwap(captureLoading, captureSettling) {
		return
	}
	time.AfterFunc(c.settle, c.snapshot)
}

// NavigationFailed completes the capture without an image. Like
// NavigationFinished it only counts as the first signal; a failure reported
// after a successful load leaves the scheduled snapshot in place.
// Safe to call from any goroutine.
func (c *Capture) NavigationFailed(err error) {
	if !c.state.CompareAndSwap(captureLoading, captureDone) {
		return
	}
	if c.complete(nil) {
		c.log.WithError(fmt.Errorf("%w: navigation: %v", ErrRender, err)).Info("Screenshot navigation failed")
	}
}

// abort completes the capture without an image in any state, including
// while it settles.
func (c *Capture) abort(err error) {
	if c.complete(nil) {
		c.log.WithError(fmt.Errorf("%w: %v", ErrRender, err)).Info("Screenshot aborted")
	}
}

// Done is closed when the capture completes.
func (c *Capture) Done() <-chan struct{} {
	return c.result.Done()
}

// Wait returns the PNG bytes, or nil when the capture produced no image or
// ctx ended first.
func (c *Capture) Wait(ctx context.Context) []byte {
	img, err := c.result.Wait(ctx)
	if err != nil {
		return nil
	}
	return img
}

func (c *Capture) snapshot() {
	if c.result.Fired() {
		return
	}
	img, err := c.surface.Snapshot(c.ctx)
	if err != nil {
		if c.complete(nil) {
			c.log.WithError(fmt.Errorf("%w: snapshot: %v", ErrRender, err)).Warn("Screenshot failed")
		}
		return
	}
	if c.complete(img) {
		c.log.WithField("bytes", len(img)).Debug("Screenshot captured")
	}
}

// complete fires the result and releases the surface. It reports whether
// this call was the one that completed the capture.
func (c *Capture) complete(img []byte) bool {
	if !c.result.Fire(img) {
		return false
	}
	c.state.Store(captureDone)
	if c.surface != nil {
		if err := c.surface.Close(); err != nil {
			c.log.WithError(err).Debug("Error closing render surface")
		}
	}
	c.cancel()
	return true
}

// Renderer drives captures on surfaces from a SurfaceFactory.
type Renderer struct {
	surfaces SurfaceFactory
	settle   time.Duration
	timeout  time.Duration
	log      logrus.FieldLogger
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithSettleDelay sets how long to wait after load before the snapshot.
func WithSettleDelay(d time.Duration) RendererOption {
	return func(r *Renderer) {
		r.settle = d
	}
}

// WithRenderTimeout bounds a capture that never finishes navigating.
// d <= 0 keeps DefaultRenderTimeout.
func WithRenderTimeout(d time.Duration) RendererOption {
	return func(r *Renderer) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewRenderer creates a new Renderer.
func NewRenderer(surfaces SurfaceFactory, logger logrus.FieldLogger, opts ...RendererOption) *Renderer {
	r := &Renderer{
		surfaces: surfaces,
		settle:   DefaultSettleDelay,
		timeout:  DefaultRenderTimeout,
		log:      logger.WithField("component", "renderer"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var errRenderTimeout = errors.New("render timed out")

// Start implements Capturer. The returned capture owns its surface.
func (r *Renderer) Start(ctx context.Context, rawURL string) *Capture {
	c := newCapture(ctx, rawURL, r.settle, r.log)

	surface, err := r.surfaces.NewSurface(c.ctx)
	if err != nil {
		c.NavigationFailed(err)
		return c
	}
	c.surface = surface

	timer := time.AfterFunc(r.timeout, func() { c.abort(errRenderTimeout) })
	// Completion cancels c.ctx, so this also runs on every normal exit.
	context.AfterFunc(c.ctx, func() {
		timer.Stop()
		c.abort(c.ctx.Err())
	})

	go func() {
		if err := surface.Navigate(c.ctx, rawURL); err != nil {
			c.NavigationFailed(err)
			return
		}
		c.NavigationFinished()
	}()

	return c
}

// Screenshot runs one capture to completion and returns its image or nil.
func Screenshot(ctx context.Context, c Capturer, rawURL string) []byte {
	return c.Start(ctx, rawURL).Wait(ctx)
}
