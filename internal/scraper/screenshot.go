package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sirupsen/logrus"
)

const (
	DefaultViewportWidth  = 1200
	DefaultViewportHeight = 800
)

var errBrowserClosed = errors.New("browser closed")

// BrowserConfig controls how the headless browser is launched and how its
// pages are set up.
type BrowserConfig struct {
	// Bin is the Chrome executable. Empty means rod's own lookup.
	Bin       string
	UserAgent string
	Width     int
	Height    int
}

// Browser is a lazily launched headless Chrome shared by all captures.
// Each surface gets its own page. Browser is safe for concurrent use.
type Browser struct {
	cfg      BrowserConfig
	log      logrus.FieldLogger
	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	closed   atomic.Bool
}

// NewBrowser creates a Browser. Chrome is not started until the first
// surface is requested.
func NewBrowser(cfg BrowserConfig, logger logrus.FieldLogger) *Browser {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Width <= 0 {
		cfg.Width = DefaultViewportWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = DefaultViewportHeight
	}
	return &Browser{
		cfg: cfg,
		log: logger.WithField("component", "browser"),
	}
}

// NewSurface implements SurfaceFactory.
func (b *Browser) NewSurface(_ context.Context) (Surface, error) {
	browser, err := b.connect()
	if err != nil {
		return nil, err
	}

	// The page is not bound to ctx so it can still be closed once ctx ends.
	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create page: %v", ErrRender, err)
	}

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: b.cfg.UserAgent}); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("%w: failed to set user agent: %v", ErrRender, err)
	}
	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             b.cfg.Width,
		Height:            b.cfg.Height,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("%w: failed to set viewport: %v", ErrRender, err)
	}

	return &RodSurface{page: page}, nil
}

// connect launches Chrome on first use.
func (b *Browser) connect() (*rod.Browser, error) {
	if b.closed.Load() {
		return nil, errBrowserClosed
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Close may have run while we waited for mu.
	if b.closed.Load() {
		return nil, errBrowserClosed
	}
	if b.browser != nil {
		return b.browser, nil
	}

	l := launcher.New().
		Set("disable-background-timer-throttling").
		Set("disable-renderer-backgrounding").
		Set("disable-dev-shm-usage").
		Leakless(true).
		Headless(true)
	if b.cfg.Bin != "" {
		l = l.Bin(b.cfg.Bin)
	} else if path, ok := launcher.LookPath(); ok {
		l = l.Bin(path)
	}

	u, err := l.Launch()
	if err != nil {
		b.log.WithError(err).Error("Failed to launch browser")
		return nil, fmt.Errorf("%w: launching browser: %v", ErrRender, err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		b.log.WithError(err).Error("Failed to connect to browser")
		return nil, fmt.Errorf("%w: connecting to browser: %v", ErrRender, err)
	}

	b.log.Info("Headless browser started")
	b.launcher = l
	b.browser = browser
	return browser, nil
}

// Close shuts the browser down. Close is safe to call multiple times.
func (b *Browser) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var err error
	if b.browser != nil {
		err = b.browser.Close()
		b.browser = nil
	}
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher = nil
	}
	if err == nil {
		b.log.Info("Headless browser closed")
	}
	return err
}

// RodSurface is a single rod page.
type RodSurface struct {
	page *rod.Page
}

// Navigate implements Surface.
func (s *RodSurface) Navigate(ctx context.Context, rawURL string) error {
	page := s.page.Context(ctx)
	if err := page.Navigate(rawURL); err != nil {
		return fmt.Errorf("navigating to %s: %w", rawURL, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("waiting for load: %w", err)
	}
	return nil
}

// Snapshot implements Surface.
func (s *RodSurface) Snapshot(ctx context.Context) ([]byte, error) {
	img, err := s.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	return img, nil
}

// Close implements Surface.
func (s *RodSurface) Close() error {
	return s.page.Close()
}
