package scraper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrowser_ClosedRefusesSurfaces(t *testing.T) {
	browser := NewBrowser(BrowserConfig{}, testLogger())
	require.NoError(t, browser.Close())

	_, err := browser.NewSurface(context.Background())
	assert.ErrorIs(t, err, errBrowserClosed)
}

func TestBrowser_CloseWhileConnecting(t *testing.T) {
	browser := NewBrowser(BrowserConfig{}, testLogger())

	// Hold mu so connect blocks the way it would behind a concurrent Close.
	browser.mu.Lock()
	errc := make(chan error, 1)
	go func() {
		_, err := browser.connect()
		errc <- err
	}()
	browser.closed.Store(true)
	browser.mu.Unlock()

	assert.ErrorIs(t, <-errc, errBrowserClosed)
	assert.Nil(t, browser.browser)
	assert.Nil(t, browser.launcher)
}
