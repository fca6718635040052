//go:build integration

package scraper

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrowser_Screenshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body style="background:#c00"><h1>rendered</h1></body></html>`))
	}))
	defer srv.Close()

	browser := NewBrowser(BrowserConfig{}, testLogger())
	defer func() { assert.NoError(t, browser.Close()) }()

	r := NewRenderer(browser, testLogger(), WithSettleDelay(100*time.Millisecond))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	img := Screenshot(ctx, r, srv.URL)
	require.NotEmpty(t, img)
	assert.True(t, bytes.HasPrefix(img, []byte("\x89PNG")))
}
