package scraper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkstash/internal/domain"
)

func newTestOrchestrator(fetcher *HTTPFetcher, capturer Capturer) *Orchestrator {
	log := testLogger()
	return NewOrchestrator(Clients{
		Pages:    NewPageExtractor(fetcher, log),
		YouTube:  NewYouTubeClient(fetcher, log),
		Twitter:  NewTwitterClient(fetcher, log),
		Capturer: capturer,
	}, log)
}

// siteHandler serves the fake web keyed on the requested Host header.
func siteHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Host + r.URL.Path {
	case "publish.twitter.com/oembed":
		_ = json.NewEncoder(w).Encode(map[string]string{"author_name": "Jane", "html": tweetEmbed})
	case "www.youtube.com/oembed":
		w.WriteHeader(http.StatusNotFound)
	case "www.youtube.com/@channel":
		_, _ = w.Write([]byte(`<meta property="og:title" content="A Channel"><meta property="og:description" content="Videos">`))
	case "blog.example.com/post":
		_, _ = w.Write([]byte(`<title>Post</title><meta property="og:image" content="/cover.png">`))
	case "blog.example.com/cover.png":
		_, _ = w.Write(pngBytes)
	case "blog.example.com/plain":
		_, _ = w.Write([]byte(`<title>Plain</title><meta name="description" content="No image here">`))
	default:
		http.NotFound(w, r)
	}
}

func TestOrchestrator_GitHubUnreachable(t *testing.T) {
	transport := &failingTransport{}
	fetcher := NewHTTPFetcher(testLogger(), WithHTTPClient(&http.Client{Transport: transport}))
	capturer := &countingCapturer{}

	preview := newTestOrchestrator(fetcher, capturer).Resolve(context.Background(), "https://github.com/golang/go")

	assert.Equal(t, domain.PlatformGitHub, preview.Platform)
	assert.Nil(t, preview.Title)
	assert.Nil(t, preview.Description)
	assert.Nil(t, preview.Author)
	assert.Nil(t, preview.Image)
	assert.EqualValues(t, 1, capturer.calls.Load())
	assert.Positive(t, transport.calls.Load())
}

func TestOrchestrator_XPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(siteHandler))
	defer srv.Close()
	capturer := &countingCapturer{image: pngBytes}

	preview := newTestOrchestrator(routedFetcher(t, srv), capturer).Resolve(context.Background(), "https://twitter.com/jane/status/1")

	assert.Equal(t, domain.PlatformXPost, preview.Platform)
	assert.Equal(t, "Jane", domain.Deref(preview.Author))
	assert.Equal(t, "Hello\nworld & friends", domain.Deref(preview.Description))
	assert.Nil(t, preview.Image)
	assert.Zero(t, capturer.calls.Load())
}

func TestOrchestrator_GenericWithImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(siteHandler))
	defer srv.Close()
	capturer := &countingCapturer{image: []byte("screenshot")}

	preview := newTestOrchestrator(routedFetcher(t, srv), capturer).Resolve(context.Background(), "https://blog.example.com/post")

	assert.Equal(t, domain.PlatformGeneric, preview.Platform)
	assert.Equal(t, "Post", domain.Deref(preview.Title))
	assert.Equal(t, pngBytes, preview.Image)
	assert.Zero(t, capturer.calls.Load())
}

func TestOrchestrator_GenericScreenshotFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(siteHandler))
	defer srv.Close()
	capturer := &countingCapturer{image: []byte("screenshot")}

	preview := newTestOrchestrator(routedFetcher(t, srv), capturer).Resolve(context.Background(), "https://blog.example.com/plain")

	assert.Equal(t, "Plain", domain.Deref(preview.Title))
	assert.Equal(t, "No image here", domain.Deref(preview.Description))
	assert.Equal(t, []byte("screenshot"), preview.Image)
	assert.EqualValues(t, 1, capturer.calls.Load())
}

func TestOrchestrator_YouTubeFallthrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(siteHandler))
	defer srv.Close()
	capturer := &countingCapturer{image: []byte("screenshot")}

	preview := newTestOrchestrator(routedFetcher(t, srv), capturer).Resolve(context.Background(), "https://www.youtube.com/@channel")

	assert.Equal(t, domain.PlatformYouTube, preview.Platform)
	assert.Equal(t, "A Channel", domain.Deref(preview.Title))
	assert.Equal(t, "Videos", domain.Deref(preview.Description))
	assert.Equal(t, []byte("screenshot"), preview.Image)
}

func TestOrchestrator_UnparseableURL(t *testing.T) {
	fetcher := NewHTTPFetcher(testLogger(), WithHTTPClient(&http.Client{Transport: &failingTransport{}}))

	preview := newTestOrchestrator(fetcher, nil).Resolve(context.Background(), "://not a url")
	assert.Equal(t, domain.PlatformGeneric, preview.Platform)
	assert.False(t, preview.HasImage())
}

func TestOrchestrator_RegisterOverrides(t *testing.T) {
	o := NewEmptyOrchestrator(StrategyFunc(func(ctx context.Context, rawURL string) domain.LinkPreview {
		return domain.LinkPreview{Title: domain.StringPtr("fallback")}
	}), testLogger())
	o.Register(domain.PlatformGitHub, StrategyFunc(func(ctx context.Context, rawURL string) domain.LinkPreview {
		return domain.LinkPreview{Platform: domain.PlatformGeneric, Title: domain.StringPtr("github")}
	}))

	gh := o.Resolve(context.Background(), "https://github.com/x")
	assert.Equal(t, "github", domain.Deref(gh.Title))
	assert.Equal(t, domain.PlatformGitHub, gh.Platform)

	other := o.Resolve(context.Background(), "https://example.org")
	assert.Equal(t, "fallback", domain.Deref(other.Title))
	assert.Equal(t, domain.PlatformGeneric, other.Platform)
}

func TestOrchestrator_ResolveFuncFiresOnce(t *testing.T) {
	release := make(chan struct{})
	o := NewEmptyOrchestrator(StrategyFunc(func(ctx context.Context, rawURL string) domain.LinkPreview {
		<-release
		return domain.LinkPreview{Title: domain.StringPtr("late")}
	}), testLogger())

	var calls atomic.Int32
	got := make(chan domain.LinkPreview, 2)
	ctx, cancel := context.WithCancel(context.Background())

	o.ResolveFunc(ctx, "https://example.org", func(p domain.LinkPreview) {
		calls.Add(1)
		got <- p
	})
	cancel()

	select {
	case p := <-got:
		assert.Nil(t, p.Title)
		assert.Equal(t, domain.PlatformGeneric, p.Platform)
	case <-time.After(time.Second):
		t.Fatal("callback not called after cancel")
	}

	close(release)
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 1, calls.Load())
}

func TestOrchestrator_ResolveFuncDelivers(t *testing.T) {
	o := NewEmptyOrchestrator(StrategyFunc(func(ctx context.Context, rawURL string) domain.LinkPreview {
		return domain.LinkPreview{Title: domain.StringPtr("done")}
	}), testLogger())

	got := make(chan domain.LinkPreview, 1)
	o.ResolveFunc(context.Background(), "https://example.org", func(p domain.LinkPreview) { got <- p })

	select {
	case p := <-got:
		require.NotNil(t, p.Title)
		assert.Equal(t, "done", *p.Title)
	case <-time.After(time.Second):
		t.Fatal("callback not called")
	}
}
