package scraper

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"linkstash/internal/domain"
	"linkstash/internal/latch"
	"linkstash/internal/platform"
)

// Clients are the collaborators the default strategies are built from.
// Capturer may be nil to disable screenshots.
type Clients struct {
	Pages    *PageExtractor
	YouTube  *YouTubeClient
	Twitter  *TwitterClient
	Capturer Capturer
}

// Orchestrator classifies a URL, dispatches it to the strategy registered
// for its platform and returns exactly one preview. Orchestrator is safe for
// concurrent use once all strategies are registered.
type Orchestrator struct {
	strategies map[domain.PlatformKind]Strategy
	fallback   Strategy
	log        logrus.FieldLogger
}

// NewOrchestrator wires the default strategy for every platform.
func NewOrchestrator(c Clients, logger logrus.FieldLogger) *Orchestrator {
	generic := NewGenericStrategy(domain.PlatformGeneric, c.Pages, c.Capturer, logger)
	twitter := NewTwitterStrategy(c.Twitter)

	o := NewEmptyOrchestrator(generic, logger)
	o.Register(domain.PlatformYouTube, NewYouTubeStrategy(
		c.YouTube,
		NewGenericStrategy(domain.PlatformYouTube, c.Pages, c.Capturer, logger),
		logger,
	))
	o.Register(domain.PlatformXProfile, twitter)
	o.Register(domain.PlatformXPost, twitter)
	o.Register(domain.PlatformGitHub, NewGenericStrategy(domain.PlatformGitHub, c.Pages, c.Capturer, logger))
	return o
}

// NewEmptyOrchestrator returns an orchestrator that sends every URL to
// fallback until strategies are registered.
func NewEmptyOrchestrator(fallback Strategy, logger logrus.FieldLogger) *Orchestrator {
	return &Orchestrator{
		strategies: make(map[domain.PlatformKind]Strategy),
		fallback:   fallback,
		log:        logger.WithField("component", "orchestrator"),
	}
}

// Register sets the strategy for kind, replacing any previous one.
func (o *Orchestrator) Register(kind domain.PlatformKind, s Strategy) {
	o.strategies[kind] = s
}

// Resolve always returns a preview tagged with the URL's platform. Fields
// that could not be resolved are nil.
func (o *Orchestrator) Resolve(ctx context.Context, rawURL string) domain.LinkPreview {
	kind := platform.Classify(rawURL)
	log := o.log.WithFields(logrus.Fields{"url": rawURL, "platform": kind})

	s, ok := o.strategies[kind]
	if !ok {
		s = o.fallback
	}

	start := time.Now()
	preview := s.Fetch(ctx, rawURL)
	preview.Platform = kind

	log.WithFields(logrus.Fields{
		"duration":  time.Since(start),
		"has_title": preview.Title != nil,
		"has_image": preview.HasImage(),
	}).Info("Link resolved")
	return preview
}

// ResolveFunc resolves rawURL in the background and calls done exactly once.
// If ctx ends first, done receives an empty preview tagged with the platform
// and the late result is discarded.
func (o *Orchestrator) ResolveFunc(ctx context.Context, rawURL string, done func(domain.LinkPreview)) {
	result := latch.New[domain.LinkPreview]()
	deliver := func(p domain.LinkPreview) {
		if result.Fire(p) {
			done(p)
		}
	}

	stop := context.AfterFunc(ctx, func() {
		o.log.WithField("url", rawURL).WithError(ctx.Err()).Info("Resolution abandoned")
		deliver(domain.LinkPreview{Platform: platform.Classify(rawURL)})
	})
	go func() {
		p := o.Resolve(ctx, rawURL)
		stop()
		deliver(p)
	}()
}

// Settings configure NewPipeline. Zero values select the package defaults.
type Settings struct {
	HTTPTimeout   time.Duration
	UserAgent     string
	RateLimit     float64
	ChromeBin     string
	Width         int
	Height        int
	SettleDelay   time.Duration
	RenderTimeout time.Duration
	// NoScreenshots disables the rendered fallback; no browser is created.
	NoScreenshots bool
}

// NewPipeline builds the default orchestrator. The returned browser is nil
// when screenshots are disabled; otherwise the caller must Close it.
func NewPipeline(s Settings, logger logrus.FieldLogger) (*Orchestrator, *Browser) {
	fetcher := NewHTTPFetcher(logger,
		WithTimeout(s.HTTPTimeout),
		WithUserAgent(s.UserAgent),
		WithRateLimit(s.RateLimit),
	)

	clients := Clients{
		Pages:   NewPageExtractor(fetcher, logger),
		YouTube: NewYouTubeClient(fetcher, logger),
		Twitter: NewTwitterClient(fetcher, logger),
	}

	var browser *Browser
	if !s.NoScreenshots {
		browser = NewBrowser(BrowserConfig{
			Bin:       s.ChromeBin,
			UserAgent: fetcher.UserAgent(),
			Width:     s.Width,
			Height:    s.Height,
		}, logger)
		opts := []RendererOption{WithRenderTimeout(s.RenderTimeout)}
		if s.SettleDelay > 0 {
			opts = append(opts, WithSettleDelay(s.SettleDelay))
		}
		clients.Capturer = NewRenderer(browser, logger, opts...)
	}

	return NewOrchestrator(clients, logger), browser
}
