package scraper

import (
	"context"
	"errors"
	"time"

	"linkstash/internal/domain"
)

// DefaultUserAgent is the desktop browser identity sent with page, image and
// render requests. Many sites serve bots a stripped page without OG tags.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15"

// DefaultFetchTimeout bounds every outbound HTTP request.
const DefaultFetchTimeout = 10 * time.Second

// Failure classes. Components wrap these internally and log them; none of
// them is returned across the Orchestrator boundary.
var (
	// ErrNetwork covers timeouts, connection failures and non-2xx responses.
	ErrNetwork = errors.New("network failure")
	// ErrDecode covers malformed JSON or undecodable HTML.
	ErrDecode = errors.New("decode failure")
	// ErrExtractionMiss means the document had nothing usable.
	ErrExtractionMiss = errors.New("extraction miss")
	// ErrRender covers navigation and snapshot failures.
	ErrRender = errors.New("render failure")
)

// Strategy resolves a preview for one class of URLs. Implementations never
// fail: missing data is reported as nil fields.
type Strategy interface {
	Fetch(ctx context.Context, rawURL string) domain.LinkPreview
}

// StrategyFunc adapts a function to the Strategy interface.
type StrategyFunc func(ctx context.Context, rawURL string) domain.LinkPreview

// Fetch calls f.
func (f StrategyFunc) Fetch(ctx context.Context, rawURL string) domain.LinkPreview {
	return f(ctx, rawURL)
}
