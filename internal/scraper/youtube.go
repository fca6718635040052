package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"linkstash/internal/domain"
	"linkstash/internal/platform"
)

const (
	DefaultYouTubeOEmbedEndpoint = "https://www.youtube.com/oembed"
	DefaultYouTubeThumbnailBase  = "https://img.youtube.com/vi"

	// minThumbnailBytes rejects the small grey placeholder YouTube serves
	// for thumbnail sizes a video does not have.
	minThumbnailBytes = 1000
)

// thumbnailVariants are tried in order, best quality first.
var thumbnailVariants = []string{"maxresdefault.jpg", "hqdefault.jpg"}

// VideoInfo is what the YouTube client could learn about a video.
type VideoInfo struct {
	Image  []byte
	Title  *string
	Author *string
}

// YouTubeClient fetches video metadata from YouTube's oEmbed endpoint.
type YouTubeClient struct {
	http          *HTTPFetcher
	endpoint      string
	thumbnailBase string
	log           logrus.FieldLogger
}

// YouTubeOption configures a YouTubeClient.
type YouTubeOption func(*YouTubeClient)

// WithYouTubeEndpoint overrides the oEmbed endpoint.
func WithYouTubeEndpoint(endpoint string) YouTubeOption {
	return func(c *YouTubeClient) {
		c.endpoint = endpoint
	}
}

// WithThumbnailBase overrides the thumbnail host used for the fallback
// sequence (https://img.youtube.com/vi by default).
func WithThumbnailBase(base string) YouTubeOption {
	return func(c *YouTubeClient) {
		c.thumbnailBase = strings.TrimSuffix(base, "/")
	}
}

// NewYouTubeClient creates a new YouTube oEmbed client.
func NewYouTubeClient(fetcher *HTTPFetcher, logger logrus.FieldLogger, opts ...YouTubeOption) *YouTubeClient {
	c := &YouTubeClient{
		http:          fetcher,
		endpoint:      DefaultYouTubeOEmbedEndpoint,
		thumbnailBase: DefaultYouTubeThumbnailBase,
		log:           logger.WithField("component", "youtube_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the thumbnail bytes, title and author of a video. Failures
// at any stage leave the corresponding fields nil.
func (c *YouTubeClient) Fetch(ctx context.Context, rawURL string) VideoInfo {
	log := c.log.WithField("url", rawURL)
	var info VideoInfo

	data, err := c.oembed(ctx, rawURL)
	if err != nil {
		log.WithError(err).Info("YouTube oEmbed request failed")
	} else {
		info.Title = domain.StringPtr(data.Title)
		info.Author = domain.StringPtr(data.AuthorName)
		if data.ThumbnailURL != "" {
			info.Image = c.http.FetchImage(ctx, data.ThumbnailURL)
		}
	}

	if info.Image == nil {
		if u, err := url.Parse(rawURL); err == nil {
			if id := VideoID(u); id != "" {
				info.Image = c.FetchThumbnail(ctx, id)
			}
		}
	}

	log.WithFields(logrus.Fields{
		"title":     domain.Deref(info.Title),
		"has_image": info.Image != nil,
	}).Debug("YouTube metadata fetched")
	return info
}

func (c *YouTubeClient) oembed(ctx context.Context, rawURL string) (*oEmbedResponse, error) {
	oembedURL, err := buildOEmbedURL(c.endpoint, rawURL, url.Values{"format": {"json"}})
	if err != nil {
		return nil, fmt.Errorf("failed to build oEmbed URL: %w", err)
	}
	return fetchOEmbed(ctx, c.http, oembedURL)
}

// FetchThumbnail tries the static thumbnail variants for a video ID and
// returns the first one that is a real image, or nil.
func (c *YouTubeClient) FetchThumbnail(ctx context.Context, videoID string) []byte {
	for _, variant := range thumbnailVariants {
		thumbURL := fmt.Sprintf("%s/%s/%s", c.thumbnailBase, url.PathEscape(videoID), variant)
		resp, err := c.http.GetImage(ctx, thumbURL)
		if err != nil {
			continue
		}
		if resp.StatusCode == 200 && len(resp.Body) > minThumbnailBytes {
			return resp.Body
		}
		c.log.WithFields(logrus.Fields{
			"video_id": videoID,
			"variant":  variant,
			"bytes":    len(resp.Body),
		}).Debug("Rejected placeholder thumbnail")
	}
	return nil
}

// VideoID extracts the video ID from youtu.be, watch, embed and shorts URLs.
func VideoID(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	segments := platform.PathSegments(u)

	if strings.Contains(host, "youtu.be") {
		if len(segments) > 0 {
			return segments[0]
		}
		return ""
	}
	if v := u.Query().Get("v"); v != "" {
		return v
	}
	for i, s := range segments {
		if (s == "embed" || s == "shorts" || s == "live") && i+1 < len(segments) {
			return segments[i+1]
		}
	}
	return ""
}

// YouTubeStrategy prefers oEmbed data and falls back to the generic page
// strategy when no thumbnail could be obtained.
type YouTubeStrategy struct {
	client   *YouTubeClient
	fallback Strategy
	log      logrus.FieldLogger
}

// NewYouTubeStrategy creates a new YouTubeStrategy. fallback should tag its
// previews as YouTube.
func NewYouTubeStrategy(client *YouTubeClient, fallback Strategy, logger logrus.FieldLogger) *YouTubeStrategy {
	return &YouTubeStrategy{
		client:   client,
		fallback: fallback,
		log:      logger.WithField("component", "youtube_strategy"),
	}
}

// Fetch implements Strategy.
func (s *YouTubeStrategy) Fetch(ctx context.Context, rawURL string) domain.LinkPreview {
	info := s.client.Fetch(ctx, rawURL)
	if len(info.Image) > 0 {
		return domain.LinkPreview{
			Platform: domain.PlatformYouTube,
			Title:    info.Title,
			Author:   info.Author,
			Image:    info.Image,
		}
	}

	s.log.WithField("url", rawURL).Info("No YouTube thumbnail, falling back to page metadata")
	preview := s.fallback.Fetch(ctx, rawURL)
	preview.Platform = domain.PlatformYouTube
	preview.Title = domain.FirstNonEmpty(preview.Title, info.Title)
	preview.Author = domain.FirstNonEmpty(preview.Author, info.Author)
	return preview
}
