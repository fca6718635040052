package scraper

import (
	"context"
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"

	"linkstash/internal/domain"
)

// PageResult is the outcome of fetching and scanning one web page.
type PageResult struct {
	Title       *string
	Description *string
	Author      *string
	Image       []byte
}

// PageExtractor downloads a page, scans its meta tags and fetches the
// representative image.
type PageExtractor struct {
	http *HTTPFetcher
	log  logrus.FieldLogger
}

// NewPageExtractor creates a new PageExtractor.
func NewPageExtractor(fetcher *HTTPFetcher, logger logrus.FieldLogger) *PageExtractor {
	return &PageExtractor{
		http: fetcher,
		log:  logger.WithField("component", "page_extractor"),
	}
}

// Extract never fails; the returned fields are nil when unknown.
func (e *PageExtractor) Extract(ctx context.Context, rawURL string) PageResult {
	log := e.log.WithField("url", rawURL)

	resp, err := e.http.Get(ctx, rawURL, maxPageBytes)
	if err != nil {
		log.WithError(err).Info("Could not fetch page")
		return PageResult{}
	}

	md := ExtractMetadata(resp.Body)
	if md.Empty() {
		log.WithError(ErrExtractionMiss).Debug("No metadata found in page")
		return PageResult{}
	}

	result := PageResult{
		Title:       md.Title,
		Description: md.Description,
		Author:      md.Author,
	}

	if md.ImageURL != nil {
		imageURL, err := resolveReference(rawURL, *md.ImageURL)
		if err != nil {
			log.WithError(err).Warn("Ignoring unusable image URL")
			return result
		}
		result.Image = e.http.FetchImage(ctx, imageURL)
		log.WithFields(logrus.Fields{
			"image_url": imageURL,
			"has_image": result.Image != nil,
		}).Debug("Fetched page image")
	}

	return result
}

// resolveReference resolves ref against base so relative og:image paths work.
func resolveReference(base, ref string) (string, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: image url %q: %v", ErrDecode, ref, err)
	}
	if r.IsAbs() {
		return r.String(), nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: page url %q: %v", ErrDecode, base, err)
	}
	return b.ResolveReference(r).String(), nil
}

// GenericStrategy handles GitHub and any other website: page metadata first,
// a rendered screenshot when the page offers no image.
type GenericStrategy struct {
	platform domain.PlatformKind
	pages    *PageExtractor
	capturer Capturer
	log      logrus.FieldLogger
}

// NewGenericStrategy creates a strategy that tags its previews with platform.
// capturer may be nil, in which case no screenshot is attempted.
func NewGenericStrategy(platform domain.PlatformKind, pages *PageExtractor, capturer Capturer, logger logrus.FieldLogger) *GenericStrategy {
	return &GenericStrategy{
		platform: platform,
		pages:    pages,
		capturer: capturer,
		log:      logger.WithFields(logrus.Fields{"component": "generic_strategy", "platform": platform}),
	}
}

// Fetch implements Strategy.
func (s *GenericStrategy) Fetch(ctx context.Context, rawURL string) domain.LinkPreview {
	page := s.pages.Extract(ctx, rawURL)
	preview := domain.LinkPreview{
		Platform:    s.platform,
		Title:       page.Title,
		Description: page.Description,
		Author:      page.Author,
		Image:       page.Image,
	}
	if preview.HasImage() || s.capturer == nil {
		return preview
	}

	s.log.WithField("url", rawURL).Info("No page image, falling back to screenshot")
	preview.Image = Screenshot(ctx, s.capturer, rawURL)
	return preview
}
