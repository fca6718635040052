package scraper

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"linkstash/internal/domain"
	"linkstash/internal/platform"
)

const DefaultTwitterOEmbedEndpoint = "https://publish.twitter.com/oembed"

var (
	tweetParagraphPattern = regexp.MustCompile(`(?is)<p(?:\s[^>]*)?>(.*?)</p>`)
	lineBreakPattern      = regexp.MustCompile(`(?i)[ \t]*<br\s*/?>`)
	tagPattern            = regexp.MustCompile(`<[^>]+>`)
)

// PostInfo is what the X client could learn about a profile or post.
type PostInfo struct {
	Description *string
	Author      *string
}

// TwitterClient resolves X profile and post URLs.
type TwitterClient struct {
	http     *HTTPFetcher
	endpoint string
	log      logrus.FieldLogger
}

// TwitterOption configures a TwitterClient.
type TwitterOption func(*TwitterClient)

// WithTwitterEndpoint overrides the oEmbed endpoint.
func WithTwitterEndpoint(endpoint string) TwitterOption {
	return func(c *TwitterClient) {
		c.endpoint = endpoint
	}
}

// NewTwitterClient creates a new X oEmbed client.
func NewTwitterClient(fetcher *HTTPFetcher, logger logrus.FieldLogger, opts ...TwitterOption) *TwitterClient {
	c := &TwitterClient{
		http:     fetcher,
		endpoint: DefaultTwitterOEmbedEndpoint,
		log:      logger.WithField("component", "twitter_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch resolves a profile locally from the path and a post through oEmbed.
func (c *TwitterClient) Fetch(ctx context.Context, rawURL string) PostInfo {
	u, err := url.Parse(rawURL)
	if err != nil {
		return PostInfo{}
	}

	segments := platform.PathSegments(u)
	if !platform.IsStatusPath(segments) {
		if len(segments) == 0 {
			return PostInfo{}
		}
		return PostInfo{Author: domain.StringPtr(segments[0])}
	}

	return c.fetchPost(ctx, rawURL)
}

func (c *TwitterClient) fetchPost(ctx context.Context, rawURL string) PostInfo {
	log := c.log.WithField("url", rawURL)

	oembedURL, err := buildOEmbedURL(c.endpoint, rawURL, nil)
	if err != nil {
		log.WithError(err).Warn("Failed to build oEmbed URL")
		return PostInfo{}
	}

	data, err := fetchOEmbed(ctx, c.http, oembedURL)
	if err != nil {
		log.WithError(fmt.Errorf("X oEmbed: %w", err)).Info("Could not resolve post")
		return PostInfo{}
	}

	info := PostInfo{
		Description: ExtractTweetText(data.HTML),
		Author:      domain.StringPtr(data.AuthorName),
	}
	log.WithField("author", domain.Deref(info.Author)).Debug("Post resolved")
	return info
}

// ExtractTweetText returns the text of the first paragraph of an embed
// snippet with line breaks kept, other tags removed and entities decoded.
func ExtractTweetText(html string) *string {
	m := tweetParagraphPattern.FindStringSubmatch(html)
	if m == nil {
		return nil
	}
	text := lineBreakPattern.ReplaceAllString(m[1], "\n")
	text = tagPattern.ReplaceAllString(text, "")
	text = strings.TrimSpace(DecodeEntities(text))
	return domain.StringPtr(text)
}

// TwitterStrategy tags X results with the URL's classification. It never
// produces an image.
type TwitterStrategy struct {
	client *TwitterClient
}

// NewTwitterStrategy creates a new TwitterStrategy.
func NewTwitterStrategy(client *TwitterClient) *TwitterStrategy {
	return &TwitterStrategy{client: client}
}

// Fetch implements Strategy.
func (s *TwitterStrategy) Fetch(ctx context.Context, rawURL string) domain.LinkPreview {
	info := s.client.Fetch(ctx, rawURL)
	return domain.LinkPreview{
		Platform:    platform.Classify(rawURL),
		Description: info.Description,
		Author:      info.Author,
	}
}
