package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// oEmbedResponse holds the oEmbed fields consumed by the clients.
// See: https://oembed.com/#section2.3
type oEmbedResponse struct {
	Type         string `json:"type"`
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	AuthorURL    string `json:"author_url"`
	ProviderName string `json:"provider_name"`
	ThumbnailURL string `json:"thumbnail_url"`
	HTML         string `json:"html"`
}

// buildOEmbedURL adds the resource URL and extra parameters to endpoint.
func buildOEmbedURL(endpoint, resourceURL string, extra url.Values) (string, error) {
	base, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint URL: %w", err)
	}

	query := base.Query()
	query.Set("url", resourceURL)
	for k, vs := range extra {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	base.RawQuery = query.Encode()

	return base.String(), nil
}

// fetchOEmbed calls an oEmbed endpoint and decodes the JSON response.
func fetchOEmbed(ctx context.Context, fetcher *HTTPFetcher, oembedURL string) (*oEmbedResponse, error) {
	resp, err := fetcher.Get(ctx, oembedURL, maxJSONBytes)
	if err != nil {
		return nil, err
	}

	var data oEmbedResponse
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return nil, fmt.Errorf("%w: oEmbed response: %v", ErrDecode, err)
	}
	return &data, nil
}
