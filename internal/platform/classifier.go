// Package platform classifies URLs by the service they point at.
package platform

import (
	"net/url"
	"strings"

	"linkstash/internal/domain"
)

// Classify maps a URL to its platform. It is pure and total: unparseable
// URLs and URLs without a host are generic websites.
func Classify(rawURL string) domain.PlatformKind {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return domain.PlatformGeneric
	}
	return ClassifyURL(u)
}

// ClassifyURL is Classify for an already parsed URL.
func ClassifyURL(u *url.URL) domain.PlatformKind {
	host := strings.ToLower(u.Hostname())
	switch {
	case host == "":
		return domain.PlatformGeneric
	case strings.Contains(host, "youtube.com") || strings.Contains(host, "youtu.be"):
		return domain.PlatformYouTube
	case strings.Contains(host, "twitter.com") || strings.Contains(host, "x.com"):
		if IsStatusPath(PathSegments(u)) {
			return domain.PlatformXPost
		}
		return domain.PlatformXProfile
	case strings.Contains(host, "github.com"):
		return domain.PlatformGitHub
	default:
		return domain.PlatformGeneric
	}
}

// PathSegments splits the URL path into its non-empty segments.
func PathSegments(u *url.URL) []string {
	parts := strings.Split(u.Path, "/")
	segments := parts[:0]
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}

// IsStatusPath reports whether path segments describe a single post, e.g.
// /user/status/123.
func IsStatusPath(segments []string) bool {
	if len(segments) < 3 {
		return false
	}
	for _, s := range segments {
		if s == "status" {
			return true
		}
	}
	return false
}
