package scraper

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"linkstash/internal/domain"
)

// metaPattern is one meta-tag dialect along with the capture group indexes
// holding the key and the value.
type metaPattern struct {
	re    *regexp.Regexp
	key   int
	value int
}

// metaPatterns are scanned in this order over the whole document. Later
// scans overwrite earlier ones for the same key.
var metaPatterns = []metaPattern{
	{regexp.MustCompile(`(?i)<meta\s+property=["']([^"']+)["']\s+content=["']([^"']+)["']\s*/?>`), 1, 2},
	{regexp.MustCompile(`(?i)<meta\s+name=["']([^"']+)["']\s+content=["']([^"']+)["']\s*/?>`), 1, 2},
	{regexp.MustCompile(`(?i)<meta\s+content=["']([^"']+)["']\s+property=["']([^"']+)["']\s*/?>`), 2, 1},
	{regexp.MustCompile(`(?i)<meta\s+content=["']([^"']+)["']\s+name=["']([^"']+)["']\s*/?>`), 2, 1},
}

var titleTagPattern = regexp.MustCompile(`(?i)<title>([^<]+)</title>`)

// Metadata is what the extractor found in one HTML document.
type Metadata struct {
	// Tags maps meta tag keys (og:title, description, ...) to decoded values.
	Tags        map[string]string
	Title       *string
	Description *string
	Author      *string
	ImageURL    *string
}

// Empty reports whether nothing usable was found.
func (m Metadata) Empty() bool {
	return m.Title == nil && m.Description == nil && m.Author == nil && m.ImageURL == nil
}

// ExtractMetadata scans raw HTML for meta tags and the <title> element. It
// never fails: bytes that are not valid UTF-8 and documents without any
// matching tags give an empty result.
func ExtractMetadata(raw []byte) Metadata {
	md := Metadata{Tags: map[string]string{}}
	if !utf8.Valid(raw) {
		return md
	}
	html := string(raw)

	md.Tags = ExtractMetaTags(html)
	tag := func(key string) *string {
		return domain.StringPtr(md.Tags[key])
	}

	md.Title = domain.FirstNonEmpty(tag("og:title"), tag("twitter:title"), extractTitleTag(html))
	md.Description = domain.FirstNonEmpty(tag("og:description"), tag("twitter:description"), tag("description"))
	md.Author = domain.FirstNonEmpty(tag("twitter:creator"), tag("article:author"))
	md.ImageURL = domain.FirstNonEmpty(tag("og:image"), tag("twitter:image"))
	return md
}

// ExtractMetaTags runs every meta pattern over html, last write wins.
func ExtractMetaTags(html string) map[string]string {
	tags := make(map[string]string)
	for _, p := range metaPatterns {
		for _, m := range p.re.FindAllStringSubmatch(html, -1) {
			tags[m[p.key]] = DecodeEntities(m[p.value])
		}
	}
	return tags
}

func extractTitleTag(html string) *string {
	m := titleTagPattern.FindStringSubmatch(html)
	if m == nil {
		return nil
	}
	return domain.StringPtr(strings.TrimSpace(DecodeEntities(m[1])))
}
