package scraper

import "strings"

// entityTable is applied in order, one substitution at a time. The order is
// significant: "&amp;lt;" decodes all the way to "<".
var entityTable = [...][2]string{
	{"&amp;", "&"},
	{"&lt;", "<"},
	{"&gt;", ">"},
	{"&quot;", `"`},
	{"&#39;", "'"},
	{"&apos;", "'"},
	{"&mdash;", "—"},
	{"&nbsp;", " "},
}

// DecodeEntities replaces the small set of HTML entities that show up in
// meta tags and tweet embeds. It is not a general HTML unescaper.
func DecodeEntities(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	for _, e := range entityTable {
		s = strings.ReplaceAll(s, e[0], e[1])
	}
	return s
}
