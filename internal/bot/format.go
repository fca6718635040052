package bot

import (
	"strings"

	"github.com/google/uuid"

	"linkstash/internal/domain"
)

const (
	// maxCaption is Telegram's photo caption limit.
	maxCaption     = 1024
	maxDescription = 280
)

// ShortID is the id prefix shown to users and accepted by /delete.
func ShortID(id uuid.UUID) string {
	return id.String()[:8]
}

// Caption renders a saved item for a photo caption.
func Caption(item domain.SavedItem) string {
	return truncate(render(item), maxCaption)
}

// Placeholder renders an item that has no image.
func Placeholder(item domain.SavedItem) string {
	if item.Kind == domain.KindText {
		return item.Content + "\n\nid: " + ShortID(item.ID)
	}
	return "🔗 " + render(item)
}

func render(item domain.SavedItem) string {
	var b strings.Builder
	if item.Title != "" {
		b.WriteString(item.Title)
		b.WriteString("\n")
	}
	if item.Description != "" {
		b.WriteString(truncate(item.Description, maxDescription))
		b.WriteString("\n")
	}

	var meta []string
	if item.Author != "" {
		meta = append(meta, "by "+item.Author)
	}
	if item.Platform != "" {
		meta = append(meta, item.Platform.String())
	}
	if len(meta) > 0 {
		b.WriteString(strings.Join(meta, " · "))
		b.WriteString("\n")
	}

	b.WriteString(item.Content)
	b.WriteString("\nid: ")
	b.WriteString(ShortID(item.ID))
	return b.String()
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}
