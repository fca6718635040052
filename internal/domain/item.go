package domain

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ItemKind tells whether a saved item is a plain note or a link.
type ItemKind string

const (
	KindText ItemKind = "text"
	KindLink ItemKind = "link"
)

// SavedItem represents something a user stashed for later.
type SavedItem struct {
	// ID is the unique identifier of the item.
	ID uuid.UUID `json:"id"`

	// UserID is the Telegram User ID of the user who saved the item.
	UserID int64 `json:"user_id"`

	// Content holds the raw URL for links or the text for notes.
	Content string `json:"content"`

	Kind ItemKind `json:"kind"`

	// Platform is set once a preview has been applied to a link item.
	Platform PlatformKind `json:"platform,omitempty"`

	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Author      string `json:"author,omitempty"`

	// ImageData holds the preview image bytes. Once non-empty, the item is
	// never sent through the resolution pipeline again.
	ImageData []byte `json:"image_data,omitempty"`

	// CreatedAt indicates when the item was saved.
	CreatedAt time.Time `json:"created_at"`

	// ResolvedAt is the time the last preview was applied, if any.
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// NewItem builds a SavedItem from raw user input, detecting links.
func NewItem(userID int64, content string) SavedItem {
	content = strings.TrimSpace(content)
	kind := KindText
	if IsLink(content) {
		kind = KindLink
	}
	return SavedItem{
		ID:        uuid.New(),
		UserID:    userID,
		Content:   content,
		Kind:      kind,
		CreatedAt: time.Now(),
	}
}

// IsLink reports whether s is a single absolute http(s) URL with a host.
func IsLink(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t\n") {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// HasImage reports whether a preview image has already been stored.
func (i SavedItem) HasImage() bool {
	return len(i.ImageData) > 0
}

// NeedsPreview reports whether the item should go through the pipeline.
// Links without image bytes are retried on every observation.
func (i SavedItem) NeedsPreview() bool {
	return i.Kind == KindLink && !i.HasImage()
}

// ApplyPreview copies the proposed preview values onto the item. Fields the
// preview leaves unset keep their current value.
func (i *SavedItem) ApplyPreview(p LinkPreview, at time.Time) {
	i.Platform = p.Platform
	if p.Title != nil {
		i.Title = *p.Title
	}
	if p.Description != nil {
		i.Description = *p.Description
	}
	if p.Author != nil {
		i.Author = *p.Author
	}
	if len(p.Image) > 0 {
		i.ImageData = p.Image
	}
	i.ResolvedAt = &at
}
