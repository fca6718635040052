package domain

// PlatformKind is the closed classification of a URL's origin service.
type PlatformKind string

const (
	PlatformYouTube  PlatformKind = "youtube"
	PlatformXProfile PlatformKind = "x_profile"
	PlatformXPost    PlatformKind = "x_post"
	PlatformGitHub   PlatformKind = "github"
	PlatformGeneric  PlatformKind = "generic"
)

// String returns a human readable platform name.
func (k PlatformKind) String() string {
	switch k {
	case PlatformYouTube:
		return "YouTube"
	case PlatformXProfile:
		return "X profile"
	case PlatformXPost:
		return "X post"
	case PlatformGitHub:
		return "GitHub"
	default:
		return "Website"
	}
}

// LinkPreview is the result of one resolution attempt. It is built once and
// passed around by value; nil fields mean "unknown".
type LinkPreview struct {
	Platform    PlatformKind
	Title       *string
	Description *string
	Author      *string
	Image       []byte
}

// HasImage reports whether the preview carries image bytes.
func (p LinkPreview) HasImage() bool {
	return len(p.Image) > 0
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// FirstNonEmpty returns the first non-nil, non-empty value.
func FirstNonEmpty(values ...*string) *string {
	for _, v := range values {
		if v != nil && *v != "" {
			return v
		}
	}
	return nil
}
