package email

import (
	"fmt"
	"strings"
)

// ContentType selects how a draft's content is packaged.
type ContentType int

const (
	// Plain sends the content as a single text/plain body.
	Plain ContentType = iota
	// HTML sends a multipart message with a text/html part followed by
	// an optional attachment.
	HTML
)

// ParseContentType accepts "plain", "html" and their full MIME types, in
// any case.
func ParseContentType(s string) (ContentType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "plain", "text/plain":
		return Plain, nil
	case "html", "text/html":
		return HTML, nil
	}
	return Plain, fmt.Errorf("%w: %q", ErrUnknownContentType, s)
}

// MIMEType returns the media type of the body part.
func (ct ContentType) MIMEType() string {
	if ct == HTML {
		return "text/html"
	}
	return "text/plain"
}

func (ct ContentType) String() string {
	switch ct {
	case Plain:
		return "plain"
	case HTML:
		return "html"
	}
	return fmt.Sprintf("ContentType(%d)", int(ct))
}

func (ct ContentType) valid() bool {
	return ct == Plain || ct == HTML
}
