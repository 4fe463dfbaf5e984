package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// BodyKind discriminates MessageBody.
type BodyKind string

const (
	BodyText  BodyKind = "text"
	BodyImage BodyKind = "image"
)

// MessageBody is a tagged union: exactly one of Text or URL is meaningful,
// selected by Kind. On the wire it is {"kind":"text","text":"..."} or
// {"kind":"image","url":"..."}.
type MessageBody struct {
	Kind BodyKind `json:"kind"`
	Text string   `json:"text,omitempty"`
	URL  string   `json:"url,omitempty"`
}

// Validate normalises the body and checks it against the configured limits.
// Text is trimmed and counted in runes; image URLs must be absolute http(s).
func (b *MessageBody) Validate(maxTextRunes, maxURLLen int) error {
	switch b.Kind {
	case BodyText:
		if b.URL != "" {
			return fmt.Errorf("text message must not carry a url")
		}
		b.Text = strings.TrimSpace(b.Text)
		n := utf8.RuneCountInString(b.Text)
		if n == 0 {
			return fmt.Errorf("message text is required")
		}
		if n > maxTextRunes {
			return fmt.Errorf("message text must be at most %d characters", maxTextRunes)
		}
	case BodyImage:
		if b.Text != "" {
			return fmt.Errorf("image message must not carry text")
		}
		b.URL = strings.TrimSpace(b.URL)
		if b.URL == "" {
			return fmt.Errorf("image url is required")
		}
		if len(b.URL) > maxURLLen {
			return fmt.Errorf("image url must be at most %d bytes", maxURLLen)
		}
		u, err := url.Parse(b.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("image url must be an absolute http(s) url")
		}
	default:
		return fmt.Errorf("unknown message kind %q", b.Kind)
	}
	return nil
}

// Content returns the stored payload column for the body.
func (b MessageBody) Content() string {
	if b.Kind == BodyImage {
		return b.URL
	}
	return b.Text
}

// BodyFromStored rebuilds a body from its kind and content columns.
func BodyFromStored(kind, content string) MessageBody {
	if BodyKind(kind) == BodyImage {
		return MessageBody{Kind: BodyImage, URL: content}
	}
	return MessageBody{Kind: BodyText, Text: content}
}

// Message is one chat message in a room. Only the global pin fields ever change
// after creation.
type Message struct {
	ID             string      `json:"id"`
	RoomID         string      `json:"room_id"`
	SenderID       *string     `json:"sender_id"` // nil for system messages
	Body           MessageBody `json:"body"`
	CreatedAt      time.Time   `json:"created_at"`
	GlobalPinned   bool        `json:"global_pinned"`
	GlobalPinnedBy *string     `json:"global_pinned_by"`
	GlobalPinnedAt *time.Time  `json:"global_pinned_at"`
}

// MessagePage is one page of history, ordered oldest to newest.
//
// Paging is keyed on created_at rather than an offset so concurrent inserts never
// shift a page: pass the CreatedAt of Messages[0] as the next "before".
type MessagePage struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"has_more"`
}
