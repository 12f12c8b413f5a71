package types

import (
	"time"
)

// Identity is the result of a best-effort identity check. The zero value is
// an anonymous visitor.
type Identity struct {
	UserId string `json:"user_id"`
	Name   string `json:"name"`
}

func (i Identity) Anonymous() bool {
	return i.UserId == ""
}

type Room struct {
	Id        string    `json:"id"`
	Category  string    `json:"category"`
	Name      string    `json:"name"`
	Peers     int       `json:"peers"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type Preview struct {
	Url           string `json:"url"`
	Title         string `json:"title,omitempty"`
	Description   string `json:"description,omitempty"`
	Image         string `json:"image,omitempty"`
	SiteName      string `json:"site_name,omitempty"`
	Author        string `json:"author,omitempty"`
	PublishedTime string `json:"published_time,omitempty"`
	Favicon       string `json:"favicon,omitempty"`
	ContentType   string `json:"content_type,omitempty"`
}

// Message is the history representation returned by the REST surface.
type Message struct {
	Id        string    `json:"id"`
	UserId    *string   `json:"user_id"`
	Name      string    `json:"name"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"ts"`
}

type NotificationType string

const (
	NotifySubscribe   NotificationType = "subscribe"
	NotifyPostLike    NotificationType = "post_like"
	NotifyCommentLike NotificationType = "comment_like"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotifySubscribe, NotifyPostLike, NotifyCommentLike:
		return true
	}
	return false
}

// Notification is the client payload for a stored notification.
type Notification struct {
	Id        string           `json:"id"`
	Type      NotificationType `json:"type"`
	ActorName string           `json:"actor_name"`
	Text      string           `json:"text"`
	PostId    *string          `json:"post_id"`
	CommentId *string          `json:"comment_id"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

// HasContent reports whether the preview carries anything worth rendering.
func (p *Preview) HasContent() bool {
	return p != nil && (p.Title != "" || p.Description != "" || p.Image != "")
}
