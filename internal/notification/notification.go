// Package notification defines the payload the web application hands to the
// fan-out service. Records are created and persisted by the web app; this
// service only validates the populated document and pushes it along.
package notification

import (
	"encoding/json"
	"time"

	"github.com/divyanshmehta355/aurahub-notify/internal/errors"
)

// Notification types, matching the web app's schema enum.
const (
	TypeLike     = "like"
	TypeComment  = "comment"
	TypeReply    = "reply"
	TypeNewVideo = "new_video"
)

var validTypes = map[string]struct{}{
	TypeLike:     {},
	TypeComment:  {},
	TypeReply:    {},
	TypeNewVideo: {},
}

// ValidType reports whether t is a known notification type.
func ValidType(t string) bool {
	_, ok := validTypes[t]
	return ok
}

// Sender is the populated sender sub-document (username + avatar).
type Sender struct {
	ID       string `json:"_id,omitempty"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// VideoRef is the populated video sub-document (title only).
type VideoRef struct {
	ID    string `json:"_id,omitempty"`
	Title string `json:"title"`
}

// Notification mirrors the document the web app persists. The web app's ORM
// emits "_id"; hand-built callers send "id". Both are accepted.
type Notification struct {
	ID        string     `json:"id,omitempty"`
	MongoID   string     `json:"_id,omitempty"`
	Recipient string     `json:"recipient,omitempty"`
	Sender    Sender     `json:"sender"`
	Type      string     `json:"type"`
	Video     *VideoRef  `json:"video,omitempty"`
	Comment   string     `json:"comment,omitempty"`
	IsRead    bool       `json:"isRead"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// Key returns the notification's identifier regardless of which field carried it.
func (n *Notification) Key() string {
	if n.ID != "" {
		return n.ID
	}
	return n.MongoID
}

// Validate checks that a populated notification is complete enough to push.
// The service never fills in missing fields; incomplete payloads are rejected.
func (n *Notification) Validate() *errors.APIError {
	if n.Key() == "" {
		return errors.ValidationError("notification.id", "notification id is required")
	}
	if n.Type == "" {
		return errors.ValidationError("notification.type", "notification type is required")
	}
	if !ValidType(n.Type) {
		return errors.ValidationError("notification.type", "unknown notification type: "+n.Type)
	}
	if n.Sender.Username == "" {
		return errors.ValidationError("notification.sender.username", "sender username is required")
	}
	if n.CreatedAt.IsZero() {
		return errors.ValidationError("notification.createdAt", "creation timestamp is required")
	}
	return nil
}

// Parse validates raw notification JSON and returns the decoded document.
// The raw bytes, not the decoded struct, are what gets pushed to clients, so
// the payload reaches the browser exactly as the web app produced it.
func Parse(raw json.RawMessage) (*Notification, *errors.APIError) {
	if len(raw) == 0 {
		return nil, errors.ValidationError("notification", "notification payload is required")
	}
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, errors.BadRequest("notification payload is not valid JSON").WithDetails(err.Error())
	}
	if apiErr := n.Validate(); apiErr != nil {
		return nil, apiErr
	}
	return &n, nil
}
