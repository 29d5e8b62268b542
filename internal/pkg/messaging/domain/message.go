package domain

import (
	"errors"
	"strings"
	"time"
)

// ErrEmptyContent is returned when a message body is empty or whitespace-only.
// Such sends are rejected locally before any network call.
var ErrEmptyContent = errors.New("message content is empty")

// Message is a single chat message. IDs and timestamps are assigned by the
// backend; the client never generates them, which keeps live echoes and
// history entries comparable by ID.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	IsRead         bool      `json:"isRead"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ValidateContent trims content and rejects whitespace-only input.
func ValidateContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", ErrEmptyContent
	}
	return trimmed, nil
}
