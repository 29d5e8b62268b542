package domain

import "time"

// Conversation is a two-party messaging thread. Conversations are created by
// the backend on first contact (get-or-create) and are never deleted.
type Conversation struct {
	ID              string    `json:"id"`
	ParticipantIDs  []string  `json:"participantIds"`
	LastMessage     string    `json:"lastMessage,omitempty"`
	LastMessageTime time.Time `json:"lastMessageTime,omitempty"`
}

// OtherParticipant returns the participant that is not userID, or "" when
// userID is not part of the conversation.
func (c Conversation) OtherParticipant(userID string) string {
	for _, id := range c.ParticipantIDs {
		if id != userID {
			return id
		}
	}
	return ""
}

// HasParticipant reports whether userID is one of the two participants.
func (c Conversation) HasParticipant(userID string) bool {
	for _, id := range c.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}
