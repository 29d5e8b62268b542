package domain

// TypingIndicator is a transient signal that a user started or stopped
// composing. It carries no history; only the latest signal per user matters.
type TypingIndicator struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

// ReadReceipt signals that a user has viewed the messages of a conversation.
type ReadReceipt struct {
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
}
