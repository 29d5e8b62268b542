package domain

// Live-channel topic and destination names. Topics are what clients
// subscribe to; destinations are what they publish to. Both are keyed by
// conversation id and map 1:1 to the backend's broker configuration.

func MessageTopic(conversationID string) string {
	return "/topic/conversation/" + conversationID
}

func TypingTopic(conversationID string) string {
	return MessageTopic(conversationID) + "/typing"
}

func ReadTopic(conversationID string) string {
	return MessageTopic(conversationID) + "/read"
}

func SendDestination(conversationID string) string {
	return "/app/chat.send/" + conversationID
}

func TypingDestination(conversationID string) string {
	return "/app/chat.typing/" + conversationID
}

func ReadDestination(conversationID string) string {
	return "/app/chat.read/" + conversationID
}
