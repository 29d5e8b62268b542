package application

import (
	"context"

	"github.com/shahriarspace/InvestHub/internal/infrastructure/realtime"
	"github.com/shahriarspace/InvestHub/internal/pkg/messaging/domain"
)

// LiveChannel is the slice of the realtime manager the messaging layer uses.
// The registry behind Subscribe/Unsubscribe is the sole owner of topic
// handles; nothing else talks to the transport directly.
type LiveChannel interface {
	Connected() bool
	Subscribe(topic string, h realtime.Handler) (*realtime.Subscription, error)
	Unsubscribe(topic string)
	Publish(destination string, v any) error
}

// Backend is the REST surface consumed by the synchronizer.
type Backend interface {
	GetOrCreateConversation(ctx context.Context, user1ID, user2ID string) (domain.Conversation, error)
	ListUserConversations(ctx context.Context, userID string, page, size int) ([]domain.Conversation, error)
	ListMessages(ctx context.Context, conversationID string, page, size int) ([]domain.Message, error)
	SendMessage(ctx context.Context, conversationID, senderID, content string) (domain.Message, error)
	MarkConversationRead(ctx context.Context, conversationID string) error
	GetUser(ctx context.Context, userID string) (domain.User, error)
}
