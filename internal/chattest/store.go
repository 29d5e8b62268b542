package chattest

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shahriarspace/InvestHub/internal/pkg/messaging/domain"
)

var (
	errUnknownConversation = errors.New("chattest: unknown conversation")
	errNotParticipant      = errors.New("chattest: sender is not a participant")
)

// memStore is the broker's in-memory message store. It mirrors the backend
// semantics the client relies on: server-assigned ids and timestamps,
// idempotent conversation creation per unordered user pair, and denormalized
// last-message previews.
type memStore struct {
	mu            sync.Mutex
	conversations map[string]domain.Conversation
	pairs         map[string]string // "lowID|highID" -> conversation id
	messages      map[string][]domain.Message
	users         map[string]domain.User
}

func newMemStore() *memStore {
	return &memStore{
		conversations: make(map[string]domain.Conversation),
		pairs:         make(map[string]string),
		messages:      make(map[string][]domain.Message),
		users:         make(map[string]domain.User),
	}
}

func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

func (s *memStore) getOrCreateConversation(user1ID, user2ID string) domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(user1ID, user2ID)
	if id, ok := s.pairs[key]; ok {
		return s.conversations[id]
	}

	conv := domain.Conversation{
		ID:             uuid.NewString(),
		ParticipantIDs: []string{user1ID, user2ID},
	}
	s.conversations[conv.ID] = conv
	s.pairs[key] = conv.ID
	return conv
}

func (s *memStore) conversation(id string) (domain.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	return conv, ok
}

func (s *memStore) conversationsForUser(userID string) []domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Conversation, 0)
	for _, conv := range s.conversations {
		if conv.HasParticipant(userID) {
			out = append(out, conv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessageTime.After(out[j].LastMessageTime)
	})
	return out
}

func (s *memStore) addMessage(conversationID, senderID, content string) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return domain.Message{}, errUnknownConversation
	}
	if !conv.HasParticipant(senderID) {
		return domain.Message{}, errNotParticipant
	}

	msg := domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	s.messages[conversationID] = append(s.messages[conversationID], msg)

	conv.LastMessage = content
	conv.LastMessageTime = msg.CreatedAt
	s.conversations[conversationID] = conv
	return msg, nil
}

func (s *memStore) messagesPage(conversationID string, page, size int) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages[conversationID]
	if size <= 0 {
		size = 50
	}
	start := page * size
	if start >= len(msgs) {
		return []domain.Message{}
	}
	end := start + size
	if end > len(msgs) {
		end = len(msgs)
	}
	out := make([]domain.Message, end-start)
	copy(out, msgs[start:end])
	return out
}

func (s *memStore) unreadMessages(conversationID string) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Message, 0)
	for _, msg := range s.messages[conversationID] {
		if !msg.IsRead {
			out = append(out, msg)
		}
	}
	return out
}

func (s *memStore) markMessageRead(messageID string) (domain.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for convID, msgs := range s.messages {
		for i, msg := range msgs {
			if msg.ID == messageID {
				msgs[i].IsRead = true
				s.messages[convID] = msgs
				return msgs[i], true
			}
		}
	}
	return domain.Message{}, false
}

func (s *memStore) markConversationRead(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages[conversationID]
	for i := range msgs {
		msgs[i].IsRead = true
	}
}

func (s *memStore) deleteMessage(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for convID, msgs := range s.messages {
		for i, msg := range msgs {
			if msg.ID == messageID {
				s.messages[convID] = append(msgs[:i:i], msgs[i+1:]...)
				return true
			}
		}
	}
	return false
}

func (s *memStore) addUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *memStore) user(id string) (domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return u, ok
}
