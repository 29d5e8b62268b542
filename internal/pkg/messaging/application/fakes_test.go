package application

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/shahriarspace/InvestHub/internal/infrastructure/realtime"
	"github.com/shahriarspace/InvestHub/internal/pkg/messaging/domain"
)

type published struct {
	destination string
	body        []byte
}

// fakeLive is a scripted LiveChannel: it records publishes and lets tests
// push events into subscribed handlers.
type fakeLive struct {
	mu         sync.Mutex
	connected  bool
	publishErr error
	subs       map[string]realtime.Handler
	sent       []published
}

func newFakeLive(connected bool) *fakeLive {
	return &fakeLive{connected: connected, subs: make(map[string]realtime.Handler)}
}

func (f *fakeLive) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeLive) setConnected(v bool) {
	f.mu.Lock()
	f.connected = v
	f.mu.Unlock()
}

func (f *fakeLive) Subscribe(topic string, h realtime.Handler) (*realtime.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return nil, realtime.ErrNotConnected
	}
	if _, ok := f.subs[topic]; !ok {
		f.subs[topic] = h
	}
	return &realtime.Subscription{Topic: topic}, nil
}

func (f *fakeLive) Unsubscribe(topic string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, topic)
}

func (f *fakeLive) Publish(destination string, v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return realtime.ErrNotConnected
	}
	if f.publishErr != nil {
		return f.publishErr
	}
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.sent = append(f.sent, published{destination: destination, body: body})
	return nil
}

func (f *fakeLive) push(topic string, v any) bool {
	body, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	h := f.subs[topic]
	f.mu.Unlock()
	if h == nil {
		return false
	}
	h(body)
	return true
}

func (f *fakeLive) publishedTo(destination string) []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]published, 0)
	for _, p := range f.sent {
		if p.destination == destination {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakeLive) subscribedTopics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	topics := make([]string, 0, len(f.subs))
	for t := range f.subs {
		topics = append(topics, t)
	}
	return topics
}

// fakeBackend is a scripted Backend that records calls. History fetches can
// be gated on a channel to simulate slow responses.
type fakeBackend struct {
	mu sync.Mutex

	conversations map[string]domain.Conversation
	users         map[string]domain.User
	history       map[string][]domain.Message

	historyStarted chan string // receives the conversation id of each fetch
	historyGate    chan struct{}
	gateConv       string // when set, only this conversation's fetch blocks
	historyErr     error

	sendCalls     int
	sendErr       error
	sentMessages  []domain.Message
	markReadCalls []string
	nextMessageID int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		conversations: make(map[string]domain.Conversation),
		users:         make(map[string]domain.User),
		history:       make(map[string][]domain.Message),
	}
}

func (f *fakeBackend) GetOrCreateConversation(_ context.Context, user1ID, user2ID string) (domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, conv := range f.conversations {
		if conv.HasParticipant(user1ID) && conv.HasParticipant(user2ID) {
			return conv, nil
		}
	}
	conv := domain.Conversation{
		ID:             "conv-" + user1ID + "-" + user2ID,
		ParticipantIDs: []string{user1ID, user2ID},
	}
	f.conversations[conv.ID] = conv
	return conv, nil
}

func (f *fakeBackend) ListUserConversations(_ context.Context, userID string, _, _ int) ([]domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Conversation, 0)
	for _, conv := range f.conversations {
		if conv.HasParticipant(userID) {
			out = append(out, conv)
		}
	}
	return out, nil
}

func (f *fakeBackend) ListMessages(_ context.Context, conversationID string, _, _ int) ([]domain.Message, error) {
	if f.historyStarted != nil {
		f.historyStarted <- conversationID
	}
	if f.historyGate != nil && (f.gateConv == "" || f.gateConv == conversationID) {
		<-f.historyGate
	}
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Message, len(f.history[conversationID]))
	copy(out, f.history[conversationID])
	return out, nil
}

func (f *fakeBackend) SendMessage(_ context.Context, conversationID, senderID, content string) (domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls++
	if f.sendErr != nil {
		return domain.Message{}, f.sendErr
	}
	f.nextMessageID++
	msg := domain.Message{
		ID:             fmt.Sprintf("rest-%d", f.nextMessageID),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
	}
	f.sentMessages = append(f.sentMessages, msg)
	return msg, nil
}

func (f *fakeBackend) MarkConversationRead(_ context.Context, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markReadCalls = append(f.markReadCalls, conversationID)
	return nil
}

func (f *fakeBackend) GetUser(_ context.Context, userID string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return domain.User{}, &notFoundError{id: userID}
	}
	return u, nil
}

func (f *fakeBackend) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sendCalls
}

type notFoundError struct{ id string }

func (e *notFoundError) Error() string { return "user not found: " + e.id }
