package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/shahriarspace/InvestHub/internal/logger"
	"github.com/shahriarspace/InvestHub/internal/pkg/messaging/domain"
)

const (
	defaultConversationPageSize = 20
	defaultHistoryPageSize      = 50
)

// ErrNoConversation is returned by Send when no conversation is open.
var ErrNoConversation = errors.New("messaging: no open conversation")

// ErrSendFailed marks a user-initiated send that failed on both the live
// channel and the REST fallback. The UI surfaces it as a transient banner.
var ErrSendFailed = errors.New("messaging: failed to send message")

// ConversationView is a conversation enriched with the resolved profile of
// the other participant. Resolution failures degrade to UnknownUserName
// rather than dropping the conversation.
type ConversationView struct {
	domain.Conversation
	OtherUser   *domain.User
	DisplayName string
}

// outgoingMessage is the live-channel send payload; ids and timestamps are
// assigned server-side.
type outgoingMessage struct {
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	Content        string `json:"content"`
}

// Synchronizer produces a single ordered, deduplicated message list for the
// open conversation by merging REST history with live-pushed messages. It is
// the only writer of that list.
type Synchronizer struct {
	backend Backend
	live    LiveChannel
	coord   *Coordinator
	userID  string

	mu            sync.Mutex
	epoch         uint64
	activeID      string
	messages      []domain.Message
	seen          map[string]struct{}
	historyLoaded bool
	// live arrivals between subscribe and history merge; reconciled by id.
	pending  []domain.Message
	onChange func()
}

func NewSynchronizer(backend Backend, live LiveChannel, coord *Coordinator, userID string) *Synchronizer {
	return &Synchronizer{
		backend: backend,
		live:    live,
		coord:   coord,
		userID:  userID,
		seen:    make(map[string]struct{}),
	}
}

// SetOnChange registers a callback fired after every mutation of the open
// conversation's message list.
func (s *Synchronizer) SetOnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// LoadConversations fetches the user's conversation list and resolves the
// other participant of each for display.
func (s *Synchronizer) LoadConversations(ctx context.Context) ([]ConversationView, error) {
	convs, err := s.backend.ListUserConversations(ctx, s.userID, 0, defaultConversationPageSize)
	if err != nil {
		return nil, fmt.Errorf("messaging: load conversations: %w", err)
	}

	views := make([]ConversationView, 0, len(convs))
	for _, conv := range convs {
		view := ConversationView{Conversation: conv, DisplayName: domain.UnknownUserName}
		if otherID := conv.OtherParticipant(s.userID); otherID != "" {
			if u, err := s.backend.GetUser(ctx, otherID); err != nil {
				logger.Log.Warn("could not resolve participant",
					zap.String("userId", otherID), zap.Error(err))
			} else {
				user := u
				view.OtherUser = &user
				view.DisplayName = user.DisplayName()
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// StartConversation gets or creates the conversation with otherUserID. The
// backend call is idempotent per user pair.
func (s *Synchronizer) StartConversation(ctx context.Context, otherUserID string) (ConversationView, error) {
	conv, err := s.backend.GetOrCreateConversation(ctx, s.userID, otherUserID)
	if err != nil {
		return ConversationView{}, fmt.Errorf("messaging: start conversation: %w", err)
	}

	view := ConversationView{Conversation: conv, DisplayName: domain.UnknownUserName}
	if u, err := s.backend.GetUser(ctx, otherUserID); err != nil {
		logger.Log.Warn("could not resolve participant", zap.String("userId", otherUserID), zap.Error(err))
	} else {
		user := u
		view.OtherUser = &user
		view.DisplayName = user.DisplayName()
	}
	return view, nil
}

// Open switches the active conversation: the previous conversation's topics
// are fully torn down first, then the live topics are subscribed, and only
// then is history fetched. Subscribing before the fetch closes the gap in
// which a live message could be lost; anything that arrives early is
// buffered and reconciled by message id during the merge.
func (s *Synchronizer) Open(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	prev := s.activeID
	s.epoch++
	epoch := s.epoch
	s.activeID = conversationID
	s.messages = nil
	s.seen = make(map[string]struct{})
	s.historyLoaded = false
	s.pending = nil
	s.mu.Unlock()

	if prev != "" {
		s.teardownTopics(prev)
	}
	s.coord.bindConversation(conversationID)

	if s.live.Connected() {
		s.subscribeTopics(conversationID, epoch)
	} else {
		logger.Log.Info("live channel down, opening conversation over REST only",
			zap.String("conversationId", conversationID))
	}

	history, err := s.backend.ListMessages(ctx, conversationID, 0, defaultHistoryPageSize)
	if err != nil {
		// Degrade to live-only: the subscription stays up, and anything it
		// buffered while the fetch was in flight is kept.
		s.mu.Lock()
		flushed := false
		if s.epoch == epoch {
			for _, msg := range s.pending {
				if _, dup := s.seen[msg.ID]; dup {
					continue
				}
				s.seen[msg.ID] = struct{}{}
				s.messages = append(s.messages, msg)
				flushed = true
			}
			s.pending = nil
			s.historyLoaded = true
		}
		s.mu.Unlock()
		if flushed {
			s.notify()
		}
		return fmt.Errorf("messaging: load history: %w", err)
	}

	s.mu.Lock()
	if s.epoch != epoch {
		// The user switched conversations while this fetch was in flight;
		// discard the response instead of applying it to the new view.
		s.mu.Unlock()
		logger.Log.Debug("discarding stale history response", zap.String("conversationId", conversationID))
		return nil
	}

	sort.SliceStable(history, func(i, j int) bool {
		return history[i].CreatedAt.Before(history[j].CreatedAt)
	})
	unreadFromPeer := false
	for _, msg := range history {
		if _, dup := s.seen[msg.ID]; dup {
			continue
		}
		s.seen[msg.ID] = struct{}{}
		s.messages = append(s.messages, msg)
		if msg.SenderID != s.userID && !msg.IsRead {
			unreadFromPeer = true
		}
	}
	for _, msg := range s.pending {
		if _, dup := s.seen[msg.ID]; dup {
			continue
		}
		s.seen[msg.ID] = struct{}{}
		s.messages = append(s.messages, msg)
	}
	s.pending = nil
	s.historyLoaded = true
	s.mu.Unlock()

	if unreadFromPeer {
		if err := s.backend.MarkConversationRead(ctx, conversationID); err != nil {
			logger.Log.Warn("mark-all-read failed", zap.String("conversationId", conversationID), zap.Error(err))
		}
	}

	s.notify()
	return nil
}

// Close tears down the open conversation's subscriptions and clears state.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	prev := s.activeID
	s.epoch++
	s.activeID = ""
	s.messages = nil
	s.seen = make(map[string]struct{})
	s.historyLoaded = false
	s.pending = nil
	s.mu.Unlock()

	if prev != "" {
		s.teardownTopics(prev)
	}
	s.coord.bindConversation("")
}

// Send delivers content to the open conversation. Whitespace-only content is
// rejected locally with no network call. The live channel is tried first and
// gets no local echo (the backend re-broadcasts to the sender's own
// subscription); the REST fallback appends the returned message directly
// since no echo will arrive.
func (s *Synchronizer) Send(ctx context.Context, content string) error {
	content, err := domain.ValidateContent(content)
	if err != nil {
		return err
	}

	s.mu.Lock()
	conversationID := s.activeID
	epoch := s.epoch
	s.mu.Unlock()

	if conversationID == "" {
		return ErrNoConversation
	}

	if s.live.Connected() {
		payload := outgoingMessage{ConversationID: conversationID, SenderID: s.userID, Content: content}
		if err := s.live.Publish(domain.SendDestination(conversationID), payload); err == nil {
			return nil
		} else {
			logger.Log.Warn("live send failed, falling back to REST",
				zap.String("conversationId", conversationID), zap.Error(err))
		}
	}

	msg, err := s.backend.SendMessage(ctx, conversationID, s.userID, content)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	s.mu.Lock()
	if s.epoch == epoch {
		if _, dup := s.seen[msg.ID]; !dup {
			s.seen[msg.ID] = struct{}{}
			s.messages = append(s.messages, msg)
		}
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// Messages returns a snapshot of the open conversation's message list:
// history sorted by createdAt ascending, then live messages in arrival
// order, no id twice.
func (s *Synchronizer) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// ActiveConversation returns the id of the open conversation, or "".
func (s *Synchronizer) ActiveConversation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

func (s *Synchronizer) handleLiveMessage(epoch uint64, body json.RawMessage) {
	var msg domain.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		// Drop the event; a bad payload must not affect the subscription.
		logger.Log.Warn("dropping malformed live message", zap.Error(err))
		return
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	if !s.historyLoaded {
		s.pending = append(s.pending, msg)
		s.mu.Unlock()
		return
	}
	if _, dup := s.seen[msg.ID]; dup {
		s.mu.Unlock()
		return
	}
	s.seen[msg.ID] = struct{}{}
	s.messages = append(s.messages, msg)
	fromPeer := msg.SenderID != s.userID
	conversationID := s.activeID
	s.mu.Unlock()

	if fromPeer {
		s.coord.MarkRead(conversationID)
	}
	s.notify()
}

// HandleReconnect re-establishes the live subscriptions for the open
// conversation. Wire it to the transport's connect callback so a conversation
// opened while the channel was down starts receiving pushes once it comes
// back. Subscribing is idempotent, so a reconnect that already replayed the
// topics is harmless.
func (s *Synchronizer) HandleReconnect() {
	s.mu.Lock()
	conversationID := s.activeID
	epoch := s.epoch
	s.mu.Unlock()

	if conversationID == "" || !s.live.Connected() {
		return
	}
	s.subscribeTopics(conversationID, epoch)
}

func (s *Synchronizer) subscribeTopics(conversationID string, epoch uint64) {
	if _, err := s.live.Subscribe(domain.MessageTopic(conversationID), func(body json.RawMessage) {
		s.handleLiveMessage(epoch, body)
	}); err != nil {
		logger.Log.Warn("message subscription unavailable, history only",
			zap.String("conversationId", conversationID), zap.Error(err))
	}
	if _, err := s.live.Subscribe(domain.TypingTopic(conversationID), s.coord.HandleRemoteTyping); err != nil {
		logger.Log.Warn("typing subscription unavailable", zap.Error(err))
	}
	if _, err := s.live.Subscribe(domain.ReadTopic(conversationID), s.coord.HandleReadReceipt); err != nil {
		logger.Log.Warn("read-receipt subscription unavailable", zap.Error(err))
	}
}

func (s *Synchronizer) teardownTopics(conversationID string) {
	s.live.Unsubscribe(domain.MessageTopic(conversationID))
	s.live.Unsubscribe(domain.TypingTopic(conversationID))
	s.live.Unsubscribe(domain.ReadTopic(conversationID))
}

func (s *Synchronizer) notify() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}
