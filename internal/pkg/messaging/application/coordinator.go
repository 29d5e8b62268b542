package application

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shahriarspace/InvestHub/internal/logger"
	"github.com/shahriarspace/InvestHub/internal/pkg/messaging/domain"
)

// DefaultTypingIdle is how long after the last keystroke the stop-typing
// signal goes out.
const DefaultTypingIdle = 2 * time.Second

// Coordinator broadcasts the local user's typing transitions with debouncing,
// tracks which remote users are currently typing, and dispatches read
// receipts. Everything here is best-effort over the live channel only; there
// is no REST fallback for these signals.
type Coordinator struct {
	live   LiveChannel
	userID string
	idle   time.Duration

	mu             sync.Mutex
	conversationID string
	typingSent     bool
	timer          *time.Timer
	typing         map[string]struct{}
	onTyping       func(users []string)
	onRead         func(domain.ReadReceipt)
}

func NewCoordinator(live LiveChannel, userID string) *Coordinator {
	return &Coordinator{
		live:   live,
		userID: userID,
		idle:   DefaultTypingIdle,
		typing: make(map[string]struct{}),
	}
}

// SetTypingIdle overrides the debounce window; used by tests.
func (c *Coordinator) SetTypingIdle(d time.Duration) {
	c.mu.Lock()
	c.idle = d
	c.mu.Unlock()
}

// SetOnTypingChanged registers a callback invoked with the sorted set of
// currently-typing remote users whenever it changes.
func (c *Coordinator) SetOnTypingChanged(fn func(users []string)) {
	c.mu.Lock()
	c.onTyping = fn
	c.mu.Unlock()
}

// SetOnReadReceipt registers a callback for remote read receipts.
func (c *Coordinator) SetOnReadReceipt(fn func(domain.ReadReceipt)) {
	c.mu.Lock()
	c.onRead = fn
	c.mu.Unlock()
}

// bindConversation points the coordinator at a new conversation and resets
// all transient typing state. Called by the synchronizer on open/close. A
// switch mid-composition sends the stop signal for the previous conversation
// so the peer's typing set does not show the user forever.
func (c *Coordinator) bindConversation(conversationID string) {
	c.mu.Lock()
	prev := c.conversationID
	wasTyping := c.typingSent
	if c.timer != nil {
		c.timer.Stop()
	}
	c.conversationID = conversationID
	c.typingSent = false
	c.typing = make(map[string]struct{})
	c.mu.Unlock()

	if wasTyping && prev != "" && prev != conversationID {
		c.publishTyping(prev, false)
	}
}

// InputActivity is called on every keystroke in the compose box. The
// start-typing signal goes out at most once per debounce window; each call
// restarts the idle timer, and when it elapses the stop-typing signal is
// sent. Nothing is sent while the transport is down.
func (c *Coordinator) InputActivity() {
	c.mu.Lock()
	conversationID := c.conversationID
	if conversationID == "" || !c.live.Connected() {
		c.mu.Unlock()
		return
	}
	first := !c.typingSent
	c.typingSent = true
	if c.timer == nil {
		c.timer = time.AfterFunc(c.idle, c.idleElapsed)
	} else {
		c.timer.Reset(c.idle)
	}
	c.mu.Unlock()

	if first {
		c.publishTyping(conversationID, true)
	}
}

func (c *Coordinator) idleElapsed() {
	c.mu.Lock()
	conversationID := c.conversationID
	wasTyping := c.typingSent
	c.typingSent = false
	c.mu.Unlock()

	if !wasTyping || conversationID == "" {
		return
	}
	c.publishTyping(conversationID, false)
}

func (c *Coordinator) publishTyping(conversationID string, isTyping bool) {
	if !c.live.Connected() {
		return
	}
	indicator := domain.TypingIndicator{UserID: c.userID, IsTyping: isTyping}
	if err := c.live.Publish(domain.TypingDestination(conversationID), indicator); err != nil {
		logger.Log.Debug("typing signal dropped", zap.Bool("isTyping", isTyping), zap.Error(err))
	}
}

// HandleRemoteTyping consumes typing events from the conversation's typing
// topic. Echoes of the local user's own signals are ignored.
func (c *Coordinator) HandleRemoteTyping(body json.RawMessage) {
	var indicator domain.TypingIndicator
	if err := json.Unmarshal(body, &indicator); err != nil {
		logger.Log.Warn("dropping malformed typing indicator", zap.Error(err))
		return
	}
	if indicator.UserID == c.userID {
		return
	}

	c.mu.Lock()
	before := len(c.typing)
	if indicator.IsTyping {
		c.typing[indicator.UserID] = struct{}{}
	} else {
		delete(c.typing, indicator.UserID)
	}
	changed := len(c.typing) != before
	fn := c.onTyping
	var users []string
	if changed && fn != nil {
		users = c.typingUsersLocked()
	}
	c.mu.Unlock()

	if changed && fn != nil {
		fn(users)
	}
}

// TypingUsers returns the sorted ids of remote users currently typing.
func (c *Coordinator) TypingUsers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.typingUsersLocked()
}

func (c *Coordinator) typingUsersLocked() []string {
	users := make([]string, 0, len(c.typing))
	for id := range c.typing {
		users = append(users, id)
	}
	sort.Strings(users)
	return users
}

// HandleReadReceipt consumes receipts from the conversation's read topic.
func (c *Coordinator) HandleReadReceipt(body json.RawMessage) {
	var receipt domain.ReadReceipt
	if err := json.Unmarshal(body, &receipt); err != nil {
		logger.Log.Warn("dropping malformed read receipt", zap.Error(err))
		return
	}
	if receipt.UserID == c.userID {
		return
	}

	c.mu.Lock()
	fn := c.onRead
	c.mu.Unlock()
	if fn != nil {
		fn(receipt)
	}
}

// MarkRead dispatches a read receipt for the conversation. Fire-and-forget:
// no acknowledgement is awaited and failure is not surfaced.
func (c *Coordinator) MarkRead(conversationID string) {
	if conversationID == "" || !c.live.Connected() {
		return
	}
	receipt := domain.ReadReceipt{UserID: c.userID, ConversationID: conversationID}
	if err := c.live.Publish(domain.ReadDestination(conversationID), receipt); err != nil {
		logger.Log.Debug("read receipt dropped", zap.String("conversationId", conversationID), zap.Error(err))
	}
}
