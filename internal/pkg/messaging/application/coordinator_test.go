package application

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shahriarspace/InvestHub/internal/pkg/messaging/domain"
)

func newCoordUnderTest(connected bool) (*Coordinator, *fakeLive) {
	live := newFakeLive(connected)
	c := NewCoordinator(live, "alice")
	c.SetTypingIdle(50 * time.Millisecond)
	c.bindConversation("c1")
	return c, live
}

func typingSignals(live *fakeLive) []domain.TypingIndicator {
	out := make([]domain.TypingIndicator, 0)
	for _, p := range live.publishedTo(domain.TypingDestination("c1")) {
		var ind domain.TypingIndicator
		if err := json.Unmarshal(p.body, &ind); err != nil {
			panic(err)
		}
		out = append(out, ind)
	}
	return out
}

func TestInputActivityDebouncesStartSignal(t *testing.T) {
	c, live := newCoordUnderTest(true)

	// A burst of keystrokes produces a single start-typing signal.
	c.InputActivity()
	c.InputActivity()
	c.InputActivity()

	signals := typingSignals(live)
	require.Len(t, signals, 1)
	assert.Equal(t, domain.TypingIndicator{UserID: "alice", IsTyping: true}, signals[0])

	// Once the idle window elapses the stop signal follows, exactly once.
	require.Eventually(t, func() bool {
		return len(typingSignals(live)) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, domain.TypingIndicator{UserID: "alice", IsTyping: false}, typingSignals(live)[1])

	time.Sleep(120 * time.Millisecond)
	assert.Len(t, typingSignals(live), 2, "idle timer fires only once per burst")
}

func TestInputActivityRestartsIdleTimer(t *testing.T) {
	c, live := newCoordUnderTest(true)

	c.InputActivity()
	for i := 0; i < 3; i++ {
		time.Sleep(20 * time.Millisecond)
		c.InputActivity()
	}
	// Keystrokes every 20ms with a 50ms window keep the stop signal pending.
	assert.Len(t, typingSignals(live), 1)

	require.Eventually(t, func() bool {
		return len(typingSignals(live)) == 2
	}, time.Second, 5*time.Millisecond)

	// The next burst starts a fresh cycle.
	c.InputActivity()
	signals := typingSignals(live)
	require.Len(t, signals, 3)
	assert.True(t, signals[2].IsTyping)
}

func TestNoTypingSignalsWhileDisconnected(t *testing.T) {
	c, live := newCoordUnderTest(false)

	c.InputActivity()
	time.Sleep(120 * time.Millisecond)

	assert.Empty(t, typingSignals(live))
}

func TestRemoteTypingUpdatesSet(t *testing.T) {
	c, _ := newCoordUnderTest(true)

	var updates [][]string
	c.SetOnTypingChanged(func(users []string) { updates = append(updates, users) })

	push := func(userID string, isTyping bool) {
		body, err := json.Marshal(domain.TypingIndicator{UserID: userID, IsTyping: isTyping})
		require.NoError(t, err)
		c.HandleRemoteTyping(body)
	}

	push("bob", true)
	push("bob", true) // no change, no callback
	push("carol", true)
	push("bob", false)

	assert.Equal(t, []string{"carol"}, c.TypingUsers())
	require.Len(t, updates, 3)
	assert.Equal(t, []string{"bob"}, updates[0])
	assert.Equal(t, []string{"bob", "carol"}, updates[1])
	assert.Equal(t, []string{"carol"}, updates[2])
}

func TestRemoteTypingIgnoresOwnEcho(t *testing.T) {
	c, _ := newCoordUnderTest(true)

	body, err := json.Marshal(domain.TypingIndicator{UserID: "alice", IsTyping: true})
	require.NoError(t, err)
	c.HandleRemoteTyping(body)

	assert.Empty(t, c.TypingUsers())
}

func TestRemoteTypingDropsMalformedPayload(t *testing.T) {
	c, _ := newCoordUnderTest(true)
	c.HandleRemoteTyping([]byte(`not json`))
	assert.Empty(t, c.TypingUsers())
}

func TestBindConversationResetsTypingState(t *testing.T) {
	c, live := newCoordUnderTest(true)

	body, err := json.Marshal(domain.TypingIndicator{UserID: "bob", IsTyping: true})
	require.NoError(t, err)
	c.HandleRemoteTyping(body)
	c.InputActivity()
	require.NotEmpty(t, c.TypingUsers())

	c.bindConversation("c2")
	assert.Empty(t, c.TypingUsers())

	// Switching conversations re-arms the start signal. A long idle window
	// keeps the stop signal out of this test.
	c.SetTypingIdle(time.Minute)
	c.InputActivity()
	published := live.publishedTo(domain.TypingDestination("c2"))
	require.Len(t, published, 1)
}

func TestSwitchingConversationsStopsTyping(t *testing.T) {
	c, live := newCoordUnderTest(true)
	c.SetTypingIdle(time.Minute)

	c.InputActivity()
	require.Len(t, typingSignals(live), 1)

	// Leaving mid-composition clears the peer's typing set for the old
	// conversation instead of letting the idle timer die silently.
	c.bindConversation("c2")
	signals := typingSignals(live)
	require.Len(t, signals, 2)
	assert.Equal(t, domain.TypingIndicator{UserID: "alice", IsTyping: false}, signals[1])

	// A switch with nothing composed sends nothing.
	c.bindConversation("c3")
	assert.Empty(t, live.publishedTo(domain.TypingDestination("c2")))
}

func TestHandleReadReceipt(t *testing.T) {
	c, _ := newCoordUnderTest(true)

	var got []domain.ReadReceipt
	c.SetOnReadReceipt(func(r domain.ReadReceipt) { got = append(got, r) })

	push := func(r domain.ReadReceipt) {
		body, err := json.Marshal(r)
		require.NoError(t, err)
		c.HandleReadReceipt(body)
	}

	push(domain.ReadReceipt{UserID: "alice", ConversationID: "c1"}) // own echo
	push(domain.ReadReceipt{UserID: "bob", ConversationID: "c1"})

	require.Len(t, got, 1)
	assert.Equal(t, "bob", got[0].UserID)
}

func TestMarkRead(t *testing.T) {
	c, live := newCoordUnderTest(true)

	c.MarkRead("c1")
	receipts := live.publishedTo(domain.ReadDestination("c1"))
	require.Len(t, receipts, 1)
	assert.JSONEq(t, `{"userId":"alice","conversationId":"c1"}`, string(receipts[0].body))

	c.MarkRead("")
	assert.Len(t, live.publishedTo(domain.ReadDestination("")), 0)
}
