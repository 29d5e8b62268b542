package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateContent(t *testing.T) {
	testCases := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "plain", in: "hello", want: "hello"},
		{name: "trims", in: "  hello there ", want: "hello there"},
		{name: "empty", in: "", wantErr: true},
		{name: "whitespace_only", in: "   \t\n", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateContent(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrEmptyContent)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestConversationOtherParticipant(t *testing.T) {
	conv := Conversation{ID: "c1", ParticipantIDs: []string{"alice", "bob"}}

	assert.Equal(t, "bob", conv.OtherParticipant("alice"))
	assert.Equal(t, "alice", conv.OtherParticipant("bob"))
	// A non-participant still resolves to someone rather than failing.
	assert.Equal(t, "alice", conv.OtherParticipant("carol"))
	assert.True(t, conv.HasParticipant("alice"))
	assert.False(t, conv.HasParticipant("carol"))
}

func TestUserDisplayName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", User{FirstName: "Ada", LastName: "Lovelace"}.DisplayName())
	assert.Equal(t, "Ada", User{FirstName: "Ada"}.DisplayName())
	assert.Equal(t, "ada@example.com", User{Email: "ada@example.com"}.DisplayName())
	assert.Equal(t, UnknownUserName, User{}.DisplayName())
}

func TestTopicNames(t *testing.T) {
	assert.Equal(t, "/topic/conversation/c1", MessageTopic("c1"))
	assert.Equal(t, "/topic/conversation/c1/typing", TypingTopic("c1"))
	assert.Equal(t, "/topic/conversation/c1/read", ReadTopic("c1"))
	assert.Equal(t, "/app/chat.send/c1", SendDestination("c1"))
	assert.Equal(t, "/app/chat.typing/c1", TypingDestination("c1"))
	assert.Equal(t, "/app/chat.read/c1", ReadDestination("c1"))
}
