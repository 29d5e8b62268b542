package rest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/shahriarspace/InvestHub/internal/pkg/messaging/domain"
)

// APIError carries the HTTP status of a failed backend call.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("rest: backend returned %d: %s", e.Status, e.Body)
}

// Client wraps the platform REST API used by the messaging subsystem: the
// message store under /messages and the user directory under /users.
type Client struct {
	http *resty.Client
}

// New builds a Client against baseURL (including any /api prefix).
func New(baseURL string) *Client {
	return &Client{http: resty.New().SetBaseURL(baseURL)}
}

// NewWithClient wires an existing resty client, used by tests and by callers
// that need custom transport settings.
func NewWithClient(http *resty.Client) *Client {
	return &Client{http: http}
}

// page mirrors the Spring page envelope; list endpoints may return either a
// bare JSON array or {"content": [...]}.
type page struct {
	Content json.RawMessage `json:"content"`
}

func decodeList(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err == nil {
		return nil
	}
	var p page
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("rest: decode list: %w", err)
	}
	if p.Content == nil {
		return fmt.Errorf("rest: list response has no content")
	}
	return json.Unmarshal(p.Content, out)
}

func (c *Client) check(resp *resty.Response, err error) ([]byte, error) {
	if err != nil {
		return nil, fmt.Errorf("rest: request failed: %w", err)
	}
	if resp.IsError() {
		return nil, &APIError{Status: resp.StatusCode(), Body: string(resp.Body())}
	}
	return resp.Body(), nil
}

// GetOrCreateConversation returns the conversation between the two users,
// creating it on first contact. The call is idempotent per user pair.
func (c *Client) GetOrCreateConversation(ctx context.Context, user1ID, user2ID string) (domain.Conversation, error) {
	var conv domain.Conversation
	body, err := c.check(c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"user1Id": user1ID, "user2Id": user2ID}).
		Post("/messages/conversations"))
	if err != nil {
		return conv, err
	}
	if err := json.Unmarshal(body, &conv); err != nil {
		return conv, fmt.Errorf("rest: decode conversation: %w", err)
	}
	return conv, nil
}

// GetConversation fetches a single conversation by id.
func (c *Client) GetConversation(ctx context.Context, conversationID string) (domain.Conversation, error) {
	var conv domain.Conversation
	body, err := c.check(c.http.R().
		SetContext(ctx).
		Get("/messages/conversations/" + conversationID))
	if err != nil {
		return conv, err
	}
	if err := json.Unmarshal(body, &conv); err != nil {
		return conv, fmt.Errorf("rest: decode conversation: %w", err)
	}
	return conv, nil
}

// ListUserConversations fetches one page of the user's conversations.
func (c *Client) ListUserConversations(ctx context.Context, userID string, pageNum, size int) ([]domain.Conversation, error) {
	body, err := c.check(c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"page": fmt.Sprint(pageNum),
			"size": fmt.Sprint(size),
		}).
		Get("/messages/conversations/user/" + userID))
	if err != nil {
		return nil, err
	}
	var convs []domain.Conversation
	if err := decodeList(body, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// SendMessage posts a message over REST. This is the fallback path when the
// live channel is down; the created message comes back with its server-side
// id and timestamp.
func (c *Client) SendMessage(ctx context.Context, conversationID, senderID, content string) (domain.Message, error) {
	var msg domain.Message
	body, err := c.check(c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{
			"conversationId": conversationID,
			"senderId":       senderID,
			"content":        content,
		}).
		Post("/messages"))
	if err != nil {
		return msg, err
	}
	if err := json.Unmarshal(body, &msg); err != nil {
		return msg, fmt.Errorf("rest: decode message: %w", err)
	}
	return msg, nil
}

// ListMessages fetches one page of a conversation's history.
func (c *Client) ListMessages(ctx context.Context, conversationID string, pageNum, size int) ([]domain.Message, error) {
	body, err := c.check(c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"page": fmt.Sprint(pageNum),
			"size": fmt.Sprint(size),
		}).
		Get("/messages/" + conversationID))
	if err != nil {
		return nil, err
	}
	var msgs []domain.Message
	if err := decodeList(body, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// ListUnreadMessages returns the unread messages of a conversation.
func (c *Client) ListUnreadMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	body, err := c.check(c.http.R().
		SetContext(ctx).
		Get("/messages/" + conversationID + "/unread"))
	if err != nil {
		return nil, err
	}
	var msgs []domain.Message
	if err := decodeList(body, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkMessageRead flips a single message to read and returns the update.
func (c *Client) MarkMessageRead(ctx context.Context, messageID string) (domain.Message, error) {
	var msg domain.Message
	body, err := c.check(c.http.R().
		SetContext(ctx).
		Put("/messages/" + messageID + "/read"))
	if err != nil {
		return msg, err
	}
	if err := json.Unmarshal(body, &msg); err != nil {
		return msg, fmt.Errorf("rest: decode message: %w", err)
	}
	return msg, nil
}

// MarkConversationRead marks every message in the conversation as read.
func (c *Client) MarkConversationRead(ctx context.Context, conversationID string) error {
	_, err := c.check(c.http.R().
		SetContext(ctx).
		Put("/messages/" + conversationID + "/read-all"))
	return err
}

// DeleteMessage removes a message. Not part of the conversation flow; kept
// for the admin-style actions the backend exposes.
func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	_, err := c.check(c.http.R().
		SetContext(ctx).
		Delete("/messages/" + messageID))
	return err
}

// GetUser resolves a participant's profile for display.
func (c *Client) GetUser(ctx context.Context, userID string) (domain.User, error) {
	var u domain.User
	body, err := c.check(c.http.R().
		SetContext(ctx).
		Get("/users/" + userID))
	if err != nil {
		return u, err
	}
	if err := json.Unmarshal(body, &u); err != nil {
		return u, fmt.Errorf("rest: decode user: %w", err)
	}
	return u, nil
}
