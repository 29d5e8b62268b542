// Package chattest is an in-memory stand-in for the platform messaging
// backend: the REST surface under /messages and /users plus the /ws live
// channel. Tests run the whole client stack against it, and cmd/chatd serves
// it standalone for local development. It is not the production server.
package chattest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/shahriarspace/InvestHub/internal/infrastructure/realtime"
	"github.com/shahriarspace/InvestHub/internal/logger"
	"github.com/shahriarspace/InvestHub/internal/pkg/messaging/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Dev/test broker; accept every origin.
		return true
	},
}

// Server wires the in-memory store, the pub-sub hub and the HTTP routes.
type Server struct {
	store  *memStore
	hub    *hub
	engine *gin.Engine
}

func NewServer() *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		store:  newMemStore(),
		hub:    newHub(),
		engine: gin.New(),
	}
	s.routes()
	return s
}

// Handler exposes the broker as an http.Handler for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// AddUser seeds a directory profile.
func (s *Server) AddUser(u domain.User) {
	s.store.addUser(u)
}

// SeedConversation creates (or returns) the conversation between two users.
func (s *Server) SeedConversation(user1ID, user2ID string) domain.Conversation {
	return s.store.getOrCreateConversation(user1ID, user2ID)
}

// SeedMessage stores a message without broadcasting it, as if it predated
// every live connection.
func (s *Server) SeedMessage(conversationID, senderID, content string) (domain.Message, error) {
	return s.store.addMessage(conversationID, senderID, content)
}

// Close tears down every live session.
func (s *Server) Close() {
	s.hub.closeAll()
}

func (s *Server) routes() {
	s.engine.POST("/messages/conversations", s.getOrCreateConversation)
	s.engine.GET("/messages/conversations/user/:userId", s.listUserConversations)
	s.engine.GET("/messages/conversations/:id", s.getConversation)
	s.engine.POST("/messages", s.sendMessage)
	s.engine.GET("/messages/:id", s.listMessages)
	s.engine.GET("/messages/:id/unread", s.listUnread)
	s.engine.PUT("/messages/:id/read", s.markMessageRead)
	s.engine.PUT("/messages/:id/read-all", s.markConversationRead)
	s.engine.DELETE("/messages/:id", s.deleteMessage)
	s.engine.GET("/users/:id", s.getUser)
	s.engine.GET("/ws", s.serveWS)
}

func (s *Server) getOrCreateConversation(c *gin.Context) {
	user1 := c.Query("user1Id")
	user2 := c.Query("user2Id")
	if user1 == "" || user2 == "" || user1 == user2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user1Id and user2Id are required and must differ"})
		return
	}
	c.JSON(http.StatusOK, s.store.getOrCreateConversation(user1, user2))
}

func (s *Server) getConversation(c *gin.Context) {
	conv, ok := s.store.conversation(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (s *Server) listUserConversations(c *gin.Context) {
	convs := s.store.conversationsForUser(c.Param("userId"))
	page, size := paging(c, 20)
	start := page * size
	if start >= len(convs) {
		convs = []domain.Conversation{}
	} else if start+size < len(convs) {
		convs = convs[start : start+size]
	} else {
		convs = convs[start:]
	}
	// Spring-style page envelope; clients must cope with it.
	c.JSON(http.StatusOK, gin.H{"content": convs})
}

func (s *Server) sendMessage(c *gin.Context) {
	var in struct {
		ConversationID string `json:"conversationId"`
		SenderID       string `json:"senderId"`
		Content        string `json:"content"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	content, err := domain.ValidateContent(in.Content)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content must not be empty"})
		return
	}
	msg, err := s.store.addMessage(in.ConversationID, in.SenderID, content)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	// REST sends are not re-broadcast; the caller appends the response.
	c.JSON(http.StatusOK, msg)
}

func (s *Server) listMessages(c *gin.Context) {
	page, size := paging(c, 50)
	c.JSON(http.StatusOK, gin.H{"content": s.store.messagesPage(c.Param("id"), page, size)})
}

func (s *Server) listUnread(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.unreadMessages(c.Param("id")))
}

func (s *Server) markMessageRead(c *gin.Context) {
	msg, ok := s.store.markMessageRead(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (s *Server) markConversationRead(c *gin.Context) {
	s.store.markConversationRead(c.Param("id"))
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteMessage(c *gin.Context) {
	if !s.store.deleteMessage(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) getUser(c *gin.Context) {
	u, ok := s.store.user(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *Server) serveWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the response.
		return
	}

	sess := newSession(ws)
	s.hub.attach(sess)
	defer func() {
		s.hub.detach(sess)
		sess.close(websocket.CloseNormalClosure, "session closed")
	}()

	s.replyFrame(sess, realtime.Frame{Type: realtime.TypeConnected})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var frame realtime.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.replyError(sess, "bad_request", "invalid frame")
			continue
		}

		switch frame.Type {
		case realtime.TypeSubscribe:
			if frame.Topic == "" {
				s.replyError(sess, "bad_request", "topic is required")
				continue
			}
			s.hub.subscribe(frame.Topic, sess)
		case realtime.TypeUnsubscribe:
			if frame.Topic != "" {
				s.hub.unsubscribe(frame.Topic, sess)
			}
		case realtime.TypeSend:
			s.handleSend(sess, frame)
		default:
			s.replyError(sess, "unsupported_type", "unknown frame type")
		}
	}
}

func (s *Server) handleSend(sess *session, frame realtime.Frame) {
	switch {
	case strings.HasPrefix(frame.Destination, "/app/chat.send/"):
		conversationID := strings.TrimPrefix(frame.Destination, "/app/chat.send/")
		var in struct {
			SenderID string `json:"senderId"`
			Content  string `json:"content"`
		}
		if err := json.Unmarshal(frame.Body, &in); err != nil {
			s.replyError(sess, "bad_request", "invalid message payload")
			return
		}
		content, err := domain.ValidateContent(in.Content)
		if err != nil {
			s.replyError(sess, "bad_request", "content must not be empty")
			return
		}
		msg, err := s.store.addMessage(conversationID, in.SenderID, content)
		if err != nil {
			s.replyError(sess, "unprocessable", err.Error())
			return
		}
		// Broadcast the stored message to everyone on the topic, the sender
		// included; that echo is the sender's only copy.
		s.hub.publish(domain.MessageTopic(conversationID), msg)

	case strings.HasPrefix(frame.Destination, "/app/chat.typing/"):
		conversationID := strings.TrimPrefix(frame.Destination, "/app/chat.typing/")
		var indicator domain.TypingIndicator
		if err := json.Unmarshal(frame.Body, &indicator); err != nil {
			s.replyError(sess, "bad_request", "invalid typing payload")
			return
		}
		s.hub.publish(domain.TypingTopic(conversationID), indicator)

	case strings.HasPrefix(frame.Destination, "/app/chat.read/"):
		conversationID := strings.TrimPrefix(frame.Destination, "/app/chat.read/")
		var receipt domain.ReadReceipt
		if err := json.Unmarshal(frame.Body, &receipt); err != nil {
			s.replyError(sess, "bad_request", "invalid read receipt")
			return
		}
		s.store.markConversationRead(conversationID)
		s.hub.publish(domain.ReadTopic(conversationID), receipt)

	default:
		s.replyError(sess, "unknown_destination", frame.Destination)
	}
}

func (s *Server) replyError(sess *session, code, message string) {
	s.replyFrame(sess, realtime.Frame{Type: realtime.TypeError, Code: code, Error: message})
}

func (s *Server) replyFrame(sess *session, frame realtime.Frame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		logger.Log.Debug("encode frame failed", zap.Error(err))
		return
	}
	_ = sess.enqueue(payload)
}

func paging(c *gin.Context, defaultSize int) (page, size int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "0"))
	if page < 0 {
		page = 0
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(defaultSize)))
	if err != nil || size <= 0 {
		size = defaultSize
	}
	return page, size
}
