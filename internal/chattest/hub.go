package chattest

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/shahriarspace/InvestHub/internal/infrastructure/realtime"
)

// hub tracks websocket sessions and their topic subscriptions, and fans
// published events out to every subscriber of a topic.
type hub struct {
	mu            sync.RWMutex
	sessions      map[string]*session
	topics        map[string]map[string]*session // topic -> sessionID -> session
	sessionTopics map[string]map[string]struct{} // sessionID -> set of topics
}

func newHub() *hub {
	return &hub{
		sessions:      make(map[string]*session),
		topics:        make(map[string]map[string]*session),
		sessionTopics: make(map[string]map[string]struct{}),
	}
}

func (h *hub) attach(sess *session) {
	h.mu.Lock()
	h.sessions[sess.id] = sess
	h.sessionTopics[sess.id] = make(map[string]struct{})
	h.mu.Unlock()

	sess.start()
}

func (h *hub) detach(sess *session) {
	h.mu.Lock()
	delete(h.sessions, sess.id)
	for topic := range h.sessionTopics[sess.id] {
		h.leaveLocked(topic, sess.id)
	}
	delete(h.sessionTopics, sess.id)
	h.mu.Unlock()
}

func (h *hub) subscribe(topic string, sess *session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[sess.id]; !ok {
		return
	}
	room := h.topics[topic]
	if room == nil {
		room = make(map[string]*session)
		h.topics[topic] = room
	}
	room[sess.id] = sess
	h.sessionTopics[sess.id][topic] = struct{}{}
}

func (h *hub) unsubscribe(topic string, sess *session) {
	h.mu.Lock()
	h.leaveLocked(topic, sess.id)
	h.mu.Unlock()
}

// publish fans payload out to every subscriber of topic, the publisher
// included, so senders receive their own messages through the same path as
// recipients.
func (h *hub) publish(topic string, payload any) int {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0
	}
	frame, err := json.Marshal(realtime.Frame{Type: realtime.TypeMessage, Topic: topic, Body: body})
	if err != nil {
		return 0
	}

	h.mu.RLock()
	room := h.topics[topic]
	delivered := 0
	for _, sess := range room {
		if sess.enqueue(frame) == nil {
			delivered++
		}
	}
	h.mu.RUnlock()
	return delivered
}

func (h *hub) closeAll() {
	h.mu.Lock()
	sessions := make([]*session, 0, len(h.sessions))
	for _, sess := range h.sessions {
		sessions = append(sessions, sess)
	}
	h.sessions = make(map[string]*session)
	h.topics = make(map[string]map[string]*session)
	h.sessionTopics = make(map[string]map[string]struct{})
	h.mu.Unlock()

	for _, sess := range sessions {
		sess.close(websocket.CloseGoingAway, "broker shutdown")
	}
}

func (h *hub) leaveLocked(topic, sessionID string) {
	room := h.topics[topic]
	if room == nil {
		return
	}
	delete(room, sessionID)
	if len(room) == 0 {
		delete(h.topics, topic)
	}
	if topics, ok := h.sessionTopics[sessionID]; ok {
		delete(topics, topic)
	}
}
