package realtime

import (
	"encoding/json"
	"sync"
)

// Handler receives the raw body of every live event published on a topic.
type Handler func(body json.RawMessage)

// Subscription is the handle for one active topic subscription. Handles are
// owned by the Registry; consumers refer to subscriptions by topic name only.
type Subscription struct {
	Topic   string
	handler Handler
}

// Registry tracks active subscriptions keyed by topic. There is at most one
// subscription per topic; a duplicate subscribe returns the existing handle
// with its original handler.
type Registry struct {
	mu   sync.Mutex
	subs map[string]*Subscription
}

func NewRegistry() *Registry {
	return &Registry{subs: make(map[string]*Subscription)}
}

// Get returns the subscription for topic, or nil.
func (r *Registry) Get(topic string) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subs[topic]
}

// Add registers a subscription for topic. If one already exists it is
// returned unchanged and created is false.
func (r *Registry) Add(topic string, h Handler) (sub *Subscription, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.subs[topic]; ok {
		return existing, false
	}
	sub = &Subscription{Topic: topic, handler: h}
	r.subs[topic] = sub
	return sub, true
}

// Remove deletes the subscription for topic and reports whether it existed.
func (r *Registry) Remove(topic string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subs[topic]; !ok {
		return false
	}
	delete(r.subs, topic)
	return true
}

// Clear removes every subscription and returns the topics that were active.
func (r *Registry) Clear() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	topics := make([]string, 0, len(r.subs))
	for topic := range r.subs {
		topics = append(topics, topic)
	}
	r.subs = make(map[string]*Subscription)
	return topics
}

// Topics lists the currently subscribed topics.
func (r *Registry) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	topics := make([]string, 0, len(r.subs))
	for topic := range r.subs {
		topics = append(topics, topic)
	}
	return topics
}

// Len returns the number of active subscriptions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Dispatch invokes the handler subscribed to topic with body. It reports
// whether a subscription existed. The handler runs outside the registry lock.
func (r *Registry) Dispatch(topic string, body json.RawMessage) bool {
	r.mu.Lock()
	sub := r.subs[topic]
	r.mu.Unlock()

	if sub == nil {
		return false
	}
	sub.handler(body)
	return true
}
