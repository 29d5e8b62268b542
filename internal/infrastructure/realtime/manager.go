package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/shahriarspace/InvestHub/internal/logger"
)

// DefaultRetryInterval is the fixed backoff between connection attempts.
const DefaultRetryInterval = 5 * time.Second

// ErrNotConnected is returned by live-channel operations while the transport
// is down. Callers fall back to REST; nothing is queued.
var ErrNotConnected = errors.New("realtime: not connected")

// State of the connection lifecycle. Failures never terminate the manager;
// they loop back to StateConnecting until Disconnect is called.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Options configures a Manager. URL is required; everything else has
// defaults. The callbacks are optional and are invoked from the manager's
// internal goroutines.
type Options struct {
	URL           string
	RetryInterval time.Duration
	Dialer        *websocket.Dialer
	OnConnect     func()
	OnDisconnect  func()
	OnError       func(error)
}

// Manager owns the single live connection to the backend and the topic
// subscription registry. It is safe for concurrent use.
type Manager struct {
	opts Options
	subs *Registry

	mu    sync.Mutex
	state State
	conn  *conn
	retry *time.Timer
	// epoch invalidates in-flight dials, retries and read loops that belong
	// to a torn-down session.
	epoch uint64
}

func NewManager(opts Options) *Manager {
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &Manager{opts: opts, subs: NewRegistry()}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connected reports whether the live channel is usable right now.
func (m *Manager) Connected() bool {
	return m.State() == StateConnected
}

// Connect starts the connection handshake. It is idempotent: a no-op while
// already connected or while an attempt is in flight. Failures schedule a
// retry every RetryInterval until the handshake succeeds.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.state != StateDisconnected {
		m.mu.Unlock()
		return
	}
	m.state = StateConnecting
	epoch := m.epoch
	m.mu.Unlock()

	go m.dial(epoch)
}

// Disconnect tears down every subscription, closes the connection and stops
// any pending retry. Idempotent when already disconnected.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.epoch++
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	c := m.conn
	m.conn = nil
	wasConnected := m.state == StateConnected
	m.state = StateDisconnected
	topics := m.subs.Clear()
	m.mu.Unlock()

	if c != nil {
		for _, topic := range topics {
			if err := m.writeFrame(c, Frame{Type: TypeUnsubscribe, Topic: topic}); err != nil {
				logger.Log.Debug("unsubscribe on disconnect failed", zap.String("topic", topic), zap.Error(err))
			}
		}
		c.close(websocket.CloseNormalClosure, "client disconnect")
	}

	if wasConnected {
		logger.Log.Info("live channel disconnected")
		if m.opts.OnDisconnect != nil {
			m.opts.OnDisconnect()
		}
	}
}

// Subscribe registers handler for topic. While disconnected it fails with
// ErrNotConnected. A duplicate subscribe returns the existing handle and
// keeps the original handler; the new handler is dropped with a warning.
func (m *Manager) Subscribe(topic string, handler Handler) (*Subscription, error) {
	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		logger.Log.Warn("cannot subscribe while disconnected", zap.String("topic", topic))
		return nil, ErrNotConnected
	}
	sub, created := m.subs.Add(topic, handler)
	c := m.conn
	m.mu.Unlock()

	if !created {
		logger.Log.Warn("duplicate subscribe keeps existing handler", zap.String("topic", topic))
		return sub, nil
	}

	if err := m.writeFrame(c, Frame{Type: TypeSubscribe, Topic: topic}); err != nil {
		m.subs.Remove(topic)
		return nil, fmt.Errorf("realtime: subscribe %s: %w", topic, err)
	}
	logger.Log.Debug("subscribed", zap.String("topic", topic))
	return sub, nil
}

// Unsubscribe tears down the subscription for topic if present. Transport
// errors are swallowed and logged; the registry entry is removed regardless.
func (m *Manager) Unsubscribe(topic string) {
	m.mu.Lock()
	removed := m.subs.Remove(topic)
	c := m.conn
	connected := m.state == StateConnected
	m.mu.Unlock()

	if !removed {
		return
	}
	if connected && c != nil {
		if err := m.writeFrame(c, Frame{Type: TypeUnsubscribe, Topic: topic}); err != nil {
			logger.Log.Warn("unsubscribe failed", zap.String("topic", topic), zap.Error(err))
		}
	}
	logger.Log.Debug("unsubscribed", zap.String("topic", topic))
}

// Subscriptions returns the registry size, for diagnostics.
func (m *Manager) Subscriptions() int {
	return m.subs.Len()
}

// Publish sends v as the body of a send frame to destination. It fails fast
// with ErrNotConnected while the transport is down.
func (m *Manager) Publish(destination string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("realtime: encode payload: %w", err)
	}

	m.mu.Lock()
	c := m.conn
	connected := m.state == StateConnected
	m.mu.Unlock()

	if !connected || c == nil {
		return ErrNotConnected
	}
	return m.writeFrame(c, Frame{Type: TypeSend, Destination: destination, Body: body})
}

func (m *Manager) writeFrame(c *conn, f Frame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return c.enqueue(payload)
}

func (m *Manager) dial(epoch uint64) {
	ws, resp, err := m.opts.Dialer.Dial(m.opts.URL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	m.mu.Lock()
	if m.epoch != epoch || m.state != StateConnecting {
		m.mu.Unlock()
		if err == nil {
			_ = ws.Close()
		}
		return
	}

	if err != nil {
		m.mu.Unlock()
		logger.Log.Warn("live channel connect failed", zap.String("url", m.opts.URL), zap.Error(err))
		if m.opts.OnError != nil {
			m.opts.OnError(err)
		}
		m.scheduleRetry(epoch)
		return
	}

	c := newConn(ws)
	m.conn = c
	m.state = StateConnected
	topics := m.subs.Topics()
	m.mu.Unlock()

	c.start()

	// Replay subscriptions that survived a reconnect so the registry never
	// holds handles the server does not know about.
	for _, topic := range topics {
		if err := m.writeFrame(c, Frame{Type: TypeSubscribe, Topic: topic}); err != nil {
			logger.Log.Warn("subscription replay failed", zap.String("topic", topic), zap.Error(err))
		}
	}

	go m.readLoop(c, epoch)

	logger.Log.Info("live channel connected", zap.String("url", m.opts.URL))
	if m.opts.OnConnect != nil {
		m.opts.OnConnect()
	}
}

func (m *Manager) scheduleRetry(epoch uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch || m.state != StateConnecting {
		return
	}
	m.retry = time.AfterFunc(m.opts.RetryInterval, func() { m.dial(epoch) })
}

func (m *Manager) readLoop(c *conn, epoch uint64) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			m.handleTransportLoss(c, epoch, err)
			return
		}

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			// A malformed frame drops; it must not take the connection down.
			logger.Log.Debug("dropping malformed frame", zap.Error(err))
			continue
		}

		switch f.Type {
		case TypeConnected:
			logger.Log.Debug("handshake acknowledged")
		case TypeMessage:
			if !m.subs.Dispatch(f.Topic, f.Body) {
				logger.Log.Debug("event for inactive topic", zap.String("topic", f.Topic))
			}
		case TypeError:
			logger.Log.Warn("server error frame", zap.String("code", f.Code), zap.String("error", f.Error))
		default:
			logger.Log.Debug("unknown frame type", zap.String("type", f.Type))
		}
	}
}

func (m *Manager) handleTransportLoss(c *conn, epoch uint64, cause error) {
	m.mu.Lock()
	if m.epoch != epoch {
		// Disconnect already tore this session down.
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.state = StateConnecting
	m.mu.Unlock()

	c.close(websocket.CloseAbnormalClosure, "transport failure")

	logger.Log.Warn("live channel lost, will reconnect", zap.Error(cause))
	if m.opts.OnDisconnect != nil {
		m.opts.OnDisconnect()
	}
	if m.opts.OnError != nil {
		m.opts.OnError(cause)
	}
	m.scheduleRetry(epoch)
}
