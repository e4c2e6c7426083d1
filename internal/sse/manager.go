package sse

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rewireapp/rewire-server/internal/id"
)

const (
	defaultHeartbeat    = 30 * time.Second
	defaultQueueSize    = 256
	defaultClientBuffer = 64
)

// Client is one connected event stream.
type Client struct {
	ID          string
	ConnectedAt time.Time

	// Events is closed when the client is disconnected.
	Events chan Event
	// Done is closed alongside Events so writers blocked elsewhere can bail out.
	Done chan struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithHeartbeat sets how often a heartbeat is broadcast to idle clients.
func WithHeartbeat(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.heartbeat = d
		}
	}
}

// WithClientBuffer sets the per-client event buffer.
func WithClientBuffer(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.clientBuffer = n
		}
	}
}

// Manager fans streak and achievement events out to every connected client.
//
// The latest tick and the overlay currently on screen are remembered and
// replayed to clients as they connect, so a reconnecting app can render the
// counter without waiting for the next tick.
type Manager struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	lastTick *Event
	overlay  *Event
	seq      uint64

	queue        chan Event
	heartbeat    time.Duration
	clientBuffer int
	logger       *slog.Logger
	loop         sync.WaitGroup

	// closeMu guards closed and the close of queue against concurrent Emit.
	closeMu sync.RWMutex
	closed  bool
}

var _ Emitter = (*Manager)(nil)

// NewManager creates a Manager. Nothing is delivered until Start runs.
func NewManager(logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		clients:      make(map[string]*Client),
		queue:        make(chan Event, defaultQueueSize),
		heartbeat:    defaultHeartbeat,
		clientBuffer: defaultClientBuffer,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start runs the delivery loop until ctx is cancelled or Shutdown drains the queue.
func (m *Manager) Start(ctx context.Context) {
	m.loop.Add(1)
	defer m.loop.Done()

	heartbeat := time.NewTicker(m.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case evt, ok := <-m.queue:
			if !ok {
				return
			}
			m.deliver(evt)
		case <-heartbeat.C:
			m.deliver(NewHeartbeatEvent())
		case <-ctx.Done():
			m.dropAll()
			return
		}
	}
}

// Emit queues evt for delivery. Values that are not an Event are ignored, as
// is anything emitted after Shutdown. A full queue drops the event.
func (m *Manager) Emit(evt any) {
	e, ok := evt.(Event)
	if !ok {
		m.logger.Error("ignoring non-event emit")
		return
	}

	m.closeMu.RLock()
	defer m.closeMu.RUnlock()
	if m.closed {
		return
	}

	select {
	case m.queue <- e:
	default:
		m.logger.Warn("event queue full, dropping event",
			slog.String("event_type", string(e.Type)))
	}
}

// Shutdown stops intake, flushes what is already queued and closes every client.
// It is safe to call more than once.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.closeMu.Lock()
	if m.closed {
		m.closeMu.Unlock()
		return nil
	}
	m.closed = true
	close(m.queue)
	m.closeMu.Unlock()

	flushed := make(chan struct{})
	go func() {
		defer close(flushed)
		for evt := range m.queue {
			m.deliver(evt)
		}
	}()

	select {
	case <-flushed:
	case <-ctx.Done():
		m.logger.Warn("event flush interrupted by shutdown deadline")
	}

	m.loop.Wait()
	m.dropAll()
	m.logger.Info("event stream closed")
	return nil
}

// IsShutdown reports whether Shutdown has been called.
func (m *Manager) IsShutdown() bool {
	m.closeMu.RLock()
	defer m.closeMu.RUnlock()
	return m.closed
}

// Connect registers a client and primes it with the replayable state.
func (m *Manager) Connect() (*Client, error) {
	clientID, err := id.Generate(id.PrefixSSEClient)
	if err != nil {
		return nil, err
	}

	c := &Client{
		ID:          clientID,
		ConnectedAt: time.Now(),
		Events:      make(chan Event, m.clientBuffer),
		Done:        make(chan struct{}),
	}

	m.mu.Lock()
	m.clients[c.ID] = c
	for _, replay := range []*Event{m.lastTick, m.overlay} {
		if replay == nil {
			continue
		}
		select {
		case c.Events <- *replay:
		default:
		}
	}
	n := len(m.clients)
	m.mu.Unlock()

	m.logger.Debug("event client connected",
		slog.String("client_id", c.ID),
		slog.Int("clients", n))
	return c, nil
}

// Disconnect removes a client. Unknown ids are ignored.
func (m *Manager) Disconnect(clientID string) {
	m.mu.Lock()
	c, ok := m.clients[clientID]
	if ok {
		delete(m.clients, clientID)
	}
	n := len(m.clients)
	m.mu.Unlock()

	if !ok {
		return
	}
	closeClient(c)

	m.logger.Debug("event client disconnected",
		slog.String("client_id", clientID),
		slog.Duration("connected_for", time.Since(c.ConnectedAt)),
		slog.Int("clients", n))
}

// ClientCount returns the number of connected clients.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

func (m *Manager) deliver(evt Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	evt.Seq = m.seq

	switch evt.Type {
	case EventStreakTick:
		m.lastTick = &evt
	case EventAchievementOverlayShown:
		m.overlay = &evt
	case EventAchievementOverlayHidden:
		m.overlay = nil
	}

	var dropped int
	for _, c := range m.clients {
		select {
		case c.Events <- evt:
		default:
			dropped++
			// A missed tick is superseded a second later.
			if evt.Type != EventStreakTick {
				m.logger.Warn("client too slow, event dropped",
					slog.String("client_id", c.ID),
					slog.String("event_type", string(evt.Type)))
			}
		}
	}

	if evt.Type != EventStreakTick && evt.Type != EventHeartbeat {
		m.logger.Debug("event delivered",
			slog.String("event_type", string(evt.Type)),
			slog.Int("clients", len(m.clients)),
			slog.Int("dropped", dropped))
	}
}

func (m *Manager) dropAll() {
	m.mu.Lock()
	clients := m.clients
	m.clients = make(map[string]*Client)
	m.mu.Unlock()

	for _, c := range clients {
		closeClient(c)
	}
}

func closeClient(c *Client) {
	close(c.Done)
	close(c.Events)
}
