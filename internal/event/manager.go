package event

import (
	"sync"

	"go.uber.org/zap"
)

const listenerBufferSize = 256

// Emitter is what the ledger needs to publish events.
type Emitter interface {
	Emit(eventType Type, payload interface{}) Event
}

type Manager struct {
	mu        sync.RWMutex
	listeners []*Listener
	closed    bool
	wg        sync.WaitGroup
}

type Listener struct {
	eventTypes map[Type]bool
	channel    chan Event
}

func NewManager() *Manager {
	return &Manager{listeners: make([]*Listener, 0)}
}

// AddEventListener registers a callback for the given event types, or for
// every event when none are given. Each listener receives its events in
// emission order on its own goroutine.
func (m *Manager) AddEventListener(callback func(e Event), eventTypes ...Type) {
	listener := &Listener{
		eventTypes: make(map[Type]bool, len(eventTypes)),
		channel:    make(chan Event, listenerBufferSize),
	}
	for _, eventType := range eventTypes {
		listener.eventTypes[eventType] = true
		zap.L().With(zap.String("type", string(eventType))).Debug("EventManager: AddListener")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		zap.L().Warn("EventManager: Listener added after close")
		return
	}
	m.listeners = append(m.listeners, listener)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for msg := range listener.channel {
			callback(msg)
		}
	}()
}

func (m *Manager) Emit(eventType Type, payload interface{}) Event {
	e := New(eventType, payload)

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		zap.L().With(zap.String("type", string(eventType))).Warn("EventManager: Emit after close")
		return e
	}
	if len(m.listeners) == 0 {
		zap.L().Debug("No event listeners available")
	}

	for _, listener := range m.listeners {
		if listener.accepts(eventType) {
			zap.L().With(zap.String("type", string(eventType)), zap.String("id", e.Id)).Debug("EventManager: Emitting event")
			listener.channel <- e
		}
	}

	return e
}

// Close stops accepting events and waits until every listener has drained.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	for _, listener := range m.listeners {
		close(listener.channel)
	}
	m.mu.Unlock()

	m.wg.Wait()
}

func (l *Listener) accepts(eventType Type) bool {
	return len(l.eventTypes) == 0 || l.eventTypes[eventType]
}
