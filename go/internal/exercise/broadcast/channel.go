package broadcast

import (
	"context"
	"errors"
	"sync"

	"github.com/mcdev12/excon/go/internal/exercise/events"
)

// ErrChannelClosed is returned by Send and Listen after Close.
var ErrChannelClosed = errors.New("broadcast: channel closed")

// Channel is the direct broadcast path between processes. Delivery is best effort: no
// acknowledgement, no queueing, no replay for late listeners.
type Channel interface {
	Send(ctx context.Context, msg events.Message) error
	Listen(fn func(events.Message)) (stop func(), err error)
	Close() error
}

// LocalHub is an in-process Channel. Listeners run synchronously on the sender's goroutine.
type LocalHub struct {
	mu        sync.Mutex
	listeners map[int]func(events.Message)
	nextID    int
	closed    bool
}

// NewLocalHub returns an open hub with no listeners.
func NewLocalHub() *LocalHub {
	return &LocalHub{listeners: make(map[int]func(events.Message))}
}

func (h *LocalHub) Send(_ context.Context, msg events.Message) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrChannelClosed
	}
	targets := make([]func(events.Message), 0, len(h.listeners))
	for id := 0; id < h.nextID; id++ {
		if fn, ok := h.listeners[id]; ok {
			targets = append(targets, fn)
		}
	}
	h.mu.Unlock()

	for _, fn := range targets {
		m := msg
		m.Payload = msg.Payload.Clone()
		fn(m)
	}
	return nil
}

func (h *LocalHub) Listen(fn func(events.Message)) (func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrChannelClosed
	}
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
		})
	}, nil
}

func (h *LocalHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.listeners = make(map[int]func(events.Message))
	return nil
}
