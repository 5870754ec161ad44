package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"castmux/internal/core/domain"

	"go.uber.org/zap"
)

var (
	ErrSubscriberExists   = errors.New("subscriber id already exists")
	ErrSubscriberNotFound = errors.New("subscriber id not found")
	ErrPublisherClosed    = errors.New("publisher is closed")
)

// Stats is a point-in-time view of the publisher counters.
type Stats struct {
	Published uint64
	Delivered uint64
	Dropped   uint64
	Observers map[string]ObserverStats
}

type ObserverStats struct {
	Delivered uint64
	Dropped   uint64
}

type observer struct {
	ch        chan domain.Event
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// Publisher fans events out to observers, each with its own bounded queue. A full
// queue drops the new event for that observer only; Publish never blocks.
type Publisher struct {
	mu        sync.RWMutex
	observers map[string]*observer
	closed    bool
	buffer    int
	published atomic.Uint64
	onDrop    func(observerID string, eventType domain.EventType)
	logger    *zap.SugaredLogger
}

func NewPublisher(buffer int, logger *zap.SugaredLogger) *Publisher {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Publisher{
		observers: make(map[string]*observer),
		buffer:    buffer,
		logger:    logger,
	}
}

// OnDrop registers a callback invoked for every dropped delivery. Set it before
// publishing starts.
func (p *Publisher) OnDrop(fn func(observerID string, eventType domain.EventType)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onDrop = fn
}

// Subscribe registers an observer and returns its queue. The queue is closed by
// Unsubscribe or Close.
func (p *Publisher) Subscribe(id string) (<-chan domain.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPublisherClosed
	}
	if _, exists := p.observers[id]; exists {
		return nil, ErrSubscriberExists
	}

	o := &observer{ch: make(chan domain.Event, p.buffer)}
	p.observers[id] = o
	return o.ch, nil
}

func (p *Publisher) Unsubscribe(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	o, exists := p.observers[id]
	if !exists {
		return ErrSubscriberNotFound
	}
	delete(p.observers, id)
	close(o.ch)
	return nil
}

// Publish delivers event to every observer that has room. Events published after
// Close are discarded.
func (p *Publisher) Publish(ctx context.Context, event domain.Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return
	}
	p.published.Add(1)

	for id, o := range p.observers {
		select {
		case o.ch <- event:
			o.delivered.Add(1)
		default:
			o.dropped.Add(1)
			p.logger.Debugw("observer queue full, event dropped",
				"observer", id,
				"type", event.Type,
			)
			if p.onDrop != nil {
				p.onDrop(id, event.Type)
			}
		}
	}
}

func (p *Publisher) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := Stats{
		Published: p.published.Load(),
		Observers: make(map[string]ObserverStats, len(p.observers)),
	}
	for id, o := range p.observers {
		s := ObserverStats{Delivered: o.delivered.Load(), Dropped: o.dropped.Load()}
		stats.Delivered += s.Delivered
		stats.Dropped += s.Dropped
		stats.Observers[id] = s
	}
	return stats
}

// Close closes every observer queue. It is idempotent.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	for id, o := range p.observers {
		close(o.ch)
		delete(p.observers, id)
	}
}
