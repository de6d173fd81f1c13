package notify

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	defaultSubscriberBuffer = 64
	dropLogInterval         = 5 * time.Second
)

// Config controls subscriber buffering.
type Config struct {
	// SubscriberBuffer is the per-subscription channel capacity
	// (default 64). Delivery is at-most-once: events beyond a full
	// buffer are dropped for that subscriber only.
	SubscriberBuffer int
	Logger           *zap.Logger
}

// Publisher fans events out to per-search rooms and a broadcast group.
// Publish never blocks emitters; slow subscribers lose events instead of
// stalling settlements.
type Publisher struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Subscription]struct{}
	all     map[*Subscription]struct{}
	cfg     Config
	logger  *zap.Logger
	closed  bool
	dropped atomic.Int64

	dropLimiter rateLimiter
}

// Subscription is one subscriber's event feed. Receive from C until it is
// closed by Leave or publisher shutdown.
type Subscription struct {
	C        <-chan Event
	ch       chan Event
	searchID string

	mu     sync.Mutex
	closed bool
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// deliver attempts a non-blocking send. It reports false when the event
// was not enqueued, either because the subscription is closed or its
// buffer is full.
func (s *Subscription) deliver(evt Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- evt:
		return true
	default:
		return false
	}
}

// NewPublisher constructs a Publisher.
func NewPublisher(cfg Config) *Publisher {
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = defaultSubscriberBuffer
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		rooms:       make(map[string]map[*Subscription]struct{}),
		all:         make(map[*Subscription]struct{}),
		cfg:         cfg,
		logger:      logger,
		dropLimiter: rateLimiter{interval: dropLogInterval},
	}
}

// Join subscribes to one search's events.
func (p *Publisher) Join(searchID string) *Subscription {
	sub := p.newSubscription(searchID)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		sub.close()
		return sub
	}
	room, ok := p.rooms[searchID]
	if !ok {
		room = make(map[*Subscription]struct{})
		p.rooms[searchID] = room
	}
	room[sub] = struct{}{}
	return sub
}

// Leave removes a subscription and closes its channel. Missed events are
// not replayed; reconnecting clients reconcile via a progress read.
func (p *Publisher) Leave(sub *Subscription) {
	if sub == nil {
		return
	}
	p.mu.Lock()
	if sub.searchID != "" {
		if room, ok := p.rooms[sub.searchID]; ok {
			delete(room, sub)
			if len(room) == 0 {
				delete(p.rooms, sub.searchID)
			}
		}
	} else {
		delete(p.all, sub)
	}
	p.mu.Unlock()
	sub.close()
}

// JoinBroadcast subscribes to system-wide notices, decoupled from any
// per-search room.
func (p *Publisher) JoinBroadcast() *Subscription {
	sub := p.newSubscription("")
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		sub.close()
		return sub
	}
	p.all[sub] = struct{}{}
	return sub
}

// Publish delivers an event to the search's room. Invalid events are
// discarded; delivery per subscriber is best effort.
func (p *Publisher) Publish(evt Event) {
	if p == nil {
		return
	}
	if err := evt.Validate(); err != nil {
		p.logger.Debug("discarding invalid event", zap.Error(err))
		return
	}
	p.mu.RLock()
	subs := make([]*Subscription, 0, len(p.rooms[evt.SearchID]))
	for sub := range p.rooms[evt.SearchID] {
		subs = append(subs, sub)
	}
	p.mu.RUnlock()
	for _, sub := range subs {
		p.send(sub, evt)
	}
}

// Broadcast delivers a system-wide notice to every broadcast subscriber.
func (p *Publisher) Broadcast(evt Event) {
	if p == nil {
		return
	}
	p.mu.RLock()
	subs := make([]*Subscription, 0, len(p.all))
	for sub := range p.all {
		subs = append(subs, sub)
	}
	p.mu.RUnlock()
	for _, sub := range subs {
		p.send(sub, evt)
	}
}

// Close shuts the publisher and closes every subscription channel.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	var subs []*Subscription
	for _, room := range p.rooms {
		for sub := range room {
			subs = append(subs, sub)
		}
	}
	for sub := range p.all {
		subs = append(subs, sub)
	}
	p.rooms = make(map[string]map[*Subscription]struct{})
	p.all = make(map[*Subscription]struct{})
	p.mu.Unlock()
	for _, sub := range subs {
		sub.close()
	}
}

// Dropped returns the number of events dropped since the last call.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Swap(0)
}

func (p *Publisher) newSubscription(searchID string) *Subscription {
	ch := make(chan Event, p.cfg.SubscriberBuffer)
	return &Subscription{C: ch, ch: ch, searchID: searchID}
}

func (p *Publisher) send(sub *Subscription, evt Event) {
	// A concurrent Leave/Close may close the subscription between the
	// subscriber snapshot and this send; deliver observes the closed
	// flag under the subscription mutex, so the event is simply lost,
	// which at-most-once delivery allows.
	if sub.deliver(evt) {
		return
	}
	p.dropped.Add(1)
	if p.dropLimiter.Allow(time.Now()) {
		p.logger.Warn("events dropped due to slow subscriber",
			zap.String("search_id", evt.SearchID),
			zap.Int64("dropped", p.dropped.Swap(0)),
		)
	}
}

type rateLimiter struct {
	interval time.Duration
	last     atomic.Int64
}

func (r *rateLimiter) Allow(now time.Time) bool {
	if r == nil || r.interval <= 0 {
		return true
	}
	nano := now.UnixNano()
	last := r.last.Load()
	if nano-last < r.interval.Nanoseconds() {
		return false
	}
	return r.last.CompareAndSwap(last, nano)
}
