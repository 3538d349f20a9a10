// Package events implements the in-process event bus: per-execution
// ordered delivery, best-effort on slow subscribers, with an optional Redis
// bridge for subscribers living in another process — grounded on the
// teacher's events.Publisher naming and event-type conventions, rewritten
// for genuine multicast-with-ordering semantics the Redis-only original did
// not provide.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// EventType enumerates the event names the engine emits.
type EventType string

const (
	ExecutionStarted   EventType = "execution-started"
	ExecutionProgress  EventType = "execution-progress"
	ExecutionCompleted EventType = "execution-completed"
	NodeStarted        EventType = "node-started"
	NodeCompleted       EventType = "node-completed"
	NodeFailed          EventType = "node-failed"
	NodeCancelled        EventType = "node-cancelled"
	NodeSkipped          EventType = "node-skipped"
	FailureEscalation    EventType = "failure-escalation"
)

// Event is one emitted occurrence, ordered within its ExecutionID.
type Event struct {
	Type        EventType              `json:"type"`
	ExecutionID uuid.UUID              `json:"executionId"`
	WorkflowID  uuid.UUID              `json:"workflowId,omitempty"`
	NodeID      string                 `json:"nodeId,omitempty"`
	Status      string                 `json:"status,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// isLifecycle reports whether an event type must never be coalesced away
//.
func (e Event) isLifecycle() bool { return e.Type != ExecutionProgress }

// subscriber is one registered listener: either scoped to a single
// execution id, or to a topic glob such as "node-*"/"execution-*".
type subscriber struct {
	id          int
	executionID *uuid.UUID
	topic       string // "" means "all", else a prefix like "node-" or "execution-"

	mu      sync.Mutex
	ch      chan Event
	pending *Event // coalesced execution-progress event awaiting delivery
	closed  bool
}

func (s *subscriber) matches(e Event) bool {
	if s.executionID != nil && *s.executionID != e.ExecutionID {
		return false
	}
	if s.topic == "" {
		return true
	}
	return len(string(e.Type)) >= len(s.topic) && string(e.Type)[:len(s.topic)] == s.topic
}

// deliver attempts a non-blocking send; for a non-lifecycle (progress)
// event on a full channel, it replaces any already-pending progress event
// rather than blocking the emitter.
func (s *subscriber) deliver(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- e:
		return
	default:
	}
	if !e.isLifecycle() {
		s.pending = &e
		return
	}
	// Lifecycle events are not dropped: the send is handed to a goroutine
	// that blocks until the subscriber has room, so the emitter never waits.
	go func(ev Event) {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return
		}
		s.ch <- ev
	}(e)
}

func (s *subscriber) drainLoop(out chan<- Event) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		if s.pending != nil {
			p := *s.pending
			s.pending = nil
			s.mu.Unlock()
			select {
			case out <- p:
			default:
			}
			continue
		}
		s.mu.Unlock()
	}
}

// Bus is the in-process multicast fan-out. Per-execution-id events reach
// each subscriber in emission order (Publish holds a per-execution mutex,
// so concurrent publishers never interleave for the same id).
type Bus struct {
	mu          sync.Mutex
	nextID      int
	subscribers map[int]*subscriber

	// perExecution serializes Publish calls for a given execution id so
	// ordering is preserved even if callers from multiple goroutines race.
	perExecution map[uuid.UUID]*sync.Mutex

	redis *redis.Client // optional distributed bridge, may be nil
}

// NewBus constructs an event bus. rdb may be nil to disable the Redis
// bridge entirely (in-process delivery still works).
func NewBus(rdb *redis.Client) *Bus {
	return &Bus{
		subscribers:  make(map[int]*subscriber),
		perExecution: make(map[uuid.UUID]*sync.Mutex),
		redis:        rdb,
	}
}

func (b *Bus) executionLock(id uuid.UUID) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.perExecution[id]
	if !ok {
		l = &sync.Mutex{}
		b.perExecution[id] = l
	}
	return l
}

// Publish emits e to every matching subscriber, in emission order per
// execution id.
func (b *Bus) Publish(ctx context.Context, e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	lock := b.executionLock(e.ExecutionID)
	lock.Lock()
	defer lock.Unlock()

	b.mu.Lock()
	subs := make([]*subscriber, 0, len(b.subscribers))
	for _, s := range b.subscribers {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		if s.matches(e) {
			s.deliver(e)
		}
	}

	if b.redis != nil {
		if data, err := json.Marshal(e); err != nil {
			log.Error().Err(err).Msg("marshal event for redis bridge")
		} else if err := b.redis.Publish(ctx, "linkflow:workflow:"+e.WorkflowID.String(), data).Err(); err != nil {
			log.Warn().Err(err).Msg("publish event to redis bridge")
		}
	}

	if e.Type == ExecutionCompleted {
		b.closeExecution(e.ExecutionID)
	}
}

// SubscribeExecution registers a subscriber for every event of a single
// execution id. The returned channel is closed when the execution
// completes or Unsubscribe is called.
func (b *Bus) SubscribeExecution(executionID uuid.UUID) (<-chan Event, func()) {
	return b.subscribe(&executionID, "")
}

// SubscribeTopic registers a subscriber for every event whose type has the
// given prefix (e.g. "node-", "execution-"), across all executions.
func (b *Bus) SubscribeTopic(topicPrefix string) (<-chan Event, func()) {
	return b.subscribe(nil, topicPrefix)
}

func (b *Bus) subscribe(executionID *uuid.UUID, topic string) (<-chan Event, func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	s := &subscriber{id: id, executionID: executionID, topic: topic, ch: make(chan Event, 64)}
	b.subscribers[id] = s
	b.mu.Unlock()

	go s.drainLoop(s.ch)

	unsub := func() { b.removeSubscriber(id) }
	return s.ch, unsub
}

func (b *Bus) removeSubscriber(id int) {
	b.mu.Lock()
	s, ok := b.subscribers[id]
	delete(b.subscribers, id)
	b.mu.Unlock()
	if !ok {
		return
	}
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	s.mu.Unlock()
}

// closeExecution closes every subscriber scoped to executionID
//.
func (b *Bus) closeExecution(executionID uuid.UUID) {
	b.mu.Lock()
	var toClose []int
	for id, s := range b.subscribers {
		if s.executionID != nil && *s.executionID == executionID {
			toClose = append(toClose, id)
		}
	}
	delete(b.perExecution, executionID)
	b.mu.Unlock()
	for _, id := range toClose {
		b.removeSubscriber(id)
	}
}
