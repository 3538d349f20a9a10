package engine

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// CancellationMessage is published on the distributed cancellation channel
// so a cancel() call reaching an API process can reach the worker process
// actually running the execution.
type CancellationMessage struct {
	ExecutionID uuid.UUID `json:"executionId"`
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requestedAt"`
}

const cancelChannel = "linkflow:execution:cancel"

// CancellationManager owns every in-flight execution's cancel func and
// bridges cancel() calls to other processes via Redis pub/sub when the
// execution is not local.
type CancellationManager struct {
	redis  *redis.Client // may be nil: local-only mode
	active sync.Map       // executionID string -> context.CancelFunc
}

// NewCancellationManager constructs a manager; rdb may be nil to disable
// the distributed bridge.
func NewCancellationManager(rdb *redis.Client) *CancellationManager {
	return &CancellationManager{redis: rdb}
}

// Register associates an execution with its cancel func for the lifetime of
// the invocation.
func (m *CancellationManager) Register(executionID uuid.UUID, cancel context.CancelFunc) {
	m.active.Store(executionID.String(), cancel)
}

// Unregister removes the association once the execution reaches a terminal
// state.
func (m *CancellationManager) Unregister(executionID uuid.UUID) {
	m.active.Delete(executionID.String())
}

// Cancel cancels executionID. A second call is a no-op. If the
// execution is not registered locally and a Redis client is configured, the
// cancellation is published for a worker process holding it to pick up.
func (m *CancellationManager) Cancel(ctx context.Context, executionID uuid.UUID, reason string) {
	if v, ok := m.active.Load(executionID.String()); ok {
		v.(context.CancelFunc)()
		return
	}
	if m.redis == nil {
		return
	}
	msg := CancellationMessage{ExecutionID: executionID, Reason: reason, RequestedAt: time.Now()}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("execution_id", executionID.String()).Msg("marshal cancellation message")
		return
	}
	if err := m.redis.Publish(ctx, cancelChannel, data).Err(); err != nil {
		log.Error().Err(err).Str("execution_id", executionID.String()).Msg("publish cancellation message")
	}
}

// IsActive reports whether executionID is currently registered locally.
func (m *CancellationManager) IsActive(executionID uuid.UUID) bool {
	_, ok := m.active.Load(executionID.String())
	return ok
}

// Listen subscribes to the distributed cancellation channel and forwards
// matching messages to any locally-registered cancel func. Call once per
// process from a long-lived goroutine; returns when ctx is done or the
// subscription errors.
func (m *CancellationManager) Listen(ctx context.Context) {
	if m.redis == nil {
		return
	}
	sub := m.redis.Subscribe(ctx, cancelChannel)
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var cm CancellationMessage
			if err := json.Unmarshal([]byte(msg.Payload), &cm); err != nil {
				log.Warn().Err(err).Msg("decode cancellation message")
				continue
			}
			if v, ok := m.active.Load(cm.ExecutionID.String()); ok {
				v.(context.CancelFunc)()
			}
		}
	}
}
