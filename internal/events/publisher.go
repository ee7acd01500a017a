// Package events pushes workflow transitions to external subscribers
// (queue dashboards, refresh listeners) over redis pub/sub. Delivery is
// at-least-once; subscribers are expected to be idempotent.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/credfluxo/restructure-backend/internal/workflow/domain"
)

const (
	// Channel all transitions are published to: cases:events
	globalChannel = "cases:events"
	// Per-case channel: cases:events:{case_id}
	caseChannelPrefix = "cases:events:"
	// Queue counter keys: cases:queue:{state}
	queueKeyPrefix = "cases:queue:"
)

// Transition is the event emitted on every successful case mutation.
type Transition struct {
	CaseID    uuid.UUID    `json:"case_id"`
	Action    string       `json:"action"`
	OldState  domain.State `json:"old_state"`
	NewState  domain.State `json:"new_state"`
	ActorID   string       `json:"actor_id"`
	Timestamp time.Time    `json:"timestamp"`
}

// Publisher is what the workflow services emit transitions through.
type Publisher interface {
	Publish(ctx context.Context, t Transition) error
}

// RedisPublisher fans transitions out over pub/sub and keeps per-queue
// counters in sync for dashboard reads.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, t Transition) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal transition: %w", err)
	}

	pipe := p.client.Pipeline()
	pipe.Publish(ctx, globalChannel, data)
	pipe.Publish(ctx, caseChannel(t.CaseID), data)

	// Keep the queue counters in step with the transition. Counters are
	// advisory; the database remains the source of truth.
	if t.OldState != t.NewState {
		if t.OldState != "" {
			pipe.Decr(ctx, queueKey(t.OldState))
		}
		if t.NewState != "" {
			pipe.Incr(ctx, queueKey(t.NewState))
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish transition: %w", err)
	}
	return nil
}

// QueueCounters reads the cached per-queue case counts.
func (p *RedisPublisher) QueueCounters(ctx context.Context, states ...domain.State) (map[domain.State]int64, error) {
	keys := make([]string, len(states))
	for i, s := range states {
		keys[i] = queueKey(s)
	}

	vals, err := p.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read queue counters: %w", err)
	}

	out := make(map[domain.State]int64, len(states))
	for i, v := range vals {
		var n int64
		if s, ok := v.(string); ok {
			fmt.Sscan(s, &n)
		}
		out[states[i]] = n
	}
	return out, nil
}

// ResetQueueCounters overwrites the cached counters with authoritative
// counts, typically at worker startup.
func (p *RedisPublisher) ResetQueueCounters(ctx context.Context, counts map[domain.State]int64) error {
	pipe := p.client.Pipeline()
	for s, n := range counts {
		pipe.Set(ctx, queueKey(s), n, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("reset queue counters: %w", err)
	}
	return nil
}

func caseChannel(id uuid.UUID) string {
	return caseChannelPrefix + id.String()
}

func queueKey(s domain.State) string {
	return queueKeyPrefix + string(s)
}
