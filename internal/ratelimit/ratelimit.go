// Package ratelimit implements fixed-window attempt counters keyed by client.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Policy bounds the number of attempts within a window.
type Policy struct {
	Name   string
	Limit  int64
	Window time.Duration
}

var (
	// Auth throttles credential-bearing endpoints.
	Auth = Policy{Name: "auth", Limit: 5, Window: 15 * time.Minute}
	// Email throttles endpoints that send mail.
	Email = Policy{Name: "email", Limit: 3, Window: time.Hour}
)

// Decision is the outcome of a single attempt.
type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter counts attempts for a key under a policy.
type Limiter interface {
	Allow(ctx context.Context, key string, policy Policy) (Decision, error)
}

func decide(attempts int64, ttl time.Duration, policy Policy) Decision {
	if ttl <= 0 {
		ttl = policy.Window
	}
	if attempts > policy.Limit {
		return Decision{Allowed: false, RetryAfter: ttl}
	}
	return Decision{Allowed: true, Remaining: policy.Limit - attempts}
}

// Redis keeps counters in redis so limits hold across replicas.
type Redis struct {
	Client *redis.Client
	Prefix string
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{Client: client, Prefix: "ratelimit:"}
}

func (r *Redis) key(key string, policy Policy) string {
	return r.Prefix + policy.Name + ":" + key
}

// Allow seeds the window and counts the attempt in one MULTI/EXEC so a
// counter never exists without its expiry.
func (r *Redis) Allow(ctx context.Context, key string, policy Policy) (Decision, error) {
	k := r.key(key, policy)

	var (
		attempts *redis.IntCmd
		ttl      *redis.DurationCmd
	)
	_, err := r.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, k, 0, policy.Window)
		attempts = pipe.Incr(ctx, k)
		ttl = pipe.TTL(ctx, k)
		return nil
	})
	if err != nil {
		return Decision{}, err
	}
	return decide(attempts.Val(), ttl.Val(), policy), nil
}

// Memory keeps counters in process. Suitable for a single instance and tests.
type Memory struct {
	mu      sync.Mutex
	windows map[string]window
	now     func() time.Time
}

type window struct {
	attempts int64
	resetAt  time.Time
}

func NewMemory() *Memory {
	return &Memory{windows: make(map[string]window), now: time.Now}
}

func (m *Memory) Allow(_ context.Context, key string, policy Policy) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	k := policy.Name + ":" + key
	w, ok := m.windows[k]
	if !ok || !now.Before(w.resetAt) {
		w = window{resetAt: now.Add(policy.Window)}
	}
	w.attempts++
	m.windows[k] = w

	if len(m.windows) > 10000 {
		m.sweep(now)
	}
	return decide(w.attempts, w.resetAt.Sub(now), policy), nil
}

func (m *Memory) sweep(now time.Time) {
	for k, w := range m.windows {
		if !now.Before(w.resetAt) {
			delete(m.windows, k)
		}
	}
}
