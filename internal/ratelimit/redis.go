package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter implements the sliding-window count on a Redis sorted set
// per group, so multiple instances share one view of the window.
type RedisLimiter struct {
	rdb    *redis.Client
	prefix string
	seq    atomic.Uint64
	now    func() time.Time
}

// RedisLimiterOption tunes a RedisLimiter.
type RedisLimiterOption func(*RedisLimiter)

// WithPrefix overrides the key namespace.
func WithPrefix(prefix string) RedisLimiterOption {
	return func(l *RedisLimiter) { l.prefix = strings.Trim(prefix, ":") }
}

// WithRedisClock overrides the time source for tests.
func WithRedisClock(now func() time.Time) RedisLimiterOption {
	return func(l *RedisLimiter) { l.now = now }
}

// NewRedisLimiter wires a redis client into a shared limiter.
func NewRedisLimiter(rdb *redis.Client, opts ...RedisLimiterOption) *RedisLimiter {
	l := &RedisLimiter{
		rdb:    rdb,
		prefix: "payguard:ratelimit",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *RedisLimiter) groupKey(groupName string) string {
	return l.prefix + ":" + groupName
}

func (l *RedisLimiter) groupsKey() string {
	return l.prefix + ":groups"
}

// RecordPayment appends an event timestamp to the group's sorted set.
func (l *RedisLimiter) RecordPayment(ctx context.Context, groupName string) error {
	at := l.now().UTC()
	member := strconv.FormatInt(at.UnixNano(), 10) + "-" + strconv.FormatUint(l.seq.Add(1), 10)

	pipe := l.rdb.TxPipeline()
	pipe.ZAdd(ctx, l.groupKey(groupName), redis.Z{
		Score:  float64(at.UnixNano()),
		Member: member,
	})
	pipe.SAdd(ctx, l.groupsKey(), groupName)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record rate limit event: %w", err)
	}
	return nil
}

// CheckLimit mirrors MemoryLimiter semantics against the shared window.
func (l *RedisLimiter) CheckLimit(ctx context.Context, groupName string, maxPayments int, window time.Duration) (Decision, error) {
	count, err := l.GetCurrentCount(ctx, groupName, window)
	if err != nil {
		return Decision{}, err
	}
	if count >= maxPayments {
		return Decision{Allowed: false, Reason: ReasonExceeded}, nil
	}
	return Decision{Allowed: true}, nil
}

// GetCurrentCount trims expired members, then counts the remainder.
func (l *RedisLimiter) GetCurrentCount(ctx context.Context, groupName string, window time.Duration) (int, error) {
	if window <= 0 {
		return 0, nil
	}
	cutoff := l.now().UTC().Add(-window).UnixNano()
	key := l.groupKey(groupName)

	pipe := l.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(cutoff, 10))
	card := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("count rate limit events: %w", err)
	}
	return int(card.Val()), nil
}

// Clear removes every tracked group's event set.
func (l *RedisLimiter) Clear(ctx context.Context) error {
	groups, err := l.rdb.SMembers(ctx, l.groupsKey()).Result()
	if err != nil {
		return fmt.Errorf("list rate limit groups: %w", err)
	}

	keys := make([]string, 0, len(groups)+1)
	for _, g := range groups {
		keys = append(keys, l.groupKey(g))
	}
	keys = append(keys, l.groupsKey())

	if err := l.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear rate limit state: %w", err)
	}
	return nil
}
