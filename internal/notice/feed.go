// Package notice carries user-visible notices from the controller to displays.
package notice

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"faceattend/internal/capture"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrFeedFull is returned by a bounded in-memory feed nobody is draining.
var ErrFeedFull = errors.New("notice feed full")

// Feed is the abstraction over different backends.
type Feed interface {
	Publish(ctx context.Context, n capture.Notice) error
	Consume(ctx context.Context) (<-chan capture.Notice, error)
}

// Notifier adapts a Feed to capture.Notifier.
type Notifier struct {
	Feed Feed
}

func (n Notifier) Notify(ctx context.Context, nt capture.Notice) error {
	return n.Feed.Publish(ctx, nt)
}

// Fanout delivers each notice to every notifier and returns the first error.
type Fanout []capture.Notifier

func (f Fanout) Notify(ctx context.Context, nt capture.Notice) error {
	var first error
	for _, n := range f {
		if err := n.Notify(ctx, nt); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// InMemory is a channel-backed feed for a single process.
type InMemory struct {
	ch chan capture.Notice
}

// NewInMemory creates a bounded in-memory feed.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan capture.Notice, size)}
}

// Publish enqueues a notice without blocking the caller.
func (q *InMemory) Publish(ctx context.Context, n capture.Notice) error {
	select {
	case q.ch <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrFeedFull
	}
}

// Consume returns a channel that is closed when ctx ends.
func (q *InMemory) Consume(ctx context.Context) (<-chan capture.Notice, error) {
	out := make(chan capture.Notice)
	go func() {
		defer close(out)
		for {
			select {
			case n := <-q.ch:
				select {
				case out <- n:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RedisFeed is a Redis list-backed feed so other processes can display notices.
type RedisFeed struct {
	client *redis.Client
	key    string
	maxLen int64
	logger *zap.Logger
}

// NewRedisFeed builds a feed using LPUSH/BRPOP semantics. The list is trimmed to
// maxLen entries so an undrained feed stays bounded.
func NewRedisFeed(client *redis.Client, key string, maxLen int64) *RedisFeed {
	if key == "" {
		key = "faceattend:notices"
	}
	if maxLen <= 0 {
		maxLen = 100
	}
	return &RedisFeed{client: client, key: key, maxLen: maxLen, logger: zap.L().Named("notice.redis")}
}

// Publish pushes a JSON-encoded notice.
func (q *RedisFeed) Publish(ctx context.Context, n capture.Notice) error {
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.key, b).Err(); err != nil {
		return err
	}
	return q.client.LTrim(ctx, q.key, 0, q.maxLen-1).Err()
}

// Consume streams notices using BRPOP.
func (q *RedisFeed) Consume(ctx context.Context) (<-chan capture.Notice, error) {
	out := make(chan capture.Notice)
	go func() {
		defer close(out)
		for {
			res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if errors.Is(err, redis.Nil) {
					continue
				}
				q.logger.Warn("brpop failed", zap.Error(err))
				select {
				case <-time.After(time.Second):
					continue
				case <-ctx.Done():
					return
				}
			}
			if len(res) != 2 {
				continue
			}
			var n capture.Notice
			if err := json.Unmarshal([]byte(res[1]), &n); err != nil {
				q.logger.Warn("dropping malformed notice", zap.Error(err))
				continue
			}
			select {
			case out <- n:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
