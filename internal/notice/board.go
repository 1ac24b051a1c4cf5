package notice

import (
	"context"
	"sync"

	"faceattend/internal/capture"
)

// Board keeps the most recent notices for display.
type Board struct {
	mu    sync.RWMutex
	items []capture.Notice
	size  int
}

func NewBoard(size int) *Board {
	if size <= 0 {
		size = 20
	}
	return &Board{size: size}
}

func (b *Board) Add(n capture.Notice) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, n)
	if len(b.items) > b.size {
		b.items = b.items[len(b.items)-b.size:]
	}
}

// Notify records n directly, for processes that display their own notices.
func (b *Board) Notify(_ context.Context, n capture.Notice) error {
	b.Add(n)
	return nil
}

// Recent returns up to limit notices, newest first. limit <= 0 returns all.
func (b *Board) Recent(limit int) []capture.Notice {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if limit <= 0 || limit > len(b.items) {
		limit = len(b.items)
	}
	out := make([]capture.Notice, 0, limit)
	for i := len(b.items) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, b.items[i])
	}
	return out
}

// Run drains feed into the board until ctx ends.
func (b *Board) Run(ctx context.Context, feed Feed) error {
	notices, err := feed.Consume(ctx)
	if err != nil {
		return err
	}
	for n := range notices {
		b.Add(n)
	}
	return nil
}
