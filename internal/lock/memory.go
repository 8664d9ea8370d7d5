package lock

import (
	"context"
	"sync"
	"time"

	"rentalhub/internal/domain"
)

// MemoryLocker is an in-process keyed mutex.
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
	wait  time.Duration
}

func NewMemoryLocker(wait time.Duration) *MemoryLocker {
	return &MemoryLocker{
		slots: make(map[string]chan struct{}),
		wait:  wait,
	}
}

func (l *MemoryLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string) (domain.Unlocker, error) {
	ch := l.slot(key)

	var deadline <-chan time.Time
	if l.wait > 0 {
		timer := time.NewTimer(l.wait)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case ch <- struct{}{}:
		return &memoryLease{ch: ch}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-deadline:
		return nil, ErrLockTimeout
	}
}

type memoryLease struct {
	once sync.Once
	ch   chan struct{}
}

func (m *memoryLease) Release(context.Context) error {
	m.once.Do(func() { <-m.ch })
	return nil
}
