// Package session tracks short-lived playback coordination state: the
// pending "controls seek" flag per session key. The state is a hint, not a
// contract — a missing or expired flag is treated identically to one that
// was never set.
package session

import (
	"context"
	"sync"
	"time"
)

// Store holds pending-seek flags keyed per (user|anon, video) session.
// Implementations must expire entries after a bounded TTL.
type Store interface {
	// SetPendingSeek marks a controls seek as awaiting corroboration.
	SetPendingSeek(ctx context.Context, key string) error

	// ConsumePendingSeek reports whether a pending seek was set and clears
	// it in the same step.
	ConsumePendingSeek(ctx context.Context, key string) (bool, error)

	// ClearPendingSeek drops any pending flag for the key.
	ClearPendingSeek(ctx context.Context, key string) error

	Close() error
}

// MemoryStore is the single-instance implementation: a mutex-guarded map
// with a janitor goroutine sweeping expired entries.
type MemoryStore struct {
	mu       sync.Mutex
	deadline map[string]time.Time
	ttl      time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewMemoryStore creates a memory store whose entries expire after ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	s := &MemoryStore{
		deadline: make(map[string]time.Time),
		ttl:      ttl,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.janitor()
	return s
}

func (s *MemoryStore) SetPendingSeek(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadline[key] = time.Now().Add(s.ttl)
	return nil
}

func (s *MemoryStore) ConsumePendingSeek(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deadline[key]
	if !ok {
		return false, nil
	}
	delete(s.deadline, key)
	if time.Now().After(d) {
		// Expired but not yet swept: same as never set.
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) ClearPendingSeek(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.deadline, key)
	return nil
}

// Close stops the janitor. The store must not be used afterwards.
func (s *MemoryStore) Close() error {
	close(s.stop)
	<-s.done
	return nil
}

func (s *MemoryStore) janitor() {
	defer close(s.done)

	interval := s.ttl
	if interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for key, d := range s.deadline {
				if now.After(d) {
					delete(s.deadline, key)
				}
			}
			s.mu.Unlock()
		}
	}
}

// Len returns the number of live entries. Used by tests and metrics.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.deadline)
}
