// Package syncx provides the per-key FIFO serializer used to guard the
// one-message-per-room and one-voice-connection-per-guild resources.
package syncx

import (
	"log/slog"
	"sync"
)

// KeyedMutex serializes work per key with FIFO admission: Enqueue
// establishes order synchronously at call time, the function bodies for a
// key run one at a time in that order, and a slot is always released even
// when the body panics. Different keys never block each other. The zero
// value is not usable; construct with NewKeyedMutex.
type KeyedMutex struct {
	mu    sync.Mutex
	tails map[string]chan struct{}
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{tails: make(map[string]chan struct{})}
}

// Enqueue appends fn to the key's queue and returns a channel that closes
// once fn has finished. The queue position is fixed before Enqueue
// returns, so two sequential calls always execute in call order no matter
// how long the first one runs.
func (m *KeyedMutex) Enqueue(key string, fn func()) <-chan struct{} {
	done := make(chan struct{})

	m.mu.Lock()
	prev := m.tails[key]
	m.tails[key] = done
	m.mu.Unlock()

	go func() {
		if prev != nil {
			<-prev
		}
		defer func() {
			m.release(key, done)
			close(done)
		}()
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("serialized task panicked", "key", key, "panic", rec)
			}
		}()
		fn()
	}()

	return done
}

// Do runs fn in the key's queue and waits for it to complete.
func (m *KeyedMutex) Do(key string, fn func()) {
	<-m.Enqueue(key, fn)
}

// release drops the queue entry once the last holder finishes, so idle
// keys do not accumulate.
func (m *KeyedMutex) release(key string, done chan struct{}) {
	m.mu.Lock()
	if m.tails[key] == done {
		delete(m.tails, key)
	}
	m.mu.Unlock()
}
