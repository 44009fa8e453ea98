package timer

import "sync"

// Hooks is the typed in-process event surface of the room registry.
// Subscribers register before the first room is created; publishing happens
// from the room's tick goroutine after the registry lock is released, so
// handlers must not call back into blocking registry mutations and should
// hand real work off to their own queues.
type Hooks struct {
	mu            sync.RWMutex
	tick          []func(Snapshot)
	missedTick    []func(MissedTick)
	stageComplete []func(Snapshot)
}

func (h *Hooks) OnTick(fn func(Snapshot)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tick = append(h.tick, fn)
}

func (h *Hooks) OnMissedTick(fn func(MissedTick)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.missedTick = append(h.missedTick, fn)
}

func (h *Hooks) OnStageComplete(fn func(Snapshot)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stageComplete = append(h.stageComplete, fn)
}

func (h *Hooks) publishTick(s Snapshot) {
	h.mu.RLock()
	handlers := h.tick
	h.mu.RUnlock()
	for _, fn := range handlers {
		fn(s)
	}
}

func (h *Hooks) publishMissedTick(m MissedTick) {
	h.mu.RLock()
	handlers := h.missedTick
	h.mu.RUnlock()
	for _, fn := range handlers {
		fn(m)
	}
}

func (h *Hooks) publishStageComplete(s Snapshot) {
	h.mu.RLock()
	handlers := h.stageComplete
	h.mu.RUnlock()
	for _, fn := range handlers {
		fn(s)
	}
}
