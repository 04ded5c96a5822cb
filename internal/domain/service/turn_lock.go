package service

import (
	"context"
	"sync"
)

// TurnLocker serializes chat turns per conversation so that messages of
// one conversation are appended in a well-defined order. Turns of
// different conversations never wait on each other.
type TurnLocker struct {
	mu    sync.Mutex
	slots map[string]*turnSlot
}

type turnSlot struct {
	sem  chan struct{}
	refs int
}

func NewTurnLocker() *TurnLocker {
	return &TurnLocker{slots: make(map[string]*turnSlot)}
}

// Lock waits until no other turn holds key, or ctx is done. The returned
// function releases the lock and must be called exactly once.
func (l *TurnLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &turnSlot{sem: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(key, slot)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.sem
			l.release(key, slot)
		})
	}, nil
}

func (l *TurnLocker) release(key string, slot *turnSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}

// Active returns the number of conversations with a running or waiting turn.
func (l *TurnLocker) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
