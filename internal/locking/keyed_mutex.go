package locking

import (
	"sync"

	"github.com/google/uuid"
)

// KeyedMutex serializes all mutations of one case. Different cases lock
// independently. The same instance is shared by every component that
// writes case state, including the expiry sweep.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[uuid.UUID]*sync.Mutex)}
}

// Lock blocks until the per-case mutex is held and returns the unlock
// function.
func (k *KeyedMutex) Lock(id uuid.UUID) func() {
	k.mu.Lock()
	m, ok := k.locks[id]
	if !ok {
		m = &sync.Mutex{}
		k.locks[id] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
