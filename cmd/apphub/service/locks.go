package service

import (
	"sync"

	"github.com/google/uuid"
)

// keyedLocks serializes mutations per app uid. Operations on distinct apps
// never contend; entries are reclaimed once the last holder releases.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*entityLock
}

type entityLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{
		locks: make(map[uuid.UUID]*entityLock),
	}
}

// lock acquires the mutex for the given uid, creating it on first use
func (k *keyedLocks) lock(uid uuid.UUID) {
	k.mu.Lock()
	l, ok := k.locks[uid]
	if !ok {
		l = &entityLock{}
		k.locks[uid] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
}

// unlock releases the mutex for the given uid
func (k *keyedLocks) unlock(uid uuid.UUID) {
	k.mu.Lock()
	l := k.locks[uid]
	l.refs--
	if l.refs == 0 {
		delete(k.locks, uid)
	}
	k.mu.Unlock()

	l.mu.Unlock()
}
