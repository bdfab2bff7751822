package attendance

import (
	"sync"

	"github.com/warp/attendance-engine/generic"
)

// keyedMutex serialises work per staff member. Different staff never
// contend. Entries are reference counted and dropped when unused so the
// map does not grow with every staff member ever seen.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[generic.StaffID]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[generic.StaffID]*refMutex)}
}

// Lock acquires the staff member's lock and returns its release func.
func (k *keyedMutex) Lock(id generic.StaffID) func() {
	k.mu.Lock()
	m, ok := k.locks[id]
	if !ok {
		m = &refMutex{}
		k.locks[id] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
