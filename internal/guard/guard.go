/*

Per-entity reentrancy locks. Execution is single-threaded per entry point but any
outbound token/router/collaborator call may synchronously re-enter the engine, so
every mutating operation takes the lock for the entity it touches and holds it for
the full call, including the outbound leg. A second acquisition of the same entity
is rejected outright - never queued - with types.ErrReentrancy.

Locks are per entity, not global: a batch that locks pool 7 leaves pool 8 fully
available to unrelated calls in the same batch.

*/

package guard

import (
	"fmt"
	"sync"

	"github.com/meridian-dex/gpm/internal/types"
)

// EntityLocks tracks which (kind, id) entities currently have a mutating call in
// flight.
type EntityLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewEntityLocks returns an empty lock set.
func NewEntityLocks() *EntityLocks {
	return &EntityLocks{held: make(map[string]bool)}
}

// Acquire takes the lock for the given entity. On success it returns a release
// function which must be deferred immediately so the lock is dropped on every
// exit path, including error paths. If the entity is already locked the call
// fails with types.ErrReentrancy.
func (l *EntityLocks) Acquire(kind string, id string) (func(), error) {
	key := kind + "/" + id

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[key] {
		return nil, fmt.Errorf("%w: %s", types.ErrReentrancy, key)
	}
	l.held[key] = true

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, nil
}

// Held reports whether the entity is currently locked. Intended for assertions
// and diagnostics, not for lock ordering decisions.
func (l *EntityLocks) Held(kind string, id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held[kind+"/"+id]
}
