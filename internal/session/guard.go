// Package session admits at most one realtime client per machine.
package session

import (
	"context"
	"sync"
)

// RejectReason is sent to connections turned away while the machine is held.
const RejectReason = "already-connected"

// Lease binds the machine to a single client id.
type Lease interface {
	// Admit binds clientID if the machine is idle. A false result leaves the
	// current binding untouched.
	Admit(ctx context.Context, clientID string) (bool, error)
	// Release unbinds clientID. Releasing a client that is not bound is a no-op.
	Release(ctx context.Context, clientID string) error
	// Refresh extends the binding for stores that expire it.
	Refresh(ctx context.Context, clientID string) error
}

// Guard is the in-process Lease. Admit and Release are single critical
// sections, so two concurrent attempts can never both be admitted.
type Guard struct {
	mu     sync.Mutex
	holder string
}

func NewGuard() *Guard {
	return &Guard{}
}

func (g *Guard) Admit(_ context.Context, clientID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.holder != "" {
		return false, nil
	}
	g.holder = clientID
	return true, nil
}

func (g *Guard) Release(_ context.Context, clientID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.holder == clientID {
		g.holder = ""
	}
	return nil
}

func (g *Guard) Refresh(context.Context, string) error {
	return nil
}

// Holder returns the bound client id, if any.
func (g *Guard) Holder() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.holder, g.holder != ""
}

// Occupied reports whether a client holds the machine.
func (g *Guard) Occupied() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.holder != ""
}
