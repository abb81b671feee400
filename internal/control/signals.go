// Package control holds the operator signals a run observes: a direction
// override and a kill switch. Both are written from the control surface at
// any time and read by the run's worker.
package control

import (
	"sync"
	"sync/atomic"

	"swing-trigger/internal/swing"
)

// Override is a single slot holding an operator-forced direction. Last write wins.
type Override struct {
	mu  sync.RWMutex
	dir swing.Direction
}

// Set stores dir; only UP and DOWN are accepted.
func (o *Override) Set(dir swing.Direction) error {
	if dir != swing.Up && dir != swing.Down {
		return swing.ErrInvalidDirection
	}
	o.mu.Lock()
	o.dir = dir
	o.mu.Unlock()
	return nil
}

// Get returns the override and whether one is set.
func (o *Override) Get() (swing.Direction, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.dir, o.dir != swing.None
}

// Kill is a one-way switch. Once set it never resets.
type Kill struct {
	killed atomic.Bool
	once   sync.Once
	done   chan struct{}
}

// NewKill creates an unset switch.
func NewKill() *Kill {
	return &Kill{done: make(chan struct{})}
}

// Kill trips the switch. It reports whether this call was the one that did.
func (k *Kill) Kill() bool {
	tripped := false
	k.once.Do(func() {
		k.killed.Store(true)
		close(k.done)
		tripped = true
	})
	return tripped
}

// Killed reports whether the switch has been tripped.
func (k *Kill) Killed() bool { return k.killed.Load() }

// Done is closed when the switch trips.
func (k *Kill) Done() <-chan struct{} { return k.done }

// Signals bundles the two operator signals handed to a run.
type Signals struct {
	Override *Override
	Kill     *Kill
}

// NewSignals creates unset signals.
func NewSignals() *Signals {
	return &Signals{Override: &Override{}, Kill: NewKill()}
}
