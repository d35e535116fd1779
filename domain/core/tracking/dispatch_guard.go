package tracking

import (
	"strings"

	pkgerrors "topicgraph/pkg/errors"
)

// DefaultMaxDispatchDepth is how many nested capability dispatches for one key
// are tolerated before the guard reports a loop.
const DefaultMaxDispatchDepth = 3

// Commit writes a value that owner logic has already accepted
type Commit[T any] func(value T) error

// Capability is owner business logic bound to one key. It decides what, if
// anything, to write and writes it through commit, never through SetValue.
type Capability[T any] func(value T, commit Commit[T]) error

// DispatchState is the per-key position in the dispatch protocol
type DispatchState int

const (
	StateIdle DispatchState = iota
	StateDispatching
	StateCommitting
)

func (s DispatchState) String() string {
	switch s {
	case StateDispatching:
		return "dispatching"
	case StateCommitting:
		return "committing"
	default:
		return "idle"
	}
}

type pending[T any] struct {
	value T
}

// DispatchGuard routes writes for keys that have a registered capability
// through that capability exactly once before they reach the collection.
type DispatchGuard[T any] struct {
	capabilities map[string]Capability[T]
	pending      map[string]pending[T]
	state        map[string]DispatchState
	depth        map[string]int
	maxDepth     int
}

// NewDispatchGuard creates a guard over a capability table. Table keys are
// matched case-insensitively.
func NewDispatchGuard[T any](capabilities map[string]Capability[T], maxDepth int) *DispatchGuard[T] {
	if maxDepth < 1 {
		maxDepth = DefaultMaxDispatchDepth
	}
	table := make(map[string]Capability[T], len(capabilities))
	for key, capability := range capabilities {
		if capability != nil {
			table[strings.ToLower(key)] = capability
		}
	}
	return &DispatchGuard[T]{
		capabilities: table,
		pending:      make(map[string]pending[T]),
		state:        make(map[string]DispatchState),
		depth:        make(map[string]int),
		maxDepth:     maxDepth,
	}
}

// HasCapability reports whether key is routed through owner logic
func (g *DispatchGuard[T]) HasCapability(key string) bool {
	if g == nil {
		return false
	}
	_, ok := g.capabilities[strings.ToLower(key)]
	return ok
}

// State returns the dispatch state of key
func (g *DispatchGuard[T]) State(key string) DispatchState {
	if g == nil {
		return StateIdle
	}
	return g.state[strings.ToLower(key)]
}

// Register records that business logic for key already ran, so the next
// Enforce for key lets the write through. Returns false if a registration
// is already pending.
func (g *DispatchGuard[T]) Register(key string, value T) bool {
	if g == nil {
		return true
	}
	k := strings.ToLower(key)
	if _, exists := g.pending[k]; exists {
		return false
	}
	g.pending[k] = pending[T]{value: value}
	return true
}

// Enforce decides whether a write of candidate to key may be committed now.
// A pending registration is consumed and true returned. Otherwise a registered
// capability is invoked with commit and false returned, leaving the write to
// the capability. Keys without a capability pass straight through.
func (g *DispatchGuard[T]) Enforce(key string, candidate T, commit Commit[T]) (bool, error) {
	if g == nil {
		return true, nil
	}
	k := strings.ToLower(key)

	if _, ok := g.pending[k]; ok {
		delete(g.pending, k)
		g.state[k] = StateCommitting
		return true, nil
	}

	capability, ok := g.capabilities[k]
	if !ok {
		return true, nil
	}

	if g.depth[k] >= g.maxDepth {
		return false, pkgerrors.NewDispatchLoopError(key, g.depth[k]+1)
	}

	g.depth[k]++
	g.state[k] = StateDispatching
	defer g.leave(k)

	if commit == nil {
		return false, pkgerrors.NewInvalidArgumentError("commit", "capability dispatch needs a commit callback").
			WithDetail("key", key)
	}
	if err := capability(candidate, commit); err != nil {
		delete(g.pending, k)
		return false, err
	}
	return false, nil
}

// committed returns key to the state it had before the pending write was consumed
func (g *DispatchGuard[T]) committed(key string) {
	if g == nil {
		return
	}
	k := strings.ToLower(key)
	if g.state[k] != StateCommitting {
		return
	}
	if g.depth[k] > 0 {
		g.state[k] = StateDispatching
	} else {
		delete(g.state, k)
	}
}

func (g *DispatchGuard[T]) leave(k string) {
	g.depth[k]--
	if g.depth[k] <= 0 {
		delete(g.depth, k)
		delete(g.state, k)
		// a capability that registered but never committed leaves nothing behind
		delete(g.pending, k)
	}
}
