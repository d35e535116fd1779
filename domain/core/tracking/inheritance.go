package tracking

import (
	"fmt"

	"topicgraph/domain/core/valueobjects"
	pkgerrors "topicgraph/pkg/errors"
)

// DefaultMaxHopBudget is the upper bound accepted for a base-chain hop budget
const DefaultMaxHopBudget = 100

// Resolve finds the effective value of key starting at c.
//
// Precedence is local value, then the base chain (at most hopBudget hops; the
// base chain never climbs a base node's parent), then, when inheritFromParent
// is set, each parent in turn with its own base chain, then defaultValue.
// Empty values count as absent. A parent chain that loops back on itself
// ends the walk.
func Resolve[T any](c *Collection[T], key string, defaultValue T, inheritFromParent bool, hopBudget int) (T, error) {
	if c == nil {
		return defaultValue, pkgerrors.NewInvalidArgumentError("collection", "cannot resolve against a nil collection")
	}
	if hopBudget < 0 || hopBudget > c.opts.MaxHopBudget {
		return defaultValue, pkgerrors.NewInvalidArgumentError("hopBudget",
			fmt.Sprintf("%d outside [0, %d]", hopBudget, c.opts.MaxHopBudget)).
			WithDetail("key", key)
	}
	if _, err := valueobjects.NormalizeKey(key, c.opts.MaxKeyLength); err != nil {
		return defaultValue, err
	}

	visited := make(map[*Collection[T]]struct{})
	for current := c; current != nil; {
		if _, seen := visited[current]; seen {
			break
		}
		visited[current] = struct{}{}

		if value, ok := current.resolveBaseChain(key, hopBudget); ok {
			return value, nil
		}
		if !inheritFromParent {
			break
		}
		_, current = current.lineage()
	}
	return defaultValue, nil
}

// resolveBaseChain looks up key locally and then through up to hops base links
func (c *Collection[T]) resolveBaseChain(key string, hops int) (T, bool) {
	current := c
	for remaining := hops; current != nil; remaining-- {
		if value, ok := current.Value(key); ok {
			return value, true
		}
		if remaining == 0 {
			break
		}
		current, _ = current.lineage()
	}
	var zero T
	return zero, false
}
