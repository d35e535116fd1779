package valueobjects

import "time"

// TrackedValue is an immutable keyed value with a dirty flag and the time it
// was last modified or persisted. Updates return new instances.
type TrackedValue[T any] struct {
	key          string
	value        T
	isDirty      bool
	lastModified time.Time
}

// NewTrackedValue creates a tracked value
func NewTrackedValue[T any](key string, value T, isDirty bool, lastModified time.Time) TrackedValue[T] {
	return TrackedValue[T]{
		key:          key,
		value:        value,
		isDirty:      isDirty,
		lastModified: lastModified,
	}
}

// Key returns the key as originally supplied (not case-folded)
func (v TrackedValue[T]) Key() string {
	return v.key
}

// Value returns the stored value
func (v TrackedValue[T]) Value() T {
	return v.value
}

// IsDirty reports whether the value differs from its last persisted state
func (v TrackedValue[T]) IsDirty() bool {
	return v.isDirty
}

// LastModified returns the modification or persistence timestamp
func (v TrackedValue[T]) LastModified() time.Time {
	return v.lastModified
}

// WithValue returns a copy holding value
func (v TrackedValue[T]) WithValue(value T, isDirty bool, at time.Time) TrackedValue[T] {
	v.value = value
	v.isDirty = isDirty
	v.lastModified = at
	return v
}

// Clean returns a copy marked as persisted at the given time
func (v TrackedValue[T]) Clean(at time.Time) TrackedValue[T] {
	v.isDirty = false
	v.lastModified = at
	return v
}
