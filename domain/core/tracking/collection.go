package tracking

import (
	"fmt"
	"sort"
	"time"

	"topicgraph/domain/core/valueobjects"
	pkgerrors "topicgraph/pkg/errors"
)

// Owner is the node a collection belongs to
type Owner interface {
	// IsNew reports whether the owner has never been persisted. Every value
	// of a new owner is dirty regardless of explicit flags.
	IsNew() bool
}

// Lineage returns the same-kind collections of the owner's base node and
// parent node, either of which may be nil.
type Lineage[T any] func() (base *Collection[T], parent *Collection[T])

// Options configures a collection
type Options[T any] struct {
	// Equal compares two values; a replacement with an equal value is not a change
	Equal func(a, b T) bool
	// IsEmpty identifies values that count as absent
	IsEmpty func(v T) bool
	// Lineage supplies inheritance sources; nil means none
	Lineage Lineage[T]
	// Guard routes writes through owner capabilities; nil means none
	Guard *DispatchGuard[T]

	MaxKeyLength int
	MaxHopBudget int
	Clock        func() time.Time
}

// Collection is a keyed set of tracked values owned by one node. Keys are
// unique case-insensitively. Removed keys are remembered until the next clean
// mark so storage can tell a deletion from a value that was never set.
type Collection[T any] struct {
	owner   Owner
	items   map[string]valueobjects.TrackedValue[T]
	deleted map[string]string
	opts    Options[T]
}

// NewCollection creates an empty collection for owner
func NewCollection[T any](owner Owner, opts Options[T]) *Collection[T] {
	if opts.IsEmpty == nil {
		opts.IsEmpty = func(T) bool { return false }
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.MaxKeyLength <= 0 {
		opts.MaxKeyLength = valueobjects.DefaultMaxKeyLength
	}
	if opts.MaxHopBudget <= 0 {
		opts.MaxHopBudget = DefaultMaxHopBudget
	}
	return &Collection[T]{
		owner:   owner,
		items:   make(map[string]valueobjects.TrackedValue[T]),
		deleted: make(map[string]string),
		opts:    opts,
	}
}

// SetOption adjusts a single SetValue call
type SetOption func(*setOptions)

type setOptions struct {
	markDirty *bool
	at        time.Time
}

// MarkDirty forces the resulting value's dirty flag. For an existing key,
// true always dirties; false only declines to dirty an unchanged value.
// For a new key, false inserts the value clean (used when hydrating).
func MarkDirty(dirty bool) SetOption {
	return func(o *setOptions) {
		o.markDirty = &dirty
	}
}

// At stamps the write with an explicit modification time
func At(ts time.Time) SetOption {
	return func(o *setOptions) {
		o.at = ts
	}
}

// SetValue writes value under key. Writes for keys with a registered owner
// capability are diverted through it, and only what the capability commits
// is stored. Assigning an empty value removes an existing key.
func (c *Collection[T]) SetValue(key string, value T, opts ...SetOption) error {
	norm, err := valueobjects.NormalizeKey(key, c.opts.MaxKeyLength)
	if err != nil {
		return err
	}

	commit := func(accepted T) error {
		return c.commitValue(key, accepted, opts...)
	}
	proceed, err := c.opts.Guard.Enforce(key, value, commit)
	if err != nil {
		return err
	}
	if !proceed {
		return nil
	}
	defer c.opts.Guard.committed(key)

	c.commit(norm, key, value, opts...)
	return nil
}

// commitValue registers the write with the guard so it is stored without
// being dispatched again
func (c *Collection[T]) commitValue(key string, value T, opts ...SetOption) error {
	if _, err := valueobjects.NormalizeKey(key, c.opts.MaxKeyLength); err != nil {
		return err
	}
	if !c.opts.Guard.Register(key, value) {
		return pkgerrors.NewConflictError(fmt.Sprintf("a write for key %q is already pending", key)).
			WithDetail("key", key)
	}
	return c.SetValue(key, value, opts...)
}

func (c *Collection[T]) commit(norm, key string, value T, opts ...SetOption) {
	o := setOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	at := o.at
	if at.IsZero() {
		at = c.opts.Clock()
	}
	isNew := c.owner != nil && c.owner.IsNew()
	empty := c.opts.IsEmpty(value)

	existing, present := c.items[norm]
	if !present {
		if empty {
			return
		}
		dirty := isNew || o.markDirty == nil || *o.markDirty
		c.items[norm] = valueobjects.NewTrackedValue(key, value, dirty, at)
		delete(c.deleted, norm)
		return
	}

	if empty {
		c.removeKey(norm)
		return
	}

	changed := !c.equal(existing.Value(), value)
	var dirty bool
	switch {
	case isNew || changed:
		dirty = true
	case o.markDirty != nil:
		dirty = *o.markDirty
	default:
		dirty = existing.IsDirty()
	}
	c.items[norm] = existing.WithValue(value, dirty, at)
}

// Insert adds a fully formed tracked value through the low-level path.
// A second value for the same key is a DuplicateKey error.
func (c *Collection[T]) Insert(v valueobjects.TrackedValue[T]) error {
	norm, err := valueobjects.NormalizeKey(v.Key(), c.opts.MaxKeyLength)
	if err != nil {
		return err
	}
	if _, exists := c.items[norm]; exists {
		return pkgerrors.NewDuplicateKeyError(v.Key())
	}
	c.items[norm] = v
	delete(c.deleted, norm)
	return nil
}

// Value returns the local value of key without inheritance
func (c *Collection[T]) Value(key string) (T, bool) {
	var zero T
	norm, err := valueobjects.NormalizeKey(key, c.opts.MaxKeyLength)
	if err != nil {
		return zero, false
	}
	item, ok := c.items[norm]
	if !ok || c.opts.IsEmpty(item.Value()) {
		return zero, false
	}
	return item.Value(), true
}

// Item returns the tracked value stored under key
func (c *Collection[T]) Item(key string) (valueobjects.TrackedValue[T], bool) {
	norm, err := valueobjects.NormalizeKey(key, c.opts.MaxKeyLength)
	if err != nil {
		return valueobjects.TrackedValue[T]{}, false
	}
	item, ok := c.items[norm]
	return item, ok
}

// GetValue resolves key locally, then along the base chain (at most hopBudget
// hops), then, if inheritFromParent, along the parent chain.
func (c *Collection[T]) GetValue(key string, defaultValue T, inheritFromParent bool, hopBudget int) (T, error) {
	return Resolve(c, key, defaultValue, inheritFromParent, hopBudget)
}

// Has reports whether key holds a local non-empty value
func (c *Collection[T]) Has(key string) bool {
	_, ok := c.Value(key)
	return ok
}

// Len returns the number of local entries
func (c *Collection[T]) Len() int {
	return len(c.items)
}

// Keys returns the local keys, as supplied, in case-folded order
func (c *Collection[T]) Keys() []string {
	norms := c.sortedNorms()
	keys := make([]string, len(norms))
	for i, norm := range norms {
		keys[i] = c.items[norm].Key()
	}
	return keys
}

// Items returns the local tracked values in case-folded key order
func (c *Collection[T]) Items() []valueobjects.TrackedValue[T] {
	norms := c.sortedNorms()
	items := make([]valueobjects.TrackedValue[T], len(norms))
	for i, norm := range norms {
		items[i] = c.items[norm]
	}
	return items
}

// Snapshot returns key -> value for every local entry
func (c *Collection[T]) Snapshot() map[string]T {
	out := make(map[string]T, len(c.items))
	for _, item := range c.items {
		out[item.Key()] = item.Value()
	}
	return out
}

// IsDirty reports whether anything changed since the last clean mark
func (c *Collection[T]) IsDirty() bool {
	if len(c.deleted) > 0 {
		return true
	}
	for _, item := range c.items {
		if item.IsDirty() {
			return true
		}
	}
	return false
}

// IsDirtyKey reports whether key has an unpersisted write or removal
func (c *Collection[T]) IsDirtyKey(key string) bool {
	norm, err := valueobjects.NormalizeKey(key, c.opts.MaxKeyLength)
	if err != nil {
		return false
	}
	if _, removed := c.deleted[norm]; removed {
		return true
	}
	item, ok := c.items[norm]
	return ok && item.IsDirty()
}

// DirtyKeys returns the keys holding dirty values
func (c *Collection[T]) DirtyKeys() []string {
	var keys []string
	for _, norm := range c.sortedNorms() {
		if item := c.items[norm]; item.IsDirty() {
			keys = append(keys, item.Key())
		}
	}
	return keys
}

// DeletedKeys returns the keys removed since the last clean mark
func (c *Collection[T]) DeletedKeys() []string {
	keys := make([]string, 0, len(c.deleted))
	for _, key := range c.deleted {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MarkClean stamps every dirty value with ts (or now) and forgets removals.
// It is a no-op while the owner is new.
func (c *Collection[T]) MarkClean(ts ...time.Time) {
	if c.owner != nil && c.owner.IsNew() {
		return
	}
	at := c.stamp(ts)
	for norm, item := range c.items {
		if item.IsDirty() {
			c.items[norm] = item.Clean(at)
		}
	}
	c.deleted = make(map[string]string)
}

// MarkCleanKey is MarkClean restricted to a single key
func (c *Collection[T]) MarkCleanKey(key string, ts ...time.Time) {
	if c.owner != nil && c.owner.IsNew() {
		return
	}
	norm, err := valueobjects.NormalizeKey(key, c.opts.MaxKeyLength)
	if err != nil {
		return
	}
	if item, ok := c.items[norm]; ok && item.IsDirty() {
		c.items[norm] = item.Clean(c.stamp(ts))
	}
	delete(c.deleted, norm)
}

// Remove deletes key, recording the removal unless the owner is new.
// Returns false when key was not present.
func (c *Collection[T]) Remove(key string) bool {
	norm, err := valueobjects.NormalizeKey(key, c.opts.MaxKeyLength)
	if err != nil {
		return false
	}
	if _, ok := c.items[norm]; !ok {
		return false
	}
	c.removeKey(norm)
	return true
}

// Clear removes every entry, recording each removal unless the owner is new
func (c *Collection[T]) Clear() {
	for norm := range c.items {
		c.removeKey(norm)
	}
}

func (c *Collection[T]) removeKey(norm string) {
	item := c.items[norm]
	delete(c.items, norm)
	if c.owner != nil && c.owner.IsNew() {
		return
	}
	c.deleted[norm] = item.Key()
}

func (c *Collection[T]) lineage() (*Collection[T], *Collection[T]) {
	if c.opts.Lineage == nil {
		return nil, nil
	}
	return c.opts.Lineage()
}

func (c *Collection[T]) equal(a, b T) bool {
	if c.opts.Equal == nil {
		return false
	}
	return c.opts.Equal(a, b)
}

func (c *Collection[T]) stamp(ts []time.Time) time.Time {
	if len(ts) > 0 && !ts[0].IsZero() {
		return ts[0]
	}
	return c.opts.Clock()
}

func (c *Collection[T]) sortedNorms() []string {
	norms := make([]string, 0, len(c.items))
	for norm := range c.items {
		norms = append(norms, norm)
	}
	sort.Strings(norms)
	return norms
}
