package entities

import (
	"fmt"
	"strings"
	"time"

	"topicgraph/domain/config"
	"topicgraph/domain/core/tracking"
	"topicgraph/domain/core/valueobjects"
	"topicgraph/domain/versioning"
	pkgerrors "topicgraph/pkg/errors"
)

// Reserved attribute keys and schema content types
const (
	KeyAttribute       = "key"
	InheritedAttribute = "isinherited"

	ContentTypeContainer           = "Container"
	ContentTypeContentType         = "ContentType"
	ContentTypeAttributeDescriptor = "AttributeDescriptor"
)

// AssociationKind distinguishes the two kinds of outgoing edges plus the base link
type AssociationKind string

const (
	AssociationRelationship AssociationKind = "relationship"
	AssociationReference    AssociationKind = "reference"
	AssociationBase         AssociationKind = "base"
)

// Association is one outgoing edge of a topic
type Association struct {
	Kind   AssociationKind
	Key    string
	Target *Topic
}

// Topic is a vertex of the content graph. It owns its attribute,
// relationship and reference collections; parent, base and association
// targets are non-owning links into the same graph.
type Topic struct {
	id          valueobjects.TopicID
	contentType string
	parent      *Topic
	base        *Topic
	children    []*Topic
	sortOrder   int

	attributes    *tracking.Collection[string]
	relationships *tracking.Collection[TopicSet]
	references    *tracking.Collection[*Topic]

	// version history, most recent first
	versions []time.Time

	// change markers cleared by a successful save
	renamed         bool
	originalKey     string
	positionChanged bool
	previousParent  *Topic
	baseChanged     bool
	// set by a partial save until the associations are written too
	linksPending bool

	config *config.DomainConfig
	clock  func() time.Time
}

// TopicOption customises topic construction
type TopicOption func(*topicOptions)

type topicOptions struct {
	id           valueobjects.TopicID
	capabilities *CapabilityRegistry
	config       *config.DomainConfig
	clock        func() time.Time
	versions     []time.Time
	sortOrder    int
}

// WithID sets a persisted identity
func WithID(id valueobjects.TopicID) TopicOption {
	return func(o *topicOptions) { o.id = id }
}

// WithCapabilities overrides the capability registry
func WithCapabilities(r *CapabilityRegistry) TopicOption {
	return func(o *topicOptions) { o.capabilities = r }
}

// WithDomainConfig overrides the domain configuration
func WithDomainConfig(cfg *config.DomainConfig) TopicOption {
	return func(o *topicOptions) { o.config = cfg }
}

// WithClock overrides the time source used for value timestamps
func WithClock(clock func() time.Time) TopicOption {
	return func(o *topicOptions) { o.clock = clock }
}

// WithVersions restores a version history, most recent first
func WithVersions(versions []time.Time) TopicOption {
	return func(o *topicOptions) { o.versions = versions }
}

// WithSortOrder restores the position under the parent
func WithSortOrder(order int) TopicOption {
	return func(o *topicOptions) { o.sortOrder = order }
}

// NewTopic creates an unsaved topic with the given content type and key
func NewTopic(contentType, key string, opts ...TopicOption) (*Topic, error) {
	if strings.TrimSpace(key) == "" {
		return nil, pkgerrors.NewValidationError("topic key cannot be empty").
			WithDetail("contentType", contentType)
	}
	t, err := ReconstructTopic(valueobjects.TopicID{}, contentType, opts...)
	if err != nil {
		return nil, err
	}
	if err := t.attributes.SetValue(KeyAttribute, key); err != nil {
		return nil, err
	}
	return t, nil
}

// ReconstructTopic creates a topic shell for hydration from storage. Values
// are added through the collections' low-level Insert path.
func ReconstructTopic(id valueobjects.TopicID, contentType string, opts ...TopicOption) (*Topic, error) {
	if _, err := valueobjects.NormalizeKey(contentType, 0); err != nil {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("invalid content type %q", contentType)).
			WithCause(err)
	}

	o := topicOptions{
		id:           id,
		capabilities: DefaultCapabilities(),
		config:       config.DefaultDomainConfig(),
		clock:        time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.config == nil {
		o.config = config.DefaultDomainConfig()
	}
	if o.clock == nil {
		o.clock = time.Now
	}

	t := &Topic{
		id:          o.id,
		contentType: contentType,
		children:    []*Topic{},
		sortOrder:   o.sortOrder,
		versions:    append([]time.Time(nil), o.versions...),
		config:      o.config,
		clock:       o.clock,
	}

	t.attributes = tracking.NewCollection[string](t, tracking.Options[string]{
		Equal:   func(a, b string) bool { return a == b },
		IsEmpty: func(v string) bool { return v == "" },
		Lineage: func() (*tracking.Collection[string], *tracking.Collection[string]) {
			var base, parent *tracking.Collection[string]
			if t.base != nil {
				base = t.base.attributes
			}
			if t.parent != nil {
				parent = t.parent.attributes
			}
			return base, parent
		},
		Guard:        tracking.NewDispatchGuard(o.capabilities.attributeTable(t), o.config.MaxDispatchDepth),
		MaxKeyLength: o.config.MaxKeyLength,
		MaxHopBudget: o.config.MaxHopBudget,
		Clock:        o.clock,
	})

	t.relationships = tracking.NewCollection[TopicSet](t, tracking.Options[TopicSet]{
		Equal:   func(a, b TopicSet) bool { return a.Equal(b) },
		IsEmpty: func(v TopicSet) bool { return v.IsEmpty() },
		Lineage: func() (*tracking.Collection[TopicSet], *tracking.Collection[TopicSet]) {
			var base, parent *tracking.Collection[TopicSet]
			if t.base != nil {
				base = t.base.relationships
			}
			if t.parent != nil {
				parent = t.parent.relationships
			}
			return base, parent
		},
		Guard:        tracking.NewDispatchGuard(o.capabilities.relationshipTable(t), o.config.MaxDispatchDepth),
		MaxKeyLength: o.config.MaxKeyLength,
		MaxHopBudget: o.config.MaxHopBudget,
		Clock:        o.clock,
	})

	t.references = tracking.NewCollection[*Topic](t, tracking.Options[*Topic]{
		Equal:   func(a, b *Topic) bool { return a == b },
		IsEmpty: func(v *Topic) bool { return v == nil },
		Lineage: func() (*tracking.Collection[*Topic], *tracking.Collection[*Topic]) {
			var base, parent *tracking.Collection[*Topic]
			if t.base != nil {
				base = t.base.references
			}
			if t.parent != nil {
				parent = t.parent.references
			}
			return base, parent
		},
		Guard:        tracking.NewDispatchGuard(o.capabilities.referenceTable(t), o.config.MaxDispatchDepth),
		MaxKeyLength: o.config.MaxKeyLength,
		MaxHopBudget: o.config.MaxHopBudget,
		Clock:        o.clock,
	})

	return t, nil
}

// ID returns the topic's identity; zero while unsaved
func (t *Topic) ID() valueobjects.TopicID {
	return t.id
}

// IsNew reports whether the topic has never been persisted
func (t *Topic) IsNew() bool {
	return t.id.IsZero()
}

// AssignID records the identity storage gave the topic on first persist
func (t *Topic) AssignID(id valueobjects.TopicID) error {
	if id.IsZero() {
		return pkgerrors.NewInvalidArgumentError("id", "cannot assign an empty topic identity")
	}
	if !t.id.IsZero() && !t.id.Equals(id) {
		return pkgerrors.NewConflictError(fmt.Sprintf("topic %s already has identity %s", t, t.id)).
			WithDetail("topic", t.String())
	}
	t.id = id
	return nil
}

// ContentType returns the name of the topic's content type
func (t *Topic) ContentType() string {
	return t.contentType
}

// IsSchemaNode reports whether the topic describes schema
func (t *Topic) IsSchemaNode() bool {
	return strings.EqualFold(t.contentType, ContentTypeContentType) ||
		strings.EqualFold(t.contentType, ContentTypeAttributeDescriptor)
}

// Key returns the topic's key attribute
func (t *Topic) Key() string {
	key, _ := t.attributes.Value(KeyAttribute)
	return key
}

// SetKey renames the topic. Keys are unique among siblings, ignoring case.
func (t *Topic) SetKey(key string) error {
	return t.attributes.SetValue(KeyAttribute, key)
}

// rename is the capability behind the key attribute, so every write of "key"
// through the attribute collection is checked here.
func (t *Topic) rename(key string, commit tracking.Commit[string]) error {
	if _, err := valueobjects.NormalizeKey(key, t.config.MaxKeyLength); err != nil {
		return err
	}
	if t.parent != nil {
		if sibling := t.parent.ChildByKey(key); sibling != nil && sibling != t {
			return pkgerrors.NewConflictError(
				fmt.Sprintf("topic %s already has a child with key %q", t.parent, key)).
				WithDetail("topic", t.String()).
				WithDetail("key", key)
		}
	}

	current := t.Key()
	if current == key {
		return nil
	}
	if err := commit(key); err != nil {
		return err
	}
	if !t.IsNew() && current != "" && !t.renamed {
		t.renamed = true
		t.originalKey = current
	}
	return nil
}

// IsRenamed reports whether the key changed since the last save
func (t *Topic) IsRenamed() bool {
	return t.renamed
}

// OriginalKey returns the key as of the last save, when renamed
func (t *Topic) OriginalKey() string {
	return t.originalKey
}

// Attributes returns the attribute collection
func (t *Topic) Attributes() *tracking.Collection[string] {
	return t.attributes
}

// Relationships returns the relationship collection
func (t *Topic) Relationships() *tracking.Collection[TopicSet] {
	return t.relationships
}

// References returns the reference collection
func (t *Topic) References() *tracking.Collection[*Topic] {
	return t.references
}

// Attribute resolves an attribute through the base chain with the default hop budget
func (t *Topic) Attribute(key string) string {
	value, err := t.attributes.GetValue(key, "", false, t.config.DefaultHopBudget)
	if err != nil {
		return ""
	}
	return value
}

// SetAttribute writes an attribute; an empty value removes it
func (t *Topic) SetAttribute(key, value string) error {
	return t.attributes.SetValue(key, value)
}

// SetRelationship replaces the relationship set under key
func (t *Topic) SetRelationship(key string, targets ...*Topic) error {
	return t.relationships.SetValue(key, NewTopicSet(targets...))
}

// AddRelationship adds target to the relationship set under key
func (t *Topic) AddRelationship(key string, target *Topic) error {
	if target == nil {
		return pkgerrors.NewInvalidArgumentError("target", "relationship target cannot be nil")
	}
	current, _ := t.relationships.Value(key)
	return t.relationships.SetValue(key, current.With(target))
}

// RemoveRelationship removes target from the relationship set under key
func (t *Topic) RemoveRelationship(key string, target *Topic) error {
	current, ok := t.relationships.Value(key)
	if !ok {
		return nil
	}
	return t.relationships.SetValue(key, current.Without(target))
}

// Relationship returns the local relationship set under key
func (t *Topic) Relationship(key string) TopicSet {
	set, _ := t.relationships.Value(key)
	return set
}

// SetReference points key at target; nil removes the reference
func (t *Topic) SetReference(key string, target *Topic) error {
	return t.references.SetValue(key, target)
}

// Reference returns the local reference under key, or nil
func (t *Topic) Reference(key string) *Topic {
	target, _ := t.references.Value(key)
	return target
}

// Base returns the topic attributes are inherited from, if any
func (t *Topic) Base() *Topic {
	return t.base
}

// SetBase links the topic to a base topic for attribute inheritance
func (t *Topic) SetBase(base *Topic) error {
	if base == t.base {
		return nil
	}
	for b := base; b != nil; b = b.base {
		if b == t {
			return pkgerrors.NewReferentialIntegrityError(t.String(), base.String(),
				"base chain would loop back to the topic")
		}
	}
	t.base = base
	t.baseChanged = true
	return nil
}

// RestoreBase sets the base link during hydration without marking a change
func (t *Topic) RestoreBase(base *Topic) {
	t.base = base
}

// Parent returns the tree parent, nil for the root or a detached topic
func (t *Topic) Parent() *Topic {
	return t.parent
}

// Children returns the children in sort order
func (t *Topic) Children() []*Topic {
	out := make([]*Topic, len(t.children))
	copy(out, t.children)
	return out
}

// HasChildren reports whether the topic has any children
func (t *Topic) HasChildren() bool {
	return len(t.children) > 0
}

// ChildByKey finds a child by key, ignoring case
func (t *Topic) ChildByKey(key string) *Topic {
	for _, child := range t.children {
		if strings.EqualFold(child.Key(), key) {
			return child
		}
	}
	return nil
}

// SortOrder returns the position under the parent
func (t *Topic) SortOrder() int {
	return t.sortOrder
}

// AddChild appends an unparented topic as the last child
func (t *Topic) AddChild(child *Topic) error {
	if child == nil {
		return pkgerrors.NewInvalidArgumentError("child", "child cannot be nil")
	}
	if child.parent != nil {
		return pkgerrors.NewConflictError(fmt.Sprintf("topic %s already has a parent; move it instead", child)).
			WithDetail("topic", child.String())
	}
	if child.IsAncestorOf(t) {
		return pkgerrors.NewInvalidArgumentError("child", fmt.Sprintf("topic %s cannot become its own descendant", child))
	}
	if sibling := t.ChildByKey(child.Key()); sibling != nil {
		return pkgerrors.NewConflictError(fmt.Sprintf("topic %s already has a child with key %q", t, child.Key())).
			WithDetail("topic", t.String()).
			WithDetail("key", child.Key())
	}

	child.sortOrder = 0
	if n := len(t.children); n > 0 {
		child.sortOrder = t.children[n-1].sortOrder + 1
	}
	child.parent = t
	t.children = append(t.children, child)
	return nil
}

// RestoreChild links a hydrated child under t, keeping children ordered by
// their stored sort order
func (t *Topic) RestoreChild(child *Topic) {
	child.parent = t
	i := len(t.children)
	for i > 0 && t.children[i-1].sortOrder > child.sortOrder {
		i--
	}
	t.children = append(t.children, nil)
	copy(t.children[i+1:], t.children[i:])
	t.children[i] = child
}

// MoveTo relocates t under target, directly after sibling, or first when
// sibling is nil. Siblings whose order changes are marked as repositioned.
func (t *Topic) MoveTo(target, sibling *Topic) error {
	if target == nil {
		return pkgerrors.NewInvalidArgumentError("target", "move target cannot be nil")
	}
	if t.IsAncestorOf(target) || t == target {
		return pkgerrors.NewInvalidArgumentError("target",
			fmt.Sprintf("cannot move %s into its own subtree at %s", t, target)).
			WithDetail("topic", t.String())
	}
	if sibling != nil && (sibling.parent != target || sibling == t) {
		return pkgerrors.NewInvalidArgumentError("sibling",
			fmt.Sprintf("%s is not a child of %s", sibling, target))
	}
	if existing := target.ChildByKey(t.Key()); existing != nil && existing != t {
		return pkgerrors.NewConflictError(fmt.Sprintf("topic %s already has a child with key %q", target, t.Key())).
			WithDetail("topic", target.String()).
			WithDetail("key", t.Key())
	}

	oldParent := t.parent
	if oldParent != nil {
		oldParent.removeChild(t)
	}

	index := 0
	if sibling != nil {
		for i, child := range target.children {
			if child == sibling {
				index = i + 1
				break
			}
		}
	}
	target.children = append(target.children, nil)
	copy(target.children[index+1:], target.children[index:])
	target.children[index] = t
	t.parent = target

	if !t.positionChanged {
		t.previousParent = oldParent
	}
	t.positionChanged = true
	target.renumberChildren()
	if oldParent != nil && oldParent != target {
		oldParent.renumberChildren()
	}
	return nil
}

// Detach removes t from its parent's children
func (t *Topic) Detach() {
	if t.parent == nil {
		return
	}
	t.parent.removeChild(t)
	t.parent = nil
}

func (t *Topic) removeChild(child *Topic) {
	for i, c := range t.children {
		if c == child {
			t.children = append(t.children[:i], t.children[i+1:]...)
			return
		}
	}
}

func (t *Topic) renumberChildren() {
	for i, child := range t.children {
		if child.sortOrder != i {
			child.sortOrder = i
			child.positionChanged = true
		}
	}
}

// IsPositionChanged reports whether the topic moved since the last save
func (t *Topic) IsPositionChanged() bool {
	return t.positionChanged
}

// PreviousParent returns the parent as of the last save, when moved
func (t *Topic) PreviousParent() *Topic {
	return t.previousParent
}

// IsAncestorOf reports whether t is a strict ancestor of other
func (t *Topic) IsAncestorOf(other *Topic) bool {
	for p := other.parent; p != nil; p = p.parent {
		if p == t {
			return true
		}
	}
	return false
}

// Subtree returns t and all its descendants in pre-order
func (t *Topic) Subtree() []*Topic {
	var out []*Topic
	stack := []*Topic{t}
	for len(stack) > 0 {
		n := len(stack) - 1
		current := stack[n]
		stack = stack[:n]
		out = append(out, current)
		for i := len(current.children) - 1; i >= 0; i-- {
			stack = append(stack, current.children[i])
		}
	}
	return out
}

// Path returns the keys from the root down to t joined by sep
func (t *Topic) Path(sep string) string {
	var keys []string
	for n := t; n != nil; n = n.parent {
		keys = append(keys, n.Key())
	}
	for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
		keys[i], keys[j] = keys[j], keys[i]
	}
	return strings.Join(keys, sep)
}

// String identifies the topic in logs and errors
func (t *Topic) String() string {
	if t == nil {
		return "<nil>"
	}
	path := t.Path(t.config.PathSeparator)
	if t.IsNew() {
		return fmt.Sprintf("%s (new %s)", path, t.contentType)
	}
	return path
}

// Associations returns every outgoing edge, including the base link
func (t *Topic) Associations() []Association {
	var out []Association
	for _, item := range t.relationships.Items() {
		for _, target := range item.Value().Topics() {
			out = append(out, Association{Kind: AssociationRelationship, Key: item.Key(), Target: target})
		}
	}
	for _, item := range t.references.Items() {
		if item.Value() != nil {
			out = append(out, Association{Kind: AssociationReference, Key: item.Key(), Target: item.Value()})
		}
	}
	if t.base != nil {
		out = append(out, Association{Kind: AssociationBase, Key: "base", Target: t.base})
	}
	return out
}

// PruneTargets removes every relationship member and reference that points
// at a topic for which doomed returns true. When markClean is set the pruned
// keys are marked clean, because storage has already dropped those edges.
// Returns the pruned keys.
func (t *Topic) PruneTargets(doomed func(*Topic) bool, markClean bool) []string {
	var pruned []string

	for _, item := range t.relationships.Items() {
		set := item.Value()
		kept := set
		for _, target := range set.Topics() {
			if doomed(target) {
				kept = kept.Without(target)
			}
		}
		if kept.Len() == set.Len() {
			continue
		}
		// storage-driven cleanup, not an owner write: replace the value directly
		t.relationships.Remove(item.Key())
		if !kept.IsEmpty() {
			if err := t.relationships.Insert(valueobjects.NewTrackedValue(item.Key(), kept, true, t.clock())); err != nil {
				continue
			}
		}
		pruned = append(pruned, item.Key())
		if markClean {
			t.relationships.MarkCleanKey(item.Key())
		}
	}

	for _, item := range t.references.Items() {
		if item.Value() != nil && doomed(item.Value()) {
			t.references.Remove(item.Key())
			pruned = append(pruned, item.Key())
			if markClean {
				t.references.MarkCleanKey(item.Key())
			}
		}
	}
	return pruned
}

// Versions returns the version history, most recent first
func (t *Topic) Versions() []time.Time {
	return append([]time.Time(nil), t.versions...)
}

// RecordVersion prepends a save timestamp unless it is already the head.
// Returns true when the history changed.
func (t *Topic) RecordVersion(at time.Time) bool {
	var changed bool
	t.versions, changed = versioning.Prepend(t.versions, at, t.config.MaxVersionsPerNode)
	return changed
}

// IsDirty reports whether the topic needs to be persisted
func (t *Topic) IsDirty() bool {
	return t.IsNew() || t.AttributesDirty() || t.AssociationsDirty() || t.positionChanged || t.renamed
}

// AttributesDirty reports unpersisted attribute changes
func (t *Topic) AttributesDirty() bool {
	return t.attributes.IsDirty()
}

// AssociationsDirty reports unpersisted relationship, reference or base changes
func (t *Topic) AssociationsDirty() bool {
	return t.baseChanged || t.linksPending || t.relationships.IsDirty() || t.references.IsDirty()
}

// MarkPersisted cleans the collections written by a save. A partial save
// only wrote attributes, so associations stay dirty for the next pass.
func (t *Topic) MarkPersisted(at time.Time, full bool) {
	t.attributes.MarkClean(at)
	if !full {
		t.linksPending = true
		return
	}
	t.relationships.MarkClean(at)
	t.references.MarkClean(at)
	t.baseChanged = false
	t.linksPending = false
}

// ClearChangeMarkers resets the rename and position markers after a save
func (t *Topic) ClearChangeMarkers() {
	t.renamed = false
	t.originalKey = ""
	t.positionChanged = false
	t.previousParent = nil
}

// DomainConfig returns the configuration the topic was built with
func (t *Topic) DomainConfig() *config.DomainConfig {
	return t.config
}
