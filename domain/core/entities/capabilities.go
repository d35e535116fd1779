package entities

import (
	"strings"

	"topicgraph/domain/core/tracking"
	pkgerrors "topicgraph/pkg/errors"
)

// AnyContentType registers a capability for every content type
const AnyContentType = "*"

// Capability factories bind owner logic to a concrete topic
type (
	AttributeCapability    func(t *Topic) tracking.Capability[string]
	RelationshipCapability func(t *Topic) tracking.Capability[TopicSet]
	ReferenceCapability    func(t *Topic) tracking.Capability[*Topic]
)

type capabilitySet struct {
	attributes    map[string]AttributeCapability
	relationships map[string]RelationshipCapability
	references    map[string]ReferenceCapability
}

func newCapabilitySet() *capabilitySet {
	return &capabilitySet{
		attributes:    make(map[string]AttributeCapability),
		relationships: make(map[string]RelationshipCapability),
		references:    make(map[string]ReferenceCapability),
	}
}

// CapabilityRegistry is the per-content-type table of keys whose writes must
// run through topic business logic. Tables are resolved once per topic at
// construction.
type CapabilityRegistry struct {
	byType map[string]*capabilitySet
}

// NewCapabilityRegistry creates an empty registry
func NewCapabilityRegistry() *CapabilityRegistry {
	return &CapabilityRegistry{byType: make(map[string]*capabilitySet)}
}

// DefaultCapabilities returns the registry every topic gets unless told
// otherwise: the key attribute is routed through SetKey, and attribute
// descriptors only accept boolean inheritance flags.
func DefaultCapabilities() *CapabilityRegistry {
	r := NewCapabilityRegistry()
	r.RegisterAttribute(AnyContentType, KeyAttribute, func(t *Topic) tracking.Capability[string] {
		return t.rename
	})
	r.RegisterAttribute(ContentTypeAttributeDescriptor, InheritedAttribute, func(t *Topic) tracking.Capability[string] {
		return func(value string, commit tracking.Commit[string]) error {
			switch strings.ToLower(value) {
			case "true", "false":
				return commit(strings.ToLower(value))
			default:
				return pkgerrors.NewValidationError("inheritance flag must be true or false").
					WithDetail("topic", t.String()).
					WithDetail("value", value)
			}
		}
	})
	return r
}

func (r *CapabilityRegistry) set(contentType string) *capabilitySet {
	k := strings.ToLower(contentType)
	s, ok := r.byType[k]
	if !ok {
		s = newCapabilitySet()
		r.byType[k] = s
	}
	return s
}

// RegisterAttribute binds an attribute key of contentType to a capability
func (r *CapabilityRegistry) RegisterAttribute(contentType, key string, factory AttributeCapability) {
	r.set(contentType).attributes[strings.ToLower(key)] = factory
}

// RegisterRelationship binds a relationship key of contentType to a capability
func (r *CapabilityRegistry) RegisterRelationship(contentType, key string, factory RelationshipCapability) {
	r.set(contentType).relationships[strings.ToLower(key)] = factory
}

// RegisterReference binds a reference key of contentType to a capability
func (r *CapabilityRegistry) RegisterReference(contentType, key string, factory ReferenceCapability) {
	r.set(contentType).references[strings.ToLower(key)] = factory
}

// sets returns the wildcard set followed by the content-type set, so
// specific registrations override wildcard ones.
func (r *CapabilityRegistry) sets(contentType string) []*capabilitySet {
	if r == nil {
		return nil
	}
	var out []*capabilitySet
	if s, ok := r.byType[AnyContentType]; ok {
		out = append(out, s)
	}
	if s, ok := r.byType[strings.ToLower(contentType)]; ok {
		out = append(out, s)
	}
	return out
}

func (r *CapabilityRegistry) attributeTable(t *Topic) map[string]tracking.Capability[string] {
	table := make(map[string]tracking.Capability[string])
	for _, s := range r.sets(t.contentType) {
		for key, factory := range s.attributes {
			table[key] = factory(t)
		}
	}
	return table
}

func (r *CapabilityRegistry) relationshipTable(t *Topic) map[string]tracking.Capability[TopicSet] {
	table := make(map[string]tracking.Capability[TopicSet])
	for _, s := range r.sets(t.contentType) {
		for key, factory := range s.relationships {
			table[key] = factory(t)
		}
	}
	return table
}

func (r *CapabilityRegistry) referenceTable(t *Topic) map[string]tracking.Capability[*Topic] {
	table := make(map[string]tracking.Capability[*Topic])
	for _, s := range r.sets(t.contentType) {
		for key, factory := range s.references {
			table[key] = factory(t)
		}
	}
	return table
}
