package schema

import (
	"sort"
	"strings"

	"topicgraph/domain/core/entities"
)

// Attribute descriptor flags, stored as attributes of AttributeDescriptor topics
const (
	RequiredAttribute    = "isrequired"
	DescriptionAttribute = "description"
	DefaultAttribute     = "defaultvalue"
)

// AttributeDescriptor declares one legal attribute of a content type
type AttributeDescriptor struct {
	Key          string
	Inherited    bool
	Required     bool
	DefaultValue string
	// DeclaredBy names the content type that declares the attribute
	DeclaredBy string
}

// ContentTypeDescriptor is the effective schema of one content type: its own
// attribute descriptors plus the inherited descriptors of its schema ancestors.
type ContentTypeDescriptor struct {
	Name       string
	Parent     string
	Topic      *entities.Topic
	attributes map[string]AttributeDescriptor
}

// Allows reports whether key is a legal attribute. The key attribute is
// always legal.
func (d *ContentTypeDescriptor) Allows(key string) bool {
	if strings.EqualFold(key, entities.KeyAttribute) {
		return true
	}
	_, ok := d.attributes[strings.ToLower(key)]
	return ok
}

// Attribute returns the descriptor for key
func (d *ContentTypeDescriptor) Attribute(key string) (AttributeDescriptor, bool) {
	a, ok := d.attributes[strings.ToLower(key)]
	return a, ok
}

// Attributes returns every descriptor ordered by key
func (d *ContentTypeDescriptor) Attributes() []AttributeDescriptor {
	out := make([]AttributeDescriptor, 0, len(d.attributes))
	for _, a := range d.attributes {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Key) < strings.ToLower(out[j].Key)
	})
	return out
}

// Required returns the descriptors that must hold a value
func (d *ContentTypeDescriptor) Required() []AttributeDescriptor {
	var out []AttributeDescriptor
	for _, a := range d.Attributes() {
		if a.Required {
			out = append(out, a)
		}
	}
	return out
}

func describeAttribute(t *entities.Topic, declaredBy string) AttributeDescriptor {
	attrs := t.Attributes()
	flag := func(key string, fallback bool) bool {
		v, ok := attrs.Value(key)
		if !ok {
			return fallback
		}
		return strings.EqualFold(v, "true")
	}
	def, _ := attrs.Value(DefaultAttribute)
	return AttributeDescriptor{
		Key:          t.Key(),
		Inherited:    flag(entities.InheritedAttribute, true),
		Required:     flag(RequiredAttribute, false),
		DefaultValue: def,
		DeclaredBy:   declaredBy,
	}
}
