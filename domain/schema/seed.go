package schema

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"topicgraph/domain/core/aggregates"
	"topicgraph/domain/core/entities"
	pkgerrors "topicgraph/pkg/errors"
)

// Seed is a YAML description of content types and topics to merge into a graph
type Seed struct {
	ContentTypes []ContentTypeSeed `yaml:"contentTypes"`
	Topics       []TopicSeed       `yaml:"topics"`
}

// ContentTypeSeed declares a content type. Parent names another content
// type whose inheritable attributes it receives.
type ContentTypeSeed struct {
	Name       string          `yaml:"name"`
	Parent     string          `yaml:"parent,omitempty"`
	Attributes []AttributeSeed `yaml:"attributes,omitempty"`
}

// AttributeSeed declares one attribute of a content type
type AttributeSeed struct {
	Key         string `yaml:"key"`
	Required    bool   `yaml:"required,omitempty"`
	Inherited   *bool  `yaml:"inherited,omitempty"`
	Default     string `yaml:"default,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// TopicSeed declares a topic and its children. Base, relationship and
// reference targets are key paths from the root.
type TopicSeed struct {
	Key           string              `yaml:"key"`
	ContentType   string              `yaml:"contentType"`
	Base          string              `yaml:"base,omitempty"`
	Attributes    map[string]string   `yaml:"attributes,omitempty"`
	Relationships map[string][]string `yaml:"relationships,omitempty"`
	References    map[string]string   `yaml:"references,omitempty"`
	Children      []TopicSeed         `yaml:"children,omitempty"`
}

// TopicFactory creates unsaved topics for Apply
type TopicFactory func(contentType, key string) (*entities.Topic, error)

// ParseSeed decodes a YAML seed document
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, pkgerrors.NewValidationError("invalid seed document").WithCause(err)
	}
	return &seed, nil
}

// LoadSeedFile reads and decodes a YAML seed file
func LoadSeedFile(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("seed file %s", path)).WithCause(err)
	}
	return ParseSeed(data)
}

// CoreSeed declares the content types the graph itself is built from
func CoreSeed() *Seed {
	describe := AttributeSeed{Key: DescriptionAttribute}
	return &Seed{
		ContentTypes: []ContentTypeSeed{
			{Name: entities.ContentTypeContainer, Attributes: []AttributeSeed{describe}},
			{Name: entities.ContentTypeContentType, Attributes: []AttributeSeed{describe}},
			{Name: entities.ContentTypeAttributeDescriptor, Attributes: []AttributeSeed{
				describe,
				{Key: entities.InheritedAttribute},
				{Key: RequiredAttribute},
				{Key: DefaultAttribute},
			}},
		},
	}
}

// Apply merges the seed into g. Content types go under the configuration
// topic, which is created when missing; topics go under the root. Existing
// topics are matched by key and updated in place. Returns every topic created.
func (s *Seed) Apply(g *aggregates.TopicGraph, newTopic TopicFactory) ([]*entities.Topic, error) {
	a := &seedApplier{graph: g, newTopic: newTopic}
	if err := a.contentTypes(s.ContentTypes); err != nil {
		return a.created, err
	}

	var linked []linkedSeed
	for _, ts := range s.Topics {
		if err := a.topic(g.Root(), ts, &linked); err != nil {
			return a.created, err
		}
	}
	for _, l := range linked {
		if err := a.link(l.topic, l.seed); err != nil {
			return a.created, err
		}
	}
	return a.created, nil
}

type linkedSeed struct {
	topic *entities.Topic
	seed  TopicSeed
}

type seedApplier struct {
	graph    *aggregates.TopicGraph
	newTopic TopicFactory
	created  []*entities.Topic
}

func (a *seedApplier) child(parent *entities.Topic, contentType, key string) (*entities.Topic, error) {
	if existing := parent.ChildByKey(key); existing != nil {
		if !strings.EqualFold(existing.ContentType(), contentType) {
			return nil, pkgerrors.NewConflictError(
				fmt.Sprintf("topic %s already exists with content type %s", existing, existing.ContentType())).
				WithDetail("topic", existing.String())
		}
		return existing, nil
	}
	t, err := a.newTopic(contentType, key)
	if err != nil {
		return nil, err
	}
	if err := parent.AddChild(t); err != nil {
		return nil, err
	}
	a.created = append(a.created, t)
	return t, nil
}

func (a *seedApplier) contentTypes(seeds []ContentTypeSeed) error {
	if len(seeds) == 0 {
		return nil
	}
	configuration := a.graph.Configuration()
	if configuration == nil {
		var err error
		configuration, err = a.child(a.graph.Root(), entities.ContentTypeContainer,
			a.graph.Root().DomainConfig().ConfigurationKey)
		if err != nil {
			return err
		}
	}

	// parents may be declared after their children
	pending := append([]ContentTypeSeed(nil), seeds...)
	for len(pending) > 0 {
		var deferred []ContentTypeSeed
		for _, ct := range pending {
			parent := configuration
			if ct.Parent != "" {
				parent = findContentType(configuration, ct.Parent)
				if parent == nil {
					deferred = append(deferred, ct)
					continue
				}
			}
			if err := a.contentType(configuration, parent, ct); err != nil {
				return err
			}
		}
		if len(deferred) == len(pending) {
			return pkgerrors.NewSchemaNotFoundError(deferred[0].Parent, deferred[0].Name)
		}
		pending = deferred
	}
	return nil
}

func (a *seedApplier) contentType(configuration, parent *entities.Topic, ct ContentTypeSeed) error {
	node := findContentType(configuration, ct.Name)
	if node == nil {
		var err error
		node, err = a.child(parent, entities.ContentTypeContentType, ct.Name)
		if err != nil {
			return err
		}
	}

	for _, attr := range ct.Attributes {
		descriptor, err := a.child(node, entities.ContentTypeAttributeDescriptor, attr.Key)
		if err != nil {
			return err
		}
		values := map[string]string{
			RequiredAttribute:    "",
			DescriptionAttribute: attr.Description,
			DefaultAttribute:     attr.Default,
		}
		if attr.Required {
			values[RequiredAttribute] = "true"
		}
		if attr.Inherited != nil {
			values[entities.InheritedAttribute] = strconv.FormatBool(*attr.Inherited)
		}
		for key, value := range values {
			if err := descriptor.SetAttribute(key, value); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *seedApplier) topic(parent *entities.Topic, ts TopicSeed, linked *[]linkedSeed) error {
	t, err := a.child(parent, ts.ContentType, ts.Key)
	if err != nil {
		return err
	}
	for key, value := range ts.Attributes {
		if strings.EqualFold(key, entities.KeyAttribute) {
			continue
		}
		if err := t.SetAttribute(key, value); err != nil {
			return err
		}
	}
	*linked = append(*linked, linkedSeed{topic: t, seed: ts})
	for _, child := range ts.Children {
		if err := a.topic(t, child, linked); err != nil {
			return err
		}
	}
	return nil
}

func (a *seedApplier) link(t *entities.Topic, ts TopicSeed) error {
	if ts.Base != "" {
		base, err := a.graph.FindByPath(ts.Base)
		if err != nil {
			return err
		}
		if err := t.SetBase(base); err != nil {
			return err
		}
	}
	for key, paths := range ts.Relationships {
		targets := make([]*entities.Topic, 0, len(paths))
		for _, path := range paths {
			target, err := a.graph.FindByPath(path)
			if err != nil {
				return err
			}
			targets = append(targets, target)
		}
		if err := t.SetRelationship(key, targets...); err != nil {
			return err
		}
	}
	for key, path := range ts.References {
		target, err := a.graph.FindByPath(path)
		if err != nil {
			return err
		}
		if err := t.SetReference(key, target); err != nil {
			return err
		}
	}
	return nil
}

func findContentType(configuration *entities.Topic, name string) *entities.Topic {
	for _, t := range configuration.Subtree() {
		if isContentType(t) && strings.EqualFold(t.Key(), name) {
			return t
		}
	}
	return nil
}
