package schema

import (
	"strings"

	"go.uber.org/zap"

	"topicgraph/domain/core/aggregates"
	"topicgraph/domain/core/entities"
	pkgerrors "topicgraph/pkg/errors"
)

// Registry resolves content-type descriptors from the configuration subtree
// of a graph and caches them per content type until invalidated.
type Registry struct {
	graph  *aggregates.TopicGraph
	cache  map[string]*ContentTypeDescriptor
	logger *zap.Logger
}

// NewRegistry creates a registry reading schema from graph
func NewRegistry(graph *aggregates.TopicGraph, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		graph:  graph,
		cache:  make(map[string]*ContentTypeDescriptor),
		logger: logger,
	}
}

// Describe returns the descriptor set of contentType
func (r *Registry) Describe(contentType string) (*ContentTypeDescriptor, error) {
	k := strings.ToLower(contentType)
	if d, ok := r.cache[k]; ok {
		return d, nil
	}

	node := r.contentTypeTopic(contentType)
	if node == nil {
		return nil, pkgerrors.NewSchemaNotFoundError(contentType, "")
	}

	d := &ContentTypeDescriptor{
		Name:       node.Key(),
		Topic:      node,
		attributes: make(map[string]AttributeDescriptor),
	}
	if parent := node.Parent(); parent != nil && isContentType(parent) {
		d.Parent = parent.Key()
	}

	// own descriptors first, then inherited ones from schema ancestors
	for _, a := range attributeDescriptors(node) {
		d.attributes[strings.ToLower(a.Key())] = describeAttribute(a, node.Key())
	}
	for ancestor := node.Parent(); ancestor != nil && isContentType(ancestor); ancestor = ancestor.Parent() {
		for _, a := range attributeDescriptors(ancestor) {
			desc := describeAttribute(a, ancestor.Key())
			k := strings.ToLower(desc.Key)
			if _, shadowed := d.attributes[k]; shadowed || !desc.Inherited {
				continue
			}
			d.attributes[k] = desc
		}
	}

	r.cache[k] = d
	r.logger.Debug("Cached content type descriptor",
		zap.String("contentType", d.Name),
		zap.Int("attributes", len(d.attributes)))
	return d, nil
}

// DescriptorFor resolves the descriptor of t's content type, naming t on failure
func (r *Registry) DescriptorFor(t *entities.Topic) (*ContentTypeDescriptor, error) {
	d, err := r.Describe(t.ContentType())
	if err != nil {
		if pkgerrors.IsSchemaNotFound(err) {
			return nil, pkgerrors.NewSchemaNotFoundError(t.ContentType(), t.String())
		}
		return nil, err
	}
	return d, nil
}

// Invalidate drops the cached descriptor of contentType and of every content
// type below it in the schema tree. Returns the invalidated names.
func (r *Registry) Invalidate(contentType string) []string {
	node := r.contentTypeTopic(contentType)
	if node == nil {
		delete(r.cache, strings.ToLower(contentType))
		return []string{contentType}
	}

	names := r.invalidateSubtree(node)
	r.logger.Debug("Invalidated content type descriptors", zap.Strings("contentTypes", names))
	return names
}

// InvalidateTopic invalidates whatever content type a schema topic affects:
// a ContentType topic affects itself, an AttributeDescriptor affects its
// owning content type. Non-schema topics are ignored.
func (r *Registry) InvalidateTopic(t *entities.Topic) []string {
	switch {
	case isContentType(t):
		// the key may have changed since the descriptor was cached
		if t.IsRenamed() && t.OriginalKey() != "" {
			delete(r.cache, strings.ToLower(t.OriginalKey()))
		}
		return r.invalidateSubtree(t)
	case isAttributeDescriptor(t):
		if owner := t.Parent(); owner != nil && isContentType(owner) {
			return r.invalidateSubtree(owner)
		}
	}
	return nil
}

// InvalidateAll empties the cache
func (r *Registry) InvalidateAll() {
	r.cache = make(map[string]*ContentTypeDescriptor)
}

// Cached reports whether contentType currently has a cached descriptor
func (r *Registry) Cached(contentType string) bool {
	_, ok := r.cache[strings.ToLower(contentType)]
	return ok
}

func (r *Registry) invalidateSubtree(node *entities.Topic) []string {
	var names []string
	for _, t := range node.Subtree() {
		if isContentType(t) {
			delete(r.cache, strings.ToLower(t.Key()))
			names = append(names, t.Key())
		}
	}
	return names
}

// contentTypeTopic searches the configuration subtree for a ContentType topic keyed name
func (r *Registry) contentTypeTopic(name string) *entities.Topic {
	if r.graph == nil {
		return nil
	}
	configuration := r.graph.Configuration()
	if configuration == nil {
		return nil
	}
	return findContentType(configuration, name)
}

func attributeDescriptors(node *entities.Topic) []*entities.Topic {
	var out []*entities.Topic
	for _, child := range node.Children() {
		if isAttributeDescriptor(child) {
			out = append(out, child)
		}
	}
	return out
}

func isContentType(t *entities.Topic) bool {
	return strings.EqualFold(t.ContentType(), entities.ContentTypeContentType)
}

func isAttributeDescriptor(t *entities.Topic) bool {
	return strings.EqualFold(t.ContentType(), entities.ContentTypeAttributeDescriptor)
}
