package aggregates

import (
	"fmt"
	"strings"

	"topicgraph/domain/config"
	"topicgraph/domain/core/entities"
	"topicgraph/domain/core/valueobjects"
	pkgerrors "topicgraph/pkg/errors"
)

// TopicGraph is the aggregate root for the content graph. The tree hangs off
// a single root topic; relationships, references and base links may point
// anywhere inside it. Persisted topics are indexed by identity.
type TopicGraph struct {
	root   *entities.Topic
	index  map[valueobjects.TopicID]*entities.Topic
	config *config.DomainConfig
}

// Dependency is an edge from a topic outside some subtree into it
type Dependency struct {
	Dependent *entities.Topic
	Target    *entities.Topic
	Kind      entities.AssociationKind
	Key       string
}

// NewTopicGraph creates a graph around root and indexes every persisted topic in it
func NewTopicGraph(root *entities.Topic, cfg *config.DomainConfig) (*TopicGraph, error) {
	if root == nil {
		return nil, pkgerrors.NewInvalidArgumentError("root", "graph root cannot be nil")
	}
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	g := &TopicGraph{
		root:   root,
		index:  make(map[valueobjects.TopicID]*entities.Topic),
		config: cfg,
	}
	for _, t := range root.Subtree() {
		g.Index(t)
	}
	return g, nil
}

// Root returns the root topic
func (g *TopicGraph) Root() *entities.Topic {
	return g.root
}

// Configuration returns the topic holding the schema, if present
func (g *TopicGraph) Configuration() *entities.Topic {
	return g.root.ChildByKey(g.config.ConfigurationKey)
}

// Index registers a persisted topic for lookup by identity
func (g *TopicGraph) Index(t *entities.Topic) {
	if t == nil || t.IsNew() {
		return
	}
	g.index[t.ID()] = t
}

// Unindex forgets a topic
func (g *TopicGraph) Unindex(t *entities.Topic) {
	if t == nil || t.IsNew() {
		return
	}
	if existing, ok := g.index[t.ID()]; ok && existing == t {
		delete(g.index, t.ID())
	}
}

// Find returns the persisted topic with id
func (g *TopicGraph) Find(id valueobjects.TopicID) (*entities.Topic, bool) {
	t, ok := g.index[id]
	return t, ok
}

// Size returns the number of indexed topics
func (g *TopicGraph) Size() int {
	return len(g.index)
}

// FindByPath resolves a separator-joined key path. The root's own key is
// optional as the first segment.
func (g *TopicGraph) FindByPath(path string) (*entities.Topic, error) {
	sep := g.config.PathSeparator
	segments := strings.Split(strings.Trim(path, sep), sep)
	if len(segments) == 0 || (len(segments) == 1 && segments[0] == "") {
		return g.root, nil
	}
	if strings.EqualFold(segments[0], g.root.Key()) {
		segments = segments[1:]
	}

	current := g.root
	for _, segment := range segments {
		next := current.ChildByKey(segment)
		if next == nil {
			return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("topic %q", path)).
				WithDetail("missing", segment)
		}
		current = next
	}
	return current, nil
}

// Contains reports whether t is attached to this graph's tree
func (g *TopicGraph) Contains(t *entities.Topic) bool {
	return t == g.root || g.root.IsAncestorOf(t)
}

// Walk visits every topic in the tree in pre-order until fn returns false
func (g *TopicGraph) Walk(fn func(*entities.Topic) bool) {
	for _, t := range g.root.Subtree() {
		if !fn(t) {
			return
		}
	}
}

// Dependents lists edges from topics outside the subtree rooted at top into it.
// Only base links are returned unless includeAssociations is set.
func (g *TopicGraph) Dependents(top *entities.Topic, includeAssociations bool) []Dependency {
	inside := SubtreeSet(top)
	var out []Dependency
	g.Walk(func(t *entities.Topic) bool {
		if _, ok := inside[t]; ok {
			return true
		}
		for _, a := range t.Associations() {
			if _, ok := inside[a.Target]; !ok {
				continue
			}
			if a.Kind != entities.AssociationBase && !includeAssociations {
				continue
			}
			out = append(out, Dependency{Dependent: t, Target: a.Target, Kind: a.Kind, Key: a.Key})
		}
		return true
	})
	return out
}

// SubtreeSet returns top and its descendants as a set
func SubtreeSet(top *entities.Topic) map[*entities.Topic]struct{} {
	set := make(map[*entities.Topic]struct{})
	for _, t := range top.Subtree() {
		set[t] = struct{}{}
	}
	return set
}
