package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"topicgraph/application/ports"
	"topicgraph/domain/config"
	"topicgraph/domain/core/aggregates"
	"topicgraph/domain/core/entities"
	"topicgraph/domain/core/valueobjects"
	"topicgraph/domain/events"
	"topicgraph/domain/schema"
	"topicgraph/domain/versioning"
	pkgerrors "topicgraph/pkg/errors"
)

// RootKey is the key of the root topic created for an empty store
const RootKey = "root"

// TopicRepository is the entry point for loading and changing the topic
// graph. Open loads the whole graph; every other operation works on it.
type TopicRepository struct {
	store     ports.TopicStore
	publisher ports.EventPublisher
	config    *config.DomainConfig
	logger    *zap.Logger
	opts      []Option
	settings  options

	mapper      *recordMapper
	graph       *aggregates.TopicGraph
	schemas     *schema.Registry
	coordinator *Coordinator
}

// NewTopicRepository creates a repository over store. publisher may be nil.
func NewTopicRepository(
	store ports.TopicStore,
	publisher ports.EventPublisher,
	cfg *config.DomainConfig,
	logger *zap.Logger,
	opts ...Option,
) *TopicRepository {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	settings := buildOptions(opts)
	return &TopicRepository{
		store:     store,
		publisher: publisher,
		config:    cfg,
		logger:    logger,
		opts:      opts,
		settings:  settings,
		mapper: &recordMapper{
			capabilities: settings.capabilities,
			config:       cfg,
			clock:        settings.clock,
			logger:       logger,
		},
	}
}

// Open hydrates the graph from storage. An empty store is bootstrapped with
// a root topic and the core schema.
func (r *TopicRepository) Open(ctx context.Context) (err error) {
	start := r.settings.clock()
	defer func() {
		size := 0
		if r.graph != nil {
			size = r.graph.Size()
		}
		r.settings.metrics.RecordLoad(size, r.settings.clock().Sub(start), err)
	}()

	records, err := r.store.LoadAll(ctx)
	if err != nil {
		if pkgerrors.IsAppError(err) {
			return err
		}
		return pkgerrors.NewDatabaseError("load topics", err)
	}

	if len(records) == 0 {
		return r.bootstrap(ctx)
	}

	root, _, err := r.mapper.hydrate(records)
	if err != nil {
		return err
	}
	if root == nil {
		return pkgerrors.NewInternalError("stored graph has no root topic").
			WithDetail("records", len(records))
	}
	if err := r.attach(root); err != nil {
		return err
	}
	r.logger.Info("Opened topic graph",
		zap.Int("topics", r.graph.Size()),
		zap.String("root", root.ID().String()))
	return nil
}

func (r *TopicRepository) bootstrap(ctx context.Context) error {
	root, err := r.newTopic(entities.ContentTypeContainer, RootKey)
	if err != nil {
		return err
	}
	if err := r.attach(root); err != nil {
		return err
	}
	r.logger.Info("Bootstrapping empty topic store")
	return r.ApplySeed(ctx, schema.CoreSeed())
}

func (r *TopicRepository) attach(root *entities.Topic) error {
	graph, err := aggregates.NewTopicGraph(root, r.config)
	if err != nil {
		return err
	}
	r.graph = graph
	r.schemas = schema.NewRegistry(graph, r.logger)
	r.coordinator = NewCoordinator(r.store, graph, r.schemas, r.publisher, r.config, r.logger, r.opts...)
	return nil
}

func (r *TopicRepository) ensureOpen() error {
	if r.graph == nil {
		return pkgerrors.NewInternalError("topic repository is not open")
	}
	return nil
}

// Graph returns the loaded graph, nil before Open
func (r *TopicRepository) Graph() *aggregates.TopicGraph {
	return r.graph
}

// Schemas returns the descriptor registry of the loaded graph
func (r *TopicRepository) Schemas() *schema.Registry {
	return r.schemas
}

// ApplySeed merges a seed document into the graph and saves the result
func (r *TopicRepository) ApplySeed(ctx context.Context, seed *schema.Seed) error {
	if err := r.ensureOpen(); err != nil {
		return err
	}
	created, err := seed.Apply(r.graph, r.newTopic)
	if err != nil {
		return err
	}
	r.logger.Debug("Applied seed", zap.Int("created", len(created)))
	return r.coordinator.Save(ctx, r.graph.Root(), true)
}

// NewTopic creates an unsaved topic, appended under parent when given
func (r *TopicRepository) NewTopic(contentType, key string, parent *entities.Topic) (*entities.Topic, error) {
	t, err := r.newTopic(contentType, key)
	if err != nil {
		return nil, err
	}
	if parent != nil {
		if err := parent.AddChild(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (r *TopicRepository) newTopic(contentType, key string) (*entities.Topic, error) {
	return entities.NewTopic(contentType, key,
		entities.WithCapabilities(r.settings.capabilities),
		entities.WithDomainConfig(r.config),
		entities.WithClock(r.settings.clock),
	)
}

// Load returns the topic with the given identity
func (r *TopicRepository) Load(ctx context.Context, id string) (*entities.Topic, error) {
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	topicID, err := valueobjects.NewTopicIDFromString(id)
	if err != nil {
		return nil, pkgerrors.NewInvalidArgumentError("id", err.Error())
	}
	t, ok := r.graph.Find(topicID)
	if !ok {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("topic %s", id))
	}
	r.loaded(ctx, t)
	return t, nil
}

// LoadByPath returns the topic at a key path such as "root:configuration"
func (r *TopicRepository) LoadByPath(ctx context.Context, path string) (*entities.Topic, error) {
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	t, err := r.graph.FindByPath(path)
	if err != nil {
		return nil, err
	}
	r.loaded(ctx, t)
	return t, nil
}

func (r *TopicRepository) loaded(ctx context.Context, t *entities.Topic) {
	if r.publisher == nil || t.IsNew() {
		return
	}
	event := events.NewTopicLoaded(t.ID(), t.Path(r.config.PathSeparator), r.settings.clock())
	if err := r.publisher.Publish(ctx, event); err != nil {
		r.logger.Warn("Failed to publish load event",
			zap.String("topicID", t.ID().String()),
			zap.Error(err))
	}
}

// LoadVersion returns a detached snapshot of the topic as of the newest
// version at or before at. Associations of the snapshot point into the
// current graph.
func (r *TopicRepository) LoadVersion(ctx context.Context, id string, at time.Time) (*entities.Topic, error) {
	t, err := r.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.version(ctx, t, at)
}

func (r *TopicRepository) version(ctx context.Context, t *entities.Topic, at time.Time) (*entities.Topic, error) {
	version, ok := versioning.Nearest(t.Versions(), at)
	if !ok {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("version of topic %s at %s", t, at.Format(time.RFC3339Nano))).
			WithDetail("topic", t.String())
	}
	record, err := r.store.LoadVersion(ctx, t.ID().String(), version)
	if err != nil {
		if pkgerrors.IsAppError(err) {
			return nil, err
		}
		return nil, pkgerrors.NewDatabaseError("load topic version", err).WithDetail("topic", t.String())
	}

	current := make(map[string]*entities.Topic, r.graph.Size())
	r.graph.Walk(func(n *entities.Topic) bool {
		if !n.IsNew() {
			current[n.ID().String()] = n
		}
		return true
	})
	return r.mapper.snapshot(*record, current)
}

// Save persists t, and its descendants when recursive
func (r *TopicRepository) Save(ctx context.Context, t *entities.Topic, recursive bool) error {
	if err := r.ensureOpen(); err != nil {
		return err
	}
	return r.coordinator.Save(ctx, t, recursive)
}

// Move relocates t under target, after sibling or first when sibling is nil,
// and saves every topic whose position changed
func (r *TopicRepository) Move(ctx context.Context, t, target, sibling *entities.Topic) error {
	if err := r.ensureOpen(); err != nil {
		return err
	}
	if t == r.graph.Root() {
		return pkgerrors.NewInvalidArgumentError("topic", "the root topic cannot be moved")
	}
	oldParent := t.Parent()

	r.invalidateSchema(t)
	if err := t.MoveTo(target, sibling); err != nil {
		return err
	}
	r.invalidateSchema(t)

	moved := []*entities.Topic{t}
	for _, parent := range []*entities.Topic{target, oldParent} {
		if parent == nil {
			continue
		}
		for _, child := range parent.Children() {
			if child.IsPositionChanged() {
				moved = append(moved, child)
			}
		}
	}
	return r.coordinator.SaveAll(ctx, moved, false)
}

func (r *TopicRepository) invalidateSchema(t *entities.Topic) {
	for _, n := range t.Subtree() {
		if n.IsSchemaNode() {
			r.schemas.InvalidateTopic(n)
		}
	}
}

// Delete removes t, and its subtree when recursive
func (r *TopicRepository) Delete(ctx context.Context, t *entities.Topic, recursive bool) error {
	if err := r.ensureOpen(); err != nil {
		return err
	}
	return r.coordinator.Delete(ctx, t, recursive)
}

// Rollback restores the attributes t had at the given time and saves them as
// a new version. The key is kept; history is never rewritten.
func (r *TopicRepository) Rollback(ctx context.Context, t *entities.Topic, at time.Time) error {
	if err := r.ensureOpen(); err != nil {
		return err
	}
	if t.IsNew() {
		return pkgerrors.NewInvalidArgumentError("topic", "an unsaved topic has no history").
			WithDetail("topic", t.String())
	}
	snapshot, err := r.version(ctx, t, at)
	if err != nil {
		return err
	}

	diff := versioning.Diff(t.Attributes().Snapshot(), snapshot.Attributes().Snapshot(), entities.KeyAttribute)
	if diff.IsEmpty() {
		r.logger.Debug("Rollback target matches current attributes", zap.String("topicID", t.ID().String()))
		return nil
	}

	keys := make([]string, 0, len(diff.Changed))
	for key := range diff.Changed {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := t.SetAttribute(key, diff.Changed[key]); err != nil {
			return err
		}
	}
	for _, key := range diff.Removed {
		t.Attributes().Remove(key)
	}

	r.logger.Info("Rolling back topic",
		zap.String("topicID", t.ID().String()),
		zap.Int("changed", len(diff.Changed)),
		zap.Int("removed", len(diff.Removed)))
	return r.coordinator.Save(ctx, t, false)
}
