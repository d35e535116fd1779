package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"topicgraph/application/ports"
	"topicgraph/domain/config"
	"topicgraph/domain/core/aggregates"
	"topicgraph/domain/core/entities"
	"topicgraph/domain/core/validators"
	"topicgraph/domain/core/valueobjects"
	"topicgraph/domain/events"
	"topicgraph/domain/schema"
	"topicgraph/domain/versioning"
	"topicgraph/pkg/common"
	pkgerrors "topicgraph/pkg/errors"
)

// SaveState is the phase a save operation is in
type SaveState int

const (
	StateValidating SaveState = iota
	StatePersisting
	StateResolving
	StateCascading
	StateDone
)

func (s SaveState) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StatePersisting:
		return "persisting"
	case StateResolving:
		return "resolving"
	case StateCascading:
		return "cascading"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Coordinator persists dirty topics in two passes so that forward references
// to topics saved in the same operation resolve, and removes subtrees while
// keeping the graph consistent.
type Coordinator struct {
	store     ports.TopicStore
	graph     *aggregates.TopicGraph
	schemas   *schema.Registry
	validator *validators.TopicValidator
	checker   *DeletionChecker
	publisher ports.EventPublisher
	metrics   ports.MetricsRecorder
	mapper    *recordMapper
	config    *config.DomainConfig
	clock     func() time.Time
	logger    *zap.Logger
}

// NewCoordinator creates a coordinator bound to one loaded graph
func NewCoordinator(
	store ports.TopicStore,
	graph *aggregates.TopicGraph,
	schemas *schema.Registry,
	publisher ports.EventPublisher,
	cfg *config.DomainConfig,
	logger *zap.Logger,
	opts ...Option,
) *Coordinator {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{
		store:     store,
		graph:     graph,
		schemas:   schemas,
		validator: validators.NewTopicValidator(cfg),
		checker:   NewDeletionChecker(logger),
		publisher: publisher,
		config:    cfg,
		logger:    logger,
	}
	o := buildOptions(opts)
	c.clock = o.clock
	c.metrics = o.metrics
	c.mapper = &recordMapper{capabilities: o.capabilities, config: cfg, clock: o.clock, logger: logger}
	return c
}

// saveOperation tracks one Save invocation
type saveOperation struct {
	state      SaveState
	at         time.Time
	written    []*entities.Topic
	seen       map[*entities.Topic]bool
	created    map[*entities.Topic]bool
	unresolved []*entities.Topic
	logger     *zap.Logger
}

func (op *saveOperation) enter(state SaveState) {
	op.state = state
	op.logger.Debug("Save state changed", zap.Stringer("state", state))
}

func (op *saveOperation) wrote(t *entities.Topic) {
	if !op.seen[t] {
		op.seen[t] = true
		op.written = append(op.written, t)
	}
}

// Save persists top, and its descendants when recursive. Topics that point at
// unsaved targets are written attributes-only first and completed in a second
// pass; anything still unresolved afterwards fails with ReferentialIntegrity.
// Work already written stays written.
func (c *Coordinator) Save(ctx context.Context, top *entities.Topic, recursive bool) error {
	return c.SaveAll(ctx, []*entities.Topic{top}, recursive)
}

// SaveAll saves several topics as one operation sharing one timestamp
func (c *Coordinator) SaveAll(ctx context.Context, tops []*entities.Topic, recursive bool) (err error) {
	start := c.clock()
	op := &saveOperation{
		at:      start,
		seen:    make(map[*entities.Topic]bool),
		created: make(map[*entities.Topic]bool),
		logger:  c.logger.With(common.LogFields(ctx)...),
	}
	defer func() {
		c.metrics.RecordSave(len(op.written), len(op.unresolved), c.clock().Sub(start), err)
		if err != nil {
			op.logger.Warn("Save failed",
				zap.Stringer("state", op.state),
				zap.Int("written", len(op.written)),
				zap.Error(err))
		}
	}()

	op.enter(StateValidating)
	targets, err := c.collect(tops, recursive)
	if err != nil {
		return err
	}
	inScope := make(map[*entities.Topic]bool, len(targets))
	for _, t := range targets {
		inScope[t] = true
	}
	for _, t := range targets {
		// a record written before its parent has an identity would be stored as a root
		if p := t.Parent(); p != nil && p.IsNew() && t.IsDirty() && !inScope[p] {
			return pkgerrors.NewReferentialIntegrityError(t.String(), p.String(),
				"parent has not been saved and is not part of this save")
		}
		d, err := c.schemas.DescriptorFor(t)
		if err != nil {
			return err
		}
		if err := c.validator.Validate(t, d); err != nil {
			return err
		}
	}

	op.enter(StatePersisting)
	for _, t := range targets {
		if !t.IsDirty() {
			continue
		}
		if target := unresolvedTarget(t); target != nil {
			op.logger.Debug("Deferring associations of topic",
				zap.String("topic", t.String()),
				zap.String("target", target.String()))
			op.unresolved = append(op.unresolved, t)
			if !t.IsNew() && !t.AttributesDirty() {
				continue
			}
			if err := c.persist(ctx, op, t, false); err != nil {
				return err
			}
			continue
		}
		if err := c.persist(ctx, op, t, true); err != nil {
			return err
		}
	}

	op.enter(StateResolving)
	for _, t := range op.unresolved {
		if target := unresolvedTarget(t); target != nil {
			return pkgerrors.NewReferentialIntegrityError(t.String(), target.String(),
				"target has not been saved")
		}
		if err := c.persist(ctx, op, t, true); err != nil {
			return err
		}
	}

	op.enter(StateCascading)
	var pending []events.DomainEvent
	for _, t := range op.written {
		if t.IsSchemaNode() {
			c.schemas.InvalidateTopic(t)
		}
		if t.IsPositionChanged() && !op.created[t] {
			pending = append(pending, events.NewTopicMoved(t.ID(), parentID(t.PreviousParent()), parentID(t.Parent()), t.SortOrder(), op.at))
		}
		if t.IsRenamed() {
			pending = append(pending, events.NewTopicRenamed(t.ID(), t.OriginalKey(), t.Key(), op.at))
		}
		pending = append(pending, events.NewTopicSaved(t.ID(), t.ContentType(), t.Path(c.config.PathSeparator), op.created[t], op.at))
		t.ClearChangeMarkers()
	}
	c.publish(ctx, pending)

	op.enter(StateDone)
	op.logger.Info("Saved topics",
		zap.Int("written", len(op.written)),
		zap.Int("deferred", len(op.unresolved)))
	return nil
}

// collect expands the save targets in pre-order, dropping repeats. A target
// never precedes another target that is its ancestor.
func (c *Coordinator) collect(tops []*entities.Topic, recursive bool) ([]*entities.Topic, error) {
	seen := make(map[*entities.Topic]bool)
	var expanded []*entities.Topic
	for _, top := range tops {
		if top == nil {
			return nil, pkgerrors.NewInvalidArgumentError("topic", "topic cannot be nil")
		}
		if !c.graph.Contains(top) {
			return nil, pkgerrors.NewInvalidArgumentError("topic",
				"topic is not attached to the graph").WithDetail("topic", top.String())
		}
		list := []*entities.Topic{top}
		if recursive {
			list = top.Subtree()
		}
		for _, t := range list {
			if !seen[t] {
				seen[t] = true
				expanded = append(expanded, t)
			}
		}
	}
	return parentsFirst(expanded, seen), nil
}

func parentsFirst(targets []*entities.Topic, inScope map[*entities.Topic]bool) []*entities.Topic {
	out := make([]*entities.Topic, 0, len(targets))
	emitted := make(map[*entities.Topic]bool, len(targets))
	var emit func(t *entities.Topic)
	emit = func(t *entities.Topic) {
		if emitted[t] {
			return
		}
		emitted[t] = true
		if p := t.Parent(); p != nil && inScope[p] {
			emit(p)
		}
		out = append(out, t)
	}
	for _, t := range targets {
		emit(t)
	}
	return out
}

func (c *Coordinator) persist(ctx context.Context, op *saveOperation, t *entities.Topic, full bool) error {
	record := c.mapper.toRecord(t, !full, op.at)
	if c.config.RecordVersionOnSave {
		record.Versions, _ = versioning.Prepend(t.Versions(), op.at, c.config.MaxVersionsPerNode)
	}

	id, err := c.store.Save(ctx, record)
	if err != nil {
		if pkgerrors.IsAppError(err) {
			return err
		}
		return pkgerrors.NewDatabaseError("save topic", err).WithDetail("topic", t.String())
	}

	if t.IsNew() {
		topicID, err := valueobjects.NewTopicIDFromString(id)
		if err != nil {
			return pkgerrors.NewDatabaseError("assign topic id", err).WithDetail("topic", t.String())
		}
		if err := t.AssignID(topicID); err != nil {
			return err
		}
		op.created[t] = true
		c.graph.Index(t)
	}
	if c.config.RecordVersionOnSave {
		t.RecordVersion(op.at)
	}
	t.MarkPersisted(op.at, full)
	op.wrote(t)

	op.logger.Debug("Persisted topic",
		zap.String("topicID", t.ID().String()),
		zap.String("topic", t.String()),
		zap.Bool("full", full))
	return nil
}

// Delete removes t, and its subtree when recursive, from storage and the graph
func (c *Coordinator) Delete(ctx context.Context, t *entities.Topic, recursive bool) (err error) {
	start := c.clock()
	removed := 0
	defer func() {
		c.metrics.RecordDelete(removed, c.clock().Sub(start), err)
	}()

	plan, err := c.checker.Check(c.graph, t, recursive)
	if err != nil {
		return err
	}

	if ids := plan.IDs(); len(ids) > 0 {
		if err := c.store.Delete(ctx, ids); err != nil {
			if pkgerrors.IsAppError(err) {
				return err
			}
			return pkgerrors.NewDatabaseError("delete topics", err).WithDetail("topic", t.String())
		}
	}

	var pending []events.DomainEvent
	for _, doomed := range plan.Topics {
		if doomed.IsSchemaNode() {
			c.schemas.InvalidateTopic(doomed)
		}
		if !doomed.IsNew() {
			pending = append(pending, events.NewTopicDeleted(doomed.ID(), doomed.ContentType(), doomed.Path(c.config.PathSeparator), start))
		}
	}

	pruned := c.checker.Prune(c.graph, plan)
	removed = len(plan.Topics)
	c.publish(ctx, pending)

	c.logger.With(common.LogFields(ctx)...).Info("Deleted topics",
		zap.String("topic", plan.Path),
		zap.Int("removed", removed),
		zap.Int("prunedEdges", pruned))
	return nil
}

func (c *Coordinator) publish(ctx context.Context, pending []events.DomainEvent) {
	if c.publisher == nil || len(pending) == 0 {
		return
	}
	if err := c.publisher.PublishBatch(ctx, pending); err != nil {
		c.logger.Error("Failed to publish topic events",
			zap.Int("events", len(pending)),
			zap.Error(err))
	}
}

// unresolvedTarget returns the first parent, base or association target of t
// that has no identity yet
func unresolvedTarget(t *entities.Topic) *entities.Topic {
	if p := t.Parent(); p != nil && p.IsNew() {
		return p
	}
	for _, a := range t.Associations() {
		if a.Target.IsNew() {
			return a.Target
		}
	}
	return nil
}

func parentID(t *entities.Topic) valueobjects.TopicID {
	if t == nil {
		return valueobjects.TopicID{}
	}
	return t.ID()
}
