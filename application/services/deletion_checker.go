package services

import (
	"go.uber.org/zap"

	"topicgraph/domain/core/aggregates"
	"topicgraph/domain/core/entities"
	pkgerrors "topicgraph/pkg/errors"
)

// DeletionPlan is the checked set of topics a delete removes
type DeletionPlan struct {
	Top    *entities.Topic
	Path   string
	Topics []*entities.Topic
}

// IDs returns the identities of the persisted topics in the plan
func (p *DeletionPlan) IDs() []string {
	ids := make([]string, 0, len(p.Topics))
	for _, t := range p.Topics {
		if !t.IsNew() {
			ids = append(ids, t.ID().String())
		}
	}
	return ids
}

// DeletionChecker decides whether a subtree can be removed without leaving
// dangling inheritance links, and detaches it from the graph afterwards
type DeletionChecker struct {
	logger *zap.Logger
}

// NewDeletionChecker creates a checker
func NewDeletionChecker(logger *zap.Logger) *DeletionChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeletionChecker{logger: logger}
}

// Check validates deleting t. A topic with children needs recursive. No topic
// outside the subtree may inherit from a topic inside it; relationships and
// references into the subtree are pruned instead.
func (d *DeletionChecker) Check(g *aggregates.TopicGraph, t *entities.Topic, recursive bool) (*DeletionPlan, error) {
	if t == nil {
		return nil, pkgerrors.NewInvalidArgumentError("topic", "topic cannot be nil")
	}
	if t == g.Root() {
		return nil, pkgerrors.NewInvalidArgumentError("topic", "the root topic cannot be deleted")
	}
	if !g.Contains(t) {
		return nil, pkgerrors.NewInvalidArgumentError("topic", "topic is not attached to the graph").
			WithDetail("topic", t.String())
	}
	if t.HasChildren() && !recursive {
		return nil, pkgerrors.NewHasDescendantsError(t.String(), len(t.Children()))
	}

	if deps := g.Dependents(t, false); len(deps) > 0 {
		dep := deps[0]
		d.logger.Debug("Delete blocked by inheritance dependency",
			zap.String("dependent", dep.Dependent.String()),
			zap.String("target", dep.Target.String()),
			zap.Int("dependencies", len(deps)))
		return nil, pkgerrors.NewReferentialIntegrityError(dep.Dependent.String(), dep.Target.String(),
			"topic inherits from a topic being deleted")
	}

	return &DeletionPlan{
		Top:    t,
		Path:   t.String(),
		Topics: t.Subtree(),
	}, nil
}

// Prune removes a checked plan from the graph. Edges leaving the subtree are
// dropped from the doomed topics; edges entering it are dropped from the rest
// of the graph and marked clean, since storage removes them with the delete.
// Returns the number of pruned keys.
func (d *DeletionChecker) Prune(g *aggregates.TopicGraph, plan *DeletionPlan) int {
	inside := aggregates.SubtreeSet(plan.Top)
	isInside := func(t *entities.Topic) bool {
		_, ok := inside[t]
		return ok
	}
	isOutside := func(t *entities.Topic) bool { return !isInside(t) }

	plan.Top.Detach()

	pruned := 0
	for _, t := range plan.Topics {
		pruned += len(t.PruneTargets(isOutside, false))
		g.Unindex(t)
	}
	g.Walk(func(t *entities.Topic) bool {
		if keys := t.PruneTargets(isInside, true); len(keys) > 0 {
			pruned += len(keys)
			d.logger.Debug("Pruned edges into deleted subtree",
				zap.String("topic", t.String()),
				zap.Strings("keys", keys))
		}
		return true
	})
	return pruned
}
