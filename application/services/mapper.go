package services

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"topicgraph/application/ports"
	"topicgraph/domain/config"
	"topicgraph/domain/core/entities"
	"topicgraph/domain/core/valueobjects"
	"topicgraph/domain/versioning"
	pkgerrors "topicgraph/pkg/errors"
)

// recordMapper converts between topics and storage records
type recordMapper struct {
	capabilities *entities.CapabilityRegistry
	config       *config.DomainConfig
	clock        func() time.Time
	logger       *zap.Logger
}

// toRecord snapshots t for storage. A partial record carries attributes and
// tree position only.
func (m *recordMapper) toRecord(t *entities.Topic, partial bool, at time.Time) ports.TopicRecord {
	attributes := t.Attributes().Snapshot()
	record := ports.TopicRecord{
		ID:          idString(t.ID()),
		ContentType: t.ContentType(),
		SortOrder:   t.SortOrder(),
		Attributes:  attributes,
		Versions:    t.Versions(),
		Version:     at,
		Checksum:    versioning.Checksum(attributes),
		Partial:     partial,
	}
	if parent := t.Parent(); parent != nil {
		record.ParentID = idString(parent.ID())
	}
	if partial {
		return record
	}

	if base := t.Base(); base != nil {
		record.BaseID = idString(base.ID())
	}
	record.Relationships = make(map[string][]string)
	for _, item := range t.Relationships().Items() {
		ids := make([]string, 0, item.Value().Len())
		for _, target := range item.Value().Topics() {
			ids = append(ids, idString(target.ID()))
		}
		record.Relationships[item.Key()] = ids
	}
	record.References = make(map[string]string)
	for _, item := range t.References().Items() {
		if item.Value() != nil {
			record.References[item.Key()] = idString(item.Value().ID())
		}
	}
	return record
}

// hydrate rebuilds topics from records. It returns the root and every topic by id.
// Records whose parent is missing are dropped with a warning, as are
// associations to unknown targets.
func (m *recordMapper) hydrate(records []ports.TopicRecord) (*entities.Topic, map[string]*entities.Topic, error) {
	byID := make(map[string]*entities.Topic, len(records))
	for _, rec := range records {
		t, err := m.shell(rec)
		if err != nil {
			return nil, nil, err
		}
		byID[rec.ID] = t
	}

	// link children in stored order so siblings come out sorted
	ordered := append([]ports.TopicRecord(nil), records...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].SortOrder < ordered[j].SortOrder })

	var roots []*entities.Topic
	for _, rec := range ordered {
		t := byID[rec.ID]
		if rec.ParentID == "" {
			roots = append(roots, t)
			continue
		}
		parent, ok := byID[rec.ParentID]
		if !ok {
			m.logger.Warn("Dropping topic with unknown parent",
				zap.String("topicID", rec.ID),
				zap.String("parentID", rec.ParentID))
			continue
		}
		parent.RestoreChild(t)
	}

	for _, rec := range records {
		m.link(byID[rec.ID], rec, byID)
	}

	if len(roots) == 0 {
		return nil, byID, nil
	}
	sort.SliceStable(roots, func(i, j int) bool { return rootRank(roots[i]).less(rootRank(roots[j])) })
	root := roots[0]
	for _, other := range roots {
		if other != root {
			m.logger.Warn("Ignoring additional root topic", zap.String("topicID", other.ID().String()))
		}
	}
	return root, byID, nil
}

// snapshot hydrates a historical record as a detached topic whose
// associations point into the current graph
func (m *recordMapper) snapshot(rec ports.TopicRecord, current map[string]*entities.Topic) (*entities.Topic, error) {
	t, err := m.shell(rec)
	if err != nil {
		return nil, err
	}
	m.link(t, rec, current)
	return t, nil
}

func (m *recordMapper) shell(rec ports.TopicRecord) (*entities.Topic, error) {
	id, err := valueobjects.NewTopicIDFromString(rec.ID)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("decode topic id", err).WithDetail("topicID", rec.ID)
	}
	t, err := entities.ReconstructTopic(id, rec.ContentType,
		entities.WithCapabilities(m.capabilities),
		entities.WithDomainConfig(m.config),
		entities.WithClock(m.clock),
		entities.WithSortOrder(rec.SortOrder),
		entities.WithVersions(versioning.Sorted(rec.Versions)),
	)
	if err != nil {
		return nil, err
	}
	for key, value := range rec.Attributes {
		if value == "" {
			continue
		}
		if err := t.Attributes().Insert(valueobjects.NewTrackedValue(key, value, false, rec.Version)); err != nil {
			return nil, pkgerrors.Wrapf(err, "hydrate topic %s", rec.ID)
		}
	}
	return t, nil
}

func (m *recordMapper) link(t *entities.Topic, rec ports.TopicRecord, byID map[string]*entities.Topic) {
	if rec.BaseID != "" {
		if base, ok := byID[rec.BaseID]; ok {
			t.RestoreBase(base)
		} else {
			m.logger.Warn("Dropping unknown base topic",
				zap.String("topicID", rec.ID),
				zap.String("baseID", rec.BaseID))
		}
	}

	for key, ids := range rec.Relationships {
		targets := make([]*entities.Topic, 0, len(ids))
		for _, id := range ids {
			if target, ok := byID[id]; ok {
				targets = append(targets, target)
			}
		}
		if len(targets) == 0 {
			continue
		}
		if err := t.Relationships().Insert(valueobjects.NewTrackedValue(key, entities.NewTopicSet(targets...), false, rec.Version)); err != nil {
			m.logger.Warn("Dropping stored relationship",
				zap.String("topicID", rec.ID),
				zap.String("key", key),
				zap.Error(err))
		}
	}

	for key, id := range rec.References {
		target, ok := byID[id]
		if !ok {
			continue
		}
		if err := t.References().Insert(valueobjects.NewTrackedValue(key, target, false, rec.Version)); err != nil {
			m.logger.Warn("Dropping stored reference",
				zap.String("topicID", rec.ID),
				zap.String("key", key),
				zap.Error(err))
		}
	}
}

// rootRank orders root candidates: the root container first, then any
// container, then the oldest topic by first save.
func rootRank(t *entities.Topic) rootOrder {
	rank := rootOrder{class: 2}
	switch {
	case t.ContentType() == entities.ContentTypeContainer && t.Key() == RootKey:
		rank.class = 0
	case t.ContentType() == entities.ContentTypeContainer:
		rank.class = 1
	}
	if versions := t.Versions(); len(versions) > 0 {
		rank.created = versions[len(versions)-1]
	}
	rank.id = t.ID().String()
	return rank
}

type rootOrder struct {
	class   int
	created time.Time
	id      string
}

func (o rootOrder) less(other rootOrder) bool {
	if o.class != other.class {
		return o.class < other.class
	}
	if !o.created.Equal(other.created) {
		return o.created.Before(other.created)
	}
	return o.id < other.id
}

func idString(id valueobjects.TopicID) string {
	if id.IsZero() {
		return ""
	}
	return id.String()
}
