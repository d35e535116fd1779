// Package memory provides an in-process TopicStore for tests and local runs
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"topicgraph/application/ports"
	pkgerrors "topicgraph/pkg/errors"
)

// TopicStore keeps current records and every saved snapshot in memory
type TopicStore struct {
	mu       sync.RWMutex
	current  map[string]ports.TopicRecord
	versions map[string]map[int64]ports.TopicRecord
	logger   *zap.Logger
}

// NewTopicStore creates an empty store
func NewTopicStore(logger *zap.Logger) *TopicStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TopicStore{
		current:  make(map[string]ports.TopicRecord),
		versions: make(map[string]map[int64]ports.TopicRecord),
		logger:   logger,
	}
}

// LoadAll returns every current record ordered by identity
func (s *TopicStore) LoadAll(ctx context.Context) ([]ports.TopicRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ports.TopicRecord, 0, len(s.current))
	for _, record := range s.current {
		out = append(out, record.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Load returns the current record of id
func (s *TopicStore) Load(ctx context.Context, id string) (*ports.TopicRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.current[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("topic %s", id))
	}
	out := record.Clone()
	return &out, nil
}

// LoadVersion returns the snapshot of id saved at version
func (s *TopicStore) LoadVersion(ctx context.Context, id string, version time.Time) (*ports.TopicRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.versions[id][version.UnixNano()]
	if !ok {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("topic %s version %s", id, version.Format(time.RFC3339Nano)))
	}
	out := record.Clone()
	return &out, nil
}

// Save writes record, assigning an identity when it has none
func (s *TopicStore) Save(ctx context.Context, record ports.TopicRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.IsNew() {
		record.ID = uuid.New().String()
	}
	var stored *ports.TopicRecord
	if existing, ok := s.current[record.ID]; ok {
		stored = &existing
	}
	merged := record.Clone().MergePartial(stored)

	s.current[record.ID] = merged
	if s.versions[record.ID] == nil {
		s.versions[record.ID] = make(map[int64]ports.TopicRecord)
	}
	s.versions[record.ID][merged.Version.UnixNano()] = merged.Clone()

	s.logger.Debug("Saved topic record",
		zap.String("topicID", record.ID),
		zap.Bool("partial", record.Partial))
	return record.ID, nil
}

// Delete removes ids with their snapshots and strips associations to them
func (s *TopicStore) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doomed := make(map[string]bool, len(ids))
	for _, id := range ids {
		doomed[id] = true
		delete(s.current, id)
		delete(s.versions, id)
	}
	for id, record := range s.current {
		if cleaned, changed := record.WithoutTargets(doomed); changed {
			s.current[id] = cleaned
		}
	}
	return nil
}

// Len returns the number of current records
func (s *TopicStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.current)
}
