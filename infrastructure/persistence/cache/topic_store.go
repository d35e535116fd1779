package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"topicgraph/application/ports"
)

// TopicStore is a read-through decorator. Current records are cached until
// the next write touching them; snapshots never change, so they are cached
// for the full TTL. Concurrent LoadAll calls share one backend read.
type TopicStore struct {
	next   ports.TopicStore
	cache  ports.Cache
	ttl    int
	flight singleflight.Group
	logger *zap.Logger
}

// NewTopicStore wraps next. ttl is in seconds.
func NewTopicStore(next ports.TopicStore, cache ports.Cache, ttl int, logger *zap.Logger) *TopicStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TopicStore{next: next, cache: cache, ttl: ttl, logger: logger}
}

func currentKey(id string) string {
	return "topic:" + id
}

func versionKey(id string, version time.Time) string {
	return fmt.Sprintf("version:%s:%d", id, version.UnixNano())
}

// LoadAll reads through to the backend, collapsing concurrent callers
func (s *TopicStore) LoadAll(ctx context.Context) ([]ports.TopicRecord, error) {
	v, err, shared := s.flight.Do("all", func() (interface{}, error) {
		return s.next.LoadAll(ctx)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("Shared topic load with a concurrent caller")
	}
	records := v.([]ports.TopicRecord)
	out := make([]ports.TopicRecord, len(records))
	for i, record := range records {
		out[i] = record.Clone()
	}
	return out, nil
}

// Load returns the cached current record or reads it through
func (s *TopicStore) Load(ctx context.Context, id string) (*ports.TopicRecord, error) {
	return s.readThrough(ctx, currentKey(id), func() (*ports.TopicRecord, error) {
		return s.next.Load(ctx, id)
	})
}

// LoadVersion returns the cached snapshot or reads it through
func (s *TopicStore) LoadVersion(ctx context.Context, id string, version time.Time) (*ports.TopicRecord, error) {
	return s.readThrough(ctx, versionKey(id, version), func() (*ports.TopicRecord, error) {
		return s.next.LoadVersion(ctx, id, version)
	})
}

func (s *TopicStore) readThrough(ctx context.Context, key string, load func() (*ports.TopicRecord, error)) (*ports.TopicRecord, error) {
	if v, ok := s.cache.Get(ctx, key); ok {
		if record, ok := v.(ports.TopicRecord); ok {
			out := record.Clone()
			return &out, nil
		}
	}

	record, err := load()
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, record.Clone(), s.ttl); err != nil {
		s.logger.Warn("Failed to cache topic record", zap.String("key", key), zap.Error(err))
	}
	return record, nil
}

// Save writes through and drops the cached current record
func (s *TopicStore) Save(ctx context.Context, record ports.TopicRecord) (string, error) {
	id, err := s.next.Save(ctx, record)
	if err != nil {
		return "", err
	}
	s.evict(ctx, currentKey(id))
	return id, nil
}

// Delete writes through and clears the cache, since the backend also
// rewrites records that pointed at the deleted topics
func (s *TopicStore) Delete(ctx context.Context, ids []string) error {
	if err := s.next.Delete(ctx, ids); err != nil {
		return err
	}
	if err := s.cache.Clear(ctx); err != nil {
		s.logger.Warn("Failed to clear topic cache", zap.Error(err))
	}
	return nil
}

func (s *TopicStore) evict(ctx context.Context, key string) {
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn("Failed to evict topic record", zap.String("key", key), zap.Error(err))
	}
}
