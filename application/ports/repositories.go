package ports

import (
	"context"
	"time"

	"topicgraph/domain/events"
)

// TopicRecord is the storage shape of one topic. Associations are stored by
// target identity; unassigned targets never reach storage.
type TopicRecord struct {
	ID            string              `json:"id" dynamodbav:"TopicID"`
	ContentType   string              `json:"content_type" dynamodbav:"ContentType"`
	ParentID      string              `json:"parent_id,omitempty" dynamodbav:"ParentID,omitempty"`
	BaseID        string              `json:"base_id,omitempty" dynamodbav:"BaseID,omitempty"`
	SortOrder     int                 `json:"sort_order" dynamodbav:"SortOrder"`
	Attributes    map[string]string   `json:"attributes,omitempty" dynamodbav:"Attributes,omitempty"`
	Relationships map[string][]string `json:"relationships,omitempty" dynamodbav:"Relationships,omitempty"`
	References    map[string]string   `json:"references,omitempty" dynamodbav:"References,omitempty"`
	// Versions is the save history, most recent first
	Versions []time.Time `json:"versions,omitempty" dynamodbav:"Versions,omitempty"`
	// Version is the timestamp of the save that produced this record
	Version  time.Time `json:"version" dynamodbav:"Version"`
	Checksum string    `json:"checksum,omitempty" dynamodbav:"Checksum,omitempty"`

	// Partial marks an attributes-only write: the store keeps whatever
	// base, relationships and references it already holds for the topic.
	Partial bool `json:"-" dynamodbav:"-"`
}

// IsNew reports whether the record has no identity yet
func (r TopicRecord) IsNew() bool {
	return r.ID == ""
}

// MergePartial overlays an attributes-only write on the stored record
func (r TopicRecord) MergePartial(stored *TopicRecord) TopicRecord {
	if !r.Partial || stored == nil {
		r.Partial = false
		return r
	}
	merged := r
	merged.BaseID = stored.BaseID
	merged.Relationships = stored.Relationships
	merged.References = stored.References
	merged.Partial = false
	return merged
}

// TopicStore is the durable storage collaborator. Save assigns an identity
// to a record without one and returns it. Every save also keeps a snapshot
// retrievable through LoadVersion.
type TopicStore interface {
	// LoadAll returns the current record of every topic
	LoadAll(ctx context.Context) ([]TopicRecord, error)

	// Load returns the current record of one topic
	Load(ctx context.Context, id string) (*TopicRecord, error)

	// LoadVersion returns the snapshot saved at the given version timestamp
	LoadVersion(ctx context.Context, id string, version time.Time) (*TopicRecord, error)

	// Save writes a record, merging partial writes with the stored record
	Save(ctx context.Context, record TopicRecord) (string, error)

	// Delete removes topics and their snapshots
	Delete(ctx context.Context, ids []string) error
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// EventBus defines the interface for publishing domain events
type EventBus interface {
	EventPublisher

	// Subscribe registers a handler for an event type; "*" receives everything
	Subscribe(eventType string, handler EventHandler) error
}

// EventHandler defines the interface for handling domain events
type EventHandler interface {
	// Handle processes an event
	Handle(ctx context.Context, event events.DomainEvent) error

	// CanHandle checks if this handler can process the event
	CanHandle(eventType string) bool
}

// EventHandlerFunc adapts a function to EventHandler for every event type
type EventHandlerFunc func(ctx context.Context, event events.DomainEvent) error

// Handle calls f
func (f EventHandlerFunc) Handle(ctx context.Context, event events.DomainEvent) error {
	return f(ctx, event)
}

// CanHandle accepts every event type
func (f EventHandlerFunc) CanHandle(string) bool { return true }

// Cache defines the interface for caching
type Cache interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set stores a value in cache with TTL in seconds
	Set(ctx context.Context, key string, value interface{}, ttl int) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// Clear removes all values from cache
	Clear(ctx context.Context) error
}

// MetricsRecorder receives operation outcomes for observability backends
type MetricsRecorder interface {
	RecordSave(topics, unresolved int, duration time.Duration, err error)
	RecordDelete(topics int, duration time.Duration, err error)
	RecordLoad(topics int, duration time.Duration, err error)
}

// NoopMetrics discards everything
type NoopMetrics struct{}

func (NoopMetrics) RecordSave(int, int, time.Duration, error) {}
func (NoopMetrics) RecordDelete(int, time.Duration, error)    {}
func (NoopMetrics) RecordLoad(int, time.Duration, error)      {}

// WithoutTargets drops every relationship member and reference pointing at
// one of ids. Returns the cleaned record and whether anything changed. The
// base link is left alone; deletion integrity forbids dangling base links.
func (r TopicRecord) WithoutTargets(ids map[string]bool) (TopicRecord, bool) {
	changed := false

	relationships := make(map[string][]string, len(r.Relationships))
	for key, targets := range r.Relationships {
		kept := make([]string, 0, len(targets))
		for _, id := range targets {
			if ids[id] {
				changed = true
				continue
			}
			kept = append(kept, id)
		}
		if len(kept) > 0 {
			relationships[key] = kept
		}
	}

	references := make(map[string]string, len(r.References))
	for key, id := range r.References {
		if ids[id] {
			changed = true
			continue
		}
		references[key] = id
	}

	if !changed {
		return r, false
	}
	r.Relationships = relationships
	r.References = references
	return r, true
}

// Clone returns a copy sharing no maps or slices with r
func (r TopicRecord) Clone() TopicRecord {
	out := r
	if r.Attributes != nil {
		out.Attributes = make(map[string]string, len(r.Attributes))
		for k, v := range r.Attributes {
			out.Attributes[k] = v
		}
	}
	if r.Relationships != nil {
		out.Relationships = make(map[string][]string, len(r.Relationships))
		for k, v := range r.Relationships {
			out.Relationships[k] = append([]string(nil), v...)
		}
	}
	if r.References != nil {
		out.References = make(map[string]string, len(r.References))
		for k, v := range r.References {
			out.References[k] = v
		}
	}
	out.Versions = append([]time.Time(nil), r.Versions...)
	return out
}
