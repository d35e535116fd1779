package events

import (
	"time"

	"topicgraph/domain/core/valueobjects"
)

// Event types
const (
	TypeTopicLoaded  = "topic.loaded"
	TypeTopicSaved   = "topic.saved"
	TypeTopicDeleted = "topic.deleted"
	TypeTopicMoved   = "topic.moved"
	TypeTopicRenamed = "topic.renamed"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

func newBase(id valueobjects.TopicID, eventType string, timestamp time.Time) BaseEvent {
	return BaseEvent{
		AggregateID: id.String(),
		EventType:   eventType,
		Timestamp:   timestamp,
		Version:     1,
	}
}

// TopicLoaded is raised when a topic is hydrated from storage
type TopicLoaded struct {
	BaseEvent
	TopicID valueobjects.TopicID `json:"topic_id"`
	Path    string               `json:"path"`
}

// NewTopicLoaded creates a TopicLoaded event
func NewTopicLoaded(id valueobjects.TopicID, path string, timestamp time.Time) TopicLoaded {
	return TopicLoaded{
		BaseEvent: newBase(id, TypeTopicLoaded, timestamp),
		TopicID:   id,
		Path:      path,
	}
}

// TopicSaved is raised when a topic was persisted
type TopicSaved struct {
	BaseEvent
	TopicID     valueobjects.TopicID `json:"topic_id"`
	ContentType string               `json:"content_type"`
	Path        string               `json:"path"`
	Created     bool                 `json:"created"`
}

// NewTopicSaved creates a TopicSaved event
func NewTopicSaved(id valueobjects.TopicID, contentType, path string, created bool, timestamp time.Time) TopicSaved {
	return TopicSaved{
		BaseEvent:   newBase(id, TypeTopicSaved, timestamp),
		TopicID:     id,
		ContentType: contentType,
		Path:        path,
		Created:     created,
	}
}

// TopicDeleted is raised when a topic was removed from the graph
type TopicDeleted struct {
	BaseEvent
	TopicID     valueobjects.TopicID `json:"topic_id"`
	ContentType string               `json:"content_type"`
	Path        string               `json:"path"`
}

// NewTopicDeleted creates a TopicDeleted event
func NewTopicDeleted(id valueobjects.TopicID, contentType, path string, timestamp time.Time) TopicDeleted {
	return TopicDeleted{
		BaseEvent:   newBase(id, TypeTopicDeleted, timestamp),
		TopicID:     id,
		ContentType: contentType,
		Path:        path,
	}
}

// TopicMoved is raised when a topic changed parent or position
type TopicMoved struct {
	BaseEvent
	TopicID     valueobjects.TopicID `json:"topic_id"`
	OldParentID valueobjects.TopicID `json:"old_parent_id"`
	NewParentID valueobjects.TopicID `json:"new_parent_id"`
	SortOrder   int                  `json:"sort_order"`
}

// NewTopicMoved creates a TopicMoved event
func NewTopicMoved(id, oldParent, newParent valueobjects.TopicID, sortOrder int, timestamp time.Time) TopicMoved {
	return TopicMoved{
		BaseEvent:   newBase(id, TypeTopicMoved, timestamp),
		TopicID:     id,
		OldParentID: oldParent,
		NewParentID: newParent,
		SortOrder:   sortOrder,
	}
}

// TopicRenamed is raised when a topic's key changed
type TopicRenamed struct {
	BaseEvent
	TopicID valueobjects.TopicID `json:"topic_id"`
	OldKey  string               `json:"old_key"`
	NewKey  string               `json:"new_key"`
}

// NewTopicRenamed creates a TopicRenamed event
func NewTopicRenamed(id valueobjects.TopicID, oldKey, newKey string, timestamp time.Time) TopicRenamed {
	return TopicRenamed{
		BaseEvent: newBase(id, TypeTopicRenamed, timestamp),
		TopicID:   id,
		OldKey:    oldKey,
		NewKey:    newKey,
	}
}
