package entities

import "topicgraph/domain/core/valueobjects"

// TopicSet is an ordered, duplicate-free set of topics. It is a value:
// With and Without return new sets.
type TopicSet struct {
	topics []*Topic
}

// NewTopicSet creates a set, dropping nils and repeats
func NewTopicSet(topics ...*Topic) TopicSet {
	set := TopicSet{topics: make([]*Topic, 0, len(topics))}
	for _, t := range topics {
		if t != nil && !set.Contains(t) {
			set.topics = append(set.topics, t)
		}
	}
	return set
}

// Topics returns the members in order
func (s TopicSet) Topics() []*Topic {
	out := make([]*Topic, len(s.topics))
	copy(out, s.topics)
	return out
}

// Len returns the member count
func (s TopicSet) Len() int {
	return len(s.topics)
}

// IsEmpty reports whether the set has no members
func (s TopicSet) IsEmpty() bool {
	return len(s.topics) == 0
}

// Contains reports membership by identity
func (s TopicSet) Contains(t *Topic) bool {
	for _, member := range s.topics {
		if member == t {
			return true
		}
	}
	return false
}

// With returns the set plus t
func (s TopicSet) With(t *Topic) TopicSet {
	if t == nil || s.Contains(t) {
		return s
	}
	return NewTopicSet(append(s.Topics(), t)...)
}

// Without returns the set minus t
func (s TopicSet) Without(t *Topic) TopicSet {
	if !s.Contains(t) {
		return s
	}
	out := TopicSet{topics: make([]*Topic, 0, len(s.topics)-1)}
	for _, member := range s.topics {
		if member != t {
			out.topics = append(out.topics, member)
		}
	}
	return out
}

// Equal compares membership and order
func (s TopicSet) Equal(other TopicSet) bool {
	if len(s.topics) != len(other.topics) {
		return false
	}
	for i := range s.topics {
		if s.topics[i] != other.topics[i] {
			return false
		}
	}
	return true
}

// IDs returns member identities; unassigned members yield zero IDs
func (s TopicSet) IDs() []valueobjects.TopicID {
	ids := make([]valueobjects.TopicID, len(s.topics))
	for i, t := range s.topics {
		ids[i] = t.ID()
	}
	return ids
}
