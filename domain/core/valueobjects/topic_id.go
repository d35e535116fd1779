package valueobjects

import (
	"errors"

	"github.com/google/uuid"
)

// TopicID is a value object representing a durable topic identifier.
// The zero value is the "new" sentinel: a topic that has never been persisted.
type TopicID struct {
	value string
}

// NewTopicID creates a new random TopicID. Only storage assigns identities.
func NewTopicID() TopicID {
	return TopicID{value: uuid.New().String()}
}

// NewTopicIDFromString creates a TopicID from an existing string
func NewTopicIDFromString(id string) (TopicID, error) {
	if id == "" {
		return TopicID{}, errors.New("topic ID cannot be empty")
	}
	if !isValidUUID(id) {
		return TopicID{}, errors.New("topic ID must be a valid UUID")
	}
	return TopicID{value: id}, nil
}

// MustTopicID parses id and panics when it is malformed. Intended for tests and seeds.
func MustTopicID(id string) TopicID {
	parsed, err := NewTopicIDFromString(id)
	if err != nil {
		panic(err)
	}
	return parsed
}

// String returns the string representation of the TopicID
func (id TopicID) String() string {
	return id.value
}

// Equals checks if two TopicIDs are equal
func (id TopicID) Equals(other TopicID) bool {
	return id.value == other.value
}

// IsZero reports whether the identity is still unassigned
func (id TopicID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler
func (id TopicID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (id *TopicID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("TopicID must be a string")
	}
	raw := string(data[1 : len(data)-1])
	if raw == "" {
		id.value = ""
		return nil
	}
	if !isValidUUID(raw) {
		return errors.New("TopicID must be a valid UUID")
	}
	id.value = raw
	return nil
}

// isValidUUID validates if a string is a valid UUID
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
