package validators

import (
	"strings"
	"unicode/utf8"

	"topicgraph/domain/config"
	"topicgraph/domain/core/entities"
	"topicgraph/domain/schema"
	"topicgraph/pkg/errors"
)

// TopicValidator checks a topic against its content type descriptor before it
// is persisted
type TopicValidator struct {
	strict         bool
	maxValueLength int
	hopBudget      int
}

// NewTopicValidator creates a validator from domain configuration
func NewTopicValidator(cfg *config.DomainConfig) *TopicValidator {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &TopicValidator{
		strict:         cfg.StrictSchema,
		maxValueLength: 1 << 20,
		hopBudget:      cfg.DefaultHopBudget,
	}
}

// Validate applies the descriptor to t. In strict mode every local attribute
// must be declared. Required attributes must resolve, possibly through the
// base chain.
func (v *TopicValidator) Validate(t *entities.Topic, d *schema.ContentTypeDescriptor) error {
	validationErrors := errors.NewValidationErrors()

	for _, item := range t.Attributes().Items() {
		key := item.Key()
		if v.strict && !d.Allows(key) {
			validationErrors.Addf(key, "attribute is not declared by content type %s", d.Name)
		}
		if utf8.RuneCountInString(item.Value()) > v.maxValueLength {
			validationErrors.Addf(key, "value exceeds %d characters", v.maxValueLength)
		}
	}

	for _, required := range d.Required() {
		value, err := t.Attributes().GetValue(required.Key, required.DefaultValue, false, v.hopBudget)
		if err != nil {
			validationErrors.Add(required.Key, err.Error())
			continue
		}
		if strings.TrimSpace(value) == "" {
			validationErrors.Addf(required.Key, "required by content type %s", d.Name)
		}
	}

	if !validationErrors.HasErrors() {
		return nil
	}
	appErr := errors.GetAppError(validationErrors.AsAppError())
	return appErr.WithDetail("topic", t.String()).WithDetail("contentType", d.Name)
}
