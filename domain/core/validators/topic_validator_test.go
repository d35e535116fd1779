package validators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topicgraph/domain/config"
	"topicgraph/domain/core/aggregates"
	"topicgraph/domain/core/entities"
	"topicgraph/domain/core/valueobjects"
	"topicgraph/domain/schema"
	"topicgraph/pkg/errors"
)

func persistedTopic(t *testing.T, parent *entities.Topic, contentType, key string, attrs map[string]string) *entities.Topic {
	t.Helper()
	topic, err := entities.NewTopic(contentType, key)
	require.NoError(t, err)
	for k, v := range attrs {
		require.NoError(t, topic.SetAttribute(k, v))
	}
	require.NoError(t, topic.AssignID(valueobjects.NewTopicID()))
	topic.MarkPersisted(time.Now(), true)
	if parent != nil {
		require.NoError(t, parent.AddChild(topic))
	}
	return topic
}

func pageDescriptor(t *testing.T) *schema.ContentTypeDescriptor {
	root := persistedTopic(t, nil, entities.ContentTypeContainer, "root", nil)
	cfg := persistedTopic(t, root, entities.ContentTypeContainer, "configuration", nil)
	page := persistedTopic(t, cfg, entities.ContentTypeContentType, "Page", nil)
	persistedTopic(t, page, entities.ContentTypeAttributeDescriptor, "title", map[string]string{schema.RequiredAttribute: "true"})
	persistedTopic(t, page, entities.ContentTypeAttributeDescriptor, "body", nil)

	graph, err := aggregates.NewTopicGraph(root, nil)
	require.NoError(t, err)
	d, err := schema.NewRegistry(graph, nil).Describe("Page")
	require.NoError(t, err)
	return d
}

func TestValidate(t *testing.T) {
	d := pageDescriptor(t)
	strict := config.DefaultDomainConfig()
	strict.StrictSchema = true

	tests := []struct {
		name    string
		cfg     *config.DomainConfig
		attrs   map[string]string
		fields  []string
		wantErr bool
	}{
		{"declared attributes", strict, map[string]string{"title": "Home", "body": "hi"}, nil, false},
		{"undeclared attribute in strict mode", strict, map[string]string{"title": "Home", "color": "red"}, []string{"color"}, true},
		{"undeclared attribute in lenient mode", config.DefaultDomainConfig(), map[string]string{"title": "Home", "color": "red"}, nil, false},
		{"missing required attribute", config.DefaultDomainConfig(), map[string]string{"body": "hi"}, []string{"title"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topic, err := entities.NewTopic("Page", "home")
			require.NoError(t, err)
			for k, v := range tt.attrs {
				require.NoError(t, topic.SetAttribute(k, v))
			}

			err = NewTopicValidator(tt.cfg).Validate(topic, d)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))
			appErr := errors.GetAppError(err)
			assert.Equal(t, tt.fields, appErr.Details["fields"])
			assert.Contains(t, appErr.Details["topic"], "home")
		})
	}
}

func TestRequiredAttributeMayBeInherited(t *testing.T) {
	d := pageDescriptor(t)
	base, err := entities.NewTopic("Page", "template")
	require.NoError(t, err)
	require.NoError(t, base.SetAttribute("title", "Inherited"))

	topic, err := entities.NewTopic("Page", "home")
	require.NoError(t, err)
	require.NoError(t, topic.SetBase(base))

	assert.NoError(t, NewTopicValidator(nil).Validate(topic, d))
}
