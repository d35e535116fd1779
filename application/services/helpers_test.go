package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"topicgraph/application/ports"
	"topicgraph/domain/config"
	"topicgraph/domain/core/entities"
	"topicgraph/domain/events"
	"topicgraph/domain/schema"
	"topicgraph/infrastructure/persistence/memory"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type recordingPublisher struct {
	events []events.DomainEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return p.PublishBatch(ctx, []events.DomainEvent{event})
}

func (p *recordingPublisher) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, batch...)
	return nil
}

func (p *recordingPublisher) ofType(eventType string) []events.DomainEvent {
	var out []events.DomainEvent
	for _, e := range p.events {
		if e.GetEventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.events = nil
}

type recordingMetrics struct {
	saves    int
	lastSave error
	deletes  int
	loads    int
	deferred int
}

func (m *recordingMetrics) RecordSave(topics, unresolved int, _ time.Duration, err error) {
	m.saves++
	m.deferred = unresolved
	m.lastSave = err
}

func (m *recordingMetrics) RecordDelete(int, time.Duration, error) { m.deletes++ }
func (m *recordingMetrics) RecordLoad(int, time.Duration, error)   { m.loads++ }

// flakyStore fails saves of records matching failOn
type flakyStore struct {
	ports.TopicStore
	failOn func(ports.TopicRecord) bool
}

func (s *flakyStore) Save(ctx context.Context, record ports.TopicRecord) (string, error) {
	if s.failOn != nil && s.failOn(record) {
		return "", errors.New("disk full")
	}
	return s.TopicStore.Save(ctx, record)
}

type harness struct {
	repo      *TopicRepository
	store     *memory.TopicStore
	publisher *recordingPublisher
	metrics   *recordingMetrics
	clock     *stepClock
	site      *entities.Topic
}

const pageSeed = `
contentTypes:
  - name: Page
    attributes:
      - key: title
      - key: body
  - name: Article
    parent: Page
    attributes:
      - key: byline
topics:
  - key: site
    contentType: Container
`

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:     memory.NewTopicStore(zaptest.NewLogger(t)),
		publisher: &recordingPublisher{},
		metrics:   &recordingMetrics{},
		clock:     newStepClock(),
	}
	h.repo = h.open(t, h.store)
	return h
}

func (h *harness) open(t *testing.T, store ports.TopicStore) *TopicRepository {
	t.Helper()
	repo := NewTopicRepository(store, h.publisher, config.DefaultDomainConfig(), zaptest.NewLogger(t),
		WithClock(h.clock.Now), WithMetrics(h.metrics))
	require.NoError(t, repo.Open(context.Background()))

	if repo.Graph().Root().ChildByKey("site") == nil {
		seed, err := schema.ParseSeed([]byte(pageSeed))
		require.NoError(t, err)
		require.NoError(t, repo.ApplySeed(context.Background(), seed))
	}
	h.site = repo.Graph().Root().ChildByKey("site")
	require.NotNil(t, h.site)
	h.publisher.reset()
	return repo
}

func (h *harness) page(t *testing.T, parent *entities.Topic, key string) *entities.Topic {
	t.Helper()
	if parent == nil {
		parent = h.site
	}
	topic, err := h.repo.NewTopic("Page", key, parent)
	require.NoError(t, err)
	return topic
}

func (h *harness) savedPage(t *testing.T, parent *entities.Topic, key string) *entities.Topic {
	t.Helper()
	topic := h.page(t, parent, key)
	require.NoError(t, h.repo.Save(context.Background(), topic, false))
	return topic
}

func (h *harness) record(t *testing.T, topic *entities.Topic) *ports.TopicRecord {
	t.Helper()
	record, err := h.store.Load(context.Background(), topic.ID().String())
	require.NoError(t, err)
	return record
}
