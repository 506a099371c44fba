package main

import (
	"context"
	"errors"
	"testing"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/tabletally/tabletally-backend/pkg/config"
	"github.com/tabletally/tabletally-backend/pkg/db/models"
	"github.com/tabletally/tabletally-backend/pkg/enums"
	"github.com/tabletally/tabletally-backend/pkg/logger"
)

type stubPinger struct {
	err error
}

func (s *stubPinger) Ping(context.Context) error { return s.err }

func (s *stubPinger) Publisher(string) *gcppubsub.Publisher { return nil }

type stubOutboxRepo struct {
	events    []models.OutboxEvent
	fetchErr  error
	published []uuid.UUID
	failed    []uuid.UUID
}

func (s *stubOutboxRepo) FetchUnpublished(limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	if limit < len(s.events) {
		return s.events[:limit], nil
	}
	return s.events, nil
}

func (s *stubOutboxRepo) MarkPublished(id uuid.UUID) error {
	s.published = append(s.published, id)
	return nil
}

func (s *stubOutboxRepo) MarkFailed(id uuid.UUID, err error) error {
	s.failed = append(s.failed, id)
	return nil
}

type stubPublishResult struct {
	err error
}

func (s stubPublishResult) Get(context.Context) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "msg-1", nil
}

type stubPublisher struct {
	topic     string
	published int
	err       error
}

func (s *stubPublisher) Publish(_ context.Context, _ *gcppubsub.Message) publishResult {
	s.published++
	return stubPublishResult{err: s.err}
}

func testConfig() *config.Config {
	return &config.Config{
		PubSub: config.PubSubConfig{
			ManagementTopic: "tt-management-events",
			RealtimeTopic:   "tt-realtime-push",
			DomainTopic:     "tt-domain-events",
		},
	}
}

func testService(t *testing.T, repo *stubOutboxRepo, factory publisherFactory) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Config:           testConfig(),
		Logger:           logger.New(logger.Options{ServiceName: "test"}),
		DB:               &stubPinger{},
		PubSub:           &stubPinger{},
		Repository:       repo,
		PublisherFactory: factory,
	})
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	return svc
}

func TestTopicForRoutesByEventType(t *testing.T) {
	svc := testService(t, &stubOutboxRepo{}, func(string) publisher { return nil })

	cases := []struct {
		eventType enums.OutboxEventType
		want      string
	}{
		{enums.EventPaymentSettled, "tt-management-events"},
		{enums.EventPaymentInstructionCreated, "tt-management-events"},
		{enums.EventOrderGroupPaid, "tt-management-events"},
		{enums.EventNotificationRequested, "tt-realtime-push"},
		{enums.OutboxEventType("something.else"), "tt-domain-events"},
	}
	for _, tc := range cases {
		if got := svc.topicFor(tc.eventType); got != tc.want {
			t.Fatalf("topicFor(%s) = %s, want %s", tc.eventType, got, tc.want)
		}
	}
}

func TestProcessBatchPublishesAndMarks(t *testing.T) {
	repo := &stubOutboxRepo{
		events: []models.OutboxEvent{
			{ID: uuid.New(), EventType: enums.EventPaymentSettled, AggregateType: enums.AggregatePaymentRecord, AggregateID: "abc", Payload: []byte(`{}`)},
			{ID: uuid.New(), EventType: enums.EventNotificationRequested, AggregateType: enums.AggregatePaymentRecord, AggregateID: "def", Payload: []byte(`{}`)},
		},
	}
	pubs := map[string]*stubPublisher{}
	svc := testService(t, repo, func(topic string) publisher {
		p, ok := pubs[topic]
		if !ok {
			p = &stubPublisher{topic: topic}
			pubs[topic] = p
		}
		return p
	})

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("processBatch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected processed batch")
	}
	if len(repo.published) != 2 {
		t.Fatalf("expected 2 published marks, got %d", len(repo.published))
	}
	if len(repo.failed) != 0 {
		t.Fatalf("expected no failure marks, got %d", len(repo.failed))
	}
	if pubs["tt-management-events"].published != 1 {
		t.Fatalf("expected 1 management publish, got %d", pubs["tt-management-events"].published)
	}
	if pubs["tt-realtime-push"].published != 1 {
		t.Fatalf("expected 1 realtime publish, got %d", pubs["tt-realtime-push"].published)
	}
}

func TestProcessBatchMarksFailedAndContinues(t *testing.T) {
	failing := uuid.New()
	healthy := uuid.New()
	repo := &stubOutboxRepo{
		events: []models.OutboxEvent{
			{ID: failing, EventType: enums.EventPaymentSettled, AggregateID: "abc", Payload: []byte(`{}`)},
			{ID: healthy, EventType: enums.EventPaymentSettled, AggregateID: "def", Payload: []byte(`{}`)},
		},
	}
	calls := 0
	svc := testService(t, repo, func(topic string) publisher {
		calls++
		if calls == 1 {
			return &stubPublisher{topic: topic, err: errors.New("broker unavailable")}
		}
		return &stubPublisher{topic: topic}
	})

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("processBatch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected processed batch")
	}
	if len(repo.failed) != 1 || repo.failed[0] != failing {
		t.Fatalf("expected failing event marked failed, got %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != healthy {
		t.Fatalf("expected healthy event marked published, got %v", repo.published)
	}
}

func TestProcessBatchEmptyQueue(t *testing.T) {
	svc := testService(t, &stubOutboxRepo{}, func(string) publisher { return &stubPublisher{} })

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("processBatch returned error: %v", err)
	}
	if processed {
		t.Fatalf("expected idle batch")
	}
}

func TestProcessBatchFetchError(t *testing.T) {
	repo := &stubOutboxRepo{fetchErr: errors.New("db down")}
	svc := testService(t, repo, func(string) publisher { return &stubPublisher{} })

	if _, err := svc.processBatch(context.Background()); err == nil {
		t.Fatalf("expected fetch error to propagate")
	}
}

func TestNextBackoffDoublesToCeiling(t *testing.T) {
	b := nextBackoff(500e6, 500e6, maxBackoff)
	if b != 1e9 {
		t.Fatalf("expected 1s backoff, got %v", b)
	}
	b = nextBackoff(maxBackoff, 500e6, maxBackoff)
	if b != maxBackoff {
		t.Fatalf("expected backoff capped at %v, got %v", maxBackoff, b)
	}
}
