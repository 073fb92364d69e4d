package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/safar/go-order-engine/internal/metrics"
	"github.com/safar/go-order-engine/internal/models"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOutbox struct {
	mu       sync.Mutex
	pending  []models.OutboxEvent
	sent     []int64
	fetchErr error
}

func (f *fakeOutbox) FetchPendingEvents(_ context.Context, limit int) ([]models.OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	var out []models.OutboxEvent
	for _, ev := range f.pending {
		if !f.isSent(ev.ID) && len(out) < limit {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeOutbox) isSent(id int64) bool {
	for _, s := range f.sent {
		if s == id {
			return true
		}
	}
	return false
}

func (f *fakeOutbox) MarkEventSent(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, id)
	return nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []models.OutboxEvent
	failOn    map[int64]bool
}

func (p *fakePublisher) Publish(_ context.Context, ev models.OutboxEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failOn[ev.ID] {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, ev)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func event(id int64, topic string) models.OutboxEvent {
	return models.OutboxEvent{
		ID:      id,
		EventID: "ev-" + topic,
		Topic:   topic,
		Key:     "100",
		Payload: json.RawMessage(`{"order_id":100}`),
	}
}

func newTestMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

func TestRelayOncePublishesInOrderAndMarksSent(t *testing.T) {
	store := &fakeOutbox{pending: []models.OutboxEvent{
		event(1, models.EventOrderCreated),
		event(2, models.EventOrderPlaced),
		event(3, models.EventOrderStatusChanged),
	}}
	pub := &fakePublisher{}
	m := newTestMetrics()
	log, _ := test.NewNullLogger()

	relay := NewRelay(store, pub, time.Second, 2, log, m)

	sent, err := relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, []int64{1, 2}, store.sent)

	sent, err = relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	require.Len(t, pub.published, 3)
	assert.Equal(t, models.EventOrderStatusChanged, pub.published[2].Topic)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.OutboxPublished))
}

func TestRelayOnceStopsAtFirstFailure(t *testing.T) {
	store := &fakeOutbox{pending: []models.OutboxEvent{
		event(1, models.EventOrderCreated),
		event(2, models.EventOrderPlaced),
		event(3, models.EventOrderCanceled),
	}}
	pub := &fakePublisher{failOn: map[int64]bool{2: true}}
	m := newTestMetrics()
	log, _ := test.NewNullLogger()

	sent, err := NewRelay(store, pub, time.Second, 10, log, m).RelayOnce(context.Background())
	assert.ErrorContains(t, err, "publish event 2")
	assert.Equal(t, 1, sent)
	assert.Equal(t, []int64{1}, store.sent)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OutboxFailed))
}

func TestRelayRunLogsFailuresAndStopsOnCancel(t *testing.T) {
	store := &fakeOutbox{fetchErr: errors.New("db down")}
	log, hook := test.NewNullLogger()

	relay := NewRelay(store, &fakePublisher{}, 5*time.Millisecond, 10, log, newTestMetrics())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relay.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(hook.AllEntries()) > 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relay did not stop after cancel")
	}

	assert.Equal(t, logrus.WarnLevel, hook.AllEntries()[0].Level)
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaPublisherKeysByOrder(t *testing.T) {
	w := &fakeWriter{}
	pub := &KafkaPublisher{writer: w}

	require.NoError(t, pub.Publish(context.Background(), event(5, models.EventOrderExpired)))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "100", string(msg.Key))
	assert.JSONEq(t, `{"order_id":100}`, string(msg.Value))
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, models.EventOrderExpired, string(msg.Headers[0].Value))
}

func TestKafkaPublisherWrapsWriteError(t *testing.T) {
	pub := &KafkaPublisher{writer: &fakeWriter{err: errors.New("leader not available")}}

	err := pub.Publish(context.Background(), event(5, models.EventOrderPlaced))
	assert.ErrorContains(t, err, "leader not available")
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	pub := &fakePublisher{failOn: map[int64]bool{1: true}}
	m := newTestMetrics()
	log, _ := test.NewNullLogger()

	settings := DefaultBreakerSettings()
	breaker := NewBreakerPublisher(pub, settings, log, m)

	for i := 0; i < 3; i++ {
		assert.Error(t, breaker.Publish(context.Background(), event(1, models.EventOrderCreated)))
	}

	assert.Equal(t, gobreaker.StateOpen, breaker.State())
	err := breaker.Publish(context.Background(), event(2, models.EventOrderCreated))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BreakerState.WithLabelValues(settings.Name)))
	assert.Empty(t, pub.published)
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	require.NoError(t, NewLogPublisher(log).Publish(context.Background(), event(1, models.EventOrderExpired)))
	assert.Contains(t, buf.String(), `"event":"order.expired"`)
}
