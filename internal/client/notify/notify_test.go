package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mkuzmins/homeboard/internal/logging"
)

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// scriptedSource returns a fixed alert set per poll, advanced by the test.
type scriptedSource struct {
	mu     sync.Mutex
	alerts []Alert
	err    error
}

func (s *scriptedSource) set(alerts []Alert, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = alerts
	s.err = err
}

func (s *scriptedSource) Poll(ctx context.Context, now time.Time) ([]Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Alert(nil), s.alerts...), s.err
}

type sinkRecorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *sinkRecorder) sink(m Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
}

func (r *sinkRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func alert(key, payload string) Alert {
	return Alert{Key: key, Payload: payload, Message: Message{Type: "test", Name: key}}
}

func newTestNotifier(src Source, rec *sinkRecorder, now *time.Time) *Notifier {
	return New(src, rec.sink, time.Hour, discardLogger(),
		WithClock(func() time.Time { return *now }))
}

func TestEdgeTriggeredExactlyOnce(t *testing.T) {
	src := &scriptedSource{}
	rec := &sinkRecorder{}
	now := time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)
	n := newTestNotifier(src, rec, &now)
	ctx := context.Background()

	// Predicate false, then true for 5 consecutive polls.
	n.poll(ctx)
	src.set([]Alert{alert("route-a", "route-a")}, nil)
	for i := 0; i < 5; i++ {
		n.poll(ctx)
	}

	assert.Equal(t, 1, rec.count(), "exactly one notification per rising edge")
}

func TestFallingEdgeRearms(t *testing.T) {
	src := &scriptedSource{}
	rec := &sinkRecorder{}
	now := time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)
	n := newTestNotifier(src, rec, &now)
	ctx := context.Background()

	src.set([]Alert{alert("route-a", "route-a")}, nil)
	n.poll(ctx)
	src.set(nil, nil) // predicate goes false
	n.poll(ctx)
	src.set([]Alert{alert("route-a", "route-a")}, nil)
	n.poll(ctx)

	assert.Equal(t, 2, rec.count())
}

func TestChangedContentHashRefires(t *testing.T) {
	src := &scriptedSource{}
	rec := &sinkRecorder{}
	now := time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)
	n := newTestNotifier(src, rec, &now)
	ctx := context.Background()

	src.set([]Alert{alert("weather/w1", "snow 3in")}, nil)
	n.poll(ctx)
	n.poll(ctx) // same content, no re-fire
	assert.Equal(t, 1, rec.count())

	// Revised estimate: same key, new content.
	src.set([]Alert{alert("weather/w1", "snow 8in")}, nil)
	n.poll(ctx)
	assert.Equal(t, 2, rec.count())
}

func TestDismissSuppressesForTheDay(t *testing.T) {
	src := &scriptedSource{}
	rec := &sinkRecorder{}
	now := time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)
	n := newTestNotifier(src, rec, &now)
	ctx := context.Background()

	src.set([]Alert{alert("route-a", "route-a")}, nil)
	n.poll(ctx)
	assert.Equal(t, 1, rec.count())

	n.Dismiss("route-a")
	src.set(nil, nil)
	n.poll(ctx)
	src.set([]Alert{alert("route-a", "route-a")}, nil)
	n.poll(ctx) // rising edge again, but dismissed today
	assert.Equal(t, 1, rec.count())

	// Next day the dismissal resets.
	now = now.Add(24 * time.Hour)
	src.set(nil, nil)
	n.poll(ctx)
	src.set([]Alert{alert("route-a", "route-a")}, nil)
	n.poll(ctx)
	assert.Equal(t, 2, rec.count())
}

func TestPollErrorRetriedNextInterval(t *testing.T) {
	src := &scriptedSource{}
	rec := &sinkRecorder{}
	now := time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)
	n := newTestNotifier(src, rec, &now)
	ctx := context.Background()

	src.set(nil, errors.New("upstream down"))
	n.poll(ctx) // must not panic or deliver

	src.set([]Alert{alert("route-a", "route-a")}, nil)
	n.poll(ctx)
	assert.Equal(t, 1, rec.count())
}

func TestIndependentKeys(t *testing.T) {
	src := &scriptedSource{}
	rec := &sinkRecorder{}
	now := time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)
	n := newTestNotifier(src, rec, &now)
	ctx := context.Background()

	src.set([]Alert{alert("route-a", "route-a")}, nil)
	n.poll(ctx)
	src.set([]Alert{alert("route-a", "route-a"), alert("route-b", "route-b")}, nil)
	n.poll(ctx)

	assert.Equal(t, 2, rec.count(), "second route alerts even while the first stays active")
}

func TestTimeWindowContains(t *testing.T) {
	window := TimeWindow{
		Days: []time.Weekday{time.Monday, time.Tuesday},
		From: "07:00",
		To:   "09:30",
	}

	monday := time.Date(2026, 2, 2, 8, 0, 0, 0, time.UTC) // Monday
	assert.True(t, window.Contains(monday))
	assert.False(t, window.Contains(monday.Add(2*time.Hour)), "past the window")
	assert.False(t, window.Contains(monday.Add(48*time.Hour)), "Wednesday")

	var always TimeWindow
	assert.True(t, always.Contains(monday))
}

func TestContentHashStability(t *testing.T) {
	assert.Equal(t, ContentHash("snow 3in"), ContentHash("snow 3in"))
	assert.NotEqual(t, ContentHash("snow 3in"), ContentHash("snow 8in"))
}
