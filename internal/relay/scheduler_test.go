package relay

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eternisai/assignment-relay/internal/assignments"
	apperrors "github.com/eternisai/assignment-relay/internal/errors"
	"github.com/eternisai/assignment-relay/internal/logger"
	"github.com/eternisai/assignment-relay/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var log *logger.Logger

func TestMain(m *testing.M) {
	flag.Parse()

	if testing.Verbose() {
		log = logger.New(logger.Config{Level: slog.LevelDebug})
	} else {
		log = logger.New(logger.Config{Level: slog.LevelError})
	}

	os.Exit(m.Run())
}

type fakeTokens struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeTokens) AcquireToken(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", &apperrors.AuthError{Err: f.err}
	}
	return "token", nil
}

// fakeFetcher returns one scripted batch per call, repeating the last one.
type fakeFetcher struct {
	mu       sync.Mutex
	batches  [][]string
	failures map[int]bool
	calls    int
	delay    time.Duration
	active   atomic.Int32
	overlap  atomic.Bool
}

func (f *fakeFetcher) FetchAssignments(_ context.Context, token string) ([]assignments.Assignment, error) {
	if f.active.Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer f.active.Add(-1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	call := f.calls
	f.calls++

	if f.failures[call] {
		return []assignments.Assignment{}, &apperrors.FetchError{StatusCode: 500, Err: errors.New("graph returned status 500")}
	}

	if len(f.batches) == 0 {
		return []assignments.Assignment{}, nil
	}
	idx := call
	if idx >= len(f.batches) {
		idx = len(f.batches) - 1
	}
	out := make([]assignments.Assignment, 0, len(f.batches[idx]))
	for _, id := range f.batches[idx] {
		out = append(out, assignments.Assignment{ID: id, Title: "title " + id})
	}
	return out, nil
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeNotifier struct {
	mu      sync.Mutex
	failIDs map[string]bool
	sent    []string
}

func (f *fakeNotifier) Notify(_ context.Context, a assignments.Assignment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIDs[a.ID] {
		return &apperrors.DeliveryError{AssignmentID: a.ID, Err: errors.New("send failed")}
	}
	f.sent = append(f.sent, a.ID)
	return nil
}

func (f *fakeNotifier) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func scrape(t *testing.T, c *metrics.Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	return rec.Body.String()
}

func newTestScheduler(tokens *fakeTokens, fetcher *fakeFetcher, notifier *fakeNotifier, interval time.Duration) (*Scheduler, *metrics.Collector) {
	collector := metrics.New()
	s := NewScheduler(Dependencies{
		Tokens:   tokens,
		Fetcher:  fetcher,
		Notifier: notifier,
		Metrics:  collector,
	}, interval, log)
	return s, collector
}

func TestRunCycleNoDuplicatesAcrossCycles(t *testing.T) {
	fetcher := &fakeFetcher{batches: [][]string{{"a", "b"}, {"b", "a", "c"}, {"c", "b", "a"}}}
	notifier := &fakeNotifier{}
	s, _ := newTestScheduler(&fakeTokens{}, fetcher, notifier, time.Hour)

	for i := 0; i < 3; i++ {
		_, err := s.RunCycle(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"a", "b", "c"}, notifier.Sent())
}

func TestRunCycleNotifiesEveryNewItemInFetchOrder(t *testing.T) {
	fetcher := &fakeFetcher{batches: [][]string{{"z", "m", "a", "q"}}}
	notifier := &fakeNotifier{}
	s, _ := newTestScheduler(&fakeTokens{}, fetcher, notifier, time.Hour)

	report, err := s.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CycleReport{Fetched: 4, New: 4, Delivered: 4}, report)
	assert.Equal(t, []string{"z", "m", "a", "q"}, notifier.Sent())
}

func TestRunCycleAuthFailure(t *testing.T) {
	tokens := &fakeTokens{err: errors.New("invalid_client")}
	fetcher := &fakeFetcher{batches: [][]string{{"a"}}}
	notifier := &fakeNotifier{}
	s, collector := newTestScheduler(tokens, fetcher, notifier, time.Hour)

	_, err := s.RunCycle(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsAuth(err))
	assert.Equal(t, 0, fetcher.Calls())
	assert.Empty(t, notifier.Sent())
	assert.Equal(t, 0, s.tracker.Len())
	assert.Equal(t, metrics.ResultAuthFailed, cycleResult(err))
	assert.Contains(t, scrape(t, collector), "relay_auth_failures_total 1")
}

func TestRunCycleFetchFailureYieldsNoNotifications(t *testing.T) {
	fetcher := &fakeFetcher{batches: [][]string{{"a"}}, failures: map[int]bool{0: true}}
	notifier := &fakeNotifier{}
	s, _ := newTestScheduler(&fakeTokens{}, fetcher, notifier, time.Hour)

	report, err := s.RunCycle(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsFetch(err))
	assert.Equal(t, CycleReport{}, report)
	assert.Empty(t, notifier.Sent())

	// The registry is untouched, so the item is announced once the API recovers.
	_, err = s.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, notifier.Sent())
}

func TestRunCycleDeliveryFailureKeepsGoingAndMarksSeen(t *testing.T) {
	fetcher := &fakeFetcher{batches: [][]string{{"a", "b", "c"}}}
	notifier := &fakeNotifier{failIDs: map[string]bool{"b": true}}
	s, _ := newTestScheduler(&fakeTokens{}, fetcher, notifier, time.Hour)

	report, err := s.RunCycle(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsDelivery(err))
	assert.Equal(t, CycleReport{Fetched: 3, New: 3, Delivered: 2}, report)
	assert.Equal(t, []string{"a", "c"}, notifier.Sent())

	// The failed id was recorded at selection time and is not offered again.
	assert.True(t, s.tracker.Seen("b"))
	notifier.failIDs = nil
	_, err = s.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, notifier.Sent())
}

func TestStartRunsImmediatelyAndOnlyOnce(t *testing.T) {
	fetcher := &fakeFetcher{batches: [][]string{{"a"}}}
	notifier := &fakeNotifier{}
	s, _ := newTestScheduler(&fakeTokens{}, fetcher, notifier, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	assert.Equal(t, StateIdle, s.State())
	require.True(t, s.Start(ctx))
	assert.False(t, s.Start(ctx))
	assert.Equal(t, StateRunning, s.State())

	require.Eventually(t, func() bool { return len(notifier.Sent()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, fetcher.Calls())

	cancel()
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
	assert.Equal(t, StateTerminated, s.State())
	assert.False(t, s.LastCycleAt().IsZero())
	assert.False(t, s.Start(context.Background()))
}

func TestFetchFailureDoesNotStopLoop(t *testing.T) {
	fetcher := &fakeFetcher{batches: [][]string{{"a"}}, failures: map[int]bool{0: true, 1: true}}
	notifier := &fakeNotifier{}
	s, collector := newTestScheduler(&fakeTokens{}, fetcher, notifier, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	require.Eventually(t, func() bool { return len(notifier.Sent()) == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-s.Done()

	assert.GreaterOrEqual(t, fetcher.Calls(), 3)
	assert.Equal(t, []string{"a"}, notifier.Sent())
	assert.Contains(t, scrape(t, collector), `relay_cycles_total{result="fetch_failed"} 2`)
}

func TestCyclesNeverOverlap(t *testing.T) {
	fetcher := &fakeFetcher{batches: [][]string{{"a"}}, delay: 20 * time.Millisecond}
	s, _ := newTestScheduler(&fakeTokens{}, fetcher, &fakeNotifier{}, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	require.Eventually(t, func() bool { return fetcher.Calls() >= 4 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-s.Done()

	assert.False(t, fetcher.overlap.Load())
}

type panickingNotifier struct{}

func (panickingNotifier) Notify(context.Context, assignments.Assignment) error {
	panic("boom")
}

func TestPanicInCycleIsContained(t *testing.T) {
	fetcher := &fakeFetcher{batches: [][]string{{"a"}, {"a", "b"}}}
	collector := metrics.New()
	s := NewScheduler(Dependencies{
		Tokens:   &fakeTokens{},
		Fetcher:  fetcher,
		Notifier: panickingNotifier{},
		Metrics:  collector,
	}, 5*time.Millisecond, log)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	require.Eventually(t, func() bool { return fetcher.Calls() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-s.Done()

	// Two cycles had a new item and panicked; later cycles found nothing new.
	assert.Contains(t, scrape(t, collector), `relay_cycles_total{result="panic"} 2`)
	assert.Equal(t, StateTerminated, s.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "terminated", StateTerminated.String())
	assert.Equal(t, "unknown", State(9).String())
}
