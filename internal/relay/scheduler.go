package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/eternisai/assignment-relay/internal/assignments"
	apperrors "github.com/eternisai/assignment-relay/internal/errors"
	"github.com/eternisai/assignment-relay/internal/logger"
	"github.com/eternisai/assignment-relay/internal/metrics"
)

// TokenSource hands out a bearer token for the assignment API.
type TokenSource interface {
	AcquireToken(ctx context.Context) (string, error)
}

// Fetcher lists the assignments visible to a bearer token. On failure it
// returns an empty slice together with the error.
type Fetcher interface {
	FetchAssignments(ctx context.Context, token string) ([]assignments.Assignment, error)
}

// Notifier delivers one assignment announcement.
type Notifier interface {
	Notify(ctx context.Context, a assignments.Assignment) error
}

// Scheduler runs poll cycles back to back, waiting Interval between the end
// of one cycle and the start of the next, so cycles never overlap.
//
// Scheduler is the only writer of its Tracker; all cycles run on the single
// goroutine started by Start.
//
// Lifecycle: Idle -> Running (Start) -> Terminated (context cancelled).
type Scheduler struct {
	tokens   TokenSource
	fetcher  Fetcher
	notifier Notifier
	tracker  *assignments.Tracker
	metrics  *metrics.Collector
	interval time.Duration
	logger   *logger.Logger

	state       atomic.Int32
	lastCycleAt atomic.Int64
	done        chan struct{}
}

// Dependencies are the collaborators of a Scheduler. Metrics may be nil.
type Dependencies struct {
	Tokens   TokenSource
	Fetcher  Fetcher
	Notifier Notifier
	Tracker  *assignments.Tracker
	Metrics  *metrics.Collector
}

// NewScheduler creates an idle scheduler. A nil Tracker gets a fresh one.
func NewScheduler(deps Dependencies, interval time.Duration, logger *logger.Logger) *Scheduler {
	tracker := deps.Tracker
	if tracker == nil {
		tracker = assignments.NewTracker()
	}

	return &Scheduler{
		tokens:   deps.Tokens,
		fetcher:  deps.Fetcher,
		notifier: deps.Notifier,
		tracker:  tracker,
		metrics:  deps.Metrics,
		interval: interval,
		logger:   logger.WithComponent("relay_scheduler"),
		done:     make(chan struct{}),
	}
}

// Start moves the scheduler from Idle to Running and launches the poll loop.
// The first cycle runs immediately. Calls after the first are ignored and
// return false, so a repeated ready signal never starts a second loop.
func (s *Scheduler) Start(ctx context.Context) bool {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		s.logger.Debug("scheduler already started, ignoring start request",
			slog.String("state", s.State().String()))
		return false
	}

	s.logger.Info("starting assignment poll loop",
		slog.Duration("interval", s.interval))

	go s.run(ctx)
	return true
}

// Done is closed when the poll loop has exited.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// LastCycleAt returns when the most recent cycle finished, or the zero time.
func (s *Scheduler) LastCycleAt() time.Time {
	ns := s.lastCycleAt.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)
	defer s.state.Store(int32(StateTerminated))

	for ctx.Err() == nil {
		s.safeCycle(ctx)

		select {
		case <-ctx.Done():
		case <-time.After(s.interval):
		}
	}

	s.logger.Info("assignment poll loop stopped")
}

// safeCycle runs one cycle and keeps any failure, including a panic, from
// reaching the loop.
func (s *Scheduler) safeCycle(ctx context.Context) {
	start := time.Now()
	cycleCtx := logger.WithCycleID(ctx, logger.GenerateCycleID())
	result := metrics.ResultOK

	defer func() {
		if r := recover(); r != nil {
			result = metrics.ResultPanic
			s.logger.WithContext(cycleCtx).Error("poll cycle panicked", slog.Any("panic", r))
		}
		s.lastCycleAt.Store(time.Now().UnixNano())
		s.metrics.ObserveCycle(result, time.Since(start))
	}()

	err := s.logger.LogOperation(cycleCtx, "poll_cycle", func() error {
		_, err := s.RunCycle(cycleCtx)
		return err
	})
	result = cycleResult(err)
}

// CycleReport summarizes one cycle.
type CycleReport struct {
	Fetched   int
	New       int
	Delivered int
}

// RunCycle performs token -> fetch -> filter -> notify once.
//
// Auth and fetch failures end the cycle with zero announcements; a fetch
// failure still passes the empty result through the tracker. Delivery
// failures do not stop the remaining announcements of the cycle. The failed
// assignment stays recorded as seen and is not retried. All delivery errors
// are joined into the returned error.
func (s *Scheduler) RunCycle(ctx context.Context) (CycleReport, error) {
	var report CycleReport
	log := s.logger.WithContext(ctx)

	token, err := s.tokens.AcquireToken(ctx)
	if err != nil {
		s.metrics.AuthFailure()
		log.Error("failed to acquire graph token", slog.String("error", err.Error()))
		return report, err
	}

	items, fetchErr := s.fetcher.FetchAssignments(ctx, token)
	if fetchErr != nil {
		s.metrics.FetchFailure()
		log.Error("failed to fetch assignments", slog.String("error", fetchErr.Error()))
		items = nil
	}
	report.Fetched = len(items)

	fresh := s.tracker.FilterNew(items)
	report.New = len(fresh)
	s.metrics.SetSeen(s.tracker.Len())

	if fetchErr != nil {
		return report, fetchErr
	}

	if len(fresh) > 0 {
		log.Info("new assignments found",
			slog.Int("fetched", report.Fetched),
			slog.Int("new", report.New))
	}

	var deliveryErrs []error
	for _, a := range fresh {
		if err := s.notifier.Notify(logger.WithAssignmentID(ctx, a.ID), a); err != nil {
			s.metrics.Notification(false)
			s.logger.LogError(logger.WithAssignmentID(ctx, a.ID), err, "failed to announce assignment")
			deliveryErrs = append(deliveryErrs, err)
			continue
		}
		s.metrics.Notification(true)
		report.Delivered++
	}

	if len(deliveryErrs) > 0 {
		return report, fmt.Errorf("%d of %d announcements failed: %w", len(deliveryErrs), len(fresh), errors.Join(deliveryErrs...))
	}

	return report, nil
}

func cycleResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case apperrors.IsAuth(err):
		return metrics.ResultAuthFailed
	case apperrors.IsFetch(err):
		return metrics.ResultFetchFailed
	default:
		return metrics.ResultDeliveryError
	}
}
