package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pmg5408/grocery-meal-agent/internal/db"
	"github.com/pmg5408/grocery-meal-agent/internal/types"
	"github.com/pmg5408/grocery-meal-agent/internal/window"
)

// TriggerStore is the trigger persistence surface the tick needs.
type TriggerStore interface {
	GetDue(ctx context.Context, now time.Time, limit int) ([]types.MealTrigger, error)
	BeginDispatch(ctx context.Context, userID int64, observedNextRun, windowEnd time.Time) error
	Reschedule(ctx context.Context, userID int64, nextRun time.Time, nextWindow types.MealWindow) error
	ExpirePending(ctx context.Context, now time.Time) ([]db.ExpiredResult, error)
}

// PreferenceStore loads the boundary times needed for window arithmetic.
type PreferenceStore interface {
	Get(ctx context.Context, userID int64) (*types.MealPreference, error)
}

// JobDispatcher enqueues generation jobs.
type JobDispatcher interface {
	Dispatch(ctx context.Context, userID int64, w types.MealWindow, reason string) error
}

// EventPublisher pushes meal events toward connected clients.
type EventPublisher interface {
	Publish(ctx context.Context, event types.MealEvent) error
}

// MetricsRecorder publishes tick counters.
type MetricsRecorder interface {
	RecordTick(ctx context.Context, report TickReport)
}

// Tick runs one scheduling cycle per invocation. A mutex guards against
// overlapping invocations in the same process; across processes the per-user
// optimistic claim in BeginDispatch provides the same protection, so an
// overlapping tick elsewhere merely skips already-claimed users.
type Tick struct {
	triggers   TriggerStore
	prefs      PreferenceStore
	dispatcher JobDispatcher
	events     EventPublisher
	metrics    MetricsRecorder
	logger     *slog.Logger
	batchLimit int

	mu    sync.Mutex
	nowFn func() time.Time
}

// NewTick wires a Tick service.
func NewTick(
	triggers TriggerStore,
	prefs PreferenceStore,
	dispatcher JobDispatcher,
	events EventPublisher,
	metrics MetricsRecorder,
	batchLimit int,
	logger *slog.Logger,
) *Tick {
	return &Tick{
		triggers:   triggers,
		prefs:      prefs,
		dispatcher: dispatcher,
		events:     events,
		metrics:    metrics,
		logger:     logger,
		batchLimit: batchLimit,
		nowFn:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the tick clock, for tests.
func (t *Tick) WithClock(nowFn func() time.Time) *Tick {
	t.nowFn = nowFn
	return t
}

// Run executes one tick: expire superseded results past their deadline, then
// claim and dispatch every due trigger. Per-user failures are isolated; one
// bad user never blocks the batch. If another tick is still running in this
// process, Run returns immediately with an empty report.
func (t *Tick) Run(ctx context.Context, input TickInput) (*TickReport, error) {
	if !t.mu.TryLock() {
		t.logger.WarnContext(ctx, "tick already running, skipping invocation")
		return &TickReport{}, nil
	}
	defer t.mu.Unlock()

	now := t.nowFn()
	if input.ReferenceTime != nil {
		now = input.ReferenceTime.UTC()
	}

	report := &TickReport{}
	t.expire(ctx, now, report)
	t.dispatchDue(ctx, now, report)

	t.metrics.RecordTick(ctx, *report)
	t.logger.InfoContext(ctx, "tick completed",
		"due", report.Due,
		"dispatched", report.Dispatched,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"expired", report.Expired,
		"invalidated", report.Invalidated,
	)

	return report, nil
}

// expire removes superseded results whose window has ended and notifies the
// affected users so connected clients drop stale state. The delete and the
// trigger cleanup are one atomic statement; only the notifications are
// best-effort.
func (t *Tick) expire(ctx context.Context, now time.Time, report *TickReport) {
	expired, err := t.triggers.ExpirePending(ctx, now)
	if err != nil {
		t.logger.ErrorContext(ctx, "expiry sweep failed", "error", err)
		return
	}
	report.Expired = len(expired)

	for _, e := range expired {
		event := types.MealEvent{UserID: e.UserID, Kind: types.MealEventInvalidated}
		if err := t.events.Publish(ctx, event); err != nil {
			t.logger.WarnContext(ctx, "invalidation event not published",
				"user_id", e.UserID, "result_id", e.ResultID, "error", err)
			continue
		}
		report.Invalidated++
	}
}

// dispatchDue claims each due trigger and hands it to processTrigger.
func (t *Tick) dispatchDue(ctx context.Context, now time.Time, report *TickReport) {
	due, err := t.triggers.GetDue(ctx, now, t.batchLimit)
	if err != nil {
		t.logger.ErrorContext(ctx, "due trigger query failed", "error", err)
		return
	}
	report.Due = len(due)

	for i := range due {
		trigger := &due[i]
		if err := t.processTrigger(ctx, trigger, now); err != nil {
			if types.CodeOf(err) == types.ErrCodeConflictConcurrent {
				report.Skipped++
				continue
			}
			report.Failed++
			t.logger.ErrorContext(ctx, "trigger processing failed",
				"user_id", trigger.UserID,
				"window", trigger.NextWindow.String(),
				"error", err,
			)
			continue
		}
		report.Dispatched++
	}
}

// processTrigger handles one due trigger:
//
//  1. Claim it and mark the current result as pending deletion, with the
//     un-jittered boundary of the firing window as the deadline.
//  2. Dispatch the generation job.
//  3. Advance next_run_at to the following window's jittered boundary.
//
// A crash between 2 and 3 leaves the trigger due, so the next tick claims and
// dispatches it again; the generation job absorbs the duplicate.
func (t *Tick) processTrigger(ctx context.Context, trigger *types.MealTrigger, now time.Time) error {
	prefs, err := t.prefs.Get(ctx, trigger.UserID)
	if err != nil {
		return err
	}

	windowEnd := window.WindowEnd(prefs, trigger.NextWindow, trigger.NextRunAt)
	if err := t.triggers.BeginDispatch(ctx, trigger.UserID, trigger.NextRunAt, windowEnd); err != nil {
		return err
	}

	if err := t.dispatcher.Dispatch(ctx, trigger.UserID, trigger.NextWindow, "tick"); err != nil {
		return err
	}

	nextRun, nextWindow, err := window.NextRun(prefs, trigger.NextWindow, now)
	if err != nil {
		return err
	}

	return t.triggers.Reschedule(ctx, trigger.UserID, nextRun, nextWindow)
}
