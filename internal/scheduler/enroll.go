package scheduler

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/pmg5408/grocery-meal-agent/internal/types"
	"github.com/pmg5408/grocery-meal-agent/internal/window"
)

// jitterRangeMinutes bounds the per-user dispatch offset. Offsets spread a
// cohort with identical boundary times across a half hour so their jobs do
// not all fire in the same tick.
const jitterRangeMinutes = 30

// PreferenceWriter persists new preference rows.
type PreferenceWriter interface {
	Create(ctx context.Context, p *types.MealPreference) error
}

// TriggerWriter persists new trigger rows.
type TriggerWriter interface {
	Create(ctx context.Context, t *types.MealTrigger) error
}

// Boundaries are the four daily boundary times a user enrolls with.
type Boundaries struct {
	Breakfast    types.ClockTime `json:"breakfast"`
	Lunch        types.ClockTime `json:"lunch"`
	EveningSnack types.ClockTime `json:"eveningSnack"`
	Dinner       types.ClockTime `json:"dinner"`
}

// DefaultBoundaries returns the standard meal schedule used when a user
// enrolls without custom times.
func DefaultBoundaries() Boundaries {
	return Boundaries{
		Breakfast:    types.ClockTime{Hour: 8},
		Lunch:        types.ClockTime{Hour: 12},
		EveningSnack: types.ClockTime{Hour: 16},
		Dinner:       types.ClockTime{Hour: 18},
	}
}

// Enroller sets up the scheduling state for a new user: a preference row with
// a freshly drawn jitter offset, a trigger aimed at the next window boundary,
// and an immediate generation job for the window the user enrolled in.
type Enroller struct {
	prefs      PreferenceWriter
	triggers   TriggerWriter
	dispatcher JobDispatcher
	logger     *slog.Logger
	nowFn      func() time.Time
	offsetFn   func() int
}

// NewEnroller wires an Enroller.
func NewEnroller(prefs PreferenceWriter, triggers TriggerWriter, dispatcher JobDispatcher, logger *slog.Logger) *Enroller {
	return &Enroller{
		prefs:      prefs,
		triggers:   triggers,
		dispatcher: dispatcher,
		logger:     logger,
		nowFn:      func() time.Time { return time.Now().UTC() },
		offsetFn:   func() int { return rand.IntN(jitterRangeMinutes) },
	}
}

// WithClock overrides the enrollment clock, for tests.
func (e *Enroller) WithClock(nowFn func() time.Time) *Enroller {
	e.nowFn = nowFn
	return e
}

// WithOffsetFunc overrides the jitter draw, for tests.
func (e *Enroller) WithOffsetFunc(fn func() int) *Enroller {
	e.offsetFn = fn
	return e
}

// Enroll creates the user's scheduling state and kicks off generation for the
// window containing now, so the user has recommendations without waiting for
// the first boundary. A duplicate enrollment surfaces ErrCodeConflictEnrolled
// from the preference insert.
//
// The immediate dispatch is best-effort: if the queue is down, the trigger
// still exists and the user catches up at the next window boundary.
func (e *Enroller) Enroll(ctx context.Context, userID int64, b Boundaries) (*types.MealPreference, error) {
	now := e.nowFn()

	prefs := &types.MealPreference{
		UserID:        userID,
		Breakfast:     b.Breakfast,
		Lunch:         b.Lunch,
		EveningSnack:  b.EveningSnack,
		Dinner:        b.Dinner,
		OffsetMinutes: e.offsetFn(),
	}
	if err := e.prefs.Create(ctx, prefs); err != nil {
		return nil, err
	}

	current := window.CurrentWindow(prefs, now)
	nextRun, nextWindow, err := window.NextRun(prefs, current, now)
	if err != nil {
		return nil, err
	}

	trigger := &types.MealTrigger{
		UserID:     userID,
		NextRunAt:  nextRun,
		NextWindow: nextWindow,
	}
	if err := e.triggers.Create(ctx, trigger); err != nil {
		return nil, err
	}

	if err := e.dispatcher.Dispatch(ctx, userID, current, "enrollment"); err != nil {
		e.logger.WarnContext(ctx, "enrollment generation not dispatched",
			"user_id", userID, "window", current.String(), "error", err)
	}

	e.logger.InfoContext(ctx, "user enrolled",
		"user_id", userID,
		"offset_minutes", prefs.OffsetMinutes,
		"current_window", current.String(),
		"next_run_at", nextRun,
		"next_window", nextWindow.String(),
	)

	return prefs, nil
}
