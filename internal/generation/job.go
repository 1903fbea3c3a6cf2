package generation

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pmg5408/grocery-meal-agent/internal/external"
	"github.com/pmg5408/grocery-meal-agent/internal/types"
)

// RecipeGenerator abstracts the recipe gateway call.
type RecipeGenerator interface {
	Generate(ctx context.Context, req external.GenerationRequest) (*types.RecipeList, error)
}

// PantryLister provides the user's inventory as generation context.
type PantryLister interface {
	ListForUser(ctx context.Context, userID int64) ([]types.PantryItem, error)
}

// ResultWriter persists generated results.
type ResultWriter interface {
	Create(ctx context.Context, m *types.MealResult) (int64, error)
}

// TriggerPointer flips the user's trigger to a new result.
type TriggerPointer interface {
	SetCurrentResult(ctx context.Context, userID, resultID int64) error
}

// EventPublisher pushes meal events toward connected clients.
type EventPublisher interface {
	Publish(ctx context.Context, event types.MealEvent) error
}

// Job executes one generation message end to end. Duplicate messages for the
// same (user, window) each run fully; both insert a result and the later
// SetCurrentResult wins, so concurrent duplicates converge on one served
// result and the sweep removes the loser after the window ends.
type Job struct {
	generator RecipeGenerator
	pantry    PantryLister
	results   ResultWriter
	triggers  TriggerPointer
	events    EventPublisher
	logger    *slog.Logger
	nowFn     func() time.Time
}

// NewJob wires a generation Job.
func NewJob(
	generator RecipeGenerator,
	pantry PantryLister,
	results ResultWriter,
	triggers TriggerPointer,
	events EventPublisher,
	logger *slog.Logger,
) *Job {
	return &Job{
		generator: generator,
		pantry:    pantry,
		results:   results,
		triggers:  triggers,
		events:    events,
		logger:    logger,
		nowFn:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the job clock, for tests.
func (j *Job) WithClock(nowFn func() time.Time) *Job {
	j.nowFn = nowFn
	return j
}

// Run processes one generation message. Errors bubble up with their retry
// classification intact: the worker ACKs terminal failures (bad window,
// malformed message) and lets the queue redrive transient ones.
//
// The previous result is never touched here. Supersession and deletion are
// the scheduler's job; Run only adds a result and repoints the trigger.
func (j *Job) Run(ctx context.Context, msg types.GenerationMessage) error {
	if !msg.Window.Valid() {
		return types.NewAppError(types.ErrCodeValidationWindow,
			"generation message carries an invalid window index", nil)
	}

	ctx = types.WithTraceID(ctx, msg.TraceID)
	logger := j.logger.With("trace_id", msg.TraceID, "user_id", msg.UserID, "window", msg.Window.String())

	items, err := j.pantry.ListForUser(ctx, msg.UserID)
	if err != nil {
		return err
	}

	now := j.nowFn()
	priority, other := SplitPantry(items, now)
	logger.InfoContext(ctx, "generation started",
		"pantry_items", len(items),
		"priority_items", len(priority),
	)

	list, err := j.generator.Generate(ctx, external.GenerationRequest{
		Window:        msg.Window,
		PriorityItems: priority,
		OtherItems:    other,
	})
	if err != nil {
		return err
	}

	payload, err := json.Marshal(list)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected,
			"failed to marshal recommendation payload", err)
	}

	resultID, err := j.results.Create(ctx, &types.MealResult{
		UserID:      msg.UserID,
		Window:      msg.Window,
		GeneratedAt: now,
		Payload:     payload,
	})
	if err != nil {
		return err
	}

	if err := j.triggers.SetCurrentResult(ctx, msg.UserID, resultID); err != nil {
		return err
	}

	// A failed notification must not rerun the whole job: the result is
	// already persisted and served on fetch. Clients just miss one push.
	if err := j.events.Publish(ctx, types.MealEvent{UserID: msg.UserID, Kind: types.MealEventReady}); err != nil {
		logger.WarnContext(ctx, "meal ready event not published", "error", err)
	}

	logger.InfoContext(ctx, "generation completed", "result_id", resultID)
	return nil
}
