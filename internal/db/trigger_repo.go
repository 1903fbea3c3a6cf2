package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pmg5408/grocery-meal-agent/internal/types"
)

// TriggerRepository provides data access for the meal_triggers table, the
// per-user recurring timer driving proactive generation. Each user has exactly
// one row (user_id is the primary key); the scheduler tick claims due rows
// with an optimistic compare-and-set on next_run_at so concurrent ticks never
// dispatch the same firing twice.
type TriggerRepository struct {
	db DBTX
}

// NewTriggerRepository creates a new TriggerRepository backed by the given
// database connection (pool or transaction).
func NewTriggerRepository(db DBTX) *TriggerRepository {
	return &TriggerRepository{db: db}
}

// Create inserts the trigger row for a newly enrolled user. A duplicate
// user_id maps to ErrCodeConflictEnrolled so the enrollment handler can
// return a clean conflict instead of a raw constraint error.
func (r *TriggerRepository) Create(ctx context.Context, t *types.MealTrigger) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO meal_triggers (user_id, next_run_at, next_window)
		 VALUES ($1, $2, $3)`,
		t.UserID,
		t.NextRunAt,
		int(t.NextWindow),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeConflictEnrolled, "user already has a meal trigger", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create meal trigger", err)
	}
	return nil
}

// Get returns the trigger for a single user, or ErrCodeNotFoundTrigger.
func (r *TriggerRepository) Get(ctx context.Context, userID int64) (*types.MealTrigger, error) {
	var (
		t      types.MealTrigger
		window int
	)
	err := r.db.QueryRow(ctx,
		`SELECT user_id, next_run_at, next_window,
		        current_result_id, pending_delete_result_id, window_end_at
		 FROM meal_triggers
		 WHERE user_id = $1`,
		userID,
	).Scan(
		&t.UserID,
		&t.NextRunAt,
		&window,
		&t.CurrentResultID,
		&t.PendingDeleteResultID,
		&t.WindowEndAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundTrigger, "meal trigger not found", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get meal trigger", err)
	}
	t.NextWindow = types.MealWindow(window)
	return &t, nil
}

// GetDue returns triggers whose next_run_at has passed, oldest first, capped
// at limit. The rows are a read-only snapshot: claiming happens per user in
// BeginDispatch, so stale entries here cost nothing beyond a skipped update.
func (r *TriggerRepository) GetDue(ctx context.Context, now time.Time, limit int) ([]types.MealTrigger, error) {
	rows, err := r.db.Query(ctx,
		`SELECT user_id, next_run_at, next_window,
		        current_result_id, pending_delete_result_id, window_end_at
		 FROM meal_triggers
		 WHERE next_run_at <= $1
		 ORDER BY next_run_at
		 LIMIT $2`,
		now,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query due meal triggers", err)
	}
	defer rows.Close()

	var due []types.MealTrigger
	for rows.Next() {
		var (
			t      types.MealTrigger
			window int
		)
		if err := rows.Scan(
			&t.UserID,
			&t.NextRunAt,
			&window,
			&t.CurrentResultID,
			&t.PendingDeleteResultID,
			&t.WindowEndAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan due meal trigger", err)
		}
		t.NextWindow = types.MealWindow(window)
		due = append(due, t)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating due meal triggers", err)
	}

	return due, nil
}

// BeginDispatch claims a due trigger and records the supersession of the
// user's current result in one atomic statement:
//
//	UPDATE meal_triggers
//	SET pending_delete_result_id = current_result_id,
//	    window_end_at = $3
//	WHERE user_id = $1 AND next_run_at = $2
//
// The next_run_at condition is the optimistic guard: a concurrent tick that
// already claimed (and rescheduled) this firing leaves zero rows to update,
// and the caller receives ErrCodeConflictConcurrent to skip the user.
//
// The previous result is never deleted here. It stays serveable until
// windowEnd, when the expiry sweep removes it.
func (r *TriggerRepository) BeginDispatch(ctx context.Context, userID int64, observedNextRun, windowEnd time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE meal_triggers
		 SET pending_delete_result_id = current_result_id,
		     window_end_at = $3
		 WHERE user_id = $1 AND next_run_at = $2`,
		userID,
		observedNextRun,
		windowEnd,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to claim meal trigger", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeConflictConcurrent, "meal trigger claimed by another tick", nil)
	}
	return nil
}

// Reschedule advances the trigger to its next firing. Called after the
// generation job has been dispatched; if the process dies in between, the
// trigger stays due and the next tick redispatches, which the idempotent job
// tolerates.
func (r *TriggerRepository) Reschedule(ctx context.Context, userID int64, nextRun time.Time, nextWindow types.MealWindow) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE meal_triggers
		 SET next_run_at = $2, next_window = $3
		 WHERE user_id = $1`,
		userID,
		nextRun,
		int(nextWindow),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to reschedule meal trigger", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundTrigger, "meal trigger not found", nil)
	}
	return nil
}

// SetCurrentResult points the trigger at a freshly generated result. Later
// writes win: two jobs racing for the same user both succeed and the second
// UPDATE determines the served result, which converges because both results
// were generated for the same window.
func (r *TriggerRepository) SetCurrentResult(ctx context.Context, userID, resultID int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE meal_triggers
		 SET current_result_id = $2
		 WHERE user_id = $1`,
		userID,
		resultID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to set current meal result", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundTrigger, "meal trigger not found", nil)
	}
	return nil
}

// ExpiredResult identifies one superseded result removed by ExpirePending.
type ExpiredResult struct {
	UserID   int64
	ResultID int64
}

// ExpirePending deletes every superseded result whose deletion deadline has
// passed and clears the corresponding trigger fields, all in one statement:
//
//	WITH expired AS (
//	    SELECT user_id, pending_delete_result_id ... FOR UPDATE SKIP LOCKED
//	), cleared AS (
//	    UPDATE meal_triggers ... FROM expired ...
//	)
//	DELETE FROM meal_results ... RETURNING ...
//
// SKIP LOCKED lets overlapping sweeps partition the work instead of blocking
// on each other. The returned pairs feed invalidation notifications.
func (r *TriggerRepository) ExpirePending(ctx context.Context, now time.Time) ([]ExpiredResult, error) {
	rows, err := r.db.Query(ctx,
		`WITH expired AS (
		     SELECT user_id, pending_delete_result_id AS result_id
		     FROM meal_triggers
		     WHERE pending_delete_result_id IS NOT NULL
		       AND window_end_at <= $1
		     FOR UPDATE SKIP LOCKED
		 ),
		 cleared AS (
		     UPDATE meal_triggers t
		     SET pending_delete_result_id = NULL,
		         window_end_at = NULL
		     FROM expired e
		     WHERE t.user_id = e.user_id
		 )
		 DELETE FROM meal_results m
		 USING expired e
		 WHERE m.id = e.result_id
		 RETURNING e.user_id, e.result_id`,
		now,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to expire superseded meal results", err)
	}
	defer rows.Close()

	var expired []ExpiredResult
	for rows.Next() {
		var e ExpiredResult
		if err := rows.Scan(&e.UserID, &e.ResultID); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan expired meal result", err)
		}
		expired = append(expired, e)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating expired meal results", err)
	}

	return expired, nil
}
