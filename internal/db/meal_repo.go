package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/pmg5408/grocery-meal-agent/internal/types"
)

// MealRepository provides data access for the meal_results table. Results are
// append-only from the generation worker's perspective; removal happens only
// through the scheduler's deferred-deletion sweep in TriggerRepository.
type MealRepository struct {
	db DBTX
}

// NewMealRepository creates a new MealRepository backed by the given database
// connection (pool or transaction).
func NewMealRepository(db DBTX) *MealRepository {
	return &MealRepository{db: db}
}

// Create inserts a generated result and returns its BIGSERIAL ID. Duplicate
// jobs for the same (user, window) each insert their own row; the trigger's
// current_result_id decides which one is served, and the loser is swept once
// its window ends.
func (r *MealRepository) Create(ctx context.Context, m *types.MealResult) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO meal_results (user_id, meal_window, generated_at, payload, consumed)
		 VALUES ($1, $2, $3, $4, FALSE)
		 RETURNING id`,
		m.UserID,
		int(m.Window),
		m.GeneratedAt,
		m.Payload,
	).Scan(&id)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to create meal result", err)
	}
	return id, nil
}

// GetCurrent returns the result the user's trigger currently points at, or
// ErrCodeNotFoundResult when no generation has completed yet (or the trigger
// does not exist).
func (r *MealRepository) GetCurrent(ctx context.Context, userID int64) (*types.MealResult, error) {
	var (
		m      types.MealResult
		window int
	)
	err := r.db.QueryRow(ctx,
		`SELECT m.id, m.user_id, m.meal_window, m.generated_at, m.payload, m.consumed
		 FROM meal_results m
		 JOIN meal_triggers t ON t.current_result_id = m.id
		 WHERE t.user_id = $1`,
		userID,
	).Scan(
		&m.ID,
		&m.UserID,
		&window,
		&m.GeneratedAt,
		&m.Payload,
		&m.Consumed,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundResult, "no current meal result", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get current meal result", err)
	}
	m.Window = types.MealWindow(window)
	return &m, nil
}

// MarkConsumed flags a result as acted upon by its owner. The user_id guard
// prevents marking another user's result.
func (r *MealRepository) MarkConsumed(ctx context.Context, resultID, userID int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE meal_results
		 SET consumed = TRUE
		 WHERE id = $1 AND user_id = $2`,
		resultID,
		userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark meal result consumed", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundResult, "meal result not found", nil)
	}
	return nil
}
