package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/pmg5408/grocery-meal-agent/internal/types"
)

// PreferenceRepository provides data access for the meal_preferences table.
// Boundary times are stored as minutes since midnight (UTC); the jitter
// offset is assigned once at enrollment and never changes, so a user's fire
// times stay stable across restarts.
type PreferenceRepository struct {
	db DBTX
}

// NewPreferenceRepository creates a new PreferenceRepository backed by the
// given database connection (pool or transaction).
func NewPreferenceRepository(db DBTX) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// Create inserts the preference row for a newly enrolled user. A duplicate
// user_id maps to ErrCodeConflictEnrolled.
func (r *PreferenceRepository) Create(ctx context.Context, p *types.MealPreference) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO meal_preferences
		 (user_id, breakfast_min, lunch_min, evening_snack_min, dinner_min, offset_minutes)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.UserID,
		p.Breakfast.MinuteOfDay(),
		p.Lunch.MinuteOfDay(),
		p.EveningSnack.MinuteOfDay(),
		p.Dinner.MinuteOfDay(),
		p.OffsetMinutes,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeConflictEnrolled, "user already has meal preferences", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create meal preferences", err)
	}
	return nil
}

// Get returns the preferences for a single user, or ErrCodeNotFoundPreference.
func (r *PreferenceRepository) Get(ctx context.Context, userID int64) (*types.MealPreference, error) {
	var (
		p                                  types.MealPreference
		breakfast, lunch, eveSnack, dinner int
	)
	err := r.db.QueryRow(ctx,
		`SELECT user_id, breakfast_min, lunch_min, evening_snack_min, dinner_min, offset_minutes
		 FROM meal_preferences
		 WHERE user_id = $1`,
		userID,
	).Scan(
		&p.UserID,
		&breakfast,
		&lunch,
		&eveSnack,
		&dinner,
		&p.OffsetMinutes,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundPreference, "meal preferences not found", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get meal preferences", err)
	}

	p.Breakfast = types.ClockTimeOfMinute(breakfast)
	p.Lunch = types.ClockTimeOfMinute(lunch)
	p.EveningSnack = types.ClockTimeOfMinute(eveSnack)
	p.Dinner = types.ClockTimeOfMinute(dinner)
	return &p, nil
}
