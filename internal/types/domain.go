// Package types defines the shared domain types for the grocery-meal-agent
// platform: meal windows, per-user scheduling triggers, generated results,
// pantry inventory, queue message envelopes, and the application error model.
package types

import (
	"encoding/json"
	"time"
)

// MealWindow identifies one of the four fixed daily meal periods.
// Windows are cyclic: dinner wraps around to the next day's breakfast.
type MealWindow int

const (
	WindowBreakfast MealWindow = iota
	WindowLunch
	WindowEveningSnack
	WindowDinner

	// WindowCount is the number of meal windows in a day.
	WindowCount = 4
)

// String returns the canonical window name used in stored results and
// generation requests.
func (w MealWindow) String() string {
	switch w {
	case WindowBreakfast:
		return "breakfast"
	case WindowLunch:
		return "lunch"
	case WindowEveningSnack:
		return "eveningSnack"
	case WindowDinner:
		return "dinner"
	default:
		return "unknown"
	}
}

// Valid reports whether w is one of the four defined windows.
func (w MealWindow) Valid() bool {
	return w >= WindowBreakfast && w <= WindowDinner
}

// Next returns the window following w, wrapping dinner to breakfast.
func (w MealWindow) Next() MealWindow {
	return (w + 1) % WindowCount
}

// ClockTime is a wall-clock time of day (UTC) without a date component.
// It is the storage representation of a meal window boundary.
type ClockTime struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// On anchors the clock time to the date of ref (UTC).
func (c ClockTime) On(ref time.Time) time.Time {
	return time.Date(ref.Year(), ref.Month(), ref.Day(), c.Hour, c.Minute, 0, 0, time.UTC)
}

// MinuteOfDay returns the clock time as minutes since midnight, the column
// representation in meal_preferences.
func (c ClockTime) MinuteOfDay() int {
	return c.Hour*60 + c.Minute
}

// ClockTimeOfMinute converts minutes since midnight back to a ClockTime.
func ClockTimeOfMinute(m int) ClockTime {
	return ClockTime{Hour: m / 60, Minute: m % 60}
}

// MealPreference holds a user's four window boundary times plus the fixed
// load-balancing jitter assigned once at enrollment. Immutable after creation.
type MealPreference struct {
	UserID        int64
	Breakfast     ClockTime
	Lunch         ClockTime
	EveningSnack  ClockTime
	Dinner        ClockTime
	OffsetMinutes int // jitter in [0,30), fixed for the user's lifetime
}

// Boundary returns the boundary clock time for the given window.
func (p *MealPreference) Boundary(w MealWindow) ClockTime {
	switch w {
	case WindowBreakfast:
		return p.Breakfast
	case WindowLunch:
		return p.Lunch
	case WindowEveningSnack:
		return p.EveningSnack
	default:
		return p.Dinner
	}
}

// MealTrigger is the per-user persistent scheduling record driving the
// recurring generation cycle. Exactly one row exists per user; it is mutated
// only by the scheduler tick and the generation job, never deleted while the
// user exists.
//
// CurrentResultID and PendingDeleteResultID are index-based ownership
// references: the trigger points at results by ID, results never point back.
type MealTrigger struct {
	UserID                int64
	NextRunAt             time.Time
	NextWindow            MealWindow
	CurrentResultID       *int64
	PendingDeleteResultID *int64
	WindowEndAt           *time.Time
}

// MealResult is one generated recommendation set for a specific user and
// window. Immutable once written; created only by the generation job and
// deleted only by the scheduler tick's deferred-deletion pass.
type MealResult struct {
	ID          int64
	UserID      int64
	Window      MealWindow
	GeneratedAt time.Time
	Payload     json.RawMessage
	Consumed    bool
}

// PantryItem is one inventory row used as generation context.
type PantryItem struct {
	ID            int64
	UserID        int64
	Name          string
	Brand         string
	Quantity      float64
	Unit          string
	ShelfLifeDays int
	PurchasedAt   time.Time
}

// DaysOwned returns the whole days elapsed since the item was purchased.
func (p *PantryItem) DaysOwned(now time.Time) int {
	return int(now.Sub(p.PurchasedAt).Hours() / 24)
}

// GenerationItem is the wire shape of one pantry item in a generation
// request sent to the recipe gateway.
type GenerationItem struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Brand     string  `json:"brand,omitempty"`
	Quantity  float64 `json:"quantity"`
	Unit      string  `json:"unit,omitempty"`
	DaysOwned int     `json:"daysOwned"`
}

// RecipeItem is one ingredient entry within a generated recommendation.
// ID refers back to the pantry item it consumes; -1 marks a pantry staple
// (oil, salt) that has no inventory row.
type RecipeItem struct {
	ID       *int64  `json:"id,omitempty"`
	Name     string  `json:"name" validate:"required"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit" validate:"required"`
}

// Recipe is a single generated meal recommendation.
type Recipe struct {
	Description  string       `json:"description" validate:"required"`
	Items        []RecipeItem `json:"items" validate:"required,min=1,dive"`
	Steps        []string     `json:"steps" validate:"required,min=1"`
	TimeEstimate string       `json:"timeEstimate" validate:"required"`
}

// RecipeList is the validated response of the generation gateway. The
// gateway contract requires exactly three recommendations.
type RecipeList struct {
	Recommendations []Recipe `json:"recommendations" validate:"required,len=3,dive"`
}

// GenerationMessage is the SQS payload dispatched by the scheduler tick to
// the generation worker. Delivery is at-least-once; the worker must tolerate
// duplicates for the same (user, window).
type GenerationMessage struct {
	TraceID string     `json:"traceId"`
	UserID  int64      `json:"userId"`
	Window  MealWindow `json:"windowIndex"`
}

// MealEventKind distinguishes the two meal-channel event types.
type MealEventKind string

const (
	// MealEventReady signals that a fresh result exists for the user.
	MealEventReady MealEventKind = "meal_ready"
	// MealEventInvalidated signals that a stale result was removed without a
	// replacement, so a connected client should refresh its local state.
	MealEventInvalidated MealEventKind = "meal_invalidated"
)

// MealEvent is the payload on the mealGenerated event channel. Delivery is
// at-least-once; consumers are idempotent under duplicates (the push is a
// content-free signal and clients re-fetch).
type MealEvent struct {
	UserID int64         `json:"userId"`
	Kind   MealEventKind `json:"kind"`
}
