package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pmg5408/grocery-meal-agent/internal/scheduler"
	"github.com/pmg5408/grocery-meal-agent/internal/types"
)

// MealReader is the result access surface the handler needs.
type MealReader interface {
	GetCurrent(ctx context.Context, userID int64) (*types.MealResult, error)
	MarkConsumed(ctx context.Context, resultID, userID int64) error
}

// EnrollService sets up scheduling state for new users.
type EnrollService interface {
	Enroll(ctx context.Context, userID int64, b scheduler.Boundaries) (*types.MealPreference, error)
}

// MealHandler maps the gateway's HTTP endpoints to domain services.
type MealHandler struct {
	meals  MealReader
	enroll EnrollService
	logger *slog.Logger
}

// NewMealHandler creates a MealHandler with the provided dependencies.
func NewMealHandler(meals MealReader, enroll EnrollService, logger *slog.Logger) *MealHandler {
	return &MealHandler{
		meals:  meals,
		enroll: enroll,
		logger: logger,
	}
}

// RegisterRoutes mounts the meal endpoints onto the router.
func (h *MealHandler) RegisterRoutes(r chi.Router) {
	r.Get("/meals/current", h.HandleGetCurrent)
	r.Post("/meals/{resultID}/consume", h.HandleConsume)
	r.Post("/enroll", h.HandleEnroll)
}

// currentMealResponse is the fetch payload: the stored recommendation JSON
// plus its window and generation time.
type currentMealResponse struct {
	ID          int64  `json:"id"`
	Window      string `json:"window"`
	GeneratedAt string `json:"generatedAt"`
	Payload     any    `json:"payload"`
	Consumed    bool   `json:"consumed"`
}

// HandleGetCurrent handles GET /api/meals/current?userId=N. Pushed events
// carry no content; this is the fetch clients perform on receipt.
func (h *MealHandler) HandleGetCurrent(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.meals.GetCurrent(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, currentMealResponse{
		ID:          result.ID,
		Window:      result.Window.String(),
		GeneratedAt: result.GeneratedAt.Format(time.RFC3339),
		Payload:     result.Payload,
		Consumed:    result.Consumed,
	})
}

// consumeRequest identifies the acting user for a consume call.
type consumeRequest struct {
	UserID int64 `json:"userId"`
}

// HandleConsume handles POST /api/meals/{resultID}/consume.
func (h *MealHandler) HandleConsume(w http.ResponseWriter, r *http.Request) {
	resultID, err := strconv.ParseInt(chi.URLParam(r, "resultID"), 10, 64)
	if err != nil || resultID <= 0 {
		writeError(w, types.NewAppError(types.ErrCodeValidationMissingField,
			"resultID path parameter must be a positive integer", err))
		return
	}

	var req consumeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.UserID <= 0 {
		writeError(w, types.NewAppError(types.ErrCodeValidationMissingField,
			"userId is required", nil))
		return
	}

	if err := h.meals.MarkConsumed(r.Context(), resultID, req.UserID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"consumed": true})
}

// enrollRequest carries the new user's ID and optional boundary times.
type enrollRequest struct {
	UserID     int64                 `json:"userId"`
	Boundaries *scheduler.Boundaries `json:"boundaries,omitempty"`
}

// enrollResponse echoes the created schedule, including the drawn jitter.
type enrollResponse struct {
	UserID        int64                `json:"userId"`
	OffsetMinutes int                  `json:"offsetMinutes"`
	Boundaries    scheduler.Boundaries `json:"boundaries"`
}

// HandleEnroll handles POST /api/enroll. Boundary times default to the
// standard schedule when omitted.
func (h *MealHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.UserID <= 0 {
		writeError(w, types.NewAppError(types.ErrCodeValidationMissingField,
			"userId is required", nil))
		return
	}

	boundaries := scheduler.DefaultBoundaries()
	if req.Boundaries != nil {
		boundaries = *req.Boundaries
	}

	prefs, err := h.enroll.Enroll(r.Context(), req.UserID, boundaries)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, enrollResponse{
		UserID:        prefs.UserID,
		OffsetMinutes: prefs.OffsetMinutes,
		Boundaries: scheduler.Boundaries{
			Breakfast:    prefs.Breakfast,
			Lunch:        prefs.Lunch,
			EveningSnack: prefs.EveningSnack,
			Dinner:       prefs.Dinner,
		},
	})
}

func parseUserID(raw string) (int64, error) {
	if raw == "" {
		return 0, types.NewAppError(types.ErrCodeValidationMissingField,
			"userId query parameter is required", nil)
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		return 0, types.NewAppError(types.ErrCodeValidationMissingField,
			"userId must be a positive integer", err)
	}
	return userID, nil
}
