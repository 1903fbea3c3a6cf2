package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pmg5408/grocery-meal-agent/internal/types"
)

type mockPreferenceWriter struct {
	mock.Mock
}

func (m *mockPreferenceWriter) Create(ctx context.Context, p *types.MealPreference) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

type mockTriggerWriter struct {
	mock.Mock
}

func (m *mockTriggerWriter) Create(ctx context.Context, trigger *types.MealTrigger) error {
	args := m.Called(ctx, trigger)
	return args.Error(0)
}

func newEnroller(now time.Time, offset int) (*Enroller, *mockPreferenceWriter, *mockTriggerWriter, *mockJobDispatcher) {
	prefs := new(mockPreferenceWriter)
	triggers := new(mockTriggerWriter)
	dispatcher := new(mockJobDispatcher)
	e := NewEnroller(prefs, triggers, dispatcher, testLogger()).
		WithClock(func() time.Time { return now }).
		WithOffsetFunc(func() int { return offset })
	return e, prefs, triggers, dispatcher
}

func TestEnroller_Enroll_CreatesStateAndDispatchesCurrentWindow(t *testing.T) {
	// Enrolling mid-morning: current window is breakfast, next fire is the
	// jittered lunch boundary.
	now := time.Date(2024, 6, 10, 10, 30, 0, 0, time.UTC)
	e, prefs, triggers, dispatcher := newEnroller(now, 20)
	ctx := context.Background()

	prefs.On("Create", ctx, mock.MatchedBy(func(p *types.MealPreference) bool {
		return p.UserID == 7 && p.OffsetMinutes == 20
	})).Return(nil)
	triggers.On("Create", ctx, mock.MatchedBy(func(trigger *types.MealTrigger) bool {
		return trigger.UserID == 7 &&
			trigger.NextWindow == types.WindowLunch &&
			trigger.NextRunAt.Equal(time.Date(2024, 6, 10, 11, 40, 0, 0, time.UTC))
	})).Return(nil)
	dispatcher.On("Dispatch", ctx, int64(7), types.WindowBreakfast, "enrollment").Return(nil)

	got, err := e.Enroll(ctx, 7, DefaultBoundaries())
	require.NoError(t, err)
	assert.Equal(t, 20, got.OffsetMinutes)
	prefs.AssertExpectations(t)
	triggers.AssertExpectations(t)
	dispatcher.AssertExpectations(t)
}

func TestEnroller_Enroll_DuplicateUser(t *testing.T) {
	now := time.Date(2024, 6, 10, 10, 30, 0, 0, time.UTC)
	e, prefs, triggers, dispatcher := newEnroller(now, 5)
	ctx := context.Background()

	prefs.On("Create", ctx, mock.Anything).
		Return(types.NewAppError(types.ErrCodeConflictEnrolled, "already enrolled", nil))

	got, err := e.Enroll(ctx, 7, DefaultBoundaries())
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Equal(t, types.ErrCodeConflictEnrolled, types.CodeOf(err))
	triggers.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEnroller_Enroll_DispatchFailureIsNotFatal(t *testing.T) {
	now := time.Date(2024, 6, 10, 19, 0, 0, 0, time.UTC)
	e, prefs, triggers, dispatcher := newEnroller(now, 0)
	ctx := context.Background()

	prefs.On("Create", ctx, mock.Anything).Return(nil)
	triggers.On("Create", ctx, mock.MatchedBy(func(trigger *types.MealTrigger) bool {
		// Enrolled during dinner: next fire is tomorrow's breakfast.
		return trigger.NextWindow == types.WindowBreakfast &&
			trigger.NextRunAt.Equal(time.Date(2024, 6, 11, 8, 0, 0, 0, time.UTC))
	})).Return(nil)
	dispatcher.On("Dispatch", ctx, int64(7), types.WindowDinner, "enrollment").
		Return(types.NewAppError(types.ErrCodeUpstreamQueue, "queue down", nil))

	got, err := e.Enroll(ctx, 7, DefaultBoundaries())
	require.NoError(t, err, "queue outage at enrollment must not fail the enrollment")
	assert.NotNil(t, got)
	triggers.AssertExpectations(t)
}
