package db

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pmg5408/grocery-meal-agent/internal/types"
)

func TestMealRepository_Create_ReturnsID(t *testing.T) {
	db := new(mockDBTX)
	repo := NewMealRepository(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{
			scanFn: func(dest ...any) error {
				*dest[0].(*int64) = 101
				return nil
			},
		})

	result := &types.MealResult{
		UserID:      7,
		Window:      types.WindowLunch,
		GeneratedAt: time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC),
		Payload:     json.RawMessage(`{"recommendations":[]}`),
	}
	id, err := repo.Create(ctx, result)
	require.NoError(t, err)
	assert.Equal(t, int64(101), id)
	db.AssertExpectations(t)
}

func TestMealRepository_Create_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewMealRepository(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: errors.New("disk full")})

	id, err := repo.Create(ctx, &types.MealResult{UserID: 7})
	require.Error(t, err)
	assert.Equal(t, int64(0), id)
	assert.Equal(t, types.ErrCodeInternalDB, types.CodeOf(err))
	db.AssertExpectations(t)
}

func TestMealRepository_GetCurrent_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewMealRepository(db)
	ctx := context.Background()

	generatedAt := time.Date(2024, 6, 10, 12, 3, 0, 0, time.UTC)
	payload := json.RawMessage(`{"recommendations":[{"description":"pasta"}]}`)

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.MatchedBy(func(args []any) bool {
		return len(args) == 1 && args[0].(int64) == 7
	})).Return(&mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*int64) = 101
			*dest[1].(*int64) = 7
			*dest[2].(*int) = int(types.WindowLunch)
			*dest[3].(*time.Time) = generatedAt
			*dest[4].(*json.RawMessage) = payload
			*dest[5].(*bool) = false
			return nil
		},
	})

	result, err := repo.GetCurrent(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(101), result.ID)
	assert.Equal(t, types.WindowLunch, result.Window)
	assert.JSONEq(t, string(payload), string(result.Payload))
	assert.False(t, result.Consumed)
	db.AssertExpectations(t)
}

func TestMealRepository_GetCurrent_NoneYet(t *testing.T) {
	db := new(mockDBTX)
	repo := NewMealRepository(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	result, err := repo.GetCurrent(ctx, 7)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, types.ErrCodeNotFoundResult, types.CodeOf(err))
	db.AssertExpectations(t)
}

func TestMealRepository_MarkConsumed_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewMealRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.MatchedBy(func(args []any) bool {
		return len(args) == 2 && args[0].(int64) == 101 && args[1].(int64) == 7
	})).Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	err := repo.MarkConsumed(ctx, 101, 7)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestMealRepository_MarkConsumed_WrongOwner(t *testing.T) {
	db := new(mockDBTX)
	repo := NewMealRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := repo.MarkConsumed(ctx, 101, 8)
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeNotFoundResult, types.CodeOf(err))
	db.AssertExpectations(t)
}
