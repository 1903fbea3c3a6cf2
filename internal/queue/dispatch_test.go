package queue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pmg5408/grocery-meal-agent/internal/config"
	"github.com/pmg5408/grocery-meal-agent/internal/types"
)

type mockSQSSender struct {
	mock.Mock
}

func (m *mockSQSSender) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.SendMessageOutput), args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAWSConfig() config.AWSConfig {
	return config.AWSConfig{
		GenerationQueue: "https://sqs.us-east-1.amazonaws.com/123/generation-jobs",
		MealEventQueue:  "https://sqs.us-east-1.amazonaws.com/123/meal-events",
	}
}

func TestGenerationDispatcher_Dispatch_SendsMessage(t *testing.T) {
	sender := new(mockSQSSender)
	d := NewGenerationDispatcher(sender, testAWSConfig(), discardLogger())
	ctx := context.Background()

	sender.On("SendMessage", ctx, mock.MatchedBy(func(input *sqs.SendMessageInput) bool {
		if *input.QueueUrl != "https://sqs.us-east-1.amazonaws.com/123/generation-jobs" {
			return false
		}
		var msg types.GenerationMessage
		if err := json.Unmarshal([]byte(*input.MessageBody), &msg); err != nil {
			return false
		}
		reason, ok := input.MessageAttributes["reason"]
		return msg.UserID == 7 &&
			msg.Window == types.WindowLunch &&
			msg.TraceID != "" &&
			ok && *reason.StringValue == "tick"
	})).Return(&sqs.SendMessageOutput{}, nil)

	err := d.Dispatch(ctx, 7, types.WindowLunch, "tick")
	require.NoError(t, err)
	sender.AssertExpectations(t)
}

func TestGenerationDispatcher_Dispatch_FreshTraceIDPerCall(t *testing.T) {
	sender := new(mockSQSSender)
	d := NewGenerationDispatcher(sender, testAWSConfig(), discardLogger())
	ctx := context.Background()

	var traceIDs []string
	sender.On("SendMessage", ctx, mock.Anything).
		Run(func(args mock.Arguments) {
			input := args.Get(1).(*sqs.SendMessageInput)
			var msg types.GenerationMessage
			_ = json.Unmarshal([]byte(*input.MessageBody), &msg)
			traceIDs = append(traceIDs, msg.TraceID)
		}).
		Return(&sqs.SendMessageOutput{}, nil).Times(2)

	require.NoError(t, d.Dispatch(ctx, 7, types.WindowLunch, "tick"))
	require.NoError(t, d.Dispatch(ctx, 7, types.WindowLunch, "tick"))
	require.Len(t, traceIDs, 2)
	assert.NotEqual(t, traceIDs[0], traceIDs[1])
	sender.AssertExpectations(t)
}

func TestGenerationDispatcher_Dispatch_SendError(t *testing.T) {
	sender := new(mockSQSSender)
	d := NewGenerationDispatcher(sender, testAWSConfig(), discardLogger())
	ctx := context.Background()

	sender.On("SendMessage", ctx, mock.Anything).
		Return(nil, errors.New("throttled"))

	err := d.Dispatch(ctx, 7, types.WindowDinner, "tick")
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeUpstreamQueue, types.CodeOf(err))
	assert.True(t, types.IsRetryable(err))
	sender.AssertExpectations(t)
}

func TestMealEventPublisher_Publish_SendsEvent(t *testing.T) {
	sender := new(mockSQSSender)
	p := NewMealEventPublisher(sender, testAWSConfig(), discardLogger())
	ctx := context.Background()

	sender.On("SendMessage", ctx, mock.MatchedBy(func(input *sqs.SendMessageInput) bool {
		if *input.QueueUrl != "https://sqs.us-east-1.amazonaws.com/123/meal-events" {
			return false
		}
		var event types.MealEvent
		if err := json.Unmarshal([]byte(*input.MessageBody), &event); err != nil {
			return false
		}
		return event.UserID == 7 && event.Kind == types.MealEventReady
	})).Return(&sqs.SendMessageOutput{}, nil)

	err := p.Publish(ctx, types.MealEvent{UserID: 7, Kind: types.MealEventReady})
	require.NoError(t, err)
	sender.AssertExpectations(t)
}

func TestMealEventPublisher_Publish_SendError(t *testing.T) {
	sender := new(mockSQSSender)
	p := NewMealEventPublisher(sender, testAWSConfig(), discardLogger())
	ctx := context.Background()

	sender.On("SendMessage", ctx, mock.Anything).
		Return(nil, errors.New("queue unavailable"))

	err := p.Publish(ctx, types.MealEvent{UserID: 7, Kind: types.MealEventInvalidated})
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeUpstreamQueue, types.CodeOf(err))
	sender.AssertExpectations(t)
}
