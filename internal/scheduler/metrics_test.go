package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCloudWatch struct {
	mock.Mock
}

func (m *mockCloudWatch) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cloudwatch.PutMetricDataOutput), args.Error(1)
}

func TestTickMetrics_RecordTick_PublishesCounters(t *testing.T) {
	cw := new(mockCloudWatch)
	metrics := NewTickMetrics(cw, "MealAgent", testLogger())
	ctx := context.Background()

	cw.On("PutMetricData", ctx, mock.MatchedBy(func(input *cloudwatch.PutMetricDataInput) bool {
		if *input.Namespace != "MealAgent" || len(input.MetricData) != 6 {
			return false
		}
		values := make(map[string]float64, len(input.MetricData))
		for _, d := range input.MetricData {
			values[*d.MetricName] = *d.Value
		}
		return values["TriggersDue"] == 4 &&
			values["JobsDispatched"] == 3 &&
			values["TriggersSkipped"] == 1 &&
			values["TriggerFailures"] == 0 &&
			values["ResultsExpired"] == 2 &&
			values["InvalidationsPublished"] == 2
	})).Return(&cloudwatch.PutMetricDataOutput{}, nil)

	metrics.RecordTick(ctx, TickReport{Due: 4, Dispatched: 3, Skipped: 1, Expired: 2, Invalidated: 2})
	cw.AssertExpectations(t)
}

func TestTickMetrics_RecordTick_SwallowsPublishError(t *testing.T) {
	cw := new(mockCloudWatch)
	metrics := NewTickMetrics(cw, "MealAgent", testLogger())

	cw.On("PutMetricData", mock.Anything, mock.Anything).
		Return(nil, errors.New("throttled"))

	require.NotPanics(t, func() {
		metrics.RecordTick(context.Background(), TickReport{Due: 1})
	})
	assert.True(t, cw.AssertExpectations(t))
}
