package scheduler

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// TickMetrics publishes per-tick counters to CloudWatch. Metric failures are
// logged and swallowed; observability must never fail a tick.
type TickMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewTickMetrics creates a TickMetrics publishing to the given namespace.
func NewTickMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *TickMetrics {
	return &TickMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordTick emits the tick counters as one PutMetricData call.
func (m *TickMetrics) RecordTick(ctx context.Context, report TickReport) {
	datum := func(name string, value int) cwtypes.MetricDatum {
		return cwtypes.MetricDatum{
			MetricName: aws.String(name),
			Value:      aws.Float64(float64(value)),
			Unit:       cwtypes.StandardUnitCount,
		}
	}

	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			datum("TriggersDue", report.Due),
			datum("JobsDispatched", report.Dispatched),
			datum("TriggersSkipped", report.Skipped),
			datum("TriggerFailures", report.Failed),
			datum("ResultsExpired", report.Expired),
			datum("InvalidationsPublished", report.Invalidated),
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.WarnContext(ctx, "failed to publish tick metrics", "error", err)
	}
}
