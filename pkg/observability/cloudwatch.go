package observability

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"

	"topicgraph/application/ports"
)

// CloudWatchClient is the part of the CloudWatch API the reporter needs
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

var _ CloudWatchClient = (*cloudwatch.Client)(nil)

// CloudWatchReporter sends one latency and one count datum per operation.
// Failures to report are logged and never reach the caller.
type CloudWatchReporter struct {
	namespace string
	client    CloudWatchClient
	timeout   time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

var _ ports.MetricsRecorder = (*CloudWatchReporter)(nil)

// NewCloudWatchReporter creates a reporter. A nil client disables it.
func NewCloudWatchReporter(namespace string, client CloudWatchClient, logger *zap.Logger) *CloudWatchReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CloudWatchReporter{
		namespace: namespace,
		client:    client,
		timeout:   5 * time.Second,
		now:       time.Now,
		logger:    logger,
	}
}

// RecordSave reports a save operation
func (r *CloudWatchReporter) RecordSave(topics, unresolved int, duration time.Duration, err error) {
	data := r.datums(OperationSave, topics, duration, err)
	if err == nil && unresolved > 0 {
		data = append(data, types.MetricDatum{
			MetricName: aws.String("DeferredWrites"),
			Value:      aws.Float64(float64(unresolved)),
			Unit:       types.StandardUnitCount,
			Timestamp:  aws.Time(r.now()),
		})
	}
	r.put(data)
}

// RecordDelete reports a delete operation
func (r *CloudWatchReporter) RecordDelete(topics int, duration time.Duration, err error) {
	r.put(r.datums(OperationDelete, topics, duration, err))
}

// RecordLoad reports a graph load
func (r *CloudWatchReporter) RecordLoad(topics int, duration time.Duration, err error) {
	r.put(r.datums(OperationLoad, topics, duration, err))
}

func (r *CloudWatchReporter) datums(operation string, topics int, duration time.Duration, err error) []types.MetricDatum {
	dimensions := []types.Dimension{
		{
			Name:  aws.String("Operation"),
			Value: aws.String(operation),
		},
		{
			Name:  aws.String("Outcome"),
			Value: aws.String(outcome(err)),
		},
	}
	now := r.now()
	return []types.MetricDatum{
		{
			MetricName: aws.String("OperationLatency"),
			Dimensions: dimensions,
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       types.StandardUnitMilliseconds,
			Timestamp:  aws.Time(now),
		},
		{
			MetricName: aws.String("TopicCount"),
			Dimensions: dimensions,
			Value:      aws.Float64(float64(topics)),
			Unit:       types.StandardUnitCount,
			Timestamp:  aws.Time(now),
		},
	}
}

func (r *CloudWatchReporter) put(data []types.MetricDatum) {
	if r.client == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(r.namespace),
		MetricData: data,
	}
	if _, err := r.client.PutMetricData(ctx, input); err != nil {
		r.logger.Warn("Failed to send metrics", zap.String("namespace", r.namespace), zap.Error(err))
	}
}
