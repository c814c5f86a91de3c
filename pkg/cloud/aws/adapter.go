// Package aws implements the cloud.Adapter contract for Amazon EC2, with
// CloudWatch telemetry and Cost Explorer spend data.
package aws

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"

	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/cloud"
	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/telemetry"
)

// defaultRegion is used when the caller does not supply one. Cost Explorer
// only exists in us-east-1, so its client is always pinned there.
const defaultRegion = "us-east-1"

// ec2API is the subset of the EC2 client the adapter uses. It is satisfied
// by *ec2.Client and by test fakes, and is accepted by the SDK's paginator
// and waiter constructors.
type ec2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	StartInstances(ctx context.Context, params *ec2.StartInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error)
	StopInstances(ctx context.Context, params *ec2.StopInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error)
	ModifyInstanceAttribute(ctx context.Context, params *ec2.ModifyInstanceAttributeInput, optFns ...func(*ec2.Options)) (*ec2.ModifyInstanceAttributeOutput, error)
}

type cloudwatchAPI interface {
	GetMetricStatistics(ctx context.Context, params *cloudwatch.GetMetricStatisticsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error)
}

type costExplorerAPI interface {
	GetCostAndUsage(ctx context.Context, params *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
}

// Adapter implements cloud.Adapter for AWS. A fresh client is built per
// call; the SDK config itself is cheap and the static credentials never
// expire mid-session.
type Adapter struct {
	creds  cloud.AWSCredentials
	opts   cloud.Options
	logger *telemetry.Logger

	newEC2          func(ctx context.Context, region string) (ec2API, error)
	newCloudWatch   func(ctx context.Context, region string) (cloudwatchAPI, error)
	newCostExplorer func(ctx context.Context) (costExplorerAPI, error)
}

// New creates an AWS adapter from decrypted credential JSON.
func New(credJSON []byte, opts cloud.Options, logger *telemetry.Logger) (*Adapter, error) {
	var creds cloud.AWSCredentials
	if err := cloud.DecodeCredentials(credJSON, &creds); err != nil {
		return nil, err
	}

	a := &Adapter{
		creds:  creds,
		opts:   opts.Normalize(),
		logger: logger.NewComponentLogger("adapter.aws"),
	}

	a.newEC2 = func(ctx context.Context, region string) (ec2API, error) {
		cfg, err := a.awsConfig(ctx, region)
		if err != nil {
			return nil, err
		}
		return ec2.NewFromConfig(cfg), nil
	}
	a.newCloudWatch = func(ctx context.Context, region string) (cloudwatchAPI, error) {
		cfg, err := a.awsConfig(ctx, region)
		if err != nil {
			return nil, err
		}
		return cloudwatch.NewFromConfig(cfg), nil
	}
	a.newCostExplorer = func(ctx context.Context) (costExplorerAPI, error) {
		cfg, err := a.awsConfig(ctx, defaultRegion)
		if err != nil {
			return nil, err
		}
		return costexplorer.NewFromConfig(cfg), nil
	}

	return a, nil
}

func (a *Adapter) awsConfig(ctx context.Context, region string) (awssdk.Config, error) {
	return config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				a.creds.AccessKeyID,
				a.creds.SecretAccessKey,
				a.creds.SessionToken,
			),
		),
	)
}

// mapError converts an SDK failure into the shared taxonomy.
func mapError(err error, operation, resource string) *cloud.Error {
	var mapped *cloud.Error

	var apiErr smithy.APIError
	switch {
	case errors.As(err, &apiErr):
		switch apiErr.ErrorCode() {
		case "UnauthorizedOperation", "AuthFailure", "AccessDenied", "AccessDeniedException":
			mapped = cloud.NewPermissionError("aws api denied the request", err)
		case "InvalidInstanceID.NotFound":
			mapped = cloud.NewNotFoundError("instance does not exist", err)
		case "InvalidInstanceID.Malformed":
			mapped = cloud.NewValidationError("malformed instance id", err)
		case "RequestLimitExceeded", "Throttling", "ThrottlingException", "TooManyRequestsException":
			mapped = cloud.NewRateLimitError("aws api throttled the request", err)
		default:
			mapped = cloud.NewConnectionError("aws api call failed", err)
		}
	case errors.Is(err, context.DeadlineExceeded):
		mapped = cloud.NewTimeoutError("aws operation exceeded its deadline", err)
	default:
		mapped = cloud.NewConnectionError("aws api unreachable", err)
	}

	return mapped.WithProvider(cloud.ProviderAWS).WithOperation(operation).WithResource(resource)
}

// TestConnection lists a minimal page of instances.
func (a *Adapter) TestConnection(ctx context.Context) bool {
	client, err := a.newEC2(ctx, defaultRegion)
	if err != nil {
		a.logger.WithError(err).Warn("connection test failed to build client")
		return false
	}

	_, err = client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		MaxResults: awssdk.Int32(5),
	})
	if err != nil {
		a.logger.WithError(err).Warn("connection test failed")
		return false
	}
	return true
}

// ListInstances enumerates EC2 instances in the given region (default
// region when empty). Failures surface as an empty result plus a log line.
func (a *Adapter) ListInstances(ctx context.Context, region string) ([]cloud.Instance, error) {
	if region == "" {
		region = defaultRegion
	}

	client, err := a.newEC2(ctx, region)
	if err != nil {
		a.logger.WithError(err).WithRegion(region).Error("failed to build ec2 client")
		return []cloud.Instance{}, nil
	}

	instances := []cloud.Instance{}
	paginator := ec2.NewDescribeInstancesPaginator(client, &ec2.DescribeInstancesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			a.logger.WithError(mapError(err, "ListInstances", "")).WithRegion(region).Error("failed to list instances")
			return []cloud.Instance{}, nil
		}
		for _, reservation := range page.Reservations {
			for _, raw := range reservation.Instances {
				instances = append(instances, normalizeInstance(raw, region))
			}
		}
	}

	return instances, nil
}

// GetInstance fetches a single instance by EC2 instance id.
func (a *Adapter) GetInstance(ctx context.Context, id string) (*cloud.Instance, error) {
	client, err := a.newEC2(ctx, defaultRegion)
	if err != nil {
		return nil, mapError(err, "GetInstance", id)
	}

	out, err := client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{id},
	})
	if err != nil {
		return nil, mapError(err, "GetInstance", id)
	}

	if len(out.Reservations) == 0 || len(out.Reservations[0].Instances) == 0 {
		return nil, cloud.NewNotFoundError("instance not found: "+id, nil).
			WithProvider(cloud.ProviderAWS).WithOperation("GetInstance").WithResource(id)
	}

	instance := normalizeInstance(out.Reservations[0].Instances[0], defaultRegion)
	return &instance, nil
}

// cloudwatchMetricNames maps the canonical metric vocabulary onto the
// AWS/EC2 namespace. Memory requires the CloudWatch agent on the instance.
var cloudwatchMetricNames = map[string]string{
	cloud.MetricCPU:       "CPUUtilization",
	cloud.MetricMemory:    "MemoryUtilization",
	cloud.MetricDiskIO:    "DiskReadBytes",
	cloud.MetricNetworkIO: "NetworkIn",
}

// GetInstanceMetrics fetches CloudWatch statistics for the instance.
func (a *Adapter) GetInstanceMetrics(ctx context.Context, id, metricType string, start, end time.Time, period time.Duration) ([]cloud.MetricPoint, error) {
	client, err := a.newCloudWatch(ctx, defaultRegion)
	if err != nil {
		a.logger.WithError(err).WithInstanceID(id).Error("failed to build cloudwatch client")
		return []cloud.MetricPoint{}, nil
	}

	metricName, ok := cloudwatchMetricNames[metricType]
	if !ok {
		metricName = cloudwatchMetricNames[cloud.MetricCPU]
	}

	out, err := client.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  awssdk.String("AWS/EC2"),
		MetricName: awssdk.String(metricName),
		Dimensions: []cwtypes.Dimension{
			{Name: awssdk.String("InstanceId"), Value: awssdk.String(id)},
		},
		StartTime: awssdk.Time(start),
		EndTime:   awssdk.Time(end),
		Period:    awssdk.Int32(int32(period.Seconds())),
		Statistics: []cwtypes.Statistic{
			cwtypes.StatisticAverage,
			cwtypes.StatisticMinimum,
			cwtypes.StatisticMaximum,
		},
	})
	if err != nil {
		a.logger.WithError(mapError(err, "GetInstanceMetrics", id)).Error("failed to fetch metrics")
		return []cloud.MetricPoint{}, nil
	}

	points := make([]cloud.MetricPoint, 0, len(out.Datapoints))
	for _, dp := range out.Datapoints {
		point := cloud.MetricPoint{
			Timestamp: awssdk.ToTime(dp.Timestamp),
			Value:     awssdk.ToFloat64(dp.Average),
		}
		if dp.Minimum != nil {
			point.Min = dp.Minimum
		}
		if dp.Maximum != nil {
			point.Max = dp.Maximum
		}
		points = append(points, point)
	}

	// CloudWatch returns datapoints unordered
	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})

	return points, nil
}

// StartInstance starts the instance and waits for the running state.
func (a *Adapter) StartInstance(ctx context.Context, id string) error {
	client, err := a.newEC2(ctx, defaultRegion)
	if err != nil {
		return mapError(err, "StartInstance", id)
	}

	if _, err := client.StartInstances(ctx, &ec2.StartInstancesInput{
		InstanceIds: []string{id},
	}); err != nil {
		return mapError(err, "StartInstance", id)
	}

	return a.waitRunning(ctx, client, id, "StartInstance")
}

// StopInstance stops the instance and waits for the stopped state.
func (a *Adapter) StopInstance(ctx context.Context, id string) error {
	client, err := a.newEC2(ctx, defaultRegion)
	if err != nil {
		return mapError(err, "StopInstance", id)
	}

	if _, err := client.StopInstances(ctx, &ec2.StopInstancesInput{
		InstanceIds: []string{id},
	}); err != nil {
		return mapError(err, "StopInstance", id)
	}

	return a.waitStopped(ctx, client, id, "StopInstance")
}

// ResizeInstance performs the stop -> modify -> start chain. If the type
// change fails after a successful stop, the instance stays stopped and the
// failure is returned.
func (a *Adapter) ResizeInstance(ctx context.Context, id, newType string) error {
	client, err := a.newEC2(ctx, defaultRegion)
	if err != nil {
		return mapError(err, "ResizeInstance", id)
	}

	if _, err := client.StopInstances(ctx, &ec2.StopInstancesInput{
		InstanceIds: []string{id},
	}); err != nil {
		return mapError(err, "ResizeInstance", id)
	}
	if err := a.waitStopped(ctx, client, id, "ResizeInstance"); err != nil {
		return err
	}

	if _, err := client.ModifyInstanceAttribute(ctx, &ec2.ModifyInstanceAttributeInput{
		InstanceId: awssdk.String(id),
		InstanceType: &ec2types.AttributeValue{
			Value: awssdk.String(newType),
		},
	}); err != nil {
		a.logger.WithError(err).WithInstanceID(id).Error("type change failed, instance left stopped")
		return mapError(err, "ResizeInstance", id)
	}

	if _, err := client.StartInstances(ctx, &ec2.StartInstancesInput{
		InstanceIds: []string{id},
	}); err != nil {
		return mapError(err, "ResizeInstance", id)
	}
	return a.waitRunning(ctx, client, id, "ResizeInstance")
}

func (a *Adapter) waitStopped(ctx context.Context, client ec2API, id, operation string) error {
	waiter := ec2.NewInstanceStoppedWaiter(client)
	err := waiter.Wait(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{id},
	}, a.opts.OperationTimeout)
	if err != nil {
		return mapWaitError(err, "timed out waiting for instance to stop", operation, id)
	}
	return nil
}

func (a *Adapter) waitRunning(ctx context.Context, client ec2API, id, operation string) error {
	waiter := ec2.NewInstanceRunningWaiter(client)
	err := waiter.Wait(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{id},
	}, a.opts.OperationTimeout)
	if err != nil {
		return mapWaitError(err, "timed out waiting for instance to start", operation, id)
	}
	return nil
}

// mapWaitError classifies a waiter failure. Auth and not-found failures
// surfaced through the waiter's describe calls keep their taxonomy; only
// genuine wait exhaustion becomes a timeout.
func mapWaitError(err error, timeoutMsg, operation, resource string) *cloud.Error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) || errors.Is(err, context.DeadlineExceeded) {
		return mapError(err, operation, resource)
	}
	return cloud.NewTimeoutError(timeoutMsg, err).
		WithProvider(cloud.ProviderAWS).WithOperation(operation).WithResource(resource)
}

// GetCostData queries Cost Explorer grouped by service. Failures surface as
// a zero summary plus a log line.
func (a *Adapter) GetCostData(ctx context.Context, start, end time.Time, granularity cloud.Granularity) (*cloud.CostSummary, error) {
	client, err := a.newCostExplorer(ctx)
	if err != nil {
		a.logger.WithError(err).Error("failed to build cost explorer client")
		return cloud.ZeroCostSummary("cost data unavailable"), nil
	}

	out, err := client.GetCostAndUsage(ctx, &costexplorer.GetCostAndUsageInput{
		TimePeriod: &cetypes.DateInterval{
			Start: awssdk.String(start.Format("2006-01-02")),
			End:   awssdk.String(end.Format("2006-01-02")),
		},
		Granularity: cetypes.Granularity(granularity),
		Metrics:     []string{"UnblendedCost"},
		GroupBy: []cetypes.GroupDefinition{
			{Type: cetypes.GroupDefinitionTypeDimension, Key: awssdk.String("SERVICE")},
		},
	})
	if err != nil {
		a.logger.WithError(mapError(err, "GetCostData", "")).Error("failed to fetch cost data")
		return cloud.ZeroCostSummary("cost data unavailable"), nil
	}

	summary := &cloud.CostSummary{
		ByService: map[string]float64{},
		Currency:  "USD",
	}
	for _, result := range out.ResultsByTime {
		for _, group := range result.Groups {
			if len(group.Keys) == 0 {
				continue
			}
			metric, ok := group.Metrics["UnblendedCost"]
			if !ok || metric.Amount == nil {
				continue
			}
			amount, err := strconv.ParseFloat(*metric.Amount, 64)
			if err != nil {
				continue
			}
			service := group.Keys[0]
			summary.ByService[service] += amount
			summary.TotalCost += amount
		}
	}

	return summary, nil
}
