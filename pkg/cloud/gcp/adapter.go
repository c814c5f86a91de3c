// Package gcp implements the cloud.Adapter contract for Google Compute
// Engine, with Cloud Monitoring telemetry and a live Cloud Catalog price
// lookup that falls back to a static table. Instances are identified by
// the composite id "zone/instanceName".
package gcp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	billing "cloud.google.com/go/billing/apiv1"
	compute "cloud.google.com/go/compute/apiv1"
	"cloud.google.com/go/compute/apiv1/computepb"
	monitoring "cloud.google.com/go/monitoring/apiv3/v2"
	"cloud.google.com/go/monitoring/apiv3/v2/monitoringpb"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/cloud"
	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/telemetry"
)

// Adapter implements cloud.Adapter for GCP. The compute, zones, and
// monitoring clients are built at construction; the billing catalog
// client is lazy and its initialization may fail without invalidating
// the adapter.
type Adapter struct {
	creds         cloud.GCPCredentials
	opts          cloud.Options
	logger        *telemetry.Logger
	projectID     string
	defaultRegion string

	instances    *compute.InstancesClient
	zones        *compute.ZonesClient
	metricClient *monitoring.MetricClient

	billingMu     sync.Mutex
	billingClient *billing.CloudCatalogClient
	billingFailed bool
}

// New creates a GCP adapter from decrypted credential JSON.
func New(credJSON []byte, opts cloud.Options, logger *telemetry.Logger) (*Adapter, error) {
	var creds cloud.GCPCredentials
	if err := cloud.DecodeCredentials(credJSON, &creds); err != nil {
		return nil, err
	}

	region := creds.Region
	if region == "" {
		region = "us-central1"
	}

	ctx := context.Background()
	saKey := option.WithCredentialsJSON([]byte(creds.ServiceAccountJSON))

	instancesClient, err := compute.NewInstancesRESTClient(ctx, saKey)
	if err != nil {
		return nil, cloud.NewConnectionError("failed to build compute client", err).
			WithProvider(cloud.ProviderGCP)
	}

	zonesClient, err := compute.NewZonesRESTClient(ctx, saKey)
	if err != nil {
		return nil, cloud.NewConnectionError("failed to build zones client", err).
			WithProvider(cloud.ProviderGCP)
	}

	metricClient, err := monitoring.NewMetricClient(ctx, saKey)
	if err != nil {
		return nil, cloud.NewConnectionError("failed to build monitoring client", err).
			WithProvider(cloud.ProviderGCP)
	}

	return &Adapter{
		creds:         creds,
		opts:          opts.Normalize(),
		logger:        logger.NewComponentLogger("adapter.gcp"),
		projectID:     creds.ProjectID,
		defaultRegion: region,
		instances:     instancesClient,
		zones:         zonesClient,
		metricClient:  metricClient,
	}, nil
}

// mapError converts a GCP API failure into the shared taxonomy. REST
// clients surface *googleapi.Error; gRPC clients surface status errors.
func mapError(err error, operation, resource string) *cloud.Error {
	var mapped *cloud.Error

	var apiErr *googleapi.Error
	st, isStatus := status.FromError(err)
	switch {
	case errors.As(err, &apiErr):
		switch apiErr.Code {
		case 401, 403:
			mapped = cloud.NewPermissionError("gcp api denied the request", err)
		case 404:
			mapped = cloud.NewNotFoundError("resource does not exist", err)
		case 429:
			mapped = cloud.NewRateLimitError("gcp api throttled the request", err)
		default:
			mapped = cloud.NewConnectionError("gcp api call failed", err)
		}
	case errors.Is(err, context.DeadlineExceeded):
		mapped = cloud.NewTimeoutError("gcp operation exceeded its deadline", err)
	case isStatus:
		switch st.Code() {
		case codes.PermissionDenied, codes.Unauthenticated:
			mapped = cloud.NewPermissionError("gcp api denied the request", err)
		case codes.NotFound:
			mapped = cloud.NewNotFoundError("resource does not exist", err)
		case codes.ResourceExhausted:
			mapped = cloud.NewRateLimitError("gcp api throttled the request", err)
		case codes.DeadlineExceeded:
			mapped = cloud.NewTimeoutError("gcp operation exceeded its deadline", err)
		default:
			mapped = cloud.NewConnectionError("gcp api call failed", err)
		}
	default:
		mapped = cloud.NewConnectionError("gcp api unreachable", err)
	}

	return mapped.WithProvider(cloud.ProviderGCP).WithOperation(operation).WithResource(resource)
}

// TestConnection lists zones in the project.
func (a *Adapter) TestConnection(ctx context.Context) bool {
	zones, err := a.listZoneNames(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("connection test failed")
		return false
	}
	return len(zones) > 0
}

func (a *Adapter) listZoneNames(ctx context.Context) ([]string, error) {
	it := a.zones.List(ctx, &computepb.ListZonesRequest{Project: a.projectID})
	names := []string{}
	for {
		zone, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, mapError(err, "ListZones", "")
		}
		names = append(names, zone.GetName())
	}
	return names, nil
}

// ListInstances fans out over zones with bounded concurrency. A region
// argument narrows the candidate zone set; otherwise every zone in the
// project is queried. A failed zone is skipped, not fatal.
func (a *Adapter) ListInstances(ctx context.Context, region string) ([]cloud.Instance, error) {
	var zones []string
	if region != "" {
		zones = zonesForRegion(region)
	} else {
		var err error
		zones, err = a.listZoneNames(ctx)
		if err != nil {
			a.logger.WithError(err).Error("failed to enumerate zones")
			return []cloud.Instance{}, nil
		}
	}

	instances := collectZones(ctx, zones, a.opts.ZoneWorkers, a.listZone, func(zone string, err error) {
		a.logger.WithError(err).WithField("zone", zone).Debug("zone listing failed, skipping")
	})

	return instances, nil
}

// listZone fetches and normalizes all instances in one zone.
func (a *Adapter) listZone(ctx context.Context, zone string) ([]cloud.Instance, error) {
	it := a.instances.List(ctx, &computepb.ListInstancesRequest{
		Project: a.projectID,
		Zone:    zone,
	})

	out := []cloud.Instance{}
	for {
		raw, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, mapError(err, "ListInstances", "")
		}
		machineType := lastSegment(raw.GetMachineType())
		out = append(out, normalizeInstance(raw, mapStatus(raw.GetStatus()), a.estimateMonthlyCost(ctx, machineType)))
	}
	return out, nil
}

// GetInstance fetches one instance by composite id "zone/instanceName".
func (a *Adapter) GetInstance(ctx context.Context, id string) (*cloud.Instance, error) {
	zone, name, err := cloud.SplitCompositeID(id)
	if err != nil {
		return nil, err
	}

	raw, err := a.instances.Get(ctx, &computepb.GetInstanceRequest{
		Project:  a.projectID,
		Zone:     zone,
		Instance: name,
	})
	if err != nil {
		return nil, mapError(err, "GetInstance", id)
	}

	machineType := lastSegment(raw.GetMachineType())
	instance := normalizeInstance(raw, mapStatus(raw.GetStatus()), a.estimateMonthlyCost(ctx, machineType))
	return &instance, nil
}

// monitoringMetricTypes maps the canonical metric vocabulary onto Cloud
// Monitoring metric types. Memory has no agentless equivalent and falls
// back to CPU, matching the catch-all below.
var monitoringMetricTypes = map[string]string{
	cloud.MetricCPU:       "compute.googleapis.com/instance/cpu/utilization",
	cloud.MetricDiskIO:    "compute.googleapis.com/instance/disk/read_bytes_count",
	cloud.MetricNetworkIO: "compute.googleapis.com/instance/network/received_bytes_count",
}

// GetInstanceMetrics fetches Cloud Monitoring samples for the instance.
// CPU utilization is scaled from a 0..1 ratio to a percentage.
func (a *Adapter) GetInstanceMetrics(ctx context.Context, id, metricType string, start, end time.Time, period time.Duration) ([]cloud.MetricPoint, error) {
	zone, name, err := cloud.SplitCompositeID(id)
	if err != nil {
		return nil, err
	}

	gcpMetric, ok := monitoringMetricTypes[metricType]
	if !ok {
		gcpMetric = monitoringMetricTypes[cloud.MetricCPU]
		metricType = cloud.MetricCPU
	}

	it := a.metricClient.ListTimeSeries(ctx, &monitoringpb.ListTimeSeriesRequest{
		Name: "projects/" + a.projectID,
		Filter: fmt.Sprintf(
			`metric.type = %q AND resource.labels.instance_id = %q AND resource.labels.zone = %q`,
			gcpMetric, name, zone),
		Interval: &monitoringpb.TimeInterval{
			StartTime: timestamppb.New(start),
			EndTime:   timestamppb.New(end),
		},
		View: monitoringpb.ListTimeSeriesRequest_FULL,
	})

	points := []cloud.MetricPoint{}
	for {
		series, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			a.logger.WithError(mapError(err, "GetInstanceMetrics", id)).Error("failed to fetch metrics")
			return []cloud.MetricPoint{}, nil
		}
		for _, point := range series.GetPoints() {
			value := point.GetValue().GetDoubleValue()
			if value == 0 {
				value = float64(point.GetValue().GetInt64Value())
			}
			if metricType == cloud.MetricCPU {
				value *= 100
			}
			points = append(points, cloud.MetricPoint{
				Timestamp: point.GetInterval().GetEndTime().AsTime(),
				Value:     value,
			})
		}
	}

	return points, nil
}

// StartInstance starts the instance and waits for the zone operation.
func (a *Adapter) StartInstance(ctx context.Context, id string) error {
	zone, name, err := cloud.SplitCompositeID(id)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, a.opts.OperationTimeout)
	defer cancel()

	op, err := a.instances.Start(ctx, &computepb.StartInstanceRequest{
		Project:  a.projectID,
		Zone:     zone,
		Instance: name,
	})
	if err != nil {
		return mapError(err, "StartInstance", id)
	}
	if err := op.Wait(ctx); err != nil {
		return mapError(err, "StartInstance", id)
	}
	return nil
}

// StopInstance stops the instance and waits for the zone operation.
func (a *Adapter) StopInstance(ctx context.Context, id string) error {
	zone, name, err := cloud.SplitCompositeID(id)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, a.opts.OperationTimeout)
	defer cancel()

	op, err := a.instances.Stop(ctx, &computepb.StopInstanceRequest{
		Project:  a.projectID,
		Zone:     zone,
		Instance: name,
	})
	if err != nil {
		return mapError(err, "StopInstance", id)
	}
	if err := op.Wait(ctx); err != nil {
		return mapError(err, "StopInstance", id)
	}
	return nil
}

// ResizeInstance performs the stop -> set machine type -> start chain. A
// failed type change after a successful stop leaves the instance stopped.
func (a *Adapter) ResizeInstance(ctx context.Context, id, newType string) error {
	zone, name, err := cloud.SplitCompositeID(id)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, a.opts.OperationTimeout)
	defer cancel()

	stopOp, err := a.instances.Stop(ctx, &computepb.StopInstanceRequest{
		Project:  a.projectID,
		Zone:     zone,
		Instance: name,
	})
	if err != nil {
		return mapError(err, "ResizeInstance", id)
	}
	if err := stopOp.Wait(ctx); err != nil {
		return mapError(err, "ResizeInstance", id)
	}

	machineTypeURL := fmt.Sprintf("zones/%s/machineTypes/%s", zone, newType)
	setOp, err := a.instances.SetMachineType(ctx, &computepb.SetMachineTypeInstanceRequest{
		Project:  a.projectID,
		Zone:     zone,
		Instance: name,
		InstancesSetMachineTypeRequestResource: &computepb.InstancesSetMachineTypeRequest{
			MachineType: &machineTypeURL,
		},
	})
	if err != nil {
		a.logger.WithError(err).WithInstanceID(id).Error("machine type change failed, instance left stopped")
		return mapError(err, "ResizeInstance", id)
	}
	if err := setOp.Wait(ctx); err != nil {
		a.logger.WithError(err).WithInstanceID(id).Error("machine type change failed, instance left stopped")
		return mapError(err, "ResizeInstance", id)
	}

	startOp, err := a.instances.Start(ctx, &computepb.StartInstanceRequest{
		Project:  a.projectID,
		Zone:     zone,
		Instance: name,
	})
	if err != nil {
		return mapError(err, "ResizeInstance", id)
	}
	if err := startOp.Wait(ctx); err != nil {
		return mapError(err, "ResizeInstance", id)
	}
	return nil
}

// GetCostData estimates spend from the current fleet's pricing: real
// historical billing requires a BigQuery export this adapter does not
// assume. The period cost scales each instance's monthly estimate by the
// queried day count over a 30-day month.
func (a *Adapter) GetCostData(ctx context.Context, start, end time.Time, _ cloud.Granularity) (*cloud.CostSummary, error) {
	instances, err := a.ListInstances(ctx, "")
	if err != nil {
		return cloud.ZeroCostSummary("cost estimation failed"), nil
	}

	days := end.Sub(start).Hours() / 24
	if days <= 0 {
		return cloud.ZeroCostSummary("empty cost period"), nil
	}

	summary := &cloud.CostSummary{
		ByService: map[string]float64{"compute": 0},
		Currency:  "USD",
		Note:      "costs estimated from current instance pricing, enable Cloud Billing export for historical actuals",
	}
	for _, instance := range instances {
		periodCost := instance.MonthlyCost * (days / 30.0)
		summary.TotalCost += periodCost
		summary.ByService["compute"] += periodCost
	}

	return summary, nil
}
