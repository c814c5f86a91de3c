// Package azure implements the cloud.Adapter contract for Azure virtual
// machines using the ARM compute and monitor clients. Instances are
// identified by the composite id "resourceGroup/vmName".
package azure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v6"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/monitor/armmonitor"

	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/cloud"
	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/telemetry"
)

// Adapter implements cloud.Adapter for Azure. The credential object and
// management clients are built once at construction and are safe for
// concurrent use.
type Adapter struct {
	creds          cloud.AzureCredentials
	opts           cloud.Options
	logger         *telemetry.Logger
	subscriptionID string

	vmClient      *armcompute.VirtualMachinesClient
	metricsClient *armmonitor.MetricsClient
}

// New creates an Azure adapter from decrypted credential JSON.
func New(credJSON []byte, opts cloud.Options, logger *telemetry.Logger) (*Adapter, error) {
	var creds cloud.AzureCredentials
	if err := cloud.DecodeCredentials(credJSON, &creds); err != nil {
		return nil, err
	}

	credential, err := azidentity.NewClientSecretCredential(
		creds.TenantID, creds.ClientID, creds.ClientSecret, nil)
	if err != nil {
		return nil, cloud.NewConnectionError("failed to build azure credential", err).
			WithProvider(cloud.ProviderAzure)
	}

	vmClient, err := armcompute.NewVirtualMachinesClient(creds.SubscriptionID, credential, nil)
	if err != nil {
		return nil, cloud.NewConnectionError("failed to build compute client", err).
			WithProvider(cloud.ProviderAzure)
	}

	metricsClient, err := armmonitor.NewMetricsClient(creds.SubscriptionID, credential, nil)
	if err != nil {
		return nil, cloud.NewConnectionError("failed to build monitor client", err).
			WithProvider(cloud.ProviderAzure)
	}

	return &Adapter{
		creds:          creds,
		opts:           opts.Normalize(),
		logger:         logger.NewComponentLogger("adapter.azure"),
		subscriptionID: creds.SubscriptionID,
		vmClient:       vmClient,
		metricsClient:  metricsClient,
	}, nil
}

// mapError converts an ARM failure into the shared taxonomy.
func mapError(err error, operation, resource string) *cloud.Error {
	var mapped *cloud.Error

	var respErr *azcore.ResponseError
	switch {
	case errors.As(err, &respErr):
		switch respErr.StatusCode {
		case 401, 403:
			mapped = cloud.NewPermissionError("azure api denied the request", err)
		case 404:
			mapped = cloud.NewNotFoundError("resource does not exist", err)
		case 429:
			mapped = cloud.NewRateLimitError("azure api throttled the request", err)
		default:
			mapped = cloud.NewConnectionError("azure api call failed", err)
		}
	case errors.Is(err, context.DeadlineExceeded):
		mapped = cloud.NewTimeoutError("azure operation exceeded its deadline", err)
	default:
		mapped = cloud.NewConnectionError("azure api unreachable", err)
	}

	return mapped.WithProvider(cloud.ProviderAzure).WithOperation(operation).WithResource(resource)
}

// TestConnection lists the first page of VMs.
func (a *Adapter) TestConnection(ctx context.Context) bool {
	pager := a.vmClient.NewListAllPager(nil)
	if !pager.More() {
		return true
	}
	if _, err := pager.NextPage(ctx); err != nil {
		a.logger.WithError(err).Warn("connection test failed")
		return false
	}
	return true
}

// ListInstances enumerates all VMs in the subscription. The region filter
// is applied client-side since ARM has no location parameter on list-all.
// Per-VM instance view failures degrade that VM's status to unknown rather
// than aborting the listing.
func (a *Adapter) ListInstances(ctx context.Context, region string) ([]cloud.Instance, error) {
	instances := []cloud.Instance{}

	pager := a.vmClient.NewListAllPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			a.logger.WithError(mapError(err, "ListInstances", "")).Error("failed to list virtual machines")
			return []cloud.Instance{}, nil
		}

		for _, vm := range page.Value {
			if vm == nil {
				continue
			}
			if region != "" && strVal(vm.Location) != region {
				continue
			}

			status := cloud.StatusUnknown
			rg := resourceGroupFromID(strVal(vm.ID))
			if rg != "" && vm.Name != nil {
				view, err := a.vmClient.InstanceView(ctx, rg, *vm.Name, nil)
				if err != nil {
					a.logger.WithError(err).WithInstanceID(cloud.JoinCompositeID(rg, *vm.Name)).
						Debug("instance view unavailable, status unknown")
				} else {
					status = powerStateFromView(view.VirtualMachineInstanceView)
				}
			}

			instances = append(instances, normalizeVM(vm, status))
		}
	}

	return instances, nil
}

// GetInstance fetches one VM by composite id "resourceGroup/vmName".
func (a *Adapter) GetInstance(ctx context.Context, id string) (*cloud.Instance, error) {
	rg, name, err := cloud.SplitCompositeID(id)
	if err != nil {
		return nil, err
	}

	resp, err := a.vmClient.Get(ctx, rg, name, nil)
	if err != nil {
		return nil, mapError(err, "GetInstance", id)
	}

	status := cloud.StatusUnknown
	view, err := a.vmClient.InstanceView(ctx, rg, name, nil)
	if err != nil {
		a.logger.WithError(err).WithInstanceID(id).Debug("instance view unavailable, status unknown")
	} else {
		status = powerStateFromView(view.VirtualMachineInstanceView)
	}

	instance := normalizeVM(&resp.VirtualMachine, status)
	return &instance, nil
}

// monitorMetricNames maps the canonical metric vocabulary onto Azure
// Monitor metric names.
var monitorMetricNames = map[string]string{
	cloud.MetricCPU:       "Percentage CPU",
	cloud.MetricMemory:    "Available Memory Bytes",
	cloud.MetricDiskIO:    "Disk Read Bytes",
	cloud.MetricNetworkIO: "Network In Total",
}

// GetInstanceMetrics fetches Azure Monitor samples for the VM.
func (a *Adapter) GetInstanceMetrics(ctx context.Context, id, metricType string, start, end time.Time, period time.Duration) ([]cloud.MetricPoint, error) {
	rg, name, err := cloud.SplitCompositeID(id)
	if err != nil {
		return nil, err
	}

	resp, err := a.vmClient.Get(ctx, rg, name, nil)
	if err != nil {
		a.logger.WithError(mapError(err, "GetInstanceMetrics", id)).Error("failed to resolve vm for metrics")
		return []cloud.MetricPoint{}, nil
	}
	resourceURI := strVal(resp.VirtualMachine.ID)

	metricName, ok := monitorMetricNames[metricType]
	if !ok {
		metricName = monitorMetricNames[cloud.MetricCPU]
	}

	out, err := a.metricsClient.List(ctx, resourceURI, &armmonitor.MetricsClientListOptions{
		Timespan:    to.Ptr(fmt.Sprintf("%s/%s", start.Format(time.RFC3339), end.Format(time.RFC3339))),
		Interval:    to.Ptr(fmt.Sprintf("PT%dS", int(period.Seconds()))),
		Metricnames: to.Ptr(metricName),
		Aggregation: to.Ptr("Average,Minimum,Maximum"),
	})
	if err != nil {
		a.logger.WithError(mapError(err, "GetInstanceMetrics", id)).Error("failed to fetch metrics")
		return []cloud.MetricPoint{}, nil
	}

	points := []cloud.MetricPoint{}
	for _, metric := range out.Value {
		if metric == nil {
			continue
		}
		for _, series := range metric.Timeseries {
			if series == nil {
				continue
			}
			for _, sample := range series.Data {
				if sample == nil || sample.Average == nil || sample.TimeStamp == nil {
					continue
				}
				points = append(points, cloud.MetricPoint{
					Timestamp: *sample.TimeStamp,
					Value:     *sample.Average,
					Min:       sample.Minimum,
					Max:       sample.Maximum,
				})
			}
		}
	}

	return points, nil
}

// StartInstance starts the VM and waits for the operation to complete.
func (a *Adapter) StartInstance(ctx context.Context, id string) error {
	rg, name, err := cloud.SplitCompositeID(id)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, a.opts.OperationTimeout)
	defer cancel()

	poller, err := a.vmClient.BeginStart(ctx, rg, name, nil)
	if err != nil {
		return mapError(err, "StartInstance", id)
	}
	if _, err := poller.PollUntilDone(ctx, nil); err != nil {
		return mapError(err, "StartInstance", id)
	}
	return nil
}

// StopInstance deallocates the VM so compute billing stops, and waits for
// the operation to complete.
func (a *Adapter) StopInstance(ctx context.Context, id string) error {
	rg, name, err := cloud.SplitCompositeID(id)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, a.opts.OperationTimeout)
	defer cancel()

	poller, err := a.vmClient.BeginDeallocate(ctx, rg, name, nil)
	if err != nil {
		return mapError(err, "StopInstance", id)
	}
	if _, err := poller.PollUntilDone(ctx, nil); err != nil {
		return mapError(err, "StopInstance", id)
	}
	return nil
}

// ResizeInstance updates the VM size. Azure restarts the VM as part of the
// size change; the wait covers the whole operation.
func (a *Adapter) ResizeInstance(ctx context.Context, id, newType string) error {
	rg, name, err := cloud.SplitCompositeID(id)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, a.opts.OperationTimeout)
	defer cancel()

	poller, err := a.vmClient.BeginUpdate(ctx, rg, name, armcompute.VirtualMachineUpdate{
		Properties: &armcompute.VirtualMachineProperties{
			HardwareProfile: &armcompute.HardwareProfile{
				VMSize: to.Ptr(armcompute.VirtualMachineSizeTypes(newType)),
			},
		},
	}, nil)
	if err != nil {
		return mapError(err, "ResizeInstance", id)
	}
	if _, err := poller.PollUntilDone(ctx, nil); err != nil {
		return mapError(err, "ResizeInstance", id)
	}
	return nil
}

// GetCostData returns a zero summary: the Cost Management API is not
// available to all subscription types and requires extra permissions.
func (a *Adapter) GetCostData(_ context.Context, _, _ time.Time, _ cloud.Granularity) (*cloud.CostSummary, error) {
	return cloud.ZeroCostSummary("cost data collection requires additional Azure permissions"), nil
}
