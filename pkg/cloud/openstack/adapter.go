// Package openstack implements the cloud.Adapter contract for OpenStack
// Nova servers via Keystone v3 authentication. OpenStack has no native
// billing API and telemetry needs a Gnocchi or Ceilometer deployment, so
// cost and metric queries return empty results with an explanatory note.
package openstack

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack"
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/servers"

	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/cloud"
	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/telemetry"
)

// statusPollInterval is the delay between lifecycle status probes. The
// first probe happens before any sleep.
const statusPollInterval = 5 * time.Second

// Adapter implements cloud.Adapter for OpenStack. Keystone authentication
// is deferred to the first call and the resulting compute client is
// reused; the mutex guards lazy construction.
type Adapter struct {
	creds  cloud.OpenStackCredentials
	opts   cloud.Options
	logger *telemetry.Logger

	mu      sync.Mutex
	compute *gophercloud.ServiceClient
}

// New creates an OpenStack adapter from decrypted credential JSON. No
// network I/O happens here; authentication failures surface on first use.
func New(credJSON []byte, opts cloud.Options, logger *telemetry.Logger) (*Adapter, error) {
	var creds cloud.OpenStackCredentials
	if err := cloud.DecodeCredentials(credJSON, &creds); err != nil {
		return nil, err
	}
	if creds.UserDomainName == "" {
		creds.UserDomainName = "Default"
	}
	if creds.ProjectDomainName == "" {
		creds.ProjectDomainName = "Default"
	}

	return &Adapter{
		creds:  creds,
		opts:   opts.Normalize(),
		logger: logger.NewComponentLogger("adapter.openstack"),
	}, nil
}

// computeClient authenticates against Keystone and builds the Nova client
// on first use.
func (a *Adapter) computeClient(ctx context.Context) (*gophercloud.ServiceClient, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.compute != nil {
		return a.compute, nil
	}

	provider, err := openstack.AuthenticatedClient(ctx, gophercloud.AuthOptions{
		IdentityEndpoint: a.creds.AuthURL,
		Username:         a.creds.Username,
		Password:         a.creds.Password,
		DomainName:       a.creds.UserDomainName,
		AllowReauth:      true,
		Scope: &gophercloud.AuthScope{
			ProjectName: a.creds.ProjectName,
			DomainName:  a.creds.ProjectDomainName,
		},
	})
	if err != nil {
		return nil, mapError(err, "Authenticate", "")
	}

	compute, err := openstack.NewComputeV2(provider, gophercloud.EndpointOpts{})
	if err != nil {
		return nil, mapError(err, "Authenticate", "")
	}

	a.compute = compute
	return compute, nil
}

// mapError converts an OpenStack API failure into the shared taxonomy.
func mapError(err error, operation, resource string) *cloud.Error {
	var mapped *cloud.Error

	var respErr gophercloud.ErrUnexpectedResponseCode
	switch {
	case errors.As(err, &respErr):
		switch respErr.Actual {
		case 401, 403:
			mapped = cloud.NewPermissionError("openstack api denied the request", err)
		case 404:
			mapped = cloud.NewNotFoundError("resource does not exist", err)
		case 429:
			mapped = cloud.NewRateLimitError("openstack api throttled the request", err)
		default:
			mapped = cloud.NewConnectionError("openstack api call failed", err)
		}
	case errors.Is(err, context.DeadlineExceeded):
		mapped = cloud.NewTimeoutError("openstack operation exceeded its deadline", err)
	default:
		mapped = cloud.NewConnectionError("openstack api unreachable", err)
	}

	return mapped.WithProvider(cloud.ProviderOpenStack).WithOperation(operation).WithResource(resource)
}

// TestConnection authenticates and lists one page of servers.
func (a *Adapter) TestConnection(ctx context.Context) bool {
	client, err := a.computeClient(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("connection test failed")
		return false
	}
	if _, err := servers.List(client, servers.ListOpts{Limit: 1}).AllPages(ctx); err != nil {
		a.logger.WithError(err).Warn("connection test failed")
		return false
	}
	return true
}

// ListInstances enumerates all servers in the scoped project. Nova
// deployments are single-region from the catalog's point of view, so the
// region argument only filters the normalized records.
func (a *Adapter) ListInstances(ctx context.Context, region string) ([]cloud.Instance, error) {
	client, err := a.computeClient(ctx)
	if err != nil {
		a.logger.WithError(err).Error("failed to list servers")
		return []cloud.Instance{}, nil
	}

	pages, err := servers.List(client, servers.ListOpts{}).AllPages(ctx)
	if err != nil {
		a.logger.WithError(mapError(err, "ListInstances", "")).Error("failed to list servers")
		return []cloud.Instance{}, nil
	}
	raw, err := servers.ExtractServers(pages)
	if err != nil {
		a.logger.WithError(err).Error("failed to decode server listing")
		return []cloud.Instance{}, nil
	}

	instances := []cloud.Instance{}
	for i := range raw {
		instance := normalizeServer(&raw[i])
		if region != "" && instance.Region != region {
			continue
		}
		instances = append(instances, instance)
	}
	return instances, nil
}

// GetInstance fetches one server by its Nova UUID.
func (a *Adapter) GetInstance(ctx context.Context, id string) (*cloud.Instance, error) {
	client, err := a.computeClient(ctx)
	if err != nil {
		return nil, err
	}

	server, err := servers.Get(ctx, client, id).Extract()
	if err != nil {
		return nil, mapError(err, "GetInstance", id)
	}

	instance := normalizeServer(server)
	return &instance, nil
}

// GetInstanceMetrics returns no samples: server telemetry requires a
// Gnocchi or Ceilometer deployment this adapter does not assume.
func (a *Adapter) GetInstanceMetrics(_ context.Context, id, metricType string, _, _ time.Time, _ time.Duration) ([]cloud.MetricPoint, error) {
	a.logger.WithInstanceID(id).WithField("metric", metricType).
		Debug("metrics require gnocchi or ceilometer, returning empty")
	return []cloud.MetricPoint{}, nil
}

// StartInstance starts the server and waits for it to report ACTIVE.
func (a *Adapter) StartInstance(ctx context.Context, id string) error {
	client, err := a.computeClient(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, a.opts.OperationTimeout)
	defer cancel()

	if err := servers.Start(ctx, client, id).ExtractErr(); err != nil {
		return mapError(err, "StartInstance", id)
	}
	if err := a.waitForStatus(ctx, client, id, "ACTIVE"); err != nil {
		return mapError(err, "StartInstance", id)
	}
	return nil
}

// StopInstance stops the server and waits for it to report SHUTOFF.
func (a *Adapter) StopInstance(ctx context.Context, id string) error {
	client, err := a.computeClient(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, a.opts.OperationTimeout)
	defer cancel()

	if err := servers.Stop(ctx, client, id).ExtractErr(); err != nil {
		return mapError(err, "StopInstance", id)
	}
	if err := a.waitForStatus(ctx, client, id, "SHUTOFF"); err != nil {
		return mapError(err, "StopInstance", id)
	}
	return nil
}

// ResizeInstance resizes the server to a new flavor and confirms the
// resize once Nova reports VERIFY_RESIZE. Without the confirmation Nova
// keeps the old allocation reserved indefinitely.
func (a *Adapter) ResizeInstance(ctx context.Context, id, newType string) error {
	client, err := a.computeClient(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, a.opts.OperationTimeout)
	defer cancel()

	if err := servers.Resize(ctx, client, id, servers.ResizeOpts{FlavorRef: newType}).ExtractErr(); err != nil {
		return mapError(err, "ResizeInstance", id)
	}
	if err := a.waitForStatus(ctx, client, id, "VERIFY_RESIZE"); err != nil {
		return mapError(err, "ResizeInstance", id)
	}
	if err := servers.ConfirmResize(ctx, client, id).ExtractErr(); err != nil {
		return mapError(err, "ResizeInstance", id)
	}
	if err := a.waitForStatus(ctx, client, id, "ACTIVE"); err != nil {
		return mapError(err, "ResizeInstance", id)
	}
	return nil
}

// waitForStatus polls the server until it reaches one of the target
// statuses or the context expires. The first probe is immediate.
func (a *Adapter) waitForStatus(ctx context.Context, client *gophercloud.ServiceClient, id string, targets ...string) error {
	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	for {
		server, err := servers.Get(ctx, client, id).Extract()
		if err != nil {
			return err
		}
		for _, target := range targets {
			if server.Status == target {
				return nil
			}
		}
		if server.Status == "ERROR" {
			return errors.New("server entered ERROR state")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// GetCostData returns a zero summary: OpenStack has no native billing API
// and chargeback needs an external system such as CloudKitty.
func (a *Adapter) GetCostData(_ context.Context, _, _ time.Time, _ cloud.Granularity) (*cloud.CostSummary, error) {
	return cloud.ZeroCostSummary("openstack has no native billing api"), nil
}
