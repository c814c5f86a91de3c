package cloud

import (
	"context"
	"time"
)

// Adapter is the capability contract every provider adapter implements.
//
// Read-style operations (ListInstances, GetInstanceMetrics, GetCostData)
// swallow connectivity failures at the adapter boundary and return an empty
// or zero-value result; the failure is visible only through diagnostic
// logging. Lifecycle operations and GetInstance return a definite result or
// a typed *Error, since callers act on the outcome.
type Adapter interface {
	// TestConnection performs a lightweight, side-effect-free call against
	// the provider. It returns false, never an error, for any recoverable
	// connectivity or auth failure.
	TestConnection(ctx context.Context) bool

	// ListInstances enumerates all instances visible to the credentials,
	// optionally restricted to one region (empty string means all).
	// Sub-scope failures (e.g. a single unreachable zone) are tolerated:
	// the aggregate still contains every other sub-scope's instances.
	ListInstances(ctx context.Context, region string) ([]Instance, error)

	// GetInstance fetches a single instance by its provider instance id.
	// Malformed composite ids fail with a validation error before any
	// network call; missing instances fail with ErrCodeNotFound.
	GetInstance(ctx context.Context, id string) (*Instance, error)

	// GetInstanceMetrics returns telemetry samples for the instance.
	// Providers without a telemetry integration return an empty slice,
	// not an error.
	GetInstanceMetrics(ctx context.Context, id, metricType string, start, end time.Time, period time.Duration) ([]MetricPoint, error)

	// StartInstance starts a stopped instance and returns only after the
	// provider acknowledges the operation, bounded by the configured
	// operation timeout.
	StartInstance(ctx context.Context, id string) error

	// StopInstance stops a running instance, with the same wait contract
	// as StartInstance.
	StopInstance(ctx context.Context, id string) error

	// ResizeInstance changes the instance's compute class. Providers that
	// require the instance stopped perform stop -> change type -> start,
	// each step waited to completion. If the stop succeeds and the type
	// change fails, the instance is left stopped and the error is
	// returned; no compensating restart is attempted.
	ResizeInstance(ctx context.Context, id, newType string) error

	// GetCostData returns best-effort spend for the period. Providers
	// without a usable billing API return a zero summary with an
	// explanatory note rather than an error.
	GetCostData(ctx context.Context, start, end time.Time, granularity Granularity) (*CostSummary, error)
}

// Options tunes adapter behavior. The zero value is usable; Normalize
// applies defaults.
type Options struct {
	// OperationTimeout bounds the wait for provider-side asynchronous
	// lifecycle operations. It is applied uniformly across all providers.
	OperationTimeout time.Duration

	// PricingTimeout bounds live price catalog lookups before falling
	// back to the static table.
	PricingTimeout time.Duration

	// ZoneWorkers bounds concurrent sub-scope queries during listing
	// fan-out.
	ZoneWorkers int
}

const (
	// DefaultOperationTimeout is the uniform bounded-wait policy for
	// lifecycle operations on every provider.
	DefaultOperationTimeout = 5 * time.Minute

	// DefaultPricingTimeout bounds live pricing lookups.
	DefaultPricingTimeout = 10 * time.Second

	// DefaultZoneWorkers bounds zone/region fan-out concurrency.
	DefaultZoneWorkers = 4
)

// Normalize returns a copy of o with defaults applied to zero fields.
func (o Options) Normalize() Options {
	if o.OperationTimeout <= 0 {
		o.OperationTimeout = DefaultOperationTimeout
	}
	if o.PricingTimeout <= 0 {
		o.PricingTimeout = DefaultPricingTimeout
	}
	if o.ZoneWorkers <= 0 {
		o.ZoneWorkers = DefaultZoneWorkers
	}
	return o
}

// AdapterFactory builds an adapter for a provider type from its decrypted
// credential JSON. The reconciliation engine depends on this signature
// rather than on the concrete adapter packages.
type AdapterFactory func(providerType ProviderType, credentials []byte, opts Options) (Adapter, error)
