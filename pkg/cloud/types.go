package cloud

import (
	"strings"
	"time"
)

// ProviderType identifies a supported cloud provider.
type ProviderType string

const (
	ProviderAWS       ProviderType = "aws"
	ProviderAzure     ProviderType = "azure"
	ProviderGCP       ProviderType = "gcp"
	ProviderOpenStack ProviderType = "openstack"
)

// ParseProviderType converts a string to a ProviderType.
func ParseProviderType(s string) (ProviderType, error) {
	switch ProviderType(strings.ToLower(s)) {
	case ProviderAWS:
		return ProviderAWS, nil
	case ProviderAzure:
		return ProviderAzure, nil
	case ProviderGCP:
		return ProviderGCP, nil
	case ProviderOpenStack:
		return ProviderOpenStack, nil
	default:
		return "", NewValidationError("unknown provider type: "+s, nil)
	}
}

// InstanceStatus is the canonical lifecycle state of an instance.
// Every adapter maps its native status vocabulary onto this enum; any
// native value without a mapping becomes StatusUnknown, never an error.
type InstanceStatus string

const (
	StatusRunning  InstanceStatus = "running"
	StatusStopped  InstanceStatus = "stopped"
	StatusStarting InstanceStatus = "starting"
	StatusStopping InstanceStatus = "stopping"
	StatusUnknown  InstanceStatus = "unknown"
)

// Instance is the provider-agnostic representation of a virtual machine.
// ProviderInstanceID is the provider-native identity and may be composite
// (GCP: "zone/name", Azure: "resourceGroup/name"). Together with the owning
// provider's ID it forms the natural key used for reconciliation upserts.
type Instance struct {
	ProviderInstanceID string            `json:"providerInstanceId"`
	Name               string            `json:"name"`
	Status             InstanceStatus    `json:"status"`
	InstanceType       string            `json:"instanceType"`
	VCPUs              *int              `json:"vcpus,omitempty"`
	RAMMB              *int              `json:"ramMb,omitempty"`
	DiskGB             *int              `json:"diskGb,omitempty"`
	Region             string            `json:"region"`
	AvailabilityZone   *string           `json:"availabilityZone,omitempty"`
	PrivateIP          *string           `json:"privateIp,omitempty"`
	PublicIP           *string           `json:"publicIp,omitempty"`
	LaunchTime         *time.Time        `json:"launchTime,omitempty"`
	Tags               map[string]string `json:"tags"`
	MonthlyCost        float64           `json:"monthlyCost"`
}

// MetricPoint is a single telemetry sample for an instance metric.
type MetricPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Min       *float64  `json:"min,omitempty"`
	Max       *float64  `json:"max,omitempty"`
}

// Metric types accepted by Adapter.GetInstanceMetrics. Adapters map these
// to their native metric namespaces.
const (
	MetricCPU       = "cpu"
	MetricMemory    = "memory"
	MetricDiskIO    = "disk_io"
	MetricNetworkIO = "network_io"
)

// Granularity selects the aggregation window for cost queries.
type Granularity string

const (
	GranularityDaily   Granularity = "DAILY"
	GranularityMonthly Granularity = "MONTHLY"
)

// CostSummary aggregates spend over a queried period. Figures are estimates,
// not authoritative invoices. Note carries an explanation when the provider
// has no usable billing API and a zero summary is returned instead.
type CostSummary struct {
	TotalCost float64            `json:"totalCost"`
	ByService map[string]float64 `json:"byService"`
	Currency  string             `json:"currency"`
	Note      string             `json:"note,omitempty"`
}

// ZeroCostSummary returns an empty summary with an explanatory note.
func ZeroCostSummary(note string) *CostSummary {
	return &CostSummary{
		TotalCost: 0,
		ByService: map[string]float64{},
		Currency:  "USD",
		Note:      note,
	}
}

// SplitCompositeID splits a two-part composite instance identifier
// ("scope/name") and fails with a validation error on any other shape.
// Adapters using composite identity call this before any network I/O.
func SplitCompositeID(id string) (scope, name string, err error) {
	parts := strings.Split(id, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", NewValidationError(
			"invalid composite instance id, expected \"scope/name\": "+id, nil)
	}
	return parts[0], parts[1], nil
}

// JoinCompositeID builds a composite instance identifier.
func JoinCompositeID(scope, name string) string {
	return scope + "/" + name
}

// MonthlyHours is the hour count used to turn hourly on-demand rates into
// monthly cost estimates (365 days / 12 months * 24 hours).
const MonthlyHours = 730
