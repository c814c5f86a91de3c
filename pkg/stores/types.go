package stores

import (
	"context"
	"database/sql"
	"time"
)

// SyncRunStatus represents the status of a reconciliation run
type SyncRunStatus string

const (
	SyncRunStatusRunning   SyncRunStatus = "running"
	SyncRunStatusCompleted SyncRunStatus = "completed"
	SyncRunStatusFailed    SyncRunStatus = "failed"
)

// Provider represents a registered cloud provider account
type Provider struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	ProviderType string     `json:"provider_type"` // aws, azure, gcp, openstack
	Credentials  []byte     `json:"-"`             // sealed blob, never serialized
	Regions      string     `json:"regions"`       // JSON array of region names
	Enabled      bool       `json:"enabled"`
	LastSync     *time.Time `json:"last_sync,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// InstanceRecord represents a compute instance persisted from a provider.
// The surrogate ID and CreatedAt survive upserts; everything else reflects
// the most recent reconciliation.
type InstanceRecord struct {
	ID                 string     `json:"id"`
	ProviderID         string     `json:"provider_id"`
	ProviderInstanceID string     `json:"provider_instance_id"`
	Name               string     `json:"name"`
	Status             string     `json:"status"`
	InstanceType       string     `json:"instance_type"`
	VCPUs              int        `json:"vcpus"`
	RAMMb              int        `json:"ram_mb"`
	DiskGb             int        `json:"disk_gb"`
	Region             string     `json:"region"`
	AvailabilityZone   *string    `json:"availability_zone,omitempty"`
	PrivateIP          *string    `json:"private_ip,omitempty"`
	PublicIP           *string    `json:"public_ip,omitempty"`
	LaunchTime         *time.Time `json:"launch_time,omitempty"`
	Tags               string     `json:"tags"` // JSON object
	MonthlyCost        *float64   `json:"monthly_cost,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	LastUpdated        time.Time  `json:"last_updated"`
}

// SyncRun represents a single reconciliation run against a provider
type SyncRun struct {
	ID              string        `json:"id"`
	ProviderID      string        `json:"provider_id"`
	Status          SyncRunStatus `json:"status"`
	StartedAt       time.Time     `json:"started_at"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
	InstancesSynced int           `json:"instances_synced"`
	Error           *string       `json:"error,omitempty"`
}

// AuditEntry represents an audit trail entry
type AuditEntry struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"` // e.g., "provider.created", "instance.started"
	Actor     string    `json:"actor"`  // user or system identifier
	TargetID  *string   `json:"target_id,omitempty"`
	Details   *string   `json:"details,omitempty"` // JSON blob
	Timestamp time.Time `json:"timestamp"`
}

// Store defines the interface for the persistence layer
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CommitTx(tx *sql.Tx) error
	RollbackTx(tx *sql.Tx) error

	// Provider operations
	CreateProvider(ctx context.Context, provider *Provider) error
	GetProvider(ctx context.Context, id string) (*Provider, error)
	GetProviderByName(ctx context.Context, name string) (*Provider, error)
	ListProviders(ctx context.Context, enabledOnly bool) ([]*Provider, error)
	UpdateProvider(ctx context.Context, provider *Provider) error
	DeleteProvider(ctx context.Context, id string) error
	SetProviderLastSyncTx(ctx context.Context, tx *sql.Tx, id string, at time.Time) error

	// Instance operations
	UpsertInstanceTx(ctx context.Context, tx *sql.Tx, instance *InstanceRecord) error
	GetInstance(ctx context.Context, id string) (*InstanceRecord, error)
	GetInstanceByProviderKey(ctx context.Context, providerID, providerInstanceID string) (*InstanceRecord, error)
	ListInstances(ctx context.Context, providerID *string, status *string, limit, offset int) ([]*InstanceRecord, error)
	UpdateInstanceStatus(ctx context.Context, id string, status string) error
	DeleteInstance(ctx context.Context, id string) error

	// SyncRun operations
	CreateSyncRun(ctx context.Context, run *SyncRun) error
	CompleteSyncRunTx(ctx context.Context, tx *sql.Tx, id string, status SyncRunStatus, instances int, errMsg *string) error
	CompleteSyncRun(ctx context.Context, id string, status SyncRunStatus, instances int, errMsg *string) error
	GetSyncRun(ctx context.Context, id string) (*SyncRun, error)
	ListSyncRuns(ctx context.Context, providerID *string, limit, offset int) ([]*SyncRun, error)

	// Audit operations
	CreateAuditEntry(ctx context.Context, entry *AuditEntry) error
	ListAuditEntries(ctx context.Context, action *string, actor *string, limit, offset int) ([]*AuditEntry, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
