// Package engine reconciles provider inventories into the local store and
// drives instance lifecycle operations through provider adapters.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/cloud"
	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/crypto"
	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/stores"
	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/telemetry"
)

// Options tunes the engine.
type Options struct {
	// Adapter is passed through to every adapter the engine builds.
	Adapter cloud.Options

	// SyncWorkers bounds concurrent provider syncs during SyncAll.
	SyncWorkers int
}

// DefaultSyncWorkers bounds SyncAll concurrency when unset.
const DefaultSyncWorkers = 4

// Engine coordinates reconciliation and lifecycle operations. It depends
// on the AdapterFactory signature, not on any provider SDK.
type Engine struct {
	store   stores.Store
	cipher  *crypto.Cipher
	factory cloud.AdapterFactory
	logger  *telemetry.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
	opts    Options
	locks   *providerLocks
}

// New creates an engine.
func New(store stores.Store, cipher *crypto.Cipher, factory cloud.AdapterFactory,
	logger *telemetry.Logger, metrics *telemetry.Metrics, tracer *telemetry.Tracer, opts Options) *Engine {
	if opts.SyncWorkers <= 0 {
		opts.SyncWorkers = DefaultSyncWorkers
	}
	opts.Adapter = opts.Adapter.Normalize()
	return &Engine{
		store:   store,
		cipher:  cipher,
		factory: factory,
		logger:  logger.NewComponentLogger("engine"),
		metrics: metrics,
		tracer:  tracer,
		opts:    opts,
		locks:   newProviderLocks(),
	}
}

// adapterFor decrypts the provider's credentials and builds its adapter.
func (e *Engine) adapterFor(provider *stores.Provider) (cloud.Adapter, error) {
	credentials, err := e.cipher.Open(provider.Credentials)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credentials for provider %s: %w", provider.ID, err)
	}
	providerType, err := cloud.ParseProviderType(provider.ProviderType)
	if err != nil {
		return nil, err
	}
	return e.factory(providerType, credentials, e.opts.Adapter)
}

// providerRegions decodes the provider's region list. An empty or invalid
// list yields a single all-regions pass.
func providerRegions(provider *stores.Provider) []string {
	var regions []string
	if provider.Regions != "" {
		if err := json.Unmarshal([]byte(provider.Regions), &regions); err != nil {
			regions = nil
		}
	}
	if len(regions) == 0 {
		return []string{""}
	}
	return regions
}

// Sync reconciles one provider's inventory into the store. The listing
// happens outside any transaction; the upserts, the provider's last-sync
// timestamp, and the run completion commit atomically. Concurrent syncs
// of the same provider serialize on a per-provider lock.
func (e *Engine) Sync(ctx context.Context, providerID string) (*stores.SyncRun, error) {
	provider, err := e.store.GetProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if !provider.Enabled {
		return nil, fmt.Errorf("provider %s is disabled", provider.Name)
	}

	unlock := e.locks.Lock(provider.ID)
	defer unlock()

	ctx, span := e.tracer.StartSyncSpan(ctx, provider.ID, provider.ProviderType)
	defer span.End()

	run := &stores.SyncRun{
		ID:         uuid.NewString(),
		ProviderID: provider.ID,
		Status:     stores.SyncRunStatusRunning,
		StartedAt:  time.Now().UTC(),
	}
	if err := e.store.CreateSyncRun(ctx, run); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	e.metrics.RecordSyncStarted(provider.ProviderType)
	logger := e.logger.WithProvider(provider.ProviderType, provider.ID).WithSyncRunID(run.ID)
	logger.Info("reconciliation started")

	instances, err := e.collectInventory(ctx, provider, logger)
	if err == nil {
		err = e.persistInventory(ctx, provider, run, instances)
	}

	duration := time.Since(run.StartedAt)
	if err != nil {
		msg := err.Error()
		if completeErr := e.store.CompleteSyncRun(ctx, run.ID, stores.SyncRunStatusFailed, 0, &msg); completeErr != nil {
			logger.WithError(completeErr).Error("failed to record failed sync run")
		}
		e.metrics.RecordSyncCompleted(provider.ProviderType, string(stores.SyncRunStatusFailed), duration, 0)
		telemetry.RecordError(span, err)
		logger.WithError(err).Error("reconciliation failed")
		return nil, err
	}

	e.metrics.RecordSyncCompleted(provider.ProviderType, string(stores.SyncRunStatusCompleted), duration, len(instances))
	telemetry.RecordSuccess(span)
	logger.WithField("instances", len(instances)).Info("reconciliation completed")

	return e.store.GetSyncRun(ctx, run.ID)
}

// collectInventory lists instances across the provider's configured
// regions.
func (e *Engine) collectInventory(ctx context.Context, provider *stores.Provider, logger *telemetry.Logger) ([]cloud.Instance, error) {
	adapter, err := e.adapterFor(provider)
	if err != nil {
		return nil, err
	}

	instances := []cloud.Instance{}
	for _, region := range providerRegions(provider) {
		started := time.Now()
		regionInstances, err := adapter.ListInstances(ctx, region)
		e.metrics.RecordAdapterCall(provider.ProviderType, "ListInstances", time.Since(started))
		if err != nil {
			e.recordAdapterError(provider.ProviderType, err)
			return nil, err
		}
		logger.WithRegion(region).WithField("instances", len(regionInstances)).Debug("region listed")
		instances = append(instances, regionInstances...)
	}
	return instances, nil
}

// persistInventory writes the listed instances, the provider's last-sync
// timestamp, and the run completion in one transaction.
func (e *Engine) persistInventory(ctx context.Context, provider *stores.Provider, run *stores.SyncRun, instances []cloud.Instance) error {
	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return err
	}

	for i := range instances {
		record := instanceToRecord(provider.ID, &instances[i])
		if err := e.store.UpsertInstanceTx(ctx, tx, record); err != nil {
			_ = e.store.RollbackTx(tx)
			return fmt.Errorf("failed to upsert instance %s: %w", record.ProviderInstanceID, err)
		}
	}

	now := time.Now().UTC()
	if err := e.store.SetProviderLastSyncTx(ctx, tx, provider.ID, now); err != nil {
		_ = e.store.RollbackTx(tx)
		return err
	}
	if err := e.store.CompleteSyncRunTx(ctx, tx, run.ID, stores.SyncRunStatusCompleted, len(instances), nil); err != nil {
		_ = e.store.RollbackTx(tx)
		return err
	}

	return e.store.CommitTx(tx)
}

// SyncAll reconciles every enabled provider with bounded concurrency.
// One provider's failure does not stop the others; the joined error
// reports every failure.
func (e *Engine) SyncAll(ctx context.Context) ([]*stores.SyncRun, error) {
	providers, err := e.store.ListProviders(ctx, true)
	if err != nil {
		return nil, err
	}

	runs := make([]*stores.SyncRun, len(providers))
	errs := make([]error, len(providers))

	var group errgroup.Group
	group.SetLimit(e.opts.SyncWorkers)
	for i, provider := range providers {
		group.Go(func() error {
			run, err := e.Sync(ctx, provider.ID)
			runs[i], errs[i] = run, err
			return nil
		})
	}
	_ = group.Wait()

	completed := runs[:0]
	for _, run := range runs {
		if run != nil {
			completed = append(completed, run)
		}
	}
	return completed, errors.Join(errs...)
}

// instanceToRecord converts a canonical instance into its persisted
// shape. The surrogate id and creation time are provisional; upserts on
// an existing natural key keep the stored values and only last_updated
// moves forward.
func instanceToRecord(providerID string, instance *cloud.Instance) *stores.InstanceRecord {
	tags := "{}"
	if len(instance.Tags) > 0 {
		if data, err := json.Marshal(instance.Tags); err == nil {
			tags = string(data)
		}
	}

	now := time.Now().UTC()
	record := &stores.InstanceRecord{
		ID:                 uuid.NewString(),
		ProviderID:         providerID,
		ProviderInstanceID: instance.ProviderInstanceID,
		Name:               instance.Name,
		Status:             string(instance.Status),
		InstanceType:       instance.InstanceType,
		Region:             instance.Region,
		AvailabilityZone:   instance.AvailabilityZone,
		PrivateIP:          instance.PrivateIP,
		PublicIP:           instance.PublicIP,
		LaunchTime:         instance.LaunchTime,
		Tags:               tags,
		CreatedAt:          now,
		LastUpdated:        now,
	}

	if instance.VCPUs != nil {
		record.VCPUs = *instance.VCPUs
	}
	if instance.RAMMB != nil {
		record.RAMMb = *instance.RAMMB
	}
	if instance.DiskGB != nil {
		record.DiskGb = *instance.DiskGB
	}
	cost := instance.MonthlyCost
	record.MonthlyCost = &cost

	return record
}

func (e *Engine) recordAdapterError(providerType string, err error) {
	var cloudErr *cloud.Error
	code := string(cloud.ErrCodeConnection)
	if errors.As(err, &cloudErr) {
		code = string(cloudErr.Code)
	}
	e.metrics.RecordAdapterError(providerType, code)
}
