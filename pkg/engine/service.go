package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/cloud"
	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/stores"
	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/telemetry"
)

// RegisterProvider validates, seals, and stores a provider's credentials.
// The credential JSON must decode for the given provider type before
// anything is written.
func (e *Engine) RegisterProvider(ctx context.Context, name, providerType string, credentials []byte, regions []string, actor string) (*stores.Provider, error) {
	parsedType, err := cloud.ParseProviderType(providerType)
	if err != nil {
		return nil, err
	}
	if err := validateCredentials(parsedType, credentials); err != nil {
		return nil, err
	}

	sealed, err := e.cipher.Seal(credentials)
	if err != nil {
		return nil, err
	}

	regionsJSON := "[]"
	if len(regions) > 0 {
		data, err := json.Marshal(regions)
		if err != nil {
			return nil, err
		}
		regionsJSON = string(data)
	}

	now := time.Now().UTC()
	provider := &stores.Provider{
		ID:           uuid.NewString(),
		Name:         name,
		ProviderType: string(parsedType),
		Credentials:  sealed,
		Regions:      regionsJSON,
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.store.CreateProvider(ctx, provider); err != nil {
		return nil, err
	}

	e.audit(ctx, "provider.created", actor, &provider.ID, map[string]string{
		"name": name, "provider_type": string(parsedType),
	})
	return provider, nil
}

// validateCredentials decodes the credential JSON into the shape the
// provider type requires, without any network I/O.
func validateCredentials(providerType cloud.ProviderType, credentials []byte) error {
	switch providerType {
	case cloud.ProviderAWS:
		var c cloud.AWSCredentials
		return cloud.DecodeCredentials(credentials, &c)
	case cloud.ProviderAzure:
		var c cloud.AzureCredentials
		return cloud.DecodeCredentials(credentials, &c)
	case cloud.ProviderGCP:
		var c cloud.GCPCredentials
		return cloud.DecodeCredentials(credentials, &c)
	case cloud.ProviderOpenStack:
		var c cloud.OpenStackCredentials
		return cloud.DecodeCredentials(credentials, &c)
	default:
		return cloud.NewValidationError("unknown provider type: "+string(providerType), nil)
	}
}

// TestProvider builds the provider's adapter and probes connectivity.
func (e *Engine) TestProvider(ctx context.Context, providerID string) (bool, error) {
	provider, err := e.store.GetProvider(ctx, providerID)
	if err != nil {
		return false, err
	}
	adapter, err := e.adapterFor(provider)
	if err != nil {
		return false, err
	}
	return adapter.TestConnection(ctx), nil
}

// StartInstance starts a stored instance through its provider adapter and
// refreshes the stored record afterwards.
func (e *Engine) StartInstance(ctx context.Context, instanceID, actor string) error {
	return e.lifecycleOp(ctx, instanceID, actor, "start", func(ctx context.Context, adapter cloud.Adapter, providerInstanceID string) error {
		return adapter.StartInstance(ctx, providerInstanceID)
	})
}

// StopInstance stops a stored instance through its provider adapter and
// refreshes the stored record afterwards.
func (e *Engine) StopInstance(ctx context.Context, instanceID, actor string) error {
	return e.lifecycleOp(ctx, instanceID, actor, "stop", func(ctx context.Context, adapter cloud.Adapter, providerInstanceID string) error {
		return adapter.StopInstance(ctx, providerInstanceID)
	})
}

// ResizeInstance changes a stored instance's compute class and refreshes
// the stored record afterwards.
func (e *Engine) ResizeInstance(ctx context.Context, instanceID, newType, actor string) error {
	return e.lifecycleOp(ctx, instanceID, actor, "resize", func(ctx context.Context, adapter cloud.Adapter, providerInstanceID string) error {
		return adapter.ResizeInstance(ctx, providerInstanceID, newType)
	})
}

// lifecycleOp resolves the stored instance and its provider, runs the
// operation, then re-fetches the instance from the provider so the store
// reflects the post-operation state.
func (e *Engine) lifecycleOp(ctx context.Context, instanceID, actor, operation string,
	op func(ctx context.Context, adapter cloud.Adapter, providerInstanceID string) error) error {

	record, err := e.store.GetInstance(ctx, instanceID)
	if err != nil {
		return err
	}
	provider, err := e.store.GetProvider(ctx, record.ProviderID)
	if err != nil {
		return err
	}
	adapter, err := e.adapterFor(provider)
	if err != nil {
		return err
	}

	ctx, span := e.tracer.StartAdapterSpan(ctx, provider.ProviderType, operation)
	defer span.End()

	started := time.Now()
	err = op(ctx, adapter, record.ProviderInstanceID)
	duration := time.Since(started)

	status := "success"
	if err != nil {
		status = "failure"
		e.recordAdapterError(provider.ProviderType, err)
		telemetry.RecordError(span, err)
	} else {
		telemetry.RecordSuccess(span)
	}
	e.metrics.RecordLifecycleOperation(provider.ProviderType, operation, status, duration)

	e.audit(ctx, "instance."+operation, actor, &instanceID, map[string]string{
		"provider_id":          provider.ID,
		"provider_instance_id": record.ProviderInstanceID,
		"status":               status,
	})

	// Refresh even after a failed operation: a resize that stopped the
	// instance and then failed the type change leaves it stopped, and the
	// store must reflect that.
	if refreshErr := e.refreshRecord(ctx, provider, adapter, record); refreshErr != nil {
		e.logger.WithError(refreshErr).WithInstanceID(instanceID).
			Warn("post-operation refresh failed, stored state may lag")
	}
	return err
}

// RefreshInstance re-fetches one instance from its provider and upserts
// the stored record.
func (e *Engine) RefreshInstance(ctx context.Context, instanceID string) error {
	record, err := e.store.GetInstance(ctx, instanceID)
	if err != nil {
		return err
	}
	provider, err := e.store.GetProvider(ctx, record.ProviderID)
	if err != nil {
		return err
	}
	adapter, err := e.adapterFor(provider)
	if err != nil {
		return err
	}
	return e.refreshRecord(ctx, provider, adapter, record)
}

func (e *Engine) refreshRecord(ctx context.Context, provider *stores.Provider, adapter cloud.Adapter, record *stores.InstanceRecord) error {
	instance, err := adapter.GetInstance(ctx, record.ProviderInstanceID)
	if err != nil {
		return err
	}

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	if err := e.store.UpsertInstanceTx(ctx, tx, instanceToRecord(provider.ID, instance)); err != nil {
		_ = e.store.RollbackTx(tx)
		return err
	}
	return e.store.CommitTx(tx)
}

// ProviderCosts fetches the provider's spend summary for the period.
func (e *Engine) ProviderCosts(ctx context.Context, providerID string, start, end time.Time, granularity cloud.Granularity) (*cloud.CostSummary, error) {
	provider, err := e.store.GetProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	adapter, err := e.adapterFor(provider)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	summary, err := adapter.GetCostData(ctx, start, end, granularity)
	e.metrics.RecordAdapterCall(provider.ProviderType, "GetCostData", time.Since(started))
	return summary, err
}

// InstanceMetrics fetches telemetry samples for a stored instance.
func (e *Engine) InstanceMetrics(ctx context.Context, instanceID, metricType string, start, end time.Time, period time.Duration) ([]cloud.MetricPoint, error) {
	record, err := e.store.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	provider, err := e.store.GetProvider(ctx, record.ProviderID)
	if err != nil {
		return nil, err
	}
	adapter, err := e.adapterFor(provider)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	points, err := adapter.GetInstanceMetrics(ctx, record.ProviderInstanceID, metricType, start, end, period)
	e.metrics.RecordAdapterCall(provider.ProviderType, "GetInstanceMetrics", time.Since(started))
	return points, err
}

// audit records an audit entry; audit failures are logged, never fatal.
func (e *Engine) audit(ctx context.Context, action, actor string, targetID *string, details map[string]string) {
	var detailsJSON *string
	if len(details) > 0 {
		if data, err := json.Marshal(details); err == nil {
			s := string(data)
			detailsJSON = &s
		}
	}
	entry := &stores.AuditEntry{
		Action:    action,
		Actor:     actor,
		TargetID:  targetID,
		Details:   detailsJSON,
		Timestamp: time.Now().UTC(),
	}
	if err := e.store.CreateAuditEntry(ctx, entry); err != nil {
		e.logger.WithError(err).Warnf("failed to record audit entry for %s", action)
	}
}
