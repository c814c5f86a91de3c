package engine

import (
	"context"
	"testing"
	"time"

	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/cloud"
)

func timeMustParse(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		t.Fatalf("failed to parse time %s: %v", value, err)
	}
	return parsed
}

func TestRegisterProviderSealsCredentials(t *testing.T) {
	adapter := &fakeAdapter{}
	eng, store, cipher := setupEngine(t, adapter)
	ctx := context.Background()

	credentials := []byte(`{"access_key_id":"AKIATEST","secret_access_key":"secret"}`)
	provider, err := eng.RegisterProvider(ctx, "prod-aws", "aws", credentials, []string{"us-east-1"}, "tester")
	if err != nil {
		t.Fatalf("failed to register provider: %v", err)
	}

	stored, err := store.GetProvider(ctx, provider.ID)
	if err != nil {
		t.Fatalf("failed to reload provider: %v", err)
	}
	if string(stored.Credentials) == string(credentials) {
		t.Error("expected credentials sealed at rest")
	}
	opened, err := cipher.Open(stored.Credentials)
	if err != nil {
		t.Fatalf("failed to open sealed credentials: %v", err)
	}
	if string(opened) != string(credentials) {
		t.Error("expected sealed blob to round-trip")
	}

	entries, err := store.ListAuditEntries(ctx, nil, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to list audit entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "provider.created" {
		t.Errorf("expected provider.created audit entry, got %v", entries)
	}
}

func TestRegisterProviderRejectsBadCredentials(t *testing.T) {
	adapter := &fakeAdapter{}
	eng, _, _ := setupEngine(t, adapter)
	ctx := context.Background()

	_, err := eng.RegisterProvider(ctx, "broken", "aws", []byte(`{"access_key_id":"only"}`), nil, "tester")
	if !cloud.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = eng.RegisterProvider(ctx, "broken", "digitalocean", []byte(`{}`), nil, "tester")
	if !cloud.IsValidation(err) {
		t.Fatalf("expected validation error for unknown type, got %v", err)
	}
}

func TestStartInstanceRefreshesRecord(t *testing.T) {
	adapter := &fakeAdapter{instances: []cloud.Instance{
		testInstance("i-1", "web-1", cloud.StatusStopped),
	}}
	eng, store, cipher := setupEngine(t, adapter)
	provider := seedProvider(t, store, cipher, "aws")
	ctx := context.Background()

	if _, err := eng.Sync(ctx, provider.ID); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	record, err := store.GetInstanceByProviderKey(ctx, provider.ID, "i-1")
	if err != nil {
		t.Fatalf("failed to load instance: %v", err)
	}
	if record.Status != string(cloud.StatusStopped) {
		t.Fatalf("expected stopped before start, got %s", record.Status)
	}

	if err := eng.StartInstance(ctx, record.ID, "tester"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if len(adapter.started) != 1 || adapter.started[0] != "i-1" {
		t.Errorf("expected adapter start of i-1, got %v", adapter.started)
	}

	refreshed, err := store.GetInstanceByProviderKey(ctx, provider.ID, "i-1")
	if err != nil {
		t.Fatalf("failed to reload instance: %v", err)
	}
	if refreshed.Status != string(cloud.StatusRunning) {
		t.Errorf("expected running after start, got %s", refreshed.Status)
	}
	if refreshed.ID != record.ID {
		t.Error("expected refresh to keep the surrogate id")
	}

	action := "instance.start"
	entries, err := store.ListAuditEntries(ctx, &action, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to list audit entries: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 start audit entry, got %d", len(entries))
	}
}

func TestResizeInstanceUpdatesType(t *testing.T) {
	adapter := &fakeAdapter{instances: []cloud.Instance{
		testInstance("i-1", "web-1", cloud.StatusRunning),
	}}
	eng, store, cipher := setupEngine(t, adapter)
	provider := seedProvider(t, store, cipher, "aws")
	ctx := context.Background()

	if _, err := eng.Sync(ctx, provider.ID); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	record, err := store.GetInstanceByProviderKey(ctx, provider.ID, "i-1")
	if err != nil {
		t.Fatalf("failed to load instance: %v", err)
	}

	if err := eng.ResizeInstance(ctx, record.ID, "t3.large", "tester"); err != nil {
		t.Fatalf("resize failed: %v", err)
	}
	if adapter.resized["i-1"] != "t3.large" {
		t.Errorf("expected adapter resize to t3.large, got %v", adapter.resized)
	}

	refreshed, err := store.GetInstanceByProviderKey(ctx, provider.ID, "i-1")
	if err != nil {
		t.Fatalf("failed to reload instance: %v", err)
	}
	if refreshed.InstanceType != "t3.large" {
		t.Errorf("expected refreshed instance type, got %s", refreshed.InstanceType)
	}
}

// resizeFailAdapter stops the instance and then fails the type change,
// mimicking a resize chain that dies between its stop and modify steps.
type resizeFailAdapter struct {
	fakeAdapter
}

func (f *resizeFailAdapter) ResizeInstance(_ context.Context, id, _ string) error {
	f.setStatus(id, cloud.StatusStopped)
	return cloud.NewValidationError("unknown instance type", nil)
}

func TestResizeFailureLeavesStoredStatusStopped(t *testing.T) {
	adapter := &resizeFailAdapter{fakeAdapter{instances: []cloud.Instance{
		testInstance("i-1", "web-1", cloud.StatusRunning),
	}}}
	eng, store, cipher := setupEngine(t, adapter)
	provider := seedProvider(t, store, cipher, "aws")
	ctx := context.Background()

	if _, err := eng.Sync(ctx, provider.ID); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	record, err := store.GetInstanceByProviderKey(ctx, provider.ID, "i-1")
	if err != nil {
		t.Fatalf("failed to load instance: %v", err)
	}

	if err := eng.ResizeInstance(ctx, record.ID, "t3.huge", "tester"); err == nil {
		t.Fatal("expected resize to fail")
	}

	stored, err := store.GetInstanceByProviderKey(ctx, provider.ID, "i-1")
	if err != nil {
		t.Fatalf("failed to reload instance: %v", err)
	}
	if stored.Status != string(cloud.StatusStopped) {
		t.Errorf("expected stored status stopped after failed resize, got %s", stored.Status)
	}
	if stored.InstanceType != "t3.micro" {
		t.Errorf("expected instance type unchanged, got %s", stored.InstanceType)
	}
}

func TestStopInstanceFailureStillAudited(t *testing.T) {
	adapter := &fakeAdapter{instances: []cloud.Instance{
		testInstance("i-1", "web-1", cloud.StatusRunning),
	}}
	eng, store, cipher := setupEngine(t, adapter)
	provider := seedProvider(t, store, cipher, "aws")
	ctx := context.Background()

	if _, err := eng.Sync(ctx, provider.ID); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	record, err := store.GetInstanceByProviderKey(ctx, provider.ID, "i-1")
	if err != nil {
		t.Fatalf("failed to load instance: %v", err)
	}

	adapter.opErr = cloud.NewPermissionError("credentials lack ec2:StopInstances", nil)
	err = eng.StopInstance(ctx, record.ID, "tester")
	if !cloud.IsPermission(err) {
		t.Fatalf("expected permission error, got %v", err)
	}

	action := "instance.stop"
	entries, err := store.ListAuditEntries(ctx, &action, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to list audit entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 stop audit entry, got %d", len(entries))
	}
	if entries[0].Details == nil {
		t.Fatal("expected audit details")
	}

	stored, err := store.GetInstanceByProviderKey(ctx, provider.ID, "i-1")
	if err != nil {
		t.Fatalf("failed to reload instance: %v", err)
	}
	if stored.Status != string(cloud.StatusRunning) {
		t.Errorf("expected status unchanged after failed stop, got %s", stored.Status)
	}
}

func TestTestProvider(t *testing.T) {
	adapter := &fakeAdapter{}
	eng, store, cipher := setupEngine(t, adapter)
	provider := seedProvider(t, store, cipher, "aws")
	ctx := context.Background()

	ok, err := eng.TestProvider(ctx, provider.ID)
	if err != nil {
		t.Fatalf("test provider failed: %v", err)
	}
	if !ok {
		t.Error("expected healthy adapter to report connected")
	}

	adapter.listErr = cloud.NewConnectionError("endpoint unreachable", nil)
	ok, err = eng.TestProvider(ctx, provider.ID)
	if err != nil {
		t.Fatalf("test provider failed: %v", err)
	}
	if ok {
		t.Error("expected broken adapter to report disconnected")
	}
}

func TestProviderCostsPassthrough(t *testing.T) {
	adapter := &fakeAdapter{}
	eng, store, cipher := setupEngine(t, adapter)
	provider := seedProvider(t, store, cipher, "aws")
	ctx := context.Background()

	summary, err := eng.ProviderCosts(ctx, provider.ID,
		timeMustParse(t, "2026-02-01"), timeMustParse(t, "2026-03-01"), cloud.GranularityDaily)
	if err != nil {
		t.Fatalf("cost query failed: %v", err)
	}
	if summary.TotalCost != 0 || summary.Note == "" {
		t.Errorf("expected zero summary with note, got %+v", summary)
	}
}
