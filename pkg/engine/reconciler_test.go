package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/cloud"
	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/crypto"
	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/stores"
	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/telemetry"
	"github.com/google/uuid"
)

// fakeAdapter is a scripted cloud.Adapter for engine tests.
type fakeAdapter struct {
	instances []cloud.Instance
	listErr   error
	getErr    error
	opErr     error

	started []string
	stopped []string
	resized map[string]string
}

func (f *fakeAdapter) TestConnection(context.Context) bool { return f.listErr == nil }

func (f *fakeAdapter) ListInstances(context.Context, string) ([]cloud.Instance, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.instances, nil
}

func (f *fakeAdapter) GetInstance(_ context.Context, id string) (*cloud.Instance, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for i := range f.instances {
		if f.instances[i].ProviderInstanceID == id {
			return &f.instances[i], nil
		}
	}
	return nil, cloud.NewNotFoundError("resource does not exist", nil)
}

func (f *fakeAdapter) GetInstanceMetrics(context.Context, string, string, time.Time, time.Time, time.Duration) ([]cloud.MetricPoint, error) {
	return []cloud.MetricPoint{}, nil
}

func (f *fakeAdapter) StartInstance(_ context.Context, id string) error {
	if f.opErr != nil {
		return f.opErr
	}
	f.started = append(f.started, id)
	f.setStatus(id, cloud.StatusRunning)
	return nil
}

func (f *fakeAdapter) StopInstance(_ context.Context, id string) error {
	if f.opErr != nil {
		return f.opErr
	}
	f.stopped = append(f.stopped, id)
	f.setStatus(id, cloud.StatusStopped)
	return nil
}

func (f *fakeAdapter) ResizeInstance(_ context.Context, id, newType string) error {
	if f.opErr != nil {
		return f.opErr
	}
	if f.resized == nil {
		f.resized = map[string]string{}
	}
	f.resized[id] = newType
	for i := range f.instances {
		if f.instances[i].ProviderInstanceID == id {
			f.instances[i].InstanceType = newType
		}
	}
	return nil
}

func (f *fakeAdapter) GetCostData(context.Context, time.Time, time.Time, cloud.Granularity) (*cloud.CostSummary, error) {
	return cloud.ZeroCostSummary("test"), nil
}

func (f *fakeAdapter) setStatus(id string, status cloud.InstanceStatus) {
	for i := range f.instances {
		if f.instances[i].ProviderInstanceID == id {
			f.instances[i].Status = status
		}
	}
}

func testInstance(id, name string, status cloud.InstanceStatus) cloud.Instance {
	return cloud.Instance{
		ProviderInstanceID: id,
		Name:               name,
		Status:             status,
		InstanceType:       "t3.micro",
		Region:             "us-east-1",
		Tags:               map[string]string{"env": "test"},
		MonthlyCost:        7.52,
	}
}

// setupEngine wires an engine around an in-memory store, a fresh cipher,
// and a factory that always hands back the given adapter.
func setupEngine(t *testing.T, adapter cloud.Adapter) (*Engine, *stores.SQLiteStore, *crypto.Cipher) {
	t.Helper()

	store, err := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	cipher, err := crypto.NewCipher(key)
	if err != nil {
		t.Fatalf("failed to create cipher: %v", err)
	}

	metrics, err := telemetry.NewMetrics(telemetry.MetricsConfig{})
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	tracer, err := telemetry.NewTracer(telemetry.TracingConfig{}, "test", "test", "test")
	if err != nil {
		t.Fatalf("failed to create tracer: %v", err)
	}

	factory := func(cloud.ProviderType, []byte, cloud.Options) (cloud.Adapter, error) {
		return adapter, nil
	}

	eng := New(store, cipher, factory, telemetry.NewNopLogger(), metrics, tracer, Options{})
	return eng, store, cipher
}

// seedProvider stores an enabled provider with sealed credentials.
func seedProvider(t *testing.T, store stores.Store, cipher *crypto.Cipher, providerType string) *stores.Provider {
	t.Helper()

	sealed, err := cipher.Seal([]byte(`{"access_key_id":"AKIATEST","secret_access_key":"secret"}`))
	if err != nil {
		t.Fatalf("failed to seal credentials: %v", err)
	}

	now := time.Now().UTC()
	provider := &stores.Provider{
		ID:           uuid.NewString(),
		Name:         "test-" + providerType,
		ProviderType: providerType,
		Credentials:  sealed,
		Regions:      `["us-east-1"]`,
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := store.CreateProvider(context.Background(), provider); err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	return provider
}

func TestSyncUpsertsInventory(t *testing.T) {
	adapter := &fakeAdapter{instances: []cloud.Instance{
		testInstance("i-1", "web-1", cloud.StatusRunning),
		testInstance("i-2", "web-2", cloud.StatusStopped),
	}}
	eng, store, cipher := setupEngine(t, adapter)
	provider := seedProvider(t, store, cipher, "aws")
	ctx := context.Background()

	run, err := eng.Sync(ctx, provider.ID)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if run.Status != stores.SyncRunStatusCompleted {
		t.Errorf("expected completed run, got %s", run.Status)
	}
	if run.InstancesSynced != 2 {
		t.Errorf("expected 2 instances synced, got %d", run.InstancesSynced)
	}

	records, err := store.ListInstances(ctx, &provider.ID, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to list instances: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 stored instances, got %d", len(records))
	}

	stored, err := store.GetProvider(ctx, provider.ID)
	if err != nil {
		t.Fatalf("failed to reload provider: %v", err)
	}
	if stored.LastSync == nil {
		t.Error("expected last sync timestamp after successful run")
	}
}

func TestSyncPreservesIdentityAcrossRuns(t *testing.T) {
	adapter := &fakeAdapter{instances: []cloud.Instance{
		testInstance("i-1", "web-1", cloud.StatusRunning),
	}}
	eng, store, cipher := setupEngine(t, adapter)
	provider := seedProvider(t, store, cipher, "aws")
	ctx := context.Background()

	if _, err := eng.Sync(ctx, provider.ID); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}
	first, err := store.GetInstanceByProviderKey(ctx, provider.ID, "i-1")
	if err != nil {
		t.Fatalf("failed to load instance: %v", err)
	}
	if first.CreatedAt.IsZero() || first.LastUpdated.IsZero() {
		t.Fatalf("expected real timestamps on first sync, got created_at=%v last_updated=%v",
			first.CreatedAt, first.LastUpdated)
	}

	adapter.instances[0].Status = cloud.StatusStopped
	adapter.instances[0].Name = "web-1-renamed"
	if _, err := eng.Sync(ctx, provider.ID); err != nil {
		t.Fatalf("second sync failed: %v", err)
	}

	second, err := store.GetInstanceByProviderKey(ctx, provider.ID, "i-1")
	if err != nil {
		t.Fatalf("failed to reload instance: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected stable surrogate id across syncs, got %s then %s", first.ID, second.ID)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Error("expected created_at to survive the upsert")
	}
	if second.Status != string(cloud.StatusStopped) {
		t.Errorf("expected refreshed status stopped, got %s", second.Status)
	}
	if second.Name != "web-1-renamed" {
		t.Errorf("expected refreshed name, got %s", second.Name)
	}

	records, err := store.ListInstances(ctx, &provider.ID, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to list instances: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected 1 row after repeated syncs, got %d", len(records))
	}
}

func TestSyncSecondRunUpdatesInsertsAndLeavesUntouched(t *testing.T) {
	adapter := &fakeAdapter{instances: []cloud.Instance{
		testInstance("i-1", "web-1", cloud.StatusRunning),
		testInstance("i-2", "web-2", cloud.StatusStopped),
	}}
	eng, store, cipher := setupEngine(t, adapter)
	provider := seedProvider(t, store, cipher, "aws")
	ctx := context.Background()

	if _, err := eng.Sync(ctx, provider.ID); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}
	k1, err := store.GetInstanceByProviderKey(ctx, provider.ID, "i-1")
	if err != nil {
		t.Fatalf("failed to load i-1: %v", err)
	}
	k2, err := store.GetInstanceByProviderKey(ctx, provider.ID, "i-2")
	if err != nil {
		t.Fatalf("failed to load i-2: %v", err)
	}

	adapter.instances[0].Status = cloud.StatusStopped
	adapter.instances = append(adapter.instances, testInstance("i-3", "web-3", cloud.StatusRunning))

	// last_updated must visibly advance across the runs
	time.Sleep(10 * time.Millisecond)
	if _, err := eng.Sync(ctx, provider.ID); err != nil {
		t.Fatalf("second sync failed: %v", err)
	}

	updated, err := store.GetInstanceByProviderKey(ctx, provider.ID, "i-1")
	if err != nil {
		t.Fatalf("failed to reload i-1: %v", err)
	}
	if updated.ID != k1.ID {
		t.Errorf("expected stable surrogate id for i-1, got %s then %s", k1.ID, updated.ID)
	}
	if updated.Status != string(cloud.StatusStopped) {
		t.Errorf("expected i-1 status stopped, got %s", updated.Status)
	}
	if !updated.CreatedAt.Equal(k1.CreatedAt) {
		t.Errorf("expected i-1 created_at preserved, got %v then %v", k1.CreatedAt, updated.CreatedAt)
	}
	if !updated.LastUpdated.After(k1.LastUpdated) {
		t.Errorf("expected i-1 last_updated to advance, got %v then %v", k1.LastUpdated, updated.LastUpdated)
	}

	untouched, err := store.GetInstanceByProviderKey(ctx, provider.ID, "i-2")
	if err != nil {
		t.Fatalf("failed to reload i-2: %v", err)
	}
	if untouched.ID != k2.ID || untouched.Status != string(cloud.StatusStopped) {
		t.Errorf("expected i-2 unchanged, got id=%s status=%s", untouched.ID, untouched.Status)
	}

	inserted, err := store.GetInstanceByProviderKey(ctx, provider.ID, "i-3")
	if err != nil {
		t.Fatalf("failed to load i-3: %v", err)
	}
	if inserted.ID == k1.ID || inserted.ID == k2.ID {
		t.Errorf("expected a fresh surrogate id for i-3, got %s", inserted.ID)
	}
	if inserted.CreatedAt.IsZero() || inserted.LastUpdated.IsZero() {
		t.Error("expected real timestamps on the inserted instance")
	}

	records, err := store.ListInstances(ctx, &provider.ID, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to list instances: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("expected 3 rows after second sync, got %d", len(records))
	}
}

func TestSyncFailureMarksRunFailed(t *testing.T) {
	adapter := &fakeAdapter{
		listErr: cloud.NewConnectionError("endpoint unreachable", errors.New("dial timeout")),
	}
	eng, store, cipher := setupEngine(t, adapter)
	provider := seedProvider(t, store, cipher, "aws")
	ctx := context.Background()

	if _, err := eng.Sync(ctx, provider.ID); err == nil {
		t.Fatal("expected sync to fail")
	}

	runs, err := store.ListSyncRuns(ctx, &provider.ID, 10, 0)
	if err != nil {
		t.Fatalf("failed to list sync runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].Status != stores.SyncRunStatusFailed {
		t.Errorf("expected failed run, got %s", runs[0].Status)
	}
	if runs[0].Error == nil {
		t.Error("expected error message on failed run")
	}

	stored, err := store.GetProvider(ctx, provider.ID)
	if err != nil {
		t.Fatalf("failed to reload provider: %v", err)
	}
	if stored.LastSync != nil {
		t.Error("expected no last sync after failed run")
	}
}

func TestSyncRejectsDisabledProvider(t *testing.T) {
	adapter := &fakeAdapter{}
	eng, store, cipher := setupEngine(t, adapter)
	provider := seedProvider(t, store, cipher, "aws")
	ctx := context.Background()

	provider.Enabled = false
	if err := store.UpdateProvider(ctx, provider); err != nil {
		t.Fatalf("failed to disable provider: %v", err)
	}

	if _, err := eng.Sync(ctx, provider.ID); err == nil {
		t.Fatal("expected sync of disabled provider to fail")
	}
}

func TestSyncAllContinuesPastFailures(t *testing.T) {
	// One shared adapter: the first provider's region listing fails only
	// when scripted per provider, so script failure via the provider type.
	healthy := &fakeAdapter{instances: []cloud.Instance{
		testInstance("i-1", "web-1", cloud.StatusRunning),
	}}
	broken := &fakeAdapter{
		listErr: cloud.NewConnectionError("endpoint unreachable", nil),
	}

	eng, store, cipher := setupEngine(t, healthy)
	eng.factory = func(providerType cloud.ProviderType, _ []byte, _ cloud.Options) (cloud.Adapter, error) {
		if providerType == cloud.ProviderAzure {
			return broken, nil
		}
		return healthy, nil
	}

	awsProvider := seedProvider(t, store, cipher, "aws")
	seedProvider(t, store, cipher, "azure")
	ctx := context.Background()

	runs, err := eng.SyncAll(ctx)
	if err == nil {
		t.Fatal("expected joined error from failing provider")
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 completed run, got %d", len(runs))
	}
	if runs[0].ProviderID != awsProvider.ID {
		t.Errorf("expected the healthy provider's run, got %s", runs[0].ProviderID)
	}
}

func TestProviderRegions(t *testing.T) {
	cases := []struct {
		regions string
		want    []string
	}{
		{`["us-east-1","eu-west-1"]`, []string{"us-east-1", "eu-west-1"}},
		{`[]`, []string{""}},
		{``, []string{""}},
		{`not json`, []string{""}},
	}
	for _, tc := range cases {
		got := providerRegions(&stores.Provider{Regions: tc.regions})
		if len(got) != len(tc.want) {
			t.Errorf("providerRegions(%q) = %v, want %v", tc.regions, got, tc.want)
			continue
		}
		for i := range tc.want {
			if got[i] != tc.want[i] {
				t.Errorf("providerRegions(%q)[%d] = %q, want %q", tc.regions, i, got[i], tc.want[i])
			}
		}
	}
}

func TestInstanceToRecord(t *testing.T) {
	vcpus, ramMb := 2, 1024
	launch := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	instance := cloud.Instance{
		ProviderInstanceID: "i-1",
		Name:               "web-1",
		Status:             cloud.StatusRunning,
		InstanceType:       "t3.micro",
		VCPUs:              &vcpus,
		RAMMB:              &ramMb,
		Region:             "us-east-1",
		LaunchTime:         &launch,
		Tags:               map[string]string{"env": "prod"},
		MonthlyCost:        7.52,
	}

	record := instanceToRecord("prov-1", &instance)
	if record.ProviderID != "prov-1" || record.ProviderInstanceID != "i-1" {
		t.Error("expected natural key fields set")
	}
	if record.Status != "running" {
		t.Errorf("expected running, got %s", record.Status)
	}
	if record.VCPUs != 2 || record.RAMMb != 1024 {
		t.Error("expected sizing copied from pointers")
	}
	if record.DiskGb != 0 {
		t.Errorf("expected zero disk for nil pointer, got %d", record.DiskGb)
	}
	if record.MonthlyCost == nil || *record.MonthlyCost != 7.52 {
		t.Error("expected monthly cost copied")
	}
	if record.Tags != `{"env":"prod"}` {
		t.Errorf("expected tags JSON, got %s", record.Tags)
	}
	if record.CreatedAt.IsZero() || record.LastUpdated.IsZero() {
		t.Error("expected conversion to stamp created_at and last_updated")
	}
}
