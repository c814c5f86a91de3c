package gcp

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/compute/apiv1/computepb"
	"google.golang.org/protobuf/proto"

	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/cloud"
)

func TestCollectZonesSkipsFailedZones(t *testing.T) {
	fetch := func(_ context.Context, zone string) ([]cloud.Instance, error) {
		if zone == "us-central1-b" {
			return nil, errors.New("zone unreachable")
		}
		return []cloud.Instance{{
			ProviderInstanceID: cloud.JoinCompositeID(zone, "web-1"),
			Name:               "web-1",
		}}, nil
	}

	var (
		mu     sync.Mutex
		failed []string
	)
	got := collectZones(context.Background(), zonesForRegion("us-central1"), 2, fetch,
		func(zone string, err error) {
			mu.Lock()
			failed = append(failed, zone)
			mu.Unlock()
		})

	if len(got) != 3 {
		t.Fatalf("expected 3 instances from healthy zones, got %d", len(got))
	}
	if len(failed) != 1 || failed[0] != "us-central1-b" {
		t.Errorf("expected only us-central1-b to fail, got %v", failed)
	}

	ids := make([]string, len(got))
	for i, instance := range got {
		ids[i] = instance.ProviderInstanceID
	}
	sort.Strings(ids)
	want := []string{"us-central1-a/web-1", "us-central1-c/web-1", "us-central1-f/web-1"}
	for i, id := range want {
		if ids[i] != id {
			t.Errorf("expected %s at position %d, got %s", id, i, ids[i])
		}
	}
}

func TestCollectZonesSingleWorker(t *testing.T) {
	var calls int
	fetch := func(_ context.Context, zone string) ([]cloud.Instance, error) {
		calls++
		return nil, nil
	}

	got := collectZones(context.Background(), []string{"a", "b"}, 0, fetch, func(string, error) {
		t.Error("unexpected zone error")
	})
	if len(got) != 0 {
		t.Errorf("expected no instances, got %d", len(got))
	}
	if calls != 2 {
		t.Errorf("expected both zones fetched, got %d calls", calls)
	}
}

func TestZonesForRegion(t *testing.T) {
	zones := zonesForRegion("europe-west1")
	want := []string{"europe-west1-a", "europe-west1-b", "europe-west1-c", "europe-west1-f"}
	if len(zones) != len(want) {
		t.Fatalf("expected %d zones, got %d", len(want), len(zones))
	}
	for i := range want {
		if zones[i] != want[i] {
			t.Errorf("expected %s, got %s", want[i], zones[i])
		}
	}
}

func TestMapStatusTotality(t *testing.T) {
	cases := map[string]cloud.InstanceStatus{
		"RUNNING":      cloud.StatusRunning,
		"TERMINATED":   cloud.StatusStopped,
		"SUSPENDED":    cloud.StatusStopped,
		"PROVISIONING": cloud.StatusStarting,
		"STAGING":      cloud.StatusStarting,
		"STOPPING":     cloud.StatusStopping,
		"SUSPENDING":   cloud.StatusStopping,
		"REPAIRING":    cloud.StatusUnknown,
		"":             cloud.StatusUnknown,
	}
	for native, want := range cases {
		if got := mapStatus(native); got != want {
			t.Errorf("mapStatus(%q) = %s, want %s", native, got, want)
		}
	}
}

func TestLastSegment(t *testing.T) {
	cases := map[string]string{
		"https://www.googleapis.com/compute/v1/projects/p/zones/us-central1-a": "us-central1-a",
		"zones/us-central1-a/machineTypes/e2-medium":                           "e2-medium",
		"e2-medium": "e2-medium",
		"":          "",
	}
	for url, want := range cases {
		if got := lastSegment(url); got != want {
			t.Errorf("lastSegment(%q) = %q, want %q", url, got, want)
		}
	}
}

func TestZoneToRegion(t *testing.T) {
	if got := zoneToRegion("us-central1-a"); got != "us-central1" {
		t.Errorf("expected us-central1, got %s", got)
	}
	if got := zoneToRegion("europe-west4-b"); got != "europe-west4" {
		t.Errorf("expected europe-west4, got %s", got)
	}
}

func TestNormalizeInstance(t *testing.T) {
	raw := &computepb.Instance{
		Name:              proto.String("web-1"),
		Status:            proto.String("RUNNING"),
		Zone:              proto.String("https://www.googleapis.com/compute/v1/projects/p/zones/us-central1-a"),
		MachineType:       proto.String("https://www.googleapis.com/compute/v1/projects/p/zones/us-central1-a/machineTypes/e2-medium"),
		CreationTimestamp: proto.String("2026-03-01T12:00:00Z"),
		Labels:            map[string]string{"env": "prod"},
		Disks: []*computepb.AttachedDisk{
			{DiskSizeGb: proto.Int64(20)},
			{DiskSizeGb: proto.Int64(100)},
		},
		NetworkInterfaces: []*computepb.NetworkInterface{
			{
				NetworkIP: proto.String("10.0.0.5"),
				AccessConfigs: []*computepb.AccessConfig{
					{NatIP: proto.String("34.1.2.3")},
				},
			},
		},
	}

	got := normalizeInstance(raw, mapStatus(raw.GetStatus()), EstimateMonthlyCost("e2-medium"))

	if got.ProviderInstanceID != "us-central1-a/web-1" {
		t.Errorf("expected composite id us-central1-a/web-1, got %s", got.ProviderInstanceID)
	}
	if got.Status != cloud.StatusRunning {
		t.Errorf("expected running, got %s", got.Status)
	}
	if got.InstanceType != "e2-medium" {
		t.Errorf("expected e2-medium, got %s", got.InstanceType)
	}
	if got.Region != "us-central1" {
		t.Errorf("expected us-central1, got %s", got.Region)
	}
	if got.AvailabilityZone == nil || *got.AvailabilityZone != "us-central1-a" {
		t.Error("expected zone us-central1-a")
	}
	if got.VCPUs == nil || *got.VCPUs != 2 {
		t.Error("expected 2 vcpus for e2-medium")
	}
	if got.RAMMB == nil || *got.RAMMB != 4096 {
		t.Error("expected 4096 MB for e2-medium")
	}
	if got.DiskGB == nil || *got.DiskGB != 120 {
		t.Error("expected 120 GB total disk")
	}
	if got.PrivateIP == nil || *got.PrivateIP != "10.0.0.5" {
		t.Error("expected private ip 10.0.0.5")
	}
	if got.PublicIP == nil || *got.PublicIP != "34.1.2.3" {
		t.Error("expected public ip 34.1.2.3")
	}
	if got.MonthlyCost != 24.45 {
		t.Errorf("expected 24.45 monthly, got %f", got.MonthlyCost)
	}
	want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if got.LaunchTime == nil || !got.LaunchTime.Equal(want) {
		t.Error("expected launch time from creation timestamp")
	}
	if got.Tags["env"] != "prod" {
		t.Errorf("expected env label, got %v", got.Tags)
	}
}

func TestNormalizeInstanceDefaults(t *testing.T) {
	raw := &computepb.Instance{
		Name:        proto.String("mystery"),
		Status:      proto.String("RUNNING"),
		Zone:        proto.String("zones/us-central1-a"),
		MachineType: proto.String("machineTypes/a2-highgpu-1g"),
	}

	got := normalizeInstance(raw, cloud.StatusRunning, EstimateMonthlyCost("a2-highgpu-1g"))
	if got.VCPUs == nil || *got.VCPUs != defaultVCPUs {
		t.Error("expected default vcpus for unmapped machine type")
	}
	if got.RAMMB == nil || *got.RAMMB != defaultRAMMb {
		t.Error("expected default RAM for unmapped machine type")
	}
	if got.MonthlyCost != defaultMonthlyCost {
		t.Errorf("expected default cost, got %f", got.MonthlyCost)
	}
	if got.DiskGB != nil {
		t.Error("expected nil disk size without disks")
	}
	if got.PrivateIP != nil || got.PublicIP != nil {
		t.Error("expected nil ips without network interfaces")
	}
}

func TestEstimateMonthlyCostDeterminism(t *testing.T) {
	if a, b := EstimateMonthlyCost("n2-standard-4"), EstimateMonthlyCost("n2-standard-4"); a != b || a != 121.47 {
		t.Errorf("expected stable 121.47, got %f and %f", a, b)
	}
}

func TestNewRejectsIncompleteCredentials(t *testing.T) {
	// logger is unused before credential validation fails
	_, err := New([]byte(`{"project_id":"p"}`), cloud.Options{}, nil)
	if !cloud.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
