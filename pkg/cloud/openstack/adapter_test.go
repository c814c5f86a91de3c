package openstack

import (
	"testing"
	"time"

	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/servers"

	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/cloud"
	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/telemetry"
)

func TestMapStatusTotality(t *testing.T) {
	cases := map[string]cloud.InstanceStatus{
		"ACTIVE":            cloud.StatusRunning,
		"SHUTOFF":           cloud.StatusStopped,
		"PAUSED":            cloud.StatusStopped,
		"SUSPENDED":         cloud.StatusStopped,
		"SHELVED":           cloud.StatusStopped,
		"SHELVED_OFFLOADED": cloud.StatusStopped,
		"BUILD":             cloud.StatusStarting,
		"REBUILD":           cloud.StatusStarting,
		"REBOOT":            cloud.StatusStarting,
		"HARD_REBOOT":       cloud.StatusStarting,
		"ERROR":             cloud.StatusUnknown,
		"MIGRATING":         cloud.StatusUnknown,
		"":                  cloud.StatusUnknown,
	}
	for native, want := range cases {
		if got := mapStatus(native); got != want {
			t.Errorf("mapStatus(%q) = %s, want %s", native, got, want)
		}
	}
}

func TestNormalizeServer(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	server := &servers.Server{
		ID:               "9a1b2c3d-0000-1111-2222-333344445555",
		Name:             "web-1",
		Status:           "ACTIVE",
		Created:          created,
		AvailabilityZone: "nova",
		Metadata:         map[string]string{"env": "prod"},
		Flavor: map[string]any{
			"original_name": "m1.medium",
			"vcpus":         float64(2),
			"ram":           float64(4096),
			"disk":          float64(40),
		},
		Addresses: map[string]any{
			"private-net": []any{
				map[string]any{"OS-EXT-IPS:type": "fixed", "addr": "10.0.0.5"},
				map[string]any{"OS-EXT-IPS:type": "floating", "addr": "203.0.113.7"},
			},
		},
	}

	got := normalizeServer(server)

	if got.ProviderInstanceID != server.ID {
		t.Errorf("expected nova uuid as provider instance id, got %s", got.ProviderInstanceID)
	}
	if got.Status != cloud.StatusRunning {
		t.Errorf("expected running, got %s", got.Status)
	}
	if got.InstanceType != "m1.medium" {
		t.Errorf("expected m1.medium, got %s", got.InstanceType)
	}
	if got.VCPUs == nil || *got.VCPUs != 2 {
		t.Error("expected 2 vcpus from flavor")
	}
	if got.RAMMB == nil || *got.RAMMB != 4096 {
		t.Error("expected 4096 MB from flavor")
	}
	if got.DiskGB == nil || *got.DiskGB != 40 {
		t.Error("expected 40 GB from flavor")
	}
	if got.Region != defaultRegion {
		t.Errorf("expected %s, got %s", defaultRegion, got.Region)
	}
	if got.AvailabilityZone == nil || *got.AvailabilityZone != "nova" {
		t.Error("expected availability zone nova")
	}
	if got.PrivateIP == nil || *got.PrivateIP != "10.0.0.5" {
		t.Error("expected fixed address as private ip")
	}
	if got.PublicIP == nil || *got.PublicIP != "203.0.113.7" {
		t.Error("expected floating address as public ip")
	}
	if got.LaunchTime == nil || !got.LaunchTime.Equal(created) {
		t.Error("expected launch time from created timestamp")
	}
	if got.Tags["env"] != "prod" {
		t.Errorf("expected env tag from metadata, got %v", got.Tags)
	}
}

func TestNormalizeServerDefaults(t *testing.T) {
	server := &servers.Server{
		ID:     "bare",
		Name:   "bare",
		Status: "SHUTOFF",
	}

	got := normalizeServer(server)
	if got.Status != cloud.StatusStopped {
		t.Errorf("expected stopped, got %s", got.Status)
	}
	if got.InstanceType != "unknown" {
		t.Errorf("expected unknown flavor name, got %s", got.InstanceType)
	}
	if got.VCPUs != nil || got.RAMMB != nil || got.DiskGB != nil {
		t.Error("expected nil sizing without flavor document")
	}
	if got.PrivateIP != nil || got.PublicIP != nil {
		t.Error("expected nil ips without addresses")
	}
	if got.LaunchTime != nil {
		t.Error("expected nil launch time for zero created")
	}
	if got.AvailabilityZone != nil {
		t.Error("expected nil availability zone")
	}
}

func TestNewDefaultsDomains(t *testing.T) {
	adapter, err := New([]byte(`{
		"auth_url": "https://keystone.example:5000/v3",
		"username": "svc",
		"password": "secret",
		"project_name": "prod"
	}`), cloud.Options{}, telemetry.NewNopLogger())
	if err != nil {
		t.Fatalf("expected adapter, got %v", err)
	}
	if adapter.creds.UserDomainName != "Default" || adapter.creds.ProjectDomainName != "Default" {
		t.Errorf("expected Default domains, got %q and %q",
			adapter.creds.UserDomainName, adapter.creds.ProjectDomainName)
	}
}

func TestNewRejectsIncompleteCredentials(t *testing.T) {
	// logger is unused before credential validation fails
	_, err := New([]byte(`{"auth_url":"https://keystone.example:5000/v3"}`), cloud.Options{}, nil)
	if !cloud.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
