package gcp

import (
	"strings"
	"time"

	"cloud.google.com/go/compute/apiv1/computepb"

	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/cloud"
)

// lastSegment returns the final path segment of a GCE resource URL.
// Zone and machine type come back as full self-links.
func lastSegment(url string) string {
	if url == "" {
		return ""
	}
	if idx := strings.LastIndex(url, "/"); idx >= 0 {
		return url[idx+1:]
	}
	return url
}

// zoneToRegion strips the trailing zone letter, e.g. us-central1-a
// becomes us-central1.
func zoneToRegion(zone string) string {
	if idx := strings.LastIndex(zone, "-"); idx > 0 {
		return zone[:idx]
	}
	return zone
}

// mapStatus maps a GCE instance status to the canonical enum.
// SUSPENDED counts as stopped: the instance exists but is not billed
// for compute.
func mapStatus(status string) cloud.InstanceStatus {
	switch status {
	case "RUNNING":
		return cloud.StatusRunning
	case "TERMINATED", "SUSPENDED":
		return cloud.StatusStopped
	case "PROVISIONING", "STAGING":
		return cloud.StatusStarting
	case "STOPPING", "SUSPENDING":
		return cloud.StatusStopping
	default:
		return cloud.StatusUnknown
	}
}

// normalizeInstance converts a GCE instance into the canonical shape.
// Pure mapping, no I/O. The composite id "zone/instanceName" becomes the
// provider instance id used for all subsequent lookups.
func normalizeInstance(raw *computepb.Instance, status cloud.InstanceStatus, monthlyCost float64) cloud.Instance {
	zone := lastSegment(raw.GetZone())
	name := raw.GetName()
	machineType := lastSegment(raw.GetMachineType())

	tags := map[string]string{}
	for key, value := range raw.GetLabels() {
		tags[key] = value
	}

	instance := cloud.Instance{
		ProviderInstanceID: cloud.JoinCompositeID(zone, name),
		Name:               name,
		Status:             status,
		InstanceType:       machineType,
		Region:             zoneToRegion(zone),
		Tags:               tags,
		MonthlyCost:        monthlyCost,
	}

	if zone != "" {
		az := zone
		instance.AvailabilityZone = &az
	}

	if machineType != "" {
		vcpus, ramMb := machineSpecs(machineType)
		instance.VCPUs = &vcpus
		instance.RAMMB = &ramMb
	}

	var diskGb int
	for _, disk := range raw.GetDisks() {
		diskGb += int(disk.GetDiskSizeGb())
	}
	if diskGb > 0 {
		instance.DiskGB = &diskGb
	}

	for _, nic := range raw.GetNetworkInterfaces() {
		if nic == nil {
			continue
		}
		if instance.PrivateIP == nil && nic.GetNetworkIP() != "" {
			ip := nic.GetNetworkIP()
			instance.PrivateIP = &ip
		}
		for _, access := range nic.GetAccessConfigs() {
			if access.GetNatIP() != "" {
				ip := access.GetNatIP()
				instance.PublicIP = &ip
				break
			}
		}
	}

	if raw.GetCreationTimestamp() != "" {
		if launch, err := time.Parse(time.RFC3339, raw.GetCreationTimestamp()); err == nil {
			instance.LaunchTime = &launch
		}
	}

	return instance
}
