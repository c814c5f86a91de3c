package openstack

import (
	"github.com/gophercloud/gophercloud/v2/openstack/compute/v2/servers"

	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/cloud"
)

// defaultRegion is reported when the deployment exposes no region of its
// own. Single-region installs conventionally call theirs RegionOne.
const defaultRegion = "RegionOne"

// mapStatus maps a Nova server status to the canonical enum. Shelved,
// paused, and suspended servers count as stopped: they exist but run no
// workload.
func mapStatus(status string) cloud.InstanceStatus {
	switch status {
	case "ACTIVE":
		return cloud.StatusRunning
	case "SHUTOFF", "PAUSED", "SUSPENDED", "SHELVED", "SHELVED_OFFLOADED":
		return cloud.StatusStopped
	case "BUILD", "REBUILD", "REBOOT", "HARD_REBOOT":
		return cloud.StatusStarting
	default:
		return cloud.StatusUnknown
	}
}

// flavorString reads a string field from the embedded flavor document.
func flavorString(flavor map[string]any, key string) string {
	if value, ok := flavor[key].(string); ok {
		return value
	}
	return ""
}

// flavorInt reads a numeric field from the embedded flavor document. JSON
// decoding yields float64 for numbers.
func flavorInt(flavor map[string]any, key string) (int, bool) {
	switch value := flavor[key].(type) {
	case float64:
		return int(value), true
	case int:
		return value, true
	}
	return 0, false
}

// normalizeServer converts a Nova server into the canonical shape. Pure
// mapping, no I/O. IPs come from the address document: fixed addresses
// are private, floating addresses public.
func normalizeServer(server *servers.Server) cloud.Instance {
	instance := cloud.Instance{
		ProviderInstanceID: server.ID,
		Name:               server.Name,
		Status:             mapStatus(server.Status),
		Region:             defaultRegion,
		Tags:               map[string]string{},
	}

	for key, value := range server.Metadata {
		instance.Tags[key] = value
	}

	if name := flavorString(server.Flavor, "original_name"); name != "" {
		instance.InstanceType = name
	} else {
		instance.InstanceType = "unknown"
	}
	if vcpus, ok := flavorInt(server.Flavor, "vcpus"); ok {
		instance.VCPUs = &vcpus
	}
	if ramMb, ok := flavorInt(server.Flavor, "ram"); ok {
		instance.RAMMB = &ramMb
	}
	if diskGb, ok := flavorInt(server.Flavor, "disk"); ok {
		instance.DiskGB = &diskGb
	}

	if server.AvailabilityZone != "" {
		az := server.AvailabilityZone
		instance.AvailabilityZone = &az
	}

	for _, addresses := range server.Addresses {
		entries, ok := addresses.([]any)
		if !ok {
			continue
		}
		for _, entry := range entries {
			info, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			addr, _ := info["addr"].(string)
			if addr == "" {
				continue
			}
			switch info["OS-EXT-IPS:type"] {
			case "fixed":
				ip := addr
				instance.PrivateIP = &ip
			case "floating":
				ip := addr
				instance.PublicIP = &ip
			}
		}
	}

	if !server.Created.IsZero() {
		launch := server.Created
		instance.LaunchTime = &launch
	}

	return instance
}
