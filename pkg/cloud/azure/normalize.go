package azure

import (
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v6"

	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/cloud"
)

// strVal dereferences a string pointer, returning "" for nil.
func strVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// resourceGroupFromID extracts the resource group name from a full ARM
// resource id. Returns "" when the id has no resourceGroups segment.
func resourceGroupFromID(resourceID string) string {
	parts := strings.Split(resourceID, "/")
	for i, part := range parts {
		if strings.EqualFold(part, "resourceGroups") && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}

// mapPowerState maps an Azure power state token to the canonical enum.
// Deallocated counts as stopped: the VM exists but consumes no compute.
func mapPowerState(state string) cloud.InstanceStatus {
	switch state {
	case "running":
		return cloud.StatusRunning
	case "stopped", "deallocated":
		return cloud.StatusStopped
	case "starting":
		return cloud.StatusStarting
	case "stopping", "deallocating":
		return cloud.StatusStopping
	default:
		return cloud.StatusUnknown
	}
}

// powerStateFromView extracts the canonical status from an instance view.
// The view carries several status codes; only the PowerState/ one matters.
func powerStateFromView(view armcompute.VirtualMachineInstanceView) cloud.InstanceStatus {
	for _, status := range view.Statuses {
		if status == nil || status.Code == nil {
			continue
		}
		code := *status.Code
		if !strings.HasPrefix(code, "PowerState/") {
			continue
		}
		return mapPowerState(strings.TrimPrefix(code, "PowerState/"))
	}
	return cloud.StatusUnknown
}

// normalizeVM converts an ARM virtual machine into the canonical shape.
// Pure mapping, no I/O. The composite id "resourceGroup/vmName" becomes
// the provider instance id used for all subsequent lookups.
func normalizeVM(vm *armcompute.VirtualMachine, status cloud.InstanceStatus) cloud.Instance {
	rg := resourceGroupFromID(strVal(vm.ID))
	name := strVal(vm.Name)

	tags := map[string]string{}
	for key, value := range vm.Tags {
		tags[key] = strVal(value)
	}

	instance := cloud.Instance{
		ProviderInstanceID: cloud.JoinCompositeID(rg, name),
		Name:               name,
		Status:             status,
		Region:             strVal(vm.Location),
		Tags:               tags,
	}

	if len(vm.Zones) > 0 && vm.Zones[0] != nil {
		zone := *vm.Zones[0]
		instance.AvailabilityZone = &zone
	}

	if vm.Properties != nil {
		if vm.Properties.HardwareProfile != nil && vm.Properties.HardwareProfile.VMSize != nil {
			size := string(*vm.Properties.HardwareProfile.VMSize)
			instance.InstanceType = size
			cores := vmCores(size)
			ram := vmRAMMb(size)
			instance.VCPUs = &cores
			instance.RAMMB = &ram
			instance.MonthlyCost = EstimateMonthlyCost(size)
		}
		if vm.Properties.TimeCreated != nil {
			launch := *vm.Properties.TimeCreated
			instance.LaunchTime = &launch
		}
	}

	return instance
}
