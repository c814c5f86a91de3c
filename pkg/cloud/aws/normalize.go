package aws

import (
	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/cloud"
)

// mapStatus converts an EC2 instance state name to the canonical enum.
// EC2 state names are already lowercase; pending maps to starting and the
// terminal teardown states to stopping. Anything else is unknown.
func mapStatus(native ec2types.InstanceStateName) cloud.InstanceStatus {
	switch native {
	case ec2types.InstanceStateNameRunning:
		return cloud.StatusRunning
	case ec2types.InstanceStateNameStopped:
		return cloud.StatusStopped
	case ec2types.InstanceStateNamePending:
		return cloud.StatusStarting
	case ec2types.InstanceStateNameStopping, ec2types.InstanceStateNameShuttingDown:
		return cloud.StatusStopping
	default:
		return cloud.StatusUnknown
	}
}

// normalizeInstance converts a raw EC2 instance into the canonical shape.
// Pure mapping, no I/O.
func normalizeInstance(raw ec2types.Instance, fallbackRegion string) cloud.Instance {
	tags := map[string]string{}
	for _, tag := range raw.Tags {
		tags[awssdk.ToString(tag.Key)] = awssdk.ToString(tag.Value)
	}

	id := awssdk.ToString(raw.InstanceId)
	name := tags["Name"]
	if name == "" {
		name = id
	}

	instance := cloud.Instance{
		ProviderInstanceID: id,
		Name:               name,
		InstanceType:       string(raw.InstanceType),
		Region:             fallbackRegion,
		Tags:               tags,
		MonthlyCost:        EstimateMonthlyCost(string(raw.InstanceType)),
	}

	if raw.State != nil {
		instance.Status = mapStatus(raw.State.Name)
	} else {
		instance.Status = cloud.StatusUnknown
	}

	if raw.Placement != nil && raw.Placement.AvailabilityZone != nil {
		az := *raw.Placement.AvailabilityZone
		instance.AvailabilityZone = &az
		if len(az) > 1 {
			// Region is the AZ minus the trailing letter (us-east-1a -> us-east-1)
			instance.Region = az[:len(az)-1]
		}
	}

	if raw.PrivateIpAddress != nil {
		instance.PrivateIP = raw.PrivateIpAddress
	}
	if raw.PublicIpAddress != nil {
		instance.PublicIP = raw.PublicIpAddress
	}
	if raw.LaunchTime != nil {
		instance.LaunchTime = raw.LaunchTime
	}

	return instance
}
