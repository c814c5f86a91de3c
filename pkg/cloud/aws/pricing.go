package aws

// Approximate on-demand monthly costs in USD (us-east-1, hourly rate * 730
// hours). Actual spend varies by region, reserved capacity, and spot usage.
var monthlyCosts = map[string]float64{
	// t2 (burstable)
	"t2.micro":   8.47,
	"t2.small":   16.79,
	"t2.medium":  33.58,
	"t2.large":   67.16,
	"t2.xlarge":  134.32,
	"t2.2xlarge": 268.64,

	// t3 (burstable)
	"t3.micro":   7.52,
	"t3.small":   15.04,
	"t3.medium":  30.08,
	"t3.large":   60.16,
	"t3.xlarge":  120.32,
	"t3.2xlarge": 240.64,

	// m5 (general purpose)
	"m5.large":    70.08,
	"m5.xlarge":   140.16,
	"m5.2xlarge":  280.32,
	"m5.4xlarge":  560.64,
	"m5.8xlarge":  1121.28,
	"m5.12xlarge": 1681.92,
	"m5.16xlarge": 2242.56,
	"m5.24xlarge": 3363.84,

	// c5 (compute optimized)
	"c5.large":    62.05,
	"c5.xlarge":   124.10,
	"c5.2xlarge":  248.20,
	"c5.4xlarge":  496.40,
	"c5.9xlarge":  1116.90,
	"c5.12xlarge": 1489.20,
	"c5.18xlarge": 2233.80,
	"c5.24xlarge": 2978.40,

	// r5 (memory optimized)
	"r5.large":    91.25,
	"r5.xlarge":   182.50,
	"r5.2xlarge":  365.00,
	"r5.4xlarge":  730.00,
	"r5.8xlarge":  1460.00,
	"r5.12xlarge": 2190.00,
	"r5.16xlarge": 2920.00,
	"r5.24xlarge": 4380.00,
}

// defaultMonthlyCost is returned for instance types missing from the table.
const defaultMonthlyCost = 50.0

// EstimateMonthlyCost returns the static monthly cost estimate for an EC2
// instance type.
func EstimateMonthlyCost(instanceType string) float64 {
	if cost, ok := monthlyCosts[instanceType]; ok {
		return cost
	}
	return defaultMonthlyCost
}
