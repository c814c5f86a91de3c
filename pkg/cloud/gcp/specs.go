package gcp

// Static machine type tables. Approximate on-demand prices in USD for
// us-central1; the live Cloud Catalog lookup supersedes these when it
// succeeds.

type machineSpec struct {
	vcpus int
	ramMb int
}

var machineSpecsTable = map[string]machineSpec{
	"e2-micro":       {2, 1024},
	"e2-small":       {2, 2048},
	"e2-medium":      {2, 4096},
	"e2-standard-2":  {2, 8192},
	"e2-standard-4":  {4, 16384},
	"e2-standard-8":  {8, 32768},
	"e2-standard-16": {16, 65536},
	"n1-standard-1":  {1, 3840},
	"n1-standard-2":  {2, 7680},
	"n1-standard-4":  {4, 15360},
	"n1-standard-8":  {8, 30720},
	"n1-standard-16": {16, 61440},
	"n1-standard-32": {32, 122880},
	"n2-standard-2":  {2, 8192},
	"n2-standard-4":  {4, 16384},
	"n2-standard-8":  {8, 32768},
	"n2-standard-16": {16, 65536},
	"f1-micro":       {1, 614},
	"g1-small":       {1, 1740},
}

var monthlyCosts = map[string]float64{
	"e2-micro":       6.11,
	"e2-small":       12.23,
	"e2-medium":      24.45,
	"e2-standard-2":  48.91,
	"e2-standard-4":  97.82,
	"e2-standard-8":  195.64,
	"e2-standard-16": 391.28,
	"n1-standard-1":  24.27,
	"n1-standard-2":  48.54,
	"n1-standard-4":  97.09,
	"n1-standard-8":  194.18,
	"n1-standard-16": 388.36,
	"n1-standard-32": 776.72,
	"n2-standard-2":  60.74,
	"n2-standard-4":  121.47,
	"n2-standard-8":  242.95,
	"n2-standard-16": 485.90,
	"f1-micro":       3.88,
	"g1-small":       13.23,
}

const (
	defaultVCPUs       = 2
	defaultRAMMb       = 4096
	defaultMonthlyCost = 50.0
)

// machineSpecs returns the vCPU and RAM figures for a machine type,
// defaulting for unmapped types.
func machineSpecs(machineType string) (vcpus, ramMb int) {
	if spec, ok := machineSpecsTable[machineType]; ok {
		return spec.vcpus, spec.ramMb
	}
	return defaultVCPUs, defaultRAMMb
}

// EstimateMonthlyCost returns the static monthly cost estimate for a
// machine type.
func EstimateMonthlyCost(machineType string) float64 {
	if cost, ok := monthlyCosts[machineType]; ok {
		return cost
	}
	return defaultMonthlyCost
}
