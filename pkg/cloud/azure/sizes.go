package azure

// Static size and price tables for common VM sizes. Approximate
// pay-as-you-go prices in USD; actual costs vary by region and contract.

var vmCoreCounts = map[string]int{
	"Standard_B1s":     1,
	"Standard_B1ms":    1,
	"Standard_B2s":     2,
	"Standard_B2ms":    2,
	"Standard_B4ms":    4,
	"Standard_B8ms":    8,
	"Standard_D2s_v3":  2,
	"Standard_D4s_v3":  4,
	"Standard_D8s_v3":  8,
	"Standard_D16s_v3": 16,
	"Standard_F2s_v2":  2,
	"Standard_F4s_v2":  4,
	"Standard_F8s_v2":  8,
}

var vmRAMMbs = map[string]int{
	"Standard_B1s":     1024,
	"Standard_B1ms":    2048,
	"Standard_B2s":     4096,
	"Standard_B2ms":    8192,
	"Standard_B4ms":    16384,
	"Standard_B8ms":    32768,
	"Standard_D2s_v3":  8192,
	"Standard_D4s_v3":  16384,
	"Standard_D8s_v3":  32768,
	"Standard_D16s_v3": 65536,
}

var monthlyCosts = map[string]float64{
	"Standard_B1s":    7.59,
	"Standard_B1ms":   15.18,
	"Standard_B2s":    30.37,
	"Standard_B2ms":   60.74,
	"Standard_B4ms":   121.47,
	"Standard_B8ms":   242.95,
	"Standard_D2s_v3": 70.08,
	"Standard_D4s_v3": 140.16,
	"Standard_D8s_v3": 280.32,
	"Standard_F2s_v2": 62.78,
	"Standard_F4s_v2": 125.56,
}

const (
	defaultCores       = 2
	defaultRAMMb       = 4096
	defaultMonthlyCost = 50.0
)

// vmCores returns the vCPU count for a VM size, defaulting for unmapped
// sizes.
func vmCores(vmSize string) int {
	if cores, ok := vmCoreCounts[vmSize]; ok {
		return cores
	}
	return defaultCores
}

// vmRAMMb returns the RAM in MB for a VM size, defaulting for unmapped
// sizes.
func vmRAMMb(vmSize string) int {
	if ram, ok := vmRAMMbs[vmSize]; ok {
		return ram
	}
	return defaultRAMMb
}

// EstimateMonthlyCost returns the static monthly cost estimate for a VM
// size.
func EstimateMonthlyCost(vmSize string) float64 {
	if cost, ok := monthlyCosts[vmSize]; ok {
		return cost
	}
	return defaultMonthlyCost
}
