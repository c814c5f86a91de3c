package gcp

import (
	"context"
	"errors"
	"math"
	"strings"

	billing "cloud.google.com/go/billing/apiv1"
	"cloud.google.com/go/billing/apiv1/billingpb"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/cloud"
)

// computeEngineService is the Cloud Catalog service id for Compute Engine.
const computeEngineService = "services/6F81-5844-456A"

// billingCatalog lazily builds the Cloud Catalog client. Construction is
// attempted once; after a failure the adapter stays on the static table.
func (a *Adapter) billingCatalog(ctx context.Context) *billing.CloudCatalogClient {
	a.billingMu.Lock()
	defer a.billingMu.Unlock()

	if a.billingFailed {
		return nil
	}
	if a.billingClient == nil {
		client, err := billing.NewCloudCatalogClient(ctx,
			option.WithCredentialsJSON([]byte(a.creds.ServiceAccountJSON)))
		if err != nil {
			a.billingFailed = true
			a.logger.WithError(err).Debug("billing catalog unavailable, using static pricing")
			return nil
		}
		a.billingClient = client
	}
	return a.billingClient
}

// estimateMonthlyCost resolves a machine type's monthly cost from the
// Cloud Catalog, bounded by the pricing timeout, falling back to the
// static table when the lookup fails or finds no matching SKU.
func (a *Adapter) estimateMonthlyCost(ctx context.Context, machineType string) float64 {
	if client := a.billingCatalog(ctx); client != nil {
		if cost, ok := a.liveMonthlyCost(ctx, client, machineType); ok {
			return cost
		}
	}
	return EstimateMonthlyCost(machineType)
}

// liveMonthlyCost scans Compute Engine SKUs for an on-demand instance
// price matching the machine type in the adapter's default region. The
// hourly unit price extends to a 730-hour month.
func (a *Adapter) liveMonthlyCost(ctx context.Context, client *billing.CloudCatalogClient, machineType string) (float64, bool) {
	ctx, cancel := context.WithTimeout(ctx, a.opts.PricingTimeout)
	defer cancel()

	it := client.ListSkus(ctx, &billingpb.ListSkusRequest{Parent: computeEngineService})
	for {
		sku, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			a.logger.WithError(err).Debug("sku listing failed, using static pricing")
			return 0, false
		}

		description := strings.ToLower(sku.GetDescription())
		if !strings.Contains(description, strings.ToLower(machineType)) ||
			!strings.Contains(description, a.defaultRegion) ||
			!strings.Contains(description, "instance") {
			continue
		}

		for _, info := range sku.GetPricingInfo() {
			expression := info.GetPricingExpression()
			if expression == nil || len(expression.GetTieredRates()) == 0 {
				continue
			}
			price := expression.GetTieredRates()[0].GetUnitPrice()
			if price == nil {
				continue
			}
			hourly := float64(price.GetUnits()) + float64(price.GetNanos())/1e9
			if hourly <= 0 {
				continue
			}
			return math.Round(hourly*cloud.MonthlyHours*100) / 100, true
		}
	}

	return 0, false
}
