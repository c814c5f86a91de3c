package gcp

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/cloud"
)

// zoneFetcher fetches the instances of a single zone.
type zoneFetcher func(ctx context.Context, zone string) ([]cloud.Instance, error)

// collectZones runs fetch across zones with at most workers in flight.
// A zone whose fetch fails is reported through onError and skipped; the
// remaining zones still contribute their instances. Result order is not
// deterministic across zones.
func collectZones(ctx context.Context, zones []string, workers int, fetch zoneFetcher, onError func(zone string, err error)) []cloud.Instance {
	if workers < 1 {
		workers = 1
	}

	var (
		mu  sync.Mutex
		all = []cloud.Instance{}
	)

	var group errgroup.Group
	group.SetLimit(workers)
	for _, zone := range zones {
		group.Go(func() error {
			instances, err := fetch(ctx, zone)
			if err != nil {
				onError(zone, err)
				return nil
			}
			mu.Lock()
			all = append(all, instances...)
			mu.Unlock()
			return nil
		})
	}
	// fetch errors never propagate, so Wait cannot fail
	_ = group.Wait()

	return all
}

// zonesForRegion returns the candidate zones for a region. GCP regions
// carry up to four zones lettered a, b, c, and f; a zone that does not
// exist simply lists as empty or errors and is skipped by the fan-out.
func zonesForRegion(region string) []string {
	return []string{
		region + "-a",
		region + "-b",
		region + "-c",
		region + "-f",
	}
}
