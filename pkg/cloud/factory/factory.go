// Package factory builds concrete provider adapters. It exists as a
// separate package so the reconciliation engine can depend on the
// cloud.AdapterFactory signature without importing any provider SDK.
package factory

import (
	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/cloud"
	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/cloud/aws"
	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/cloud/azure"
	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/cloud/gcp"
	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/cloud/openstack"
	"github.com/DarkoDimitrov/Cloud-Resource-Manager/pkg/telemetry"
)

// New returns an AdapterFactory that dispatches on the provider type.
// The logger is shared; each adapter derives its own component logger.
func New(logger *telemetry.Logger) cloud.AdapterFactory {
	return func(providerType cloud.ProviderType, credentials []byte, opts cloud.Options) (cloud.Adapter, error) {
		switch providerType {
		case cloud.ProviderAWS:
			return aws.New(credentials, opts, logger)
		case cloud.ProviderAzure:
			return azure.New(credentials, opts, logger)
		case cloud.ProviderGCP:
			return gcp.New(credentials, opts, logger)
		case cloud.ProviderOpenStack:
			return openstack.New(credentials, opts, logger)
		default:
			return nil, cloud.NewValidationError("unknown provider type: "+string(providerType), nil)
		}
	}
}
