package cloud

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
)

// Credential schemas are opaque to the core and validated by each adapter
// at construction. Field names match the wire format providers are
// configured with.

// AWSCredentials authenticates against AWS with static keys.
type AWSCredentials struct {
	AccessKeyID     string `json:"access_key_id" validate:"required"`
	SecretAccessKey string `json:"secret_access_key" validate:"required"`
	SessionToken    string `json:"session_token,omitempty"`
}

// AzureCredentials authenticates a service principal against one
// subscription.
type AzureCredentials struct {
	TenantID       string `json:"tenant_id" validate:"required"`
	ClientID       string `json:"client_id" validate:"required"`
	ClientSecret   string `json:"client_secret" validate:"required"`
	SubscriptionID string `json:"subscription_id" validate:"required"`
}

// GCPCredentials carries a service-account key for one project.
type GCPCredentials struct {
	ServiceAccountJSON string `json:"service_account_json" validate:"required"`
	ProjectID          string `json:"project_id" validate:"required"`
	Region             string `json:"region,omitempty"`
}

// OpenStackCredentials authenticates against a Keystone endpoint.
type OpenStackCredentials struct {
	AuthURL           string `json:"auth_url" validate:"required,url"`
	Username          string `json:"username" validate:"required"`
	Password          string `json:"password" validate:"required"`
	ProjectName       string `json:"project_name" validate:"required"`
	UserDomainName    string `json:"user_domain_name,omitempty"`
	ProjectDomainName string `json:"project_domain_name,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeCredentials unmarshals credential JSON into out and validates the
// schema. Failures are validation errors: they surface before any network
// call.
func DecodeCredentials(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return NewValidationError("malformed credential JSON", err)
	}
	if err := validate.Struct(out); err != nil {
		return NewValidationError("incomplete credentials", err)
	}
	return nil
}
