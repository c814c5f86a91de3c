package cloud

import "testing"

func TestDecodeCredentials(t *testing.T) {
	var aws AWSCredentials
	err := DecodeCredentials([]byte(`{"access_key_id":"AKIATEST","secret_access_key":"s3cr3t","session_token":"tok"}`), &aws)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if aws.AccessKeyID != "AKIATEST" || aws.SessionToken != "tok" {
		t.Errorf("fields not decoded: %+v", aws)
	}

	var azure AzureCredentials
	err = DecodeCredentials([]byte(`{"tenant_id":"t","client_id":"c","client_secret":"s","subscription_id":"sub"}`), &azure)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if azure.SubscriptionID != "sub" {
		t.Errorf("fields not decoded: %+v", azure)
	}
}

func TestDecodeCredentialsRejectsMissingFields(t *testing.T) {
	cases := []struct {
		name string
		data string
		out  any
	}{
		{"aws missing secret", `{"access_key_id":"AKIA"}`, &AWSCredentials{}},
		{"azure missing tenant", `{"client_id":"c","client_secret":"s","subscription_id":"sub"}`, &AzureCredentials{}},
		{"gcp missing key", `{"project_id":"p"}`, &GCPCredentials{}},
		{"openstack missing password", `{"auth_url":"https://k:5000/v3","username":"u","project_name":"p"}`, &OpenStackCredentials{}},
	}
	for _, tc := range cases {
		if err := DecodeCredentials([]byte(tc.data), tc.out); !IsValidation(err) {
			t.Errorf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}

func TestDecodeCredentialsRejectsMalformedJSON(t *testing.T) {
	var aws AWSCredentials
	if err := DecodeCredentials([]byte(`{not json`), &aws); !IsValidation(err) {
		t.Errorf("expected validation error for malformed JSON, got %v", err)
	}
}
