package cloud

import "testing"

func TestParseProviderType(t *testing.T) {
	cases := map[string]ProviderType{
		"aws":       ProviderAWS,
		"AWS":       ProviderAWS,
		"Azure":     ProviderAzure,
		"gcp":       ProviderGCP,
		"OpenStack": ProviderOpenStack,
	}
	for input, want := range cases {
		got, err := ParseProviderType(input)
		if err != nil {
			t.Errorf("ParseProviderType(%q) failed: %v", input, err)
			continue
		}
		if got != want {
			t.Errorf("ParseProviderType(%q) = %s, want %s", input, got, want)
		}
	}

	if _, err := ParseProviderType("digitalocean"); !IsValidation(err) {
		t.Errorf("expected validation error for unknown type, got %v", err)
	}
}

func TestSplitCompositeID(t *testing.T) {
	scope, name, err := SplitCompositeID("us-central1-a/web-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scope != "us-central1-a" || name != "web-1" {
		t.Errorf("got %q/%q", scope, name)
	}

	invalid := []string{"", "noslash", "/leading", "trailing/", "a/b/c"}
	for _, id := range invalid {
		if _, _, err := SplitCompositeID(id); !IsValidation(err) {
			t.Errorf("expected validation error for %q, got %v", id, err)
		}
	}
}

func TestJoinCompositeIDRoundTrip(t *testing.T) {
	id := JoinCompositeID("prod-rg", "web-1")
	scope, name, err := SplitCompositeID(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scope != "prod-rg" || name != "web-1" {
		t.Errorf("round trip lost parts: %q/%q", scope, name)
	}
}

func TestZeroCostSummary(t *testing.T) {
	summary := ZeroCostSummary("no billing api")
	if summary.TotalCost != 0 {
		t.Errorf("expected zero total, got %f", summary.TotalCost)
	}
	if summary.Currency != "USD" {
		t.Errorf("expected USD, got %s", summary.Currency)
	}
	if summary.ByService == nil {
		t.Error("expected non-nil service map")
	}
	if summary.Note != "no billing api" {
		t.Errorf("expected note preserved, got %q", summary.Note)
	}
}

func TestOptionsNormalize(t *testing.T) {
	opts := Options{}.Normalize()
	if opts.OperationTimeout != DefaultOperationTimeout {
		t.Errorf("expected default operation timeout, got %s", opts.OperationTimeout)
	}
	if opts.PricingTimeout != DefaultPricingTimeout {
		t.Errorf("expected default pricing timeout, got %s", opts.PricingTimeout)
	}
	if opts.ZoneWorkers != DefaultZoneWorkers {
		t.Errorf("expected default zone workers, got %d", opts.ZoneWorkers)
	}

	custom := Options{ZoneWorkers: 2}.Normalize()
	if custom.ZoneWorkers != 2 {
		t.Errorf("expected explicit value kept, got %d", custom.ZoneWorkers)
	}
}
