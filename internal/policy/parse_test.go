package policy

import (
	"strings"
	"testing"
	"time"
)

func TestParseDocument(t *testing.T) {
	doc, err := ParseDocument([]byte(`{
        "policyGroups": [{
            "name": "daily-cap",
            "outgoingLimits": {"global": {"maxTotalUsd": 100.0, "windowMs": 86400000}},
            "rateLimits": {"maxPayments": 50, "windowMs": 3600000},
            "blockedRecipients": ["` + walletA + `", "https://untrusted.example.com"]
        }]
    }`))
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}

	if len(doc.PolicyGroups) != 1 {
		t.Fatalf("groups = %d, want 1", len(doc.PolicyGroups))
	}
	g := doc.PolicyGroups[0]
	if g.Name != "daily-cap" {
		t.Fatalf("name = %q", g.Name)
	}

	limit := g.OutgoingLimits.Global
	if limit.MaxTotal().String() != "100000000" {
		t.Fatalf("maxTotal = %s, want 100000000 base units", limit.MaxTotal())
	}
	if limit.MaxPayment() != nil {
		t.Fatal("maxPayment should be unset")
	}
	if limit.Window() != 24*time.Hour {
		t.Fatalf("window = %s, want 24h", limit.Window())
	}
	if g.RateLimits.MaxPayments != 50 || g.RateLimits.Window() != time.Hour {
		t.Fatalf("rate limits = %+v", g.RateLimits)
	}
}

func TestParseDocumentRejectsMalformed(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"not json", `{`},
		{"missing name", `{"policyGroups": [{"outgoingLimits": {}}]}`},
		{"duplicate name", `{"policyGroups": [{"name": "a"}, {"name": "a"}]}`},
		{"negative window", `{"policyGroups": [{"name": "a", "incomingLimits": {"global": {"windowMs": -1}}}]}`},
		{"sub-atom amount", `{"policyGroups": [{"name": "a", "incomingLimits": {"global": {"maxTotalUsd": 0.0000001}}}]}`},
		{"negative amount", `{"policyGroups": [{"name": "a", "incomingLimits": {"global": {"maxTotalUsd": -5}}}]}`},
		{"empty list entry", `{"policyGroups": [{"name": "a", "blockedSenders": [" "]}]}`},
		{"negative rate", `{"policyGroups": [{"name": "a", "rateLimits": {"maxPayments": -1, "windowMs": 0}}]}`},
		{"empty scope key", `{"policyGroups": [{"name": "a", "incomingLimits": {"perEndpoint": {"": {"maxTotalUsd": 1}}}}]}`},
	}

	for _, tc := range cases {
		if _, err := ParseDocument([]byte(tc.doc)); err == nil {
			t.Errorf("%s: expected a load-time error", tc.name)
		}
	}
}

func TestParseDocumentExactAmounts(t *testing.T) {
	// 0.1 is not representable in binary floating point; the conversion
	// must still be exact in base units.
	doc, err := ParseDocument([]byte(`{
        "policyGroups": [{
            "name": "a",
            "incomingLimits": {"global": {"maxTotalUsd": 0.1, "maxPaymentUsd": 0.000003}}
        }]
    }`))
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	limit := doc.PolicyGroups[0].IncomingLimits.Global
	if limit.MaxTotal().String() != "100000" {
		t.Fatalf("maxTotal = %s, want 100000", limit.MaxTotal())
	}
	if limit.MaxPayment().String() != "3" {
		t.Fatalf("maxPayment = %s, want 3", limit.MaxPayment())
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile("/nonexistent/policy.json"); err == nil || !strings.Contains(err.Error(), "read policy file") {
		t.Fatalf("err = %v, want read failure", err)
	}
}
