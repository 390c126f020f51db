package policy

import "testing"

const (
	walletA = "0x8ba1f109551bD432803012645Ac136ddd64DBA72"
	walletB = "0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045"
)

func TestEvaluateSenderNoListsAllows(t *testing.T) {
	g := &Group{Name: "open"}
	d := EvaluateSender(g, walletA, "https://caller.example.com")
	if !d.Allowed {
		t.Fatalf("expected allow, got %+v", d)
	}
	if d.GroupName != "open" {
		t.Fatalf("group = %q, want open", d.GroupName)
	}
}

func TestEvaluateSenderBlockListWinsOverAllowList(t *testing.T) {
	g := &Group{
		Name:           "strict",
		AllowedSenders: []string{"https://caller.example.com"},
		BlockedSenders: []string{walletA},
	}

	// The wallet is blocked even though the origin is allow-listed.
	d := EvaluateSender(g, walletA, "https://caller.example.com")
	if d.Allowed {
		t.Fatal("blocked wallet must be denied regardless of allow-list origin match")
	}
	if d.Reason == "" {
		t.Fatal("denial should carry a reason")
	}
}

func TestEvaluateSenderClosedAllowList(t *testing.T) {
	g := &Group{
		Name:           "partners",
		AllowedSenders: []string{walletA},
	}

	if d := EvaluateSender(g, walletA, ""); !d.Allowed {
		t.Fatalf("allow-listed wallet should pass: %+v", d)
	}
	if d := EvaluateSender(g, walletB, "https://other.example.com"); d.Allowed {
		t.Fatal("a non-empty allow list is exhaustive")
	}
}

func TestEvaluateSenderWalletChecksumInsensitive(t *testing.T) {
	g := &Group{
		Name:           "g",
		BlockedSenders: []string{"0x8ba1f109551bd432803012645ac136ddd64dba72"},
	}
	if d := EvaluateSender(g, walletA, ""); d.Allowed {
		t.Fatal("lowercase list entry must match the checksummed address")
	}
}

func TestEvaluateRecipientOriginMatching(t *testing.T) {
	g := &Group{
		Name:              "egress",
		BlockedRecipients: []string{"https://untrusted.example.com"},
	}

	cases := []struct {
		origin string
		want   bool
	}{
		{"https://untrusted.example.com", false},
		{"https://untrusted.example.com:443/path", false},
		{"http://untrusted.example.com", true},
		{"https://trusted.example.com", true},
	}
	for _, tc := range cases {
		d := EvaluateRecipient(g, "", tc.origin)
		if d.Allowed != tc.want {
			t.Errorf("origin %q: allowed = %v, want %v", tc.origin, d.Allowed, tc.want)
		}
	}
}

func TestEvaluateRecipientSchemelessEntryMatchesAnyScheme(t *testing.T) {
	g := &Group{
		Name:              "egress",
		BlockedRecipients: []string{"untrusted.example.com"},
	}
	for _, origin := range []string{"https://untrusted.example.com", "http://untrusted.example.com:8080"} {
		if d := EvaluateRecipient(g, "", origin); d.Allowed {
			t.Errorf("origin %q should match schemeless domain entry", origin)
		}
	}
}

func TestNormalizeWallet(t *testing.T) {
	normalized, ok := NormalizeWallet("0x8ba1f109551bd432803012645ac136ddd64dba72")
	if !ok || normalized != walletA {
		t.Fatalf("NormalizeWallet = %q, %v", normalized, ok)
	}
	if _, ok := NormalizeWallet("https://example.com"); ok {
		t.Fatal("origins must not normalize as wallets")
	}
}
