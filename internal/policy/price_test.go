package policy

import "testing"

func TestResolvePriceEntrypointOverridesDefault(t *testing.T) {
	def, err := NewFlatPrice("0.01")
	if err != nil {
		t.Fatalf("NewFlatPrice: %v", err)
	}
	premium, err := NewFlatPrice("1.50")
	if err != nil {
		t.Fatalf("NewFlatPrice: %v", err)
	}
	pricing := &Pricing{
		Default:     def,
		Entrypoints: map[string]*Price{"/premium": premium},
	}

	if got := ResolvePrice("/premium", pricing, KindRequest); got.String() != "1500000" {
		t.Fatalf("premium price = %s, want 1500000", got)
	}
	if got := ResolvePrice("/basic", pricing, KindRequest); got.String() != "10000" {
		t.Fatalf("default price = %s, want 10000", got)
	}
}

func TestResolvePriceSplitByKind(t *testing.T) {
	split, err := NewSplitPrice("0.01", "0.05")
	if err != nil {
		t.Fatalf("NewSplitPrice: %v", err)
	}
	pricing := &Pricing{Entrypoints: map[string]*Price{"/chat": split}}

	if got := ResolvePrice("/chat", pricing, KindRequest); got.String() != "10000" {
		t.Fatalf("request price = %s", got)
	}
	if got := ResolvePrice("/chat", pricing, KindStream); got.String() != "50000" {
		t.Fatalf("stream price = %s", got)
	}
}

func TestResolvePriceFree(t *testing.T) {
	if got := ResolvePrice("/anything", nil, KindRequest); got != nil {
		t.Fatalf("nil pricing should be free, got %s", got)
	}
	if got := ResolvePrice("/anything", &Pricing{}, KindRequest); got != nil {
		t.Fatalf("empty pricing should be free, got %s", got)
	}

	split, _ := NewSplitPrice("0.01", "")
	pricing := &Pricing{Entrypoints: map[string]*Price{"/chat": split}}
	if got := ResolvePrice("/chat", pricing, KindStream); got != nil {
		t.Fatalf("unpriced kind should be free, got %s", got)
	}
}

func TestPriceRejectsBadUSD(t *testing.T) {
	if _, err := NewFlatPrice("not-money"); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := NewSplitPrice("0.01", "-1"); err == nil {
		t.Fatal("expected parse error")
	}
}
