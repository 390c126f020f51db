package facilitator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestVerifySuccess(t *testing.T) {
	var got facilitatorRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/verify" {
			t.Fatalf("path = %s, want /verify", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(VerifyResult{IsValid: true, Payer: "0xabc"})
	}))
	defer srv.Close()

	client := New(Options{BaseURL: srv.URL, Timeout: time.Second, UserAgent: "payguard/test"}, zerolog.Nop())
	res, err := client.Verify(context.Background(), json.RawMessage(`{"proof":1}`), Requirement{Amount: "10000", Network: "base", PayTo: "0xdef"})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !res.IsValid || res.Payer != "0xabc" {
		t.Fatalf("result = %+v", res)
	}
	if got.PaymentRequirements.Amount != "10000" {
		t.Fatalf("forwarded requirement = %+v", got.PaymentRequirements)
	}
}

func TestVerifyInvalidProofIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(VerifyResult{IsValid: false, InvalidReason: "insufficient amount"})
	}))
	defer srv.Close()

	client := New(Options{BaseURL: srv.URL}, zerolog.Nop())
	res, err := client.Verify(context.Background(), json.RawMessage(`{}`), Requirement{})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.IsValid {
		t.Fatal("expected invalid result")
	}
	if res.InvalidReason != "insufficient amount" {
		t.Fatalf("reason = %q", res.InvalidReason)
	}
}

func TestSettleHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "chain unavailable"})
	}))
	defer srv.Close()

	client := New(Options{BaseURL: srv.URL}, zerolog.Nop())
	if _, err := client.Settle(context.Background(), json.RawMessage(`{}`), Requirement{}); err == nil {
		t.Fatal("expected transport-level error")
	}
}

func TestVerifyRequiresConfiguration(t *testing.T) {
	client := New(Options{}, zerolog.Nop())
	if _, err := client.Verify(context.Background(), json.RawMessage(`{}`), Requirement{}); err == nil {
		t.Fatal("missing base url should error")
	}

	client = New(Options{BaseURL: "http://localhost"}, zerolog.Nop())
	if _, err := client.Verify(context.Background(), nil, Requirement{}); err == nil {
		t.Fatal("empty proof should error")
	}
}

func TestReceiptRoundTrip(t *testing.T) {
	encoded, err := EncodeReceipt(Receipt{Payer: "0xabc", Settled: true, Network: "base", Transaction: "0xtx"})
	if err != nil {
		t.Fatalf("EncodeReceipt: %v", err)
	}

	decoded, err := DecodeReceipt(encoded)
	if err != nil {
		t.Fatalf("DecodeReceipt: %v", err)
	}
	if decoded.Payer != "0xabc" || !decoded.Settled || decoded.Transaction != "0xtx" {
		t.Fatalf("decoded = %+v", decoded)
	}
}

func TestDecodeReceiptRejectsGarbage(t *testing.T) {
	if _, err := DecodeReceipt("!!!"); err == nil {
		t.Fatal("invalid base64 should error")
	}
	if _, err := DecodeReceipt("bm90LWpzb24"); err == nil {
		t.Fatal("non-JSON payload should error")
	}
}
