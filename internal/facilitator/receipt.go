package facilitator

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Receipt is the settlement confirmation carried on a response header as a
// base64-encoded JSON payload. The payer address is the wallet identity
// later used for limit-scope resolution.
type Receipt struct {
	Payer       string `json:"payer"`
	Settled     bool   `json:"settled"`
	Network     string `json:"network,omitempty"`
	Transaction string `json:"transaction,omitempty"`
}

// EncodeReceipt serializes a receipt for the response header.
func EncodeReceipt(r Receipt) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode settlement receipt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeReceipt parses a header value produced by EncodeReceipt.
func DecodeReceipt(encoded string) (Receipt, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Receipt{}, fmt.Errorf("decode settlement receipt: %w", err)
	}
	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return Receipt{}, fmt.Errorf("parse settlement receipt: %w", err)
	}
	return r, nil
}
