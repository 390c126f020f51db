package guard

import (
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"

	"payguard/internal/facilitator"
	"payguard/internal/money"
	"payguard/internal/policy"
)

// Header names of the payment protocol.
const (
	PaymentHeader         = "X-Payment"
	PaymentResponseHeader = "X-Payment-Response"
)

// HTTPOptions bind the guard to a priced HTTP surface.
type HTTPOptions struct {
	Pricing   *policy.Pricing
	Verifier  facilitator.Verifier
	Network   string
	PayTo     string
	Asset     string
	VerifyURL string
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	GroupName string `json:"groupName,omitempty"`
}

type paymentRequiredBody struct {
	Error   errorDetail               `json:"error"`
	Accepts []paymentRequirementShape `json:"accepts"`
}

type paymentRequirementShape struct {
	Scheme            string `json:"scheme"`
	Network           string `json:"network"`
	MaxAmountRequired string `json:"maxAmountRequired"`
	PriceUSD          string `json:"priceUsd"`
	PayTo             string `json:"payTo"`
	Asset             string `json:"asset,omitempty"`
	Resource          string `json:"resource"`
	VerifyURL         string `json:"verifyUrl,omitempty"`
}

// Middleware wraps next with the three-stage admission protocol. Routes
// that resolve to no price pass through untouched.
func (g *Guard) Middleware(opts HTTPOptions, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		path := r.URL.Path
		origin := r.Header.Get("Origin")

		kind := policy.KindRequest
		if r.Header.Get("Accept") == "text/event-stream" {
			kind = policy.KindStream
		}

		price := policy.ResolvePrice(path, opts.Pricing, kind)
		if price == nil {
			next.ServeHTTP(w, r)
			return
		}

		// Stage 1: pre-transfer policy checks on the declared origin.
		if res := g.CheckIncoming(ctx, origin, path, price); !res.Allowed {
			writeJSON(w, http.StatusForbidden, errorBody{Error: errorDetail{
				Code:      "policy_violation",
				Message:   res.Reason,
				GroupName: res.GroupName,
			}})
			return
		}

		requirement := facilitator.Requirement{
			Amount:  price.String(),
			Network: opts.Network,
			PayTo:   opts.PayTo,
			Asset:   opts.Asset,
		}

		// Stage 2: facilitator proof verification.
		proof, ok := decodeProofHeader(r.Header.Get(PaymentHeader))
		if !ok {
			g.writePaymentRequired(w, opts, path, price, "payment proof is missing or malformed")
			return
		}

		verification, err := opts.Verifier.Verify(ctx, proof, requirement)
		if err != nil {
			g.logger.Error().Err(err).Str("path", path).Msg("facilitator verification failed")
			g.writePaymentRequired(w, opts, path, price, "payment proof could not be verified")
			return
		}
		if !verification.IsValid {
			g.writePaymentRequired(w, opts, path, price, verification.InvalidReason)
			return
		}

		settlement, err := opts.Verifier.Settle(ctx, proof, requirement)
		if err != nil || !settlement.Success {
			if err != nil {
				g.logger.Error().Err(err).Str("path", path).Msg("settlement failed")
			}
			g.writePaymentRequired(w, opts, path, price, "payment could not be settled")
			return
		}

		receipt := facilitator.Receipt{
			Payer:       settlement.Payer,
			Settled:     true,
			Network:     settlement.Network,
			Transaction: settlement.Transaction,
		}
		if encoded, encErr := facilitator.EncodeReceipt(receipt); encErr == nil {
			w.Header().Set(PaymentResponseHeader, encoded)
		}

		// Stage 3: serve, then account for the confirmed transfer only
		// when the protected operation itself succeeded.
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if rec.status >= 200 && rec.status < 300 {
			g.RecordIncoming(ctx, receipt.Payer, origin, path, price)
		}
	})
}

func (g *Guard) writePaymentRequired(w http.ResponseWriter, opts HTTPOptions, resource string, price *big.Int, reason string) {
	writeJSON(w, http.StatusPaymentRequired, paymentRequiredBody{
		Error: errorDetail{Code: "payment_required", Message: reason},
		Accepts: []paymentRequirementShape{{
			Scheme:            "exact",
			Network:           opts.Network,
			MaxAmountRequired: price.String(),
			PriceUSD:          money.FormatUSD(price),
			PayTo:             opts.PayTo,
			Asset:             opts.Asset,
			Resource:          resource,
			VerifyURL:         opts.VerifyURL,
		}},
	})
}

func decodeProofHeader(header string) (json.RawMessage, bool) {
	if header == "" {
		return nil, false
	}
	data, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, false
	}
	if !json.Valid(data) {
		return nil, false
	}
	return json.RawMessage(data), true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.wroteHeader = true
	}
	return r.ResponseWriter.Write(b)
}
