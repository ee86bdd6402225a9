package webhook

import (
	"encoding/json"
	"net/http"

	"github.com/x402gate/x402gate"
)

// configErrorBody is the body of every 500 configuration-error response.
// Configuration errors are operator-actionable; the client cannot retry its
// way out of them.
type configErrorBody struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

func writeConfigError(w http.ResponseWriter, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(configErrorBody{
		Error:   "Configuration Error",
		Details: details,
	})
}

// writePaymentRequired sends the 402 handshake: the error plus the offers the
// client can satisfy to retry the same request.
func writePaymentRequired(w http.ResponseWriter, errMsg string, accepts []x402gate.PaymentRequirement, payer string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusPaymentRequired)
	_ = json.NewEncoder(w).Encode(x402gate.PaymentRequiredResponse{
		X402Version: 1,
		Error:       errMsg,
		Accepts:     accepts,
		Payer:       payer,
	})
}

func writePlain(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}
