package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/avdeenkov/cryptoshop/internal/payment"
	"github.com/avdeenkov/cryptoshop/internal/pricing"
	"github.com/avdeenkov/cryptoshop/internal/shop"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps sentinel errors onto HTTP statuses. Anything
// unmapped is an internal error and keeps its detail out of the response.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shop.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, pricing.ErrBelowMinimum):
		writeError(w, http.StatusBadRequest, "amount below minimum")
	case errors.Is(err, pricing.ErrAmountNeeded):
		writeError(w, http.StatusBadRequest, "amount required for this product")
	case errors.Is(err, pricing.ErrOutOfStock):
		writeError(w, http.StatusConflict, "product out of stock")
	case errors.Is(err, payment.ErrGatewayUnavailable):
		writeError(w, http.StatusBadGateway, "payment service unavailable, try again later")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
