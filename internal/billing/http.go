package billing

import (
	"encoding/json"
	"net/http"

	pkgerrors "github.com/gnd-labs/scooter-saga/pkg/errors"
	"github.com/gnd-labs/scooter-saga/pkg/web"
)

type addFundsRequest struct {
	Amount         int64  `json:"amount"`
	IdempotencyKey string `json:"idempotency_key"`
}

func (s *BillingService) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /", web.WithUserID(s.handleGetBalance))
	mux.HandleFunc("POST /", web.WithUserID(s.handleAddFunds))
	web.RegisterOps(mux)
}

func (s *BillingService) handleGetBalance(w http.ResponseWriter, r *http.Request, userID int) {
	acc, err := s.GetBalance(r.Context(), userID)
	if err != nil {
		writeBillingErr(w, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, acc)
}

func (s *BillingService) handleAddFunds(w http.ResponseWriter, r *http.Request, userID int) {
	body := addFundsRequest{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Amount <= 0 || body.IdempotencyKey == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	acc, err := s.AddFunds(r.Context(), userID, body.Amount, body.IdempotencyKey)
	if err != nil {
		writeBillingErr(w, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, acc)
}

func writeBillingErr(w http.ResponseWriter, err error) {
	switch {
	case pkgerrors.IsConflictError(err):
		w.WriteHeader(http.StatusConflict)
	case pkgerrors.IsNotFoundError(err):
		w.WriteHeader(http.StatusNotFound)
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}
}
