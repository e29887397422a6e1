package scooter

import (
	"encoding/json"
	"net/http"

	pkgerrors "github.com/gnd-labs/scooter-saga/pkg/errors"
	"github.com/gnd-labs/scooter-saga/pkg/web"
)

type startRentRequest struct {
	ScooterID string `json:"scooter_id"`
}

func (s *RentService) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /", web.WithUserID(s.handleListScooters))
	mux.HandleFunc("GET /rent", web.WithUserID(s.handleGetRent))
	mux.HandleFunc("PUT /rent", web.WithUserID(s.handleStartRent))
	mux.HandleFunc("DELETE /rent", web.WithUserID(s.handleStopRent))
	web.RegisterOps(mux)
}

func (s *RentService) handleListScooters(w http.ResponseWriter, r *http.Request, _ int) {
	scooters, err := s.Scooters(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	web.WriteJSON(w, http.StatusOK, scooters)
}

func (s *RentService) handleGetRent(w http.ResponseWriter, r *http.Request, userID int) {
	rent, err := s.GetRent(r.Context(), userID)
	if err != nil {
		writeRentErr(w, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, rent)
}

func (s *RentService) handleStartRent(w http.ResponseWriter, r *http.Request, userID int) {
	body := startRentRequest{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ScooterID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	rent, err := s.StartRent(r.Context(), userID, body.ScooterID)
	if err != nil {
		writeRentErr(w, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, rent)
}

func (s *RentService) handleStopRent(w http.ResponseWriter, r *http.Request, userID int) {
	rent, err := s.StopRent(r.Context(), userID)
	if err != nil {
		writeRentErr(w, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, rent)
}

func writeRentErr(w http.ResponseWriter, err error) {
	switch {
	case pkgerrors.IsConflictError(err):
		w.WriteHeader(http.StatusConflict)
	case pkgerrors.IsNotFoundError(err):
		w.WriteHeader(http.StatusNotFound)
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}
}
