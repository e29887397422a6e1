package notification

import (
	"net/http"

	"github.com/gnd-labs/scooter-saga/pkg/web"
)

func (s *NotificationService) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /", web.WithUserID(s.handleList))
	web.RegisterOps(mux)
}

func (s *NotificationService) handleList(w http.ResponseWriter, r *http.Request, userID int) {
	notifications, err := s.List(r.Context(), userID)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	web.WriteJSON(w, http.StatusOK, notifications)
}
