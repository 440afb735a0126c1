package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

type blockUserRequest struct {
	Blocked bool `json:"blocked"`
}

func (s *Server) handleBlockUser(w http.ResponseWriter, r *http.Request) {
	var req blockUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.auth.SetBlocked(r.Context(), mux.Vars(r)["id"], req.Blocked); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"blocked": req.Blocked})
}

func (s *Server) handleAdminEscrow(w http.ResponseWriter, r *http.Request) {
	entry, err := s.ledger.Entry(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleAdminRelease settles a held entry to the vendor outside the normal
// auto-release flow, e.g. after support contact.
func (s *Server) handleAdminRelease(w http.ResponseWriter, r *http.Request) {
	bookingID := mux.Vars(r)["id"]
	if err := s.ledger.Release(r.Context(), bookingID); err != nil {
		writeServiceError(w, err)
		return
	}
	entry, err := s.ledger.Entry(r.Context(), bookingID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleAdminRefund(w http.ResponseWriter, r *http.Request) {
	bookingID := mux.Vars(r)["id"]
	if err := s.ledger.Refund(r.Context(), bookingID); err != nil {
		writeServiceError(w, err)
		return
	}
	entry, err := s.ledger.Entry(r.Context(), bookingID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

type exportBookingsRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (s *Server) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	var req exportBookingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	for _, raw := range []string{req.StartDate, req.EndDate} {
		if _, err := time.Parse("2006-01-02", raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid date; expected YYYY-MM-DD")
			return
		}
	}

	filePath, err := s.exporter.BookingsReport(r.Context(), req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"file": filePath})
}
