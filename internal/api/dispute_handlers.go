package api

import (
	"net/http"

	"github.com/CMZCoder/CommerzioS-sub000/internal/metrics"
	"github.com/CMZCoder/CommerzioS-sub000/internal/models"
	"github.com/CMZCoder/CommerzioS-sub000/internal/service"

	"github.com/gorilla/mux"
)

type openDisputeRequest struct {
	BookingID   string `json:"booking_id"`
	Reason      string `json:"reason"`
	Description string `json:"description"`
	Evidence    string `json:"evidence"`
}

func (s *Server) handleOpenDispute(w http.ResponseWriter, r *http.Request) {
	var req openDisputeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	booking, err := s.bookings.GetBooking(r.Context(), req.BookingID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	user := userFrom(r)
	var openedBy string
	switch user.ID {
	case booking.CustomerID:
		openedBy = models.ActorCustomer
	case booking.VendorID:
		openedBy = models.ActorVendor
	default:
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	dispute, err := s.disputes.Open(r.Context(), service.OpenDisputeInput{
		BookingID:   req.BookingID,
		OpenedBy:    openedBy,
		Reason:      req.Reason,
		Description: req.Description,
		Evidence:    req.Evidence,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	metrics.IncDisputeOpened()
	writeJSON(w, http.StatusCreated, dispute)
}

func (s *Server) handleGetDispute(w http.ResponseWriter, r *http.Request) {
	dispute, err := s.disputes.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}

	booking, err := s.bookings.GetBooking(r.Context(), dispute.BookingID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	user := userFrom(r)
	if user.ID != booking.CustomerID && user.ID != booking.VendorID && user.Role != models.RoleAdmin {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	writeJSON(w, http.StatusOK, dispute)
}

func (s *Server) handleListDisputes(w http.ResponseWriter, r *http.Request) {
	disputes, err := s.disputes.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"disputes": disputes})
}

func (s *Server) handleReviewDispute(w http.ResponseWriter, r *http.Request) {
	dispute, err := s.disputes.MarkUnderReview(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dispute)
}

func (s *Server) handleCloseDispute(w http.ResponseWriter, r *http.Request) {
	dispute, err := s.disputes.Close(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dispute)
}

type resolveDisputeRequest struct {
	Resolution       string `json:"resolution"`
	SplitCustomerPct int64  `json:"split_customer_pct"`
}

func (s *Server) handleResolveDispute(w http.ResponseWriter, r *http.Request) {
	var req resolveDisputeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	dispute, err := s.disputes.Resolve(r.Context(), service.ResolveInput{
		DisputeID:        mux.Vars(r)["id"],
		Resolution:       req.Resolution,
		SplitCustomerPct: req.SplitCustomerPct,
		ResolvedBy:       userFrom(r).ID,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	metrics.IncDisputeResolved(dispute.Resolution)
	writeJSON(w, http.StatusOK, dispute)
}
