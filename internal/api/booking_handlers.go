package api

import (
	"errors"
	"net/http"

	"github.com/CMZCoder/CommerzioS-sub000/internal/database"
	"github.com/CMZCoder/CommerzioS-sub000/internal/models"
	"github.com/CMZCoder/CommerzioS-sub000/internal/service"

	"github.com/gorilla/mux"
)

type createBookingRequest struct {
	ServiceID     string `json:"service_id"`
	ScheduledDate string `json:"scheduled_date"`
	ScheduledTime string `json:"scheduled_time"`
	PaymentMethod string `json:"payment_method"`
	Notes         string `json:"notes"`
	Address       string `json:"address"`
}

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	booking, err := s.bookings.RequestBooking(r.Context(), userFrom(r).ID, service.RequestBookingInput{
		ServiceID:     req.ServiceID,
		ScheduledDate: req.ScheduledDate,
		ScheduledTime: req.ScheduledTime,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
		Address:       req.Address,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *Server) handleListBookings(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	var (
		bookings []*models.Booking
		err      error
	)
	switch user.Role {
	case models.RoleVendor:
		bookings, err = s.bookings.ListByVendor(r.Context(), user.ID)
	default:
		bookings, err = s.bookings.ListByCustomer(r.Context(), user.ID)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

// bookingForParticipant loads the booking and enforces that the caller is
// its customer, its vendor or an admin.
func (s *Server) bookingForParticipant(w http.ResponseWriter, r *http.Request) (*models.Booking, bool) {
	booking, err := s.bookings.GetBooking(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return nil, false
	}

	user := userFrom(r)
	if user.ID != booking.CustomerID && user.ID != booking.VendorID && user.Role != models.RoleAdmin {
		writeError(w, http.StatusForbidden, "forbidden")
		return nil, false
	}
	return booking, true
}

func (s *Server) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	booking, ok := s.bookingForParticipant(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// vendorAction runs a transition that only the booking's vendor may trigger.
func (s *Server) vendorAction(w http.ResponseWriter, r *http.Request, run func(bookingID string) (*models.Booking, error)) {
	booking, ok := s.bookingForParticipant(w, r)
	if !ok {
		return
	}
	if userFrom(r).ID != booking.VendorID {
		writeError(w, http.StatusForbidden, "vendor only")
		return
	}

	updated, err := run(booking.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// customerAction runs a transition that only the booking's customer may
// trigger.
func (s *Server) customerAction(w http.ResponseWriter, r *http.Request, run func(bookingID string) (*models.Booking, error)) {
	booking, ok := s.bookingForParticipant(w, r)
	if !ok {
		return
	}
	if userFrom(r).ID != booking.CustomerID {
		writeError(w, http.StatusForbidden, "customer only")
		return
	}

	updated, err := run(booking.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleAcceptBooking(w http.ResponseWriter, r *http.Request) {
	s.vendorAction(w, r, func(id string) (*models.Booking, error) {
		return s.bookings.Accept(r.Context(), id)
	})
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleRejectBooking(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	_ = decodeJSON(r, &req) // reason is optional

	s.vendorAction(w, r, func(id string) (*models.Booking, error) {
		return s.bookings.Reject(r.Context(), id, req.Reason)
	})
}

func (s *Server) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	_ = decodeJSON(r, &req)

	booking, ok := s.bookingForParticipant(w, r)
	if !ok {
		return
	}

	actor := models.ActorCustomer
	if userFrom(r).ID == booking.VendorID {
		actor = models.ActorVendor
	}

	updated, err := s.bookings.Cancel(r.Context(), booking.ID, actor, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleStartBooking(w http.ResponseWriter, r *http.Request) {
	s.vendorAction(w, r, func(id string) (*models.Booking, error) {
		return s.bookings.StartService(r.Context(), id)
	})
}

func (s *Server) handleCompleteBooking(w http.ResponseWriter, r *http.Request) {
	s.vendorAction(w, r, func(id string) (*models.Booking, error) {
		return s.bookings.CompleteService(r.Context(), id)
	})
}

func (s *Server) handleMarkNoShow(w http.ResponseWriter, r *http.Request) {
	booking, ok := s.bookingForParticipant(w, r)
	if !ok {
		return
	}

	actor := models.ActorCustomer
	if userFrom(r).ID == booking.VendorID {
		actor = models.ActorVendor
	}

	updated, err := s.bookings.MarkNoShow(r.Context(), booking.ID, actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type proposeAlternativeRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

func (s *Server) handleProposeAlternative(w http.ResponseWriter, r *http.Request) {
	var req proposeAlternativeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.vendorAction(w, r, func(id string) (*models.Booking, error) {
		return s.bookings.ProposeAlternative(r.Context(), id, req.Date, req.Time)
	})
}

func (s *Server) handleAcceptAlternative(w http.ResponseWriter, r *http.Request) {
	s.customerAction(w, r, func(id string) (*models.Booking, error) {
		return s.bookings.AcceptAlternative(r.Context(), id)
	})
}

func (s *Server) handleRejectAlternative(w http.ResponseWriter, r *http.Request) {
	s.customerAction(w, r, func(id string) (*models.Booking, error) {
		return s.bookings.RejectAlternative(r.Context(), id)
	})
}

// handleBookingEscrow reports the fund state; bookings without an escrow
// entry (cash) report state "none".
func (s *Server) handleBookingEscrow(w http.ResponseWriter, r *http.Request) {
	booking, ok := s.bookingForParticipant(w, r)
	if !ok {
		return
	}

	entry, err := s.ledger.Entry(r.Context(), booking.ID)
	if errors.Is(err, database.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]any{
			"booking_id": booking.ID,
			"state":      models.EscrowNone,
		})
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
