package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/CMZCoder/CommerzioS-sub000/internal/database"
	"github.com/CMZCoder/CommerzioS-sub000/internal/metrics"
	"github.com/CMZCoder/CommerzioS-sub000/internal/models"
)

const webhookSecretHeader = "X-Webhook-Secret"

// handleCheckout starts a provider checkout for a card booking. Cash
// bookings settle offline; TWINT checkouts also go through the provider.
func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	booking, ok := s.bookingForParticipant(w, r)
	if !ok {
		return
	}
	if userFrom(r).ID != booking.CustomerID {
		writeError(w, http.StatusForbidden, "customer only")
		return
	}
	if !booking.UsesEscrow() {
		writeError(w, http.StatusConflict, "cash bookings are settled in person")
		return
	}

	checkoutURL, err := s.provider.CreateCardPayment(r.Context(), booking.ID, booking.TotalPrice)
	if err != nil {
		writeError(w, http.StatusBadGateway, "payment provider unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"checkout_url": checkoutURL})
}

type twintEligibilityRequest struct {
	Phone string `json:"phone"`
}

func (s *Server) handleTwintEligibility(w http.ResponseWriter, r *http.Request) {
	var req twintEligibilityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	eligible, err := s.provider.CheckTwintEligibility(r.Context(), req.Phone)
	if err != nil {
		writeError(w, http.StatusBadGateway, "payment provider unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"eligible": eligible})
}

type webhookEvent struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	BookingID string `json:"booking_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

// handlePaymentWebhook receives capture callbacks from the payment provider.
// Providers redeliver events, so each event id is claimed exactly once
// before any funds are recorded.
func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	secret := r.Header.Get(webhookSecretHeader)
	if subtle.ConstantTimeCompare([]byte(secret), []byte(s.webhookSecret)) != 1 {
		writeError(w, http.StatusUnauthorized, "invalid webhook secret")
		return
	}

	var event webhookEvent
	if err := decodeJSON(r, &event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if event.ID == "" || event.BookingID == "" {
		writeError(w, http.StatusBadRequest, "id and booking_id are required")
		return
	}

	claimKey := "webhook:" + event.ID
	claimed, err := s.sessions.ClaimOnce(r.Context(), claimKey,
		time.Duration(models.DefaultWebhookDedupTTL)*time.Second)
	if err != nil {
		// Without the dedup store a redelivery could double-hold; make the
		// provider retry instead.
		writeError(w, http.StatusServiceUnavailable, "retry later")
		return
	}
	if !claimed {
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}

	switch event.Type {
	case "payment.captured":
		if err := s.ledger.Hold(r.Context(), event.BookingID, event.Amount); err != nil {
			if errors.Is(err, database.ErrDuplicateHold) {
				// Funds are already recorded for this booking; the claim stands.
				writeServiceError(w, err)
				return
			}
			// The hold did not land. Give the event id back, otherwise the
			// provider's redelivery would be answered "duplicate" and the
			// payment would never be recorded.
			if relErr := s.sessions.ReleaseClaim(r.Context(), claimKey); relErr != nil {
				s.logger.Error().Err(relErr).Str("event_id", event.ID).
					Msg("release webhook claim error")
			}
			writeError(w, http.StatusServiceUnavailable, "retry later")
			return
		}
		metrics.IncEscrowMovement(models.EscrowHeld)
	case "payment.failed":
		s.logger.Warn().Str("booking_id", event.BookingID).Str("event_id", event.ID).
			Msg("payment failed")
	default:
		s.logger.Warn().Str("event_type", event.Type).Msg("unknown webhook event type")
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}
