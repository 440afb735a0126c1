package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/CMZCoder/CommerzioS-sub000/internal/models"

	"github.com/rs/zerolog"
)

// Provider talks to the external payment acquirer that processes card and
// TWINT payments. Captured payments come back asynchronously through the
// webhook endpoint.
type Provider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zerolog.Logger
}

func NewProvider(baseURL, apiKey string, logger *zerolog.Logger) *Provider {
	return &Provider{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

type createPaymentRequest struct {
	BookingID string `json:"booking_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Method    string `json:"method"`
}

type createPaymentResponse struct {
	PaymentID   string `json:"payment_id"`
	CheckoutURL string `json:"checkout_url"`
}

// CreateCardPayment starts a checkout for the booking amount and returns the
// URL the customer finishes the payment on.
func (p *Provider) CreateCardPayment(ctx context.Context, bookingID string, amount int64) (string, error) {
	resp, err := p.post(ctx, "/v1/payments", createPaymentRequest{
		BookingID: bookingID,
		Amount:    amount,
		Currency:  models.Currency,
		Method:    models.PaymentCard,
	})
	if err != nil {
		return "", err
	}
	if resp.CheckoutURL == "" {
		return "", fmt.Errorf("provider returned no checkout url")
	}

	p.logger.Info().Str("booking_id", bookingID).Str("payment_id", resp.PaymentID).
		Msg("card payment created")
	return resp.CheckoutURL, nil
}

type twintEligibilityResponse struct {
	Eligible bool `json:"eligible"`
}

// CheckTwintEligibility asks the acquirer whether the phone number is
// registered for TWINT.
func (p *Provider) CheckTwintEligibility(ctx context.Context, phone string) (bool, error) {
	body, err := json.Marshal(map[string]string{"phone": phone})
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/v1/twint/eligibility", bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	p.setHeaders(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("twint eligibility request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("twint eligibility: provider returned %d", resp.StatusCode)
	}

	var out twintEligibilityResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("decode eligibility response: %w", err)
	}
	return out.Eligible, nil
}

func (p *Provider) post(ctx context.Context, path string, payload any) (*createPaymentResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	p.setHeaders(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payment request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("payment provider returned %d", resp.StatusCode)
	}

	var out createPaymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode payment response: %w", err)
	}
	return &out, nil
}

func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
}
