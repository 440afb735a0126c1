package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/CMZCoder/CommerzioS-sub000/internal/config"
	"github.com/CMZCoder/CommerzioS-sub000/internal/database"
	"github.com/CMZCoder/CommerzioS-sub000/internal/events"
	"github.com/CMZCoder/CommerzioS-sub000/internal/export"
	"github.com/CMZCoder/CommerzioS-sub000/internal/models"
	"github.com/CMZCoder/CommerzioS-sub000/internal/repository"
	"github.com/CMZCoder/CommerzioS-sub000/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct{}

func (fakeProvider) CreateCardPayment(_ context.Context, bookingID string, _ int64) (string, error) {
	return "https://pay.example/checkout/" + bookingID, nil
}

func (fakeProvider) CheckTwintEligibility(context.Context, string) (bool, error) {
	return true, nil
}

type apiEnv struct {
	server *Server
	router http.Handler
	db     *database.DB
	ledger *service.EscrowLedger
}

const testWebhookSecret = "test-webhook-secret"

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	bus := events.NewEventBus()
	locks := service.NewBookingLocks()
	ledger := service.NewEscrowLedger(db, db, locks, bus, 72*time.Hour, &logger)
	sessions := repository.NewMemorySessions(time.Hour)

	cfg := config.APIConfig{
		Port:         0,
		MetricsPort:  0,
		HeaderAPIKey: "x-api-key",
		AdminAPIKeys: []config.AdminAPIKey{{Key: "admin-secret", Name: "ops"}},
	}

	srv := NewServer(cfg, testWebhookSecret, Deps{
		Auth:          service.NewAuthService(db, sessions, time.Hour, &logger),
		Catalog:       service.NewCatalogService(db, &logger),
		Bookings:      service.NewBookingService(db, db, db, ledger, bus, locks, &logger),
		Disputes:      service.NewDisputeService(db, db, ledger, bus, locks, &logger),
		Ledger:        ledger,
		Chat:          service.NewChatService(db, &logger),
		Notifications: db,
		Sessions:      sessions,
		Provider:      fakeProvider{},
		Exporter:      export.NewExporter(db, db, t.TempDir(), &logger),
	}, &logger)

	return &apiEnv{server: srv, router: srv.Router(), db: db, ledger: ledger}
}

func (e *apiEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

// registerAndLogin creates an account and returns its token and user id.
func (e *apiEnv) registerAndLogin(t *testing.T, email, role string) (string, string) {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": email, "password": "supersecret", "name": "Test User", "role": role,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": email, "password": "supersecret",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	decodeBody(t, rec, &resp)
	return resp.Token, resp.User.ID
}

func (e *apiEnv) createService(t *testing.T, vendorToken string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/services", vendorToken, map[string]any{
		"name": "Deep Clean", "category": "cleaning", "price": 15000, "duration_minutes": 120,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var svc models.Service
	decodeBody(t, rec, &svc)
	return svc.ID
}

func (e *apiEnv) createBooking(t *testing.T, customerToken, serviceID, method string) string {
	t.Helper()
	day := time.Now().UTC().Add(24 * time.Hour).Format("2006-01-02")
	rec := e.do(t, http.MethodPost, "/api/v1/bookings", customerToken, map[string]string{
		"service_id": serviceID, "scheduled_date": day, "scheduled_time": "10:00",
		"payment_method": method,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var booking models.Booking
	decodeBody(t, rec, &booking)
	return booking.ID
}

func (e *apiEnv) webhookCapture(t *testing.T, eventID, bookingID string, amount int64) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id": eventID, "type": "payment.captured", "booking_id": bookingID,
		"amount": amount, "currency": "CHF",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewReader(raw))
	req.Header.Set(webhookSecretHeader, testWebhookSecret)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	env := newAPIEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthFlow(t *testing.T) {
	env := newAPIEnv(t)

	token, _ := env.registerAndLogin(t, "anna@example.ch", models.RoleCustomer)

	rec := env.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var me models.User
	decodeBody(t, rec, &me)
	assert.Equal(t, "anna@example.ch", me.Email)

	// Bad password.
	rec = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "anna@example.ch", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Logout invalidates the token.
	rec = env.do(t, http.MethodPost, "/api/v1/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin_BruteForceThrottled(t *testing.T) {
	env := newAPIEnv(t)
	env.registerAndLogin(t, "target@example.ch", models.RoleCustomer)

	attempt := func() *httptest.ResponseRecorder {
		return env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"email": "target@example.ch", "password": "wrong-password",
		})
	}

	// registerAndLogin already consumed one attempt.
	for i := 0; i < 9; i++ {
		rec := attempt()
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := attempt()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Other accounts are unaffected.
	env.registerAndLogin(t, "someone-else@example.ch", models.RoleCustomer)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	env := newAPIEnv(t)
	env.registerAndLogin(t, "dup@example.ch", models.RoleCustomer)

	rec := env.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "dup@example.ch", "password": "supersecret", "name": "Again", "role": models.RoleCustomer,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestBookingEndToEnd(t *testing.T) {
	env := newAPIEnv(t)
	vendorToken, _ := env.registerAndLogin(t, "vendor@example.ch", models.RoleVendor)
	customerToken, _ := env.registerAndLogin(t, "customer@example.ch", models.RoleCustomer)
	serviceID := env.createService(t, vendorToken)
	bookingID := env.createBooking(t, customerToken, serviceID, models.PaymentCard)

	// Payment captured via webhook.
	rec := env.webhookCapture(t, "evt-1", bookingID, 15000)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Vendor accepts.
	rec = env.do(t, http.MethodPost, "/api/v1/bookings/"+bookingID+"/accept", vendorToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Customer cannot accept.
	rec = env.do(t, http.MethodPost, "/api/v1/bookings/"+bookingID+"/accept", customerToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Starting before the slot is refused.
	rec = env.do(t, http.MethodPost, "/api/v1/bookings/"+bookingID+"/start", vendorToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Escrow view shows the held amount.
	rec = env.do(t, http.MethodGet, "/api/v1/bookings/"+bookingID+"/escrow", customerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entry models.EscrowEntry
	decodeBody(t, rec, &entry)
	assert.Equal(t, models.EscrowHeld, entry.State)
	assert.Equal(t, int64(15000), entry.AmountHeld)
}

func TestWebhook_DedupeAndSecret(t *testing.T) {
	env := newAPIEnv(t)
	vendorToken, _ := env.registerAndLogin(t, "vendor@example.ch", models.RoleVendor)
	customerToken, _ := env.registerAndLogin(t, "customer@example.ch", models.RoleCustomer)
	serviceID := env.createService(t, vendorToken)
	bookingID := env.createBooking(t, customerToken, serviceID, models.PaymentCard)

	// Wrong secret.
	raw, _ := json.Marshal(map[string]any{"id": "evt-1", "type": "payment.captured", "booking_id": bookingID, "amount": 15000})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewReader(raw))
	req.Header.Set(webhookSecretHeader, "wrong")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// First delivery holds funds.
	rec = env.webhookCapture(t, "evt-1", bookingID, 15000)
	require.Equal(t, http.StatusOK, rec.Code)

	// Redelivery of the same event is a recognized duplicate.
	rec = env.webhookCapture(t, "evt-1", bookingID, 15000)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	decodeBody(t, rec, &resp)
	assert.Equal(t, "duplicate", resp["status"])

	// A different event for the same booking trips the duplicate-hold guard.
	rec = env.webhookCapture(t, "evt-2", bookingID, 15000)
	assert.Equal(t, http.StatusConflict, rec.Code)

	entry, err := env.ledger.Entry(context.Background(), bookingID)
	require.NoError(t, err)
	assert.Equal(t, int64(15000), entry.AmountHeld, "funds held exactly once")
}

func TestWebhook_HoldFailureStaysRetryable(t *testing.T) {
	env := newAPIEnv(t)
	vendorToken, _ := env.registerAndLogin(t, "vendor@example.ch", models.RoleVendor)
	customerToken, _ := env.registerAndLogin(t, "customer@example.ch", models.RoleCustomer)
	serviceID := env.createService(t, vendorToken)
	bookingID := env.createBooking(t, customerToken, serviceID, models.PaymentCard)

	// Escrow storage goes down between the dedup claim and the hold.
	require.NoError(t, env.db.Close())

	rec := env.webhookCapture(t, "evt-1", bookingID, 15000)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, rec.Body.String())

	// The redelivery must not be swallowed as a duplicate: the first attempt
	// recorded nothing, so the event id has to be claimable again.
	rec = env.webhookCapture(t, "evt-1", bookingID, 15000)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "duplicate")
}

func TestDisputeFlowOverHTTP(t *testing.T) {
	env := newAPIEnv(t)
	vendorToken, _ := env.registerAndLogin(t, "vendor@example.ch", models.RoleVendor)
	customerToken, _ := env.registerAndLogin(t, "customer@example.ch", models.RoleCustomer)
	serviceID := env.createService(t, vendorToken)
	bookingID := env.createBooking(t, customerToken, serviceID, models.PaymentCard)

	rec := env.webhookCapture(t, "evt-1", bookingID, 15000)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/v1/bookings/"+bookingID+"/accept", vendorToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Customer opens a dispute on the confirmed booking.
	rec = env.do(t, http.MethodPost, "/api/v1/disputes", customerToken, map[string]string{
		"booking_id": bookingID, "reason": "vendor unreachable",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var dispute models.Dispute
	decodeBody(t, rec, &dispute)
	assert.Equal(t, models.DisputeOpen, dispute.Status)

	// A second dispute is refused.
	rec = env.do(t, http.MethodPost, "/api/v1/disputes", vendorToken, map[string]string{
		"booking_id": bookingID, "reason": "counter",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Outsiders cannot read it.
	strangerToken, _ := env.registerAndLogin(t, "stranger@example.ch", models.RoleCustomer)
	rec = env.do(t, http.MethodGet, "/api/v1/disputes/"+dispute.ID, strangerToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Admin resolves with a split.
	raw, _ := json.Marshal(map[string]any{"resolution": "split", "split_customer_pct": 40})
	req := httptest.NewRequest(http.MethodPost, "/admin/v1/disputes/"+dispute.ID+"/resolve", bytes.NewReader(raw))
	req.Header.Set("x-api-key", "admin-secret")
	adminRec := httptest.NewRecorder()
	env.router.ServeHTTP(adminRec, req)
	require.Equal(t, http.StatusOK, adminRec.Code, adminRec.Body.String())

	entry, err := env.ledger.Entry(context.Background(), bookingID)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowSplit, entry.State)
	assert.Equal(t, int64(6000), entry.AmountRefunded)
	assert.Equal(t, int64(9000), entry.AmountReleased)
}

func TestAdminAuth(t *testing.T) {
	env := newAPIEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/disputes", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/v1/disputes", nil)
	req.Header.Set("x-api-key", "wrong")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/v1/disputes", nil)
	req.Header.Set("x-api-key", "admin-secret")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminEscrowEndpoints(t *testing.T) {
	env := newAPIEnv(t)
	vendorToken, _ := env.registerAndLogin(t, "vendor@example.ch", models.RoleVendor)
	customerToken, _ := env.registerAndLogin(t, "customer@example.ch", models.RoleCustomer)
	serviceID := env.createService(t, vendorToken)
	bookingID := env.createBooking(t, customerToken, serviceID, models.PaymentCard)

	rec := env.webhookCapture(t, "evt-1", bookingID, 15000)
	require.Equal(t, http.StatusOK, rec.Code)

	adminDo := func(method, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set("x-api-key", "admin-secret")
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		return rec
	}

	rec = adminDo(http.MethodGet, "/admin/v1/escrow/"+bookingID)
	require.Equal(t, http.StatusOK, rec.Code)
	var entry models.EscrowEntry
	decodeBody(t, rec, &entry)
	assert.Equal(t, models.EscrowHeld, entry.State)

	rec = adminDo(http.MethodPost, "/admin/v1/escrow/"+bookingID+"/refund")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeBody(t, rec, &entry)
	assert.Equal(t, models.EscrowRefunded, entry.State)
	assert.Equal(t, int64(15000), entry.AmountRefunded)

	// Refunded funds cannot then be released.
	rec = adminDo(http.MethodPost, "/admin/v1/escrow/"+bookingID+"/release")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = adminDo(http.MethodGet, "/admin/v1/escrow/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatOverHTTP(t *testing.T) {
	env := newAPIEnv(t)
	vendorToken, _ := env.registerAndLogin(t, "vendor@example.ch", models.RoleVendor)
	customerToken, _ := env.registerAndLogin(t, "customer@example.ch", models.RoleCustomer)
	serviceID := env.createService(t, vendorToken)
	bookingID := env.createBooking(t, customerToken, serviceID, models.PaymentCash)

	rec := env.do(t, http.MethodGet, "/api/v1/bookings/"+bookingID+"/conversation", customerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var conv models.Conversation
	decodeBody(t, rec, &conv)

	rec = env.do(t, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/messages", customerToken,
		map[string]string{"body": "Is parking available?"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/conversations/"+conv.ID+"/messages", vendorToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Messages []models.Message `json:"messages"`
	}
	decodeBody(t, rec, &list)
	require.Len(t, list.Messages, 1)
	assert.Equal(t, "Is parking available?", list.Messages[0].Body)

	// Strangers are shut out.
	strangerToken, _ := env.registerAndLogin(t, "stranger@example.ch", models.RoleCustomer)
	rec = env.do(t, http.MethodGet, "/api/v1/conversations/"+conv.ID+"/messages", strangerToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCheckoutRequiresEscrowMethod(t *testing.T) {
	env := newAPIEnv(t)
	vendorToken, _ := env.registerAndLogin(t, "vendor@example.ch", models.RoleVendor)
	customerToken, _ := env.registerAndLogin(t, "customer@example.ch", models.RoleCustomer)
	serviceID := env.createService(t, vendorToken)

	cashBooking := env.createBooking(t, customerToken, serviceID, models.PaymentCash)
	rec := env.do(t, http.MethodPost, "/api/v1/bookings/"+cashBooking+"/checkout", customerToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	day := time.Now().UTC().Add(24 * time.Hour).Format("2006-01-02")
	rec = env.do(t, http.MethodPost, "/api/v1/bookings", customerToken, map[string]string{
		"service_id": serviceID, "scheduled_date": day, "scheduled_time": "15:00",
		"payment_method": models.PaymentCard,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var booking models.Booking
	decodeBody(t, rec, &booking)

	rec = env.do(t, http.MethodPost, "/api/v1/bookings/"+booking.ID+"/checkout", customerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	decodeBody(t, rec, &resp)
	assert.Equal(t, fmt.Sprintf("https://pay.example/checkout/%s", booking.ID), resp["checkout_url"])
}

func TestSlotConflictOverHTTP(t *testing.T) {
	env := newAPIEnv(t)
	vendorToken, _ := env.registerAndLogin(t, "vendor@example.ch", models.RoleVendor)
	customerToken, _ := env.registerAndLogin(t, "customer@example.ch", models.RoleCustomer)
	otherToken, _ := env.registerAndLogin(t, "other@example.ch", models.RoleCustomer)
	serviceID := env.createService(t, vendorToken)

	day := time.Now().UTC().Add(24 * time.Hour).Format("2006-01-02")
	body := map[string]string{
		"service_id": serviceID, "scheduled_date": day, "scheduled_time": "10:00",
		"payment_method": models.PaymentCash,
	}

	rec := env.do(t, http.MethodPost, "/api/v1/bookings", customerToken, body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/bookings", otherToken, body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
