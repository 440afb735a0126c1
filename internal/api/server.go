package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/CMZCoder/CommerzioS-sub000/internal/config"
	"github.com/CMZCoder/CommerzioS-sub000/internal/domain"
	"github.com/CMZCoder/CommerzioS-sub000/internal/export"
	"github.com/CMZCoder/CommerzioS-sub000/internal/models"
	"github.com/CMZCoder/CommerzioS-sub000/internal/service"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server is the public HTTP API for customers, vendors and the back office.
type Server struct {
	cfg           config.APIConfig
	webhookSecret string

	auth          *service.AuthService
	catalog       *service.CatalogService
	bookings      *service.BookingService
	disputes      *service.DisputeService
	ledger        *service.EscrowLedger
	chat          *service.ChatService
	notifications domain.NotificationRepository
	sessions      domain.SessionRepository
	provider      domain.PaymentProvider
	exporter      *export.Exporter

	limiters sync.Map // map[string]*rate.Limiter
	logger   *zerolog.Logger
	server   *http.Server
	metrics  *http.Server
}

type Deps struct {
	Auth          *service.AuthService
	Catalog       *service.CatalogService
	Bookings      *service.BookingService
	Disputes      *service.DisputeService
	Ledger        *service.EscrowLedger
	Chat          *service.ChatService
	Notifications domain.NotificationRepository
	Sessions      domain.SessionRepository
	Provider      domain.PaymentProvider
	Exporter      *export.Exporter
}

func NewServer(cfg config.APIConfig, webhookSecret string, deps Deps, logger *zerolog.Logger) *Server {
	s := &Server{
		cfg:           cfg,
		webhookSecret: webhookSecret,
		auth:          deps.Auth,
		catalog:       deps.Catalog,
		bookings:      deps.Bookings,
		disputes:      deps.Disputes,
		ledger:        deps.Ledger,
		chat:          deps.Chat,
		notifications: deps.Notifications,
		sessions:      deps.Sessions,
		provider:      deps.Provider,
		exporter:      deps.Exporter,
		logger:        logger,
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	s.metrics = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Router builds the full route table. Exposed for handler tests.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(loggingMiddleware(s.logger))
	r.Use(s.rateLimitMiddleware)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()

	// Accounts and sessions.
	v1.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	v1.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	v1.HandleFunc("/auth/logout", s.requireUser(s.handleLogout)).Methods(http.MethodPost)
	v1.HandleFunc("/auth/me", s.requireUser(s.handleMe)).Methods(http.MethodGet)

	// Catalog.
	v1.HandleFunc("/services", s.handleListServices).Methods(http.MethodGet)
	v1.HandleFunc("/services", s.requireRole(models.RoleVendor, s.handleCreateService)).Methods(http.MethodPost)
	v1.HandleFunc("/services/{id}", s.handleGetService).Methods(http.MethodGet)
	v1.HandleFunc("/services/{id}", s.requireRole(models.RoleVendor, s.handleUpdateService)).Methods(http.MethodPut)
	v1.HandleFunc("/services/{id}", s.requireRole(models.RoleVendor, s.handleDeactivateService)).Methods(http.MethodDelete)

	// Bookings and their transitions.
	v1.HandleFunc("/bookings", s.requireRole(models.RoleCustomer, s.handleCreateBooking)).Methods(http.MethodPost)
	v1.HandleFunc("/bookings", s.requireUser(s.handleListBookings)).Methods(http.MethodGet)
	v1.HandleFunc("/bookings/{id}", s.requireUser(s.handleGetBooking)).Methods(http.MethodGet)
	v1.HandleFunc("/bookings/{id}/accept", s.requireUser(s.handleAcceptBooking)).Methods(http.MethodPost)
	v1.HandleFunc("/bookings/{id}/reject", s.requireUser(s.handleRejectBooking)).Methods(http.MethodPost)
	v1.HandleFunc("/bookings/{id}/cancel", s.requireUser(s.handleCancelBooking)).Methods(http.MethodPost)
	v1.HandleFunc("/bookings/{id}/start", s.requireUser(s.handleStartBooking)).Methods(http.MethodPost)
	v1.HandleFunc("/bookings/{id}/complete", s.requireUser(s.handleCompleteBooking)).Methods(http.MethodPost)
	v1.HandleFunc("/bookings/{id}/no-show", s.requireUser(s.handleMarkNoShow)).Methods(http.MethodPost)
	v1.HandleFunc("/bookings/{id}/propose-alternative", s.requireUser(s.handleProposeAlternative)).Methods(http.MethodPost)
	v1.HandleFunc("/bookings/{id}/accept-alternative", s.requireUser(s.handleAcceptAlternative)).Methods(http.MethodPost)
	v1.HandleFunc("/bookings/{id}/reject-alternative", s.requireUser(s.handleRejectAlternative)).Methods(http.MethodPost)
	v1.HandleFunc("/bookings/{id}/escrow", s.requireUser(s.handleBookingEscrow)).Methods(http.MethodGet)

	// Payments.
	v1.HandleFunc("/bookings/{id}/checkout", s.requireUser(s.handleCheckout)).Methods(http.MethodPost)
	v1.HandleFunc("/payments/twint/eligibility", s.requireUser(s.handleTwintEligibility)).Methods(http.MethodPost)
	v1.HandleFunc("/payments/webhook", s.handlePaymentWebhook).Methods(http.MethodPost)

	// Disputes.
	v1.HandleFunc("/disputes", s.requireUser(s.handleOpenDispute)).Methods(http.MethodPost)
	v1.HandleFunc("/disputes/{id}", s.requireUser(s.handleGetDispute)).Methods(http.MethodGet)

	// Chat and notifications.
	v1.HandleFunc("/bookings/{id}/conversation", s.requireUser(s.handleGetConversation)).Methods(http.MethodGet)
	v1.HandleFunc("/conversations/{id}/messages", s.requireUser(s.handleSendMessage)).Methods(http.MethodPost)
	v1.HandleFunc("/conversations/{id}/messages", s.requireUser(s.handleListMessages)).Methods(http.MethodGet)
	v1.HandleFunc("/notifications", s.requireUser(s.handleListNotifications)).Methods(http.MethodGet)
	v1.HandleFunc("/notifications/{id}/read", s.requireUser(s.handleMarkNotificationRead)).Methods(http.MethodPost)

	// Back office.
	admin := r.PathPrefix("/admin/v1").Subrouter()
	admin.HandleFunc("/disputes", s.requireAdminKey(s.handleListDisputes)).Methods(http.MethodGet)
	admin.HandleFunc("/disputes/{id}/review", s.requireAdminKey(s.handleReviewDispute)).Methods(http.MethodPost)
	admin.HandleFunc("/disputes/{id}/resolve", s.requireAdminKey(s.handleResolveDispute)).Methods(http.MethodPost)
	admin.HandleFunc("/disputes/{id}/close", s.requireAdminKey(s.handleCloseDispute)).Methods(http.MethodPost)
	admin.HandleFunc("/escrow/{id}", s.requireAdminKey(s.handleAdminEscrow)).Methods(http.MethodGet)
	admin.HandleFunc("/escrow/{id}/release", s.requireAdminKey(s.handleAdminRelease)).Methods(http.MethodPost)
	admin.HandleFunc("/escrow/{id}/refund", s.requireAdminKey(s.handleAdminRefund)).Methods(http.MethodPost)
	admin.HandleFunc("/users/{id}/block", s.requireAdminKey(s.handleBlockUser)).Methods(http.MethodPost)
	admin.HandleFunc("/exports/bookings", s.requireAdminKey(s.handleExportBookings)).Methods(http.MethodPost)

	return r
}

func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("http api listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) StartMetrics() error {
	s.logger.Info().Str("addr", s.metrics.Addr).Msg("metrics listening")
	if err := s.metrics.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.metrics.Shutdown(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("metrics shutdown error")
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
