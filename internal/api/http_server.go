package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"rentalhub/internal/config"
	"rentalhub/internal/domain"
	"rentalhub/internal/models"
	"rentalhub/internal/service"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Pinger reports whether storage answers.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Services is everything the transport layer calls into.
type Services struct {
	Auth       *service.AuthService
	Equipment  *service.EquipmentService
	Rentals    *service.RentalService
	Deliveries *service.DeliveryService
	Payments   *service.PaymentService
	Reports    *service.ReportService
	Audit      domain.AuditSink
	DB         Pinger
}

// HTTPServer exposes the REST API under /api.
type HTTPServer struct {
	cfg           config.APIConfig
	services      Services
	limiter       *rateLimiter
	auditRequests bool
	server        *http.Server
	logger        *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, services Services, auditRequests bool, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	srv := &HTTPServer{
		cfg:           cfg,
		services:      services,
		limiter:       newRateLimiter(cfg.RateLimit),
		auditRequests: auditRequests,
		logger:        logger,
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

// Handler returns the root handler, used by tests and by Start.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) routes() http.Handler {
	router := mux.NewRouter()
	router.StrictSlash(true)
	router.Use(s.loggingMiddleware, s.rateLimitMiddleware)
	router.NotFoundHandler = s.loggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFail(w, http.StatusNotFound, "not_found", "Route not found")
	}))
	router.MethodNotAllowedHandler = s.loggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFail(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	}))

	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	admin := models.RoleAdmin
	courier := models.RoleDelivery

	// auth
	api.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	api.Handle("/auth/me", s.authed(s.handleMe)).Methods(http.MethodGet)
	api.Handle("/auth/change-password", s.authed(s.handleChangePassword)).Methods(http.MethodPost)
	api.Handle("/auth/users", s.authed(s.handleListUsers, admin)).Methods(http.MethodGet)
	api.Handle("/auth/users/{id:[0-9]+}", s.authed(s.handleGetUser, admin)).Methods(http.MethodGet)
	api.Handle("/auth/users/{id:[0-9]+}", s.authed(s.handleUpdateUser, admin)).Methods(http.MethodPut)
	api.Handle("/auth/users/{id:[0-9]+}", s.authed(s.handleDeleteUser, admin)).Methods(http.MethodDelete)
	api.Handle("/auth/users/{id:[0-9]+}/reset-password", s.authed(s.handleResetPassword, admin)).Methods(http.MethodPost)
	api.Handle("/auth/admins", s.authed(s.handleCreateAdmin, admin)).Methods(http.MethodPost)
	api.Handle("/auth/admins", s.authed(s.handleListAdmins, admin)).Methods(http.MethodGet)

	// equipment
	api.Handle("/equipment", s.optional(s.handleListEquipment)).Methods(http.MethodGet)
	api.Handle("/equipment/categories", s.optional(s.handleCategories)).Methods(http.MethodGet)
	api.Handle("/equipment/category/{category}", s.optional(s.handleEquipmentByCategory)).Methods(http.MethodGet)
	api.Handle("/equipment/{id:[0-9]+}", s.optional(s.handleGetEquipment)).Methods(http.MethodGet)
	// users submit items for approval, admins publish directly
	api.Handle("/equipment", s.authed(s.handleCreateEquipment)).Methods(http.MethodPost)
	api.Handle("/equipment/{id:[0-9]+}", s.authed(s.handleUpdateEquipment, admin)).Methods(http.MethodPut)
	api.Handle("/equipment/{id:[0-9]+}/approve", s.authed(s.handleApproveEquipment, admin)).Methods(http.MethodPut)
	api.Handle("/equipment/{id:[0-9]+}/availability", s.authed(s.handleAvailability, admin)).Methods(http.MethodPut)
	api.Handle("/equipment/{id:[0-9]+}", s.authed(s.handleDeleteEquipment, admin)).Methods(http.MethodDelete)

	// rentals
	api.Handle("/rentals", s.authed(s.handleListRentals, admin)).Methods(http.MethodGet)
	api.Handle("/rentals/me", s.authed(s.handleMyRentals)).Methods(http.MethodGet)
	api.Handle("/rentals/active", s.authed(s.handleActiveRentals)).Methods(http.MethodGet)
	api.Handle("/rentals/overdue", s.authed(s.handleOverdueRentals, admin)).Methods(http.MethodGet)
	api.Handle("/rentals/equipment/{equipmentId:[0-9]+}", s.authed(s.handleRentalsByEquipment, admin)).Methods(http.MethodGet)
	api.Handle("/rentals/user/{userId:[0-9]+}", s.authed(s.handleRentalsByUser)).Methods(http.MethodGet)
	api.Handle("/rentals/{id:[0-9]+}", s.authed(s.handleGetRental)).Methods(http.MethodGet)
	api.Handle("/rentals/checkout", s.authed(s.handleCheckout)).Methods(http.MethodPost)
	api.Handle("/rentals/return", s.authed(s.handleReturnByBody)).Methods(http.MethodPost)
	api.Handle("/rentals/{equipmentId:[0-9]+}", s.authed(s.handleCreateRental)).Methods(http.MethodPost)
	api.Handle("/rentals/{id:[0-9]+}/status", s.authed(s.handleRentalStatus, admin)).Methods(http.MethodPut)
	api.Handle("/rentals/{id:[0-9]+}/return", s.authed(s.handleReturn)).Methods(http.MethodPost)
	api.Handle("/rentals/{id:[0-9]+}/cancel", s.authed(s.handleCancel)).Methods(http.MethodPost)

	// deliveries
	api.Handle("/deliveries", s.authed(s.handleCreateDelivery, admin)).Methods(http.MethodPost)
	api.Handle("/deliveries", s.authed(s.handleListDeliveries, admin)).Methods(http.MethodGet)
	api.Handle("/deliveries/assigned", s.authed(s.handleAssignedDeliveries, courier)).Methods(http.MethodGet)
	api.Handle("/deliveries/{id:[0-9]+}/delivered", s.authed(s.handleMarkDelivered, courier, admin)).Methods(http.MethodPost)
	api.Handle("/deliveries/{id:[0-9]+}/returned", s.authed(s.handleMarkReturned, courier, admin)).Methods(http.MethodPost)

	// payments
	api.Handle("/payments", s.authed(s.handleCreatePayment)).Methods(http.MethodPost)
	api.Handle("/payments", s.authed(s.handleListPayments)).Methods(http.MethodGet)
	api.Handle("/payments/{id:[0-9]+}", s.authed(s.handleGetPayment)).Methods(http.MethodGet)
	api.Handle("/payments/{id:[0-9]+}/status", s.authed(s.handlePaymentStatus, admin)).Methods(http.MethodPut)

	// reports
	api.Handle("/reports/admin", s.authed(s.handleAdminReport, admin)).Methods(http.MethodGet)
	api.Handle("/reports/admin/{format}", s.authed(s.exportHandler(service.ReportRentals), admin)).Methods(http.MethodGet)
	api.Handle("/reports/user", s.authed(s.handleUserReport)).Methods(http.MethodGet)
	api.Handle("/reports/user/{format}", s.authed(s.exportHandler(service.ReportMyRentals))).Methods(http.MethodGet)
	api.Handle("/reports/equipment", s.authed(s.handleEquipmentReport, admin)).Methods(http.MethodGet)
	api.Handle("/reports/equipment/{format}", s.authed(s.exportHandler(service.ReportEquipment), admin)).Methods(http.MethodGet)
	api.Handle("/reports/deliveries", s.authed(s.handleDeliveryReport, admin)).Methods(http.MethodGet)
	api.Handle("/reports/deliveries/{format}", s.authed(s.exportHandler(service.ReportDeliveries), admin)).Methods(http.MethodGet)
	api.Handle("/reports/payments", s.authed(s.handlePaymentReport, admin)).Methods(http.MethodGet)
	api.Handle("/reports/payments/{format}", s.authed(s.exportHandler(service.ReportPayments), admin)).Methods(http.MethodGet)
	api.Handle("/reports/logs", s.authed(s.handleActivityLogs)).Methods(http.MethodGet)

	// dashboards
	api.Handle("/dashboard/admin", s.authed(s.handleAdminDashboard, admin)).Methods(http.MethodGet)
	api.Handle("/dashboard/user", s.authed(s.handleUserDashboard)).Methods(http.MethodGet)
	api.Handle("/dashboard/delivery", s.authed(s.handleDeliveryDashboard, courier)).Methods(http.MethodGet)

	return router
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, "", map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.services.DB == nil {
		writeData(w, http.StatusOK, "", map[string]string{"status": "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.services.DB.PingContext(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("readiness check failed")
		writeFail(w, http.StatusServiceUnavailable, "unavailable", "Database unavailable")
		return
	}
	writeData(w, http.StatusOK, "", map[string]string{"status": "ready"})
}
