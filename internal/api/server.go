package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"rentalhub/internal/config"
	"rentalhub/internal/export"
	"rentalhub/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const defaultRequestTimeout = 15 * time.Second

// Services is everything the HTTP API delegates to.
type Services struct {
	Rentals   *service.RentalService
	Payments  *service.PaymentService
	Catalog   *service.CatalogService
	Dashboard *service.DashboardService
	Exporter  *export.Exporter
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HTTPServer struct {
	cfg    config.APIConfig
	svc    Services
	health Pinger
	server *http.Server
	auth   *HTTPAuth
	logger *zerolog.Logger
	now    func() time.Time
}

func NewHTTPServer(cfg config.APIConfig, svc Services, health Pinger, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:    cfg,
		svc:    svc,
		health: health,
		auth:   NewHTTPAuth(cfg),
		logger: logger,
		now:    time.Now,
	}

	timeout := cfg.HTTP.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.routes(timeout),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      timeout + 5*time.Second,
	}
	return srv
}

func (s *HTTPServer) routes(timeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.Wrap)

		r.Route("/rentals", func(r chi.Router) {
			r.Get("/", s.handleListRentals)
			r.Post("/", s.handleCreateRental)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetRental)
				r.Put("/", s.handleUpdateRental)
				r.Delete("/", s.handleDeleteRental)
				r.Put("/status", s.handleUpdateStatus)
				r.Post("/status", s.handleUpdateStatus)
				r.Get("/payments", s.handleListPayments)
				r.Post("/payments", s.handleRecordPayment)
				r.Get("/payments/summary", s.handlePaymentSummary)
				r.Get("/balance", s.handlePendingBalance)
			})
		})

		r.Route("/payments", func(r chi.Router) {
			r.Get("/", s.handlePaymentsBetween)
			r.Post("/", s.handleCreatePayment)
			r.Get("/{id}", s.handleGetPayment)
			r.Delete("/{id}", s.handleDeletePayment)
		})

		r.Get("/availability", s.handleListAvailability)

		r.Route("/products", func(r chi.Router) {
			r.Get("/", s.handleListProducts)
			r.Post("/", s.handleCreateProduct)
			r.Get("/{id}", s.handleGetProduct)
			r.Put("/{id}", s.handleUpdateProduct)
			r.Delete("/{id}", s.handleDeleteProduct)
			r.Get("/{id}/availability", s.handleAvailability)
		})

		r.Route("/clients", func(r chi.Router) {
			r.Get("/", s.handleListClients)
			r.Post("/", s.handleCreateClient)
			r.Get("/{id}", s.handleGetClient)
			r.Put("/{id}", s.handleUpdateClient)
			r.Delete("/{id}", s.handleDeleteClient)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", s.handleListUsers)
			r.Post("/", s.handleCreateUser)
			r.Get("/{id}", s.handleGetUser)
			r.Put("/{id}", s.handleUpdateUser)
			r.Delete("/{id}", s.handleDeleteUser)
		})

		r.Get("/dashboard", s.handleDashboard)
		r.Get("/exports/rentals", s.handleExportRentals)
	})

	return r
}

// Handler exposes the routed handler, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return errors.New("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			requestLogger(r, s.logger).Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
