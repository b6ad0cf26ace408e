package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"nftmarket/apps/market/internal/order"
)

const (
	writeTimeout          = 15 * time.Second
	defaultRequestTimeout = 10 * time.Second
)

// Server represents the API server
type Server struct {
	orderHandler   *OrderHandler
	logger         *zap.Logger
	server         *http.Server
	requestTimeout time.Duration
}

// NewServer creates a new API server. requestTimeout bounds the work done for
// one request and must leave room under the write timeout for the response;
// out-of-range values fall back to the default.
func NewServer(port int, requestTimeout time.Duration, service *order.Service, logger *zap.Logger) *Server {
	if requestTimeout <= 0 || requestTimeout >= writeTimeout {
		if requestTimeout != 0 {
			logger.Warn("Request timeout out of range, using default",
				zap.Duration("request_timeout", requestTimeout),
				zap.Duration("write_timeout", writeTimeout))
		}
		requestTimeout = defaultRequestTimeout
	}
	return &Server{
		orderHandler:   NewOrderHandler(service, logger),
		logger:         logger,
		requestTimeout: requestTimeout,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: writeTimeout,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start starts the API server
func (s *Server) Start() error {
	router := s.setupRoutes()
	s.server.Handler = router

	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	return nil
}

// Stop stops the API server gracefully
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server")
	return s.server.Shutdown(ctx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() *mux.Router {
	router := mux.NewRouter()

	// Add middleware
	router.Use(s.loggingMiddleware)
	router.Use(s.corsMiddleware)
	router.Use(s.timeoutMiddleware)

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// API routes
	api := router.PathPrefix("/api").Subrouter()

	// Order endpoints
	api.HandleFunc("/orders/sell", s.orderHandler.CreateSellOrder).Methods("POST")
	api.HandleFunc("/orders/offer", s.orderHandler.CreateOfferOrder).Methods("POST")
	api.HandleFunc("/orders/signature/check", s.orderHandler.CheckSignature).Methods("POST")
	api.HandleFunc("/orders/sell/{contract}/{token_id}", s.orderHandler.ListSellOrders).Methods("GET")
	api.HandleFunc("/orders/offer/{contract}/{token_id}", s.orderHandler.ListOfferOrders).Methods("GET")
	api.HandleFunc("/orders/proxy/{address}", s.orderHandler.GetProxy).Methods("GET")
	api.HandleFunc("/orders/{id:[0-9]+}", s.orderHandler.GetOrder).Methods("GET")
	api.HandleFunc("/orders/{id:[0-9]+}/verify", s.orderHandler.VerifyOrder).Methods("POST")
	api.HandleFunc("/orders/{id:[0-9]+}/counter", s.orderHandler.GenerateCounterOrder).Methods("POST")

	// Health check endpoint
	api.HandleFunc("/health", s.healthCheck).Methods("GET")

	return router
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Call the next handler
		next.ServeHTTP(w, r)

		// Log the request
		s.logger.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// timeoutMiddleware puts a deadline on the request context so chain reads give
// up and the error response is written before the server's write timeout.
func (s *Server) timeoutMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// corsMiddleware handles CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// healthCheck handles the health check endpoint
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("Failed to encode health check response", zap.Error(err))
	}
}
