package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/sigbook/params"
	"github.com/uhyunpark/sigbook/pkg/pipeline"
	"github.com/uhyunpark/sigbook/pkg/storage"
)

// Server handles REST API and WebSocket connections
type Server struct {
	cfg      params.API
	pipeline *pipeline.Pipeline
	store    storage.Store
	router   *mux.Router
	hub      *Hub // WebSocket hub
	gatherer prometheus.Gatherer
	logger   *zap.SugaredLogger
}

// NewServer creates a new API server. hub should be the one the pipeline broadcasts to.
func NewServer(cfg params.API, p *pipeline.Pipeline, store storage.Store, hub *Hub, gatherer prometheus.Gatherer, logger *zap.SugaredLogger) *Server {
	s := &Server{
		cfg:      cfg,
		pipeline: p,
		store:    store,
		router:   mux.NewRouter(),
		hub:      hub,
		gatherer: gatherer,
		logger:   logger,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Order submission and listing
	s.router.HandleFunc("/trade", s.handleTrade).Methods("POST")
	s.router.HandleFunc("/order_book", s.handleOrderBook).Methods("GET")
	s.router.HandleFunc("/logs", s.handleLogs).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check and metrics
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods("GET")
}

// Handler returns the router wrapped in CORS
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Run serves on cfg.Addr until ctx is canceled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	// Start WebSocket hub
	go s.hub.Run(hubCtx)

	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("api_listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Infow("api_shutting_down", "timeout", s.cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	// hijacked websocket connections are not tracked by Shutdown
	stopHub()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// ==============================
// REST Handlers
// ==============================

// handleTrade runs one submission through the pipeline and answers true or false
func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "body too large", err.Error())
			return
		}
		respondError(w, http.StatusBadRequest, "failed to read body", err.Error())
		return
	}

	ok, err := s.pipeline.Submit(r.Context(), body)
	if err != nil {
		s.logger.Errorw("submission_failed", "error", err)
		respondError(w, http.StatusInternalServerError, "store unavailable", err.Error())
		return
	}

	respondJSON(w, ok)
}

func (s *Server) handleOrderBook(w http.ResponseWriter, r *http.Request) {
	orders, err := s.store.ListOrders(r.Context())
	if err != nil {
		s.logger.Errorw("list_orders_failed", "error", err)
		respondError(w, http.StatusInternalServerError, "store unavailable", err.Error())
		return
	}

	response := ListResponse[OrderInfo]{Data: make([]OrderInfo, 0, len(orders))}
	for _, o := range orders {
		response.Data = append(response.Data, newOrderInfo(o))
	}

	respondJSON(w, response)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListLogs(r.Context())
	if err != nil {
		s.logger.Errorw("list_logs_failed", "error", err)
		respondError(w, http.StatusInternalServerError, "store unavailable", err.Error())
		return
	}

	response := ListResponse[LogInfo]{Data: make([]LogInfo, 0, len(entries))}
	for _, e := range entries {
		response.Data = append(response.Data, LogInfo{ID: e.ID, Message: e.Message})
	}

	respondJSON(w, response)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, HealthResponse{Status: "ok", WSClients: s.hub.ClientCount()})
}

// ==============================
// Helper Functions
// ==============================

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
