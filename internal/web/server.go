package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"
	"pinbot/internal/domain"
	"pinbot/internal/usecase"
)

// Server exposes a read-only ops surface: liveness, the last sync pass
// counters, and a per-user view of pending orders.
type Server struct {
	router *http.ServeMux
	server *http.Server
	store  domain.OrderStore
	worker *usecase.SyncWorker
	logger *zap.Logger
}

func NewServer(port int, store domain.OrderStore, worker *usecase.SyncWorker, logger *zap.Logger) *Server {
	s := &Server{
		router: http.NewServeMux(),
		store:  store,
		worker: worker,
		logger: logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /healthz", s.handleHealth)
	s.router.HandleFunc("GET /status", s.handleStatus)
	s.router.HandleFunc("GET /api/orders", s.handleOrders)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.CountByStatus(r.Context())
	if err != nil {
		s.logger.Error("Failed to count orders", zap.Error(err))
		http.Error(w, "Failed to count orders", http.StatusInternalServerError)
		return
	}

	payload := struct {
		UptimeSeconds int64                      `json:"uptime_seconds"`
		LastSync      *domain.SyncStats          `json:"last_sync"`
		Orders        map[domain.OrderStatus]int `json:"orders"`
	}{
		UptimeSeconds: int64(s.worker.Uptime().Seconds()),
		LastSync:      s.worker.Stats(),
		Orders:        counts,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode status", zap.Error(err))
	}
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user"), 10, 64)
	if err != nil {
		http.Error(w, "user query parameter required", http.StatusBadRequest)
		return
	}

	orders, err := s.store.GetPendingOrders(r.Context(), userID)
	if err != nil {
		s.logger.Error("Failed to list pending orders",
			zap.Int64("user_id", userID),
			zap.Error(err))
		http.Error(w, "Failed to list orders", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(orders); err != nil {
		s.logger.Error("Failed to encode orders", zap.Error(err))
	}
}

func (s *Server) Start() error {
	s.logger.Info("Status server listening", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
