package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"stratbot/src/alerts"
	"stratbot/src/datamodels"
	"stratbot/src/risk"
)

// FillSource reads recorded order fills, usually backed by the results
// database.
type FillSource interface {
	GetFills(ctx context.Context, startTime time.Time, endTime time.Time, symbol *string, side *datamodels.OrderSide) ([]datamodels.FillRecord, error)
}

// Server exposes the status API: health, open positions, alert rules, and a
// websocket stream of live strategy signals.
type Server struct {
	addr        string
	upgrader    websocket.Upgrader
	httpMux     *http.ServeMux
	riskBook    *risk.Book
	alertEngine *alerts.Engine
	ruleWatcher func(rule datamodels.ThresholdRule)
	fillSource  FillSource

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewServer(addr string) *Server {
	return &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all connections (for development purposes)
			},
		},
		httpMux: http.NewServeMux(),
		clients: make(map[*websocket.Conn]struct{}),
	}
}

func (s *Server) WithRiskBook(riskBook *risk.Book) *Server {
	s.riskBook = riskBook
	return s
}

func (s *Server) WithAlertEngine(alertEngine *alerts.Engine) *Server {
	s.alertEngine = alertEngine
	return s
}

// WithRuleWatcher wires the hook that puts a newly registered alert rule's
// stream on the feed, so rules created over the API start receiving bars.
func (s *Server) WithRuleWatcher(watcher func(rule datamodels.ThresholdRule)) *Server {
	s.ruleWatcher = watcher
	return s
}

func (s *Server) WithFillSource(fillSource FillSource) *Server {
	s.fillSource = fillSource
	return s
}

func (s *Server) Start(ctx context.Context) error {
	s.RegisterHealthCheck()
	s.RegisterPositionsHandler()
	s.RegisterAlertsHandler()
	s.RegisterFillsHandler()
	s.RegisterSignalStream()
	s.RegisterSwagger()
	server := &http.Server{
		Addr:    s.addr,
		Handler: s.httpMux,
	}

	go func() {
		<-ctx.Done()
		slog.Info("Shutting down server")
		if err := server.Close(); err != nil {
			slog.Error("Failed to close server", "error", err)
		}
	}()

	slog.Info(fmt.Sprintf("Starting server on %s", s.addr))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// BroadcastSignal pushes a live signal to every connected websocket client.
// A client whose write fails is dropped.
func (s *Server) BroadcastSignal(signal datamodels.LiveSignal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		if err := conn.WriteJSON(signal); err != nil {
			slog.Warn("Dropping websocket client", "error", err)
			conn.Close()
			delete(s.clients, conn)
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection", "error", err)
		return
	}

	slog.Info("Signal stream client connected")
	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	// Drain client frames until the connection dies; signals flow the
	// other way via BroadcastSignal.
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.clients, conn)
			s.mu.Unlock()
			conn.Close()
			slog.Info("Signal stream client disconnected")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
