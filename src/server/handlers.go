package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	httpSwagger "github.com/swaggo/http-swagger"

	"stratbot/src/datamodels"
	"stratbot/src/utils/general"
	"stratbot/src/version"
)

var validComparators = []datamodels.AlertComparator{
	datamodels.AlertCmpGt,
	datamodels.AlertCmpGte,
	datamodels.AlertCmpLt,
	datamodels.AlertCmpLte,
	datamodels.AlertCmpEq,
}

// @title Stratbot API
// @version 1.0
// @description Status API for the Stratbot strategy runner
// @host localhost:8080
// @BasePath /

// RegisterHealthCheck registers the health check endpoint
// @Summary Health check endpoint
// @Description Returns health status and build info of the Stratbot service
// @Tags health
// @Produce json
// @Success 200 {object} map[string]any
// @Router /health [get]
func (s *Server) RegisterHealthCheck() {
	s.httpMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"status": "healthy",
			"build":  version.GetBuildInfo(),
		})
	})
}

// RegisterPositionsHandler registers the open positions endpoint
// @Summary Open positions
// @Description Returns every open position with mark-to-market PnL
// @Tags positions
// @Produce json
// @Success 200 {array} datamodels.PositionSnapshot
// @Router /positions [get]
func (s *Server) RegisterPositionsHandler() {
	s.httpMux.HandleFunc("/positions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if s.riskBook == nil {
			http.Error(w, "risk book not configured", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, s.riskBook.Snapshot())
	})
}

// RegisterAlertsHandler registers the threshold alert rule endpoints
// @Summary Threshold alert rules
// @Description Lists, creates, and deletes one-shot threshold alert rules
// @Tags alerts
// @Accept json
// @Produce json
// @Success 200 {array} datamodels.ThresholdRule
// @Router /alerts [get]
func (s *Server) RegisterAlertsHandler() {
	s.httpMux.HandleFunc("/alerts", func(w http.ResponseWriter, r *http.Request) {
		if s.alertEngine == nil {
			http.Error(w, "alert engine not configured", http.StatusServiceUnavailable)
			return
		}
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, s.alertEngine.List())
		case http.MethodPost:
			var rule datamodels.ThresholdRule
			if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if !general.ItemInSlice(validComparators, rule.Comparator) {
				http.Error(w, "unknown comparator "+string(rule.Comparator), http.StatusBadRequest)
				return
			}
			if rule.Id == "" {
				rule.Id = uuid.NewString()
			}
			s.alertEngine.Register(rule)
			if s.ruleWatcher != nil {
				s.ruleWatcher(rule)
			}
			writeJSON(w, rule)
		case http.MethodDelete:
			id := r.URL.Query().Get("id")
			if id == "" {
				http.Error(w, "missing id", http.StatusBadRequest)
				return
			}
			s.alertEngine.Remove(id)
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}

// RegisterFillsHandler registers the recorded fills query endpoint
// @Summary Recorded order fills
// @Description Returns fills recorded in the results database, filtered by time window, symbol, and side
// @Tags fills
// @Produce json
// @Param start query string false "RFC3339 window start, default 24h ago"
// @Param end query string false "RFC3339 window end, default now"
// @Param symbol query string false "instrument symbol"
// @Param side query string false "buy or sell"
// @Success 200 {array} datamodels.FillRecord
// @Router /fills [get]
func (s *Server) RegisterFillsHandler() {
	s.httpMux.HandleFunc("/fills", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if s.fillSource == nil {
			http.Error(w, "fill persistence not configured", http.StatusServiceUnavailable)
			return
		}

		end := time.Now().UTC()
		if raw := r.URL.Query().Get("end"); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				http.Error(w, "bad end time: "+err.Error(), http.StatusBadRequest)
				return
			}
			end = parsed
		}
		start := end.Add(-24 * time.Hour)
		if raw := r.URL.Query().Get("start"); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				http.Error(w, "bad start time: "+err.Error(), http.StatusBadRequest)
				return
			}
			start = parsed
		}

		var symbol *string
		if raw := r.URL.Query().Get("symbol"); raw != "" {
			symbol = &raw
		}
		var side *datamodels.OrderSide
		if raw := r.URL.Query().Get("side"); raw != "" {
			parsed := datamodels.OrderSide(raw)
			side = &parsed
		}

		fills, err := s.fillSource.GetFills(r.Context(), start, end, symbol, side)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, fills)
	})
}

// RegisterSignalStream registers the live signal websocket endpoint
// @Summary Live signal stream
// @Description Streams emitted strategy signals over a websocket connection
// @Tags websocket
// @Produce json
// @Success 101 {string} string "Switching protocols to websocket"
// @Router /ws [get]
func (s *Server) RegisterSignalStream() {
	s.httpMux.HandleFunc("/ws", s.handleWebSocket)
}

// RegisterSwagger registers the Swagger documentation endpoint
// @Summary Swagger documentation endpoint
// @Description Serves Swagger API documentation UI and JSON spec
// @Tags docs
// @Produce json,html
// @Success 200 {string} string "Swagger documentation UI"
// @Router /swagger [get]
func (s *Server) RegisterSwagger() {
	s.httpMux.HandleFunc("/swagger", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
