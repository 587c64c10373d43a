// Package api exposes the scheduler over HTTP, the thin external surface
// adapter spec.md §6 describes.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	smsretry "github.com/avrahamgoldberg/sms-retry-project"
)

// GatewayConfig is the read-only snapshot served by GET /api/config.
type GatewayConfig struct {
	Bucket        string `json:"bucket"`
	ActivePrefix  string `json:"active_prefix"`
	SuccessPrefix string `json:"success_prefix"`
	FailedPrefix  string `json:"failed_prefix"`
}

// Server wires an Engine and Gateway to HTTP handlers.
type Server struct {
	engine *smsretry.Engine
	gw     smsretry.Gateway
	cfg    GatewayConfig
}

// NewServer builds a chi router bound to engine and gw.
func NewServer(engine *smsretry.Engine, gw smsretry.Gateway, cfg GatewayConfig) http.Handler {
	s := &Server{engine: engine, gw: gw, cfg: cfg}

	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Post("/api/send", s.handleSend)
	r.Post("/api/send-bulk", s.handleSendBulk)
	r.Get("/api/stats", s.handleStats)
	r.Get("/api/success", s.handleSuccess)
	r.Get("/api/failed", s.handleFailed)
	r.Get("/api/config", s.handleConfig)
	r.Post("/api/wake", s.handleWake)
	return r
}

type sendRequest struct {
	MessageID string            `json:"message_id,omitempty"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type sendBulkRequest struct {
	Content  string            `json:"content"`
	Count    int               `json:"count"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	msgID := req.MessageID
	if msgID == "" {
		msgID = uuid.NewString()
	}
	msg := smsretry.Message{
		ID:       msgID,
		Content:  req.Content,
		Metadata: req.Metadata,
	}

	id, err := s.engine.Submit(r.Context(), msg)
	if err != nil {
		writeError(w, statusForSubmitError(err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "success",
		"message_id": id,
	})
}

func (s *Server) handleSendBulk(w http.ResponseWriter, r *http.Request) {
	var req sendBulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Count <= 0 {
		req.Count = 1
	}

	ids := make([]string, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		metadata := make(map[string]string, len(req.Metadata)+1)
		for k, v := range req.Metadata {
			metadata[k] = v
		}
		metadata["bulk_index"] = strconv.Itoa(i)

		msg := smsretry.Message{
			ID:       uuid.NewString(),
			Content:  req.Content,
			Metadata: metadata,
		}
		id, err := s.engine.Submit(r.Context(), msg)
		if err != nil {
			writeError(w, statusForSubmitError(err), err)
			return
		}
		ids = append(ids, id)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "success",
		"count":       req.Count,
		"message_ids": ids,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Stats())
}

func (s *Server) handleSuccess(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 100)
	records, err := s.gw.ListRecentSuccess(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(records),
		"messages": records,
	})
}

func (s *Server) handleFailed(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 100)
	records, err := s.gw.ListRecentFailed(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(records),
		"messages": records,
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg)
}

func (s *Server) handleWake(w http.ResponseWriter, r *http.Request) {
	s.engine.Wake()
	writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "healthy"})
}

func statusForSubmitError(err error) int {
	if err == smsretry.ErrShutdownInProgress {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadRequest
}

func parseLimit(r *http.Request, def int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{
		"status":  "error",
		"message": err.Error(),
	})
}
