package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"kischat/internal/settings"
	"kischat/pkg/agent"
	"kischat/pkg/session"
)

const defaultSessionID = "default"

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type healthResponse struct {
	Status        string   `json:"status"`
	MCPConnected  bool     `json:"mcp_connected"`
	MCPToolsCount int      `json:"mcp_tools_count"`
	MCPTools      []string `json:"mcp_tools"`
	TradingMode   string   `json:"trading_mode"`
	ClaudeModel   string   `json:"claude_model"`
}

// handleChat runs one agent turn chain and streams events over SSE.
// Requests for the same session are serialized on the session run lock.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.writeError(w, http.StatusBadRequest, "Message must not be empty")
		return
	}
	if req.SessionID == "" {
		req.SessionID = defaultSessionID
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	requestID := uuid.NewString()
	logger := s.logger.With().
		Str("request_id", requestID).
		Str("session_id", req.SessionID).
		Logger()
	logger.Info().Int("message_len", len(req.Message)).Msg("Chat request received")

	lock := s.sessions.RunLock(req.SessionID)
	lock.Lock()
	defer lock.Unlock()

	s.sessions.Append(req.SessionID, session.NewTextMessage(session.RoleUser, req.Message))
	history := s.sessions.Get(req.SessionID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s.metrics.ChatStreamsActive.Inc()
	defer s.metrics.ChatStreamsActive.Dec()
	start := time.Now()

	status := "ok"
	var assistantText strings.Builder

	for event := range s.runner.Run(r.Context(), history, req.SessionID) {
		if err := writeEvent(w, flusher, event); err != nil {
			// Client went away; the loop drains via context cancellation.
			logger.Debug().Err(err).Msg("SSE write failed")
			status = "disconnected"
			break
		}

		switch ev := event.(type) {
		case agent.TextDeltaEvent:
			assistantText.WriteString(ev.Text)
		case agent.ToolResultEvent:
			toolStatus := "ok"
			if strings.HasPrefix(ev.ResultPreview, "Error") {
				toolStatus = "error"
			}
			s.metrics.ToolExecutionsTotal.WithLabelValues(ev.ToolName, toolStatus).Inc()
		case agent.ErrorEvent:
			status = "error"
		case agent.DoneEvent:
			if assistantText.Len() > 0 {
				s.sessions.Append(req.SessionID, session.NewTextMessage(session.RoleAssistant, assistantText.String()))
			}
		}
	}

	s.metrics.ChatRequestsTotal.WithLabelValues(status).Inc()
	s.metrics.ChatTurnDuration.Observe(time.Since(start).Seconds())
	logger.Info().Str("status", status).Dur("elapsed", time.Since(start)).Msg("Chat request finished")
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, event agent.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Kind(), data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]session.Summary{
		"sessions": s.sessions.Summaries(),
	})
}

// handleDeleteSession clears a conversation. Deleting an unknown
// session is not an error.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.sessions.Delete(id)
	s.logger.Info().Str("session_id", id).Msg("Session deleted")
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.settings.Snapshot())
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch settings.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.metrics.SettingsUpdatesTotal.WithLabelValues("rejected").Inc()
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if patch.IsEmpty() {
		s.metrics.SettingsUpdatesTotal.WithLabelValues("rejected").Inc()
		s.writeError(w, http.StatusBadRequest, "No settings provided")
		return
	}

	updated, err := s.settings.Update(patch)
	if err != nil {
		var verr *settings.ValidationError
		if errors.As(err, &verr) {
			s.metrics.SettingsUpdatesTotal.WithLabelValues("rejected").Inc()
			s.writeError(w, http.StatusUnprocessableEntity, verr.Error())
			return
		}
		s.metrics.SettingsUpdatesTotal.WithLabelValues("error").Inc()
		s.writeError(w, http.StatusInternalServerError, "Failed to update settings")
		return
	}

	s.metrics.SettingsUpdatesTotal.WithLabelValues("ok").Inc()
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.settings.Snapshot()
	tools := s.gateway.ToolNames()
	if tools == nil {
		tools = []string{}
	}

	status := "ok"
	if !s.gateway.Connected() {
		status = "degraded"
	}

	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:        status,
		MCPConnected:  s.gateway.Connected(),
		MCPToolsCount: len(tools),
		MCPTools:      tools,
		TradingMode:   snap.TradingMode,
		ClaudeModel:   snap.ClaudeModel,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, map[string]string{"detail": detail})
}
