package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/PabloGalante/graphchat/internal/app/conversation"
	"github.com/PabloGalante/graphchat/internal/domain"
	"github.com/PabloGalante/graphchat/internal/observability"
)

type Server struct {
	svc            *conversation.Service
	allowedOrigins map[string]bool
}

type Options struct {
	// AllowedOrigins restricts CORS and WebSocket origins. Empty allows any.
	AllowedOrigins []string

	// Metrics, when set, is served on /metrics.
	Metrics http.Handler
}

func NewServer(svc *conversation.Service, opts Options) http.Handler {
	s := &Server{
		svc:            svc,
		allowedOrigins: make(map[string]bool),
	}
	for _, o := range opts.AllowedOrigins {
		s.allowedOrigins[o] = true
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealth)

	// GET  /workspace/fetch_messages_by_id?session_id=...
	// POST /workspace/workflow_gen          → NDJSON chunk stream
	// GET  /workspace/workflow_gen/ws       → same stream over WebSocket
	mux.HandleFunc("/workspace/fetch_messages_by_id", s.handleFetchMessages)
	mux.HandleFunc("/workspace/workflow_gen", s.handleWorkflowGen)
	mux.HandleFunc("/workspace/workflow_gen/ws", s.handleWorkflowGenWS)

	if opts.Metrics != nil {
		mux.Handle("/metrics", opts.Metrics)
	}

	return chainMiddlewares(mux,
		s.withCORS,
		withLogging,
		withTracing,
		withRequestID,
	)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type workflowGenRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type messageResponse struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Role    string `json:"role"`
	Name    string `json:"name,omitempty"`
	Type    string `json:"type,omitempty"`
}

type chunkResponse struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Role    string `json:"role"`
	Name    string `json:"name,omitempty"`
	Type    string `json:"type,omitempty"`
	IsChunk bool   `json:"is_chunk,omitempty"`
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// A missing session_id is treated like an unknown session.
func (s *Server) handleFetchMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	sessionID := domain.SessionID(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		writeJSON(w, http.StatusOK, []messageResponse{})
		return
	}

	msgs, err := s.svc.GetTranscript(r.Context(), sessionID)
	if err != nil {
		internalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toMessagesResponse(msgs))
}

func (s *Server) handleWorkflowGen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req workflowGenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	in := conversation.SendMessageInput{
		SessionID: domain.SessionID(req.SessionID),
		Text:      req.Message,
	}
	if err := in.Validate(); err != nil {
		badRequest(w, err.Error())
		return
	}

	sink := newNDJSONSink(w)
	if _, err := s.svc.SendMessage(r.Context(), in, sink); err != nil {
		if sink.started {
			// Headers are gone; the service already logged the cause.
			return
		}
		if isValidationError(err) {
			badRequest(w, err.Error())
			return
		}
		observability.LoggerFromContext(r.Context()).Error("workflow_gen failed", "error", err)
		internalError(w, err)
	}
}

// ─────────────────────────────────────────────
// Conversation Helpers
// ─────────────────────────────────────────────

func toMessageResponse(m *domain.Message) messageResponse {
	return messageResponse{
		ID:      string(m.ID),
		Content: m.Content,
		Role:    string(m.Role),
		Name:    m.Name,
		Type:    string(m.Kind),
	}
}

func toMessagesResponse(msgs []*domain.Message) []messageResponse {
	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	return out
}

func toChunkResponse(c domain.Chunk) chunkResponse {
	return chunkResponse{
		ID:      string(c.ID),
		Content: c.Content,
		Role:    string(c.Role),
		Name:    c.Name,
		Type:    string(c.Kind),
		IsChunk: c.Partial,
	}
}

func isValidationError(err error) bool {
	return errors.Is(err, domain.ErrInvalidSessionID) || errors.Is(err, domain.ErrEmptyMessage)
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

func internalError(w http.ResponseWriter, _ error) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error": "method not allowed",
	})
}
