package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/PabloGalante/graphchat/internal/app/conversation"
	"github.com/PabloGalante/graphchat/internal/domain"
	"github.com/PabloGalante/graphchat/internal/observability"
)

type wsIncoming struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type wsError struct {
	Error string `json:"error"`
}

// wsSink writes each chunk as one text frame.
type wsSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSink) Send(_ context.Context, chunk domain.Chunk) error {
	return s.writeJSON(toChunkResponse(chunk))
}

func (s *wsSink) writeJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// handleWorkflowGenWS runs one turn per incoming frame, one at a time, for
// the session named in the query (a frame may override it).
func (s *Server) handleWorkflowGenWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}

	log := observability.LoggerFromContext(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	defaultSession := r.URL.Query().Get("session_id")
	sink := &wsSink{conn: conn}

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("websocket closed unexpectedly", "error", err)
			}
			return
		}

		var incoming wsIncoming
		if err := json.Unmarshal(frame, &incoming); err != nil {
			if werr := sink.writeJSON(wsError{Error: "invalid JSON frame"}); werr != nil {
				return
			}
			continue
		}

		in := conversation.SendMessageInput{
			SessionID: domain.SessionID(defaultSession),
			Text:      incoming.Message,
		}
		if incoming.SessionID != "" {
			in.SessionID = domain.SessionID(incoming.SessionID)
		}
		if err := in.Validate(); err != nil {
			if werr := sink.writeJSON(wsError{Error: err.Error()}); werr != nil {
				return
			}
			continue
		}

		if _, err := s.svc.SendMessage(ctx, in, sink); err != nil {
			if ctx.Err() != nil {
				return
			}
			if werr := sink.writeJSON(wsError{Error: "failed to generate reply"}); werr != nil {
				return
			}
		}
	}
}
