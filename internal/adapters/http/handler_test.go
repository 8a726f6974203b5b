package httpadapter_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/PabloGalante/graphchat/internal/adapters/catalog"
	httpadapter "github.com/PabloGalante/graphchat/internal/adapters/http"
	"github.com/PabloGalante/graphchat/internal/adapters/storage/memory"
	"github.com/PabloGalante/graphchat/internal/app/conversation"
)

type chunk struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Role    string `json:"role"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	IsChunk bool   `json:"is_chunk"`
}

type message struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Role    string `json:"role"`
	Type    string `json:"type"`
}

func newTestServer(t *testing.T, opts httpadapter.Options) http.Handler {
	t.Helper()

	cat, err := catalog.NewStatic()
	if err != nil {
		t.Fatalf("NewStatic failed: %v", err)
	}
	svc := conversation.NewService(memory.NewMessageStore(), cat, conversation.Options{})
	return httpadapter.NewServer(svc, opts)
}

func postWorkflowGen(t *testing.T, srv http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/workspace/workflow_gen", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func readChunks(t *testing.T, body []byte) []chunk {
	t.Helper()

	var out []chunk
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var c chunk
		if err := json.Unmarshal(sc.Bytes(), &c); err != nil {
			t.Fatalf("line is not a JSON object: %q: %v", sc.Text(), err)
		}
		out = append(out, c)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	return out
}

func fetchMessages(t *testing.T, srv http.Handler, query string) []message {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/workspace/fetch_messages_by_id"+query, nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", w.Code, w.Body.String())
	}

	var msgs []message
	if err := json.Unmarshal(w.Body.Bytes(), &msgs); err != nil {
		t.Fatalf("invalid transcript body %q: %v", w.Body.String(), err)
	}
	return msgs
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, httpadapter.Options{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected a generated X-Request-ID")
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv := newTestServer(t, httpadapter.Options{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()

	srv.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "req-123" {
		t.Fatalf("expected echoed request id, got %q", got)
	}
}

func TestFetchMessagesEmpty(t *testing.T) {
	srv := newTestServer(t, httpadapter.Options{})

	for _, q := range []string{"?session_id=unknown", ""} {
		if msgs := fetchMessages(t, srv, q); len(msgs) != 0 {
			t.Fatalf("query %q: expected [], got %v", q, msgs)
		}
	}
}

func TestWorkflowGenStreamsNDJSON(t *testing.T) {
	srv := newTestServer(t, httpadapter.Options{})

	w := postWorkflowGen(t, srv, `{"session_id":"s1","message":"please explain clip"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("expected nosniff header")
	}

	chunks := readChunks(t, w.Body.Bytes())
	if len(chunks) < 3 {
		t.Fatalf("expected envelope, partials and final, got %d chunks", len(chunks))
	}

	first, final := chunks[0], chunks[len(chunks)-1]
	if first.IsChunk || first.Content != "" {
		t.Fatalf("unexpected envelope: %+v", first)
	}
	if final.IsChunk {
		t.Fatalf("final chunk must not be partial")
	}

	var streamed strings.Builder
	for _, c := range chunks[1 : len(chunks)-1] {
		if !c.IsChunk {
			t.Fatalf("middle chunk not marked partial: %+v", c)
		}
		if c.ID != final.ID || c.Role != "ai" || c.Type != "message" {
			t.Fatalf("chunk metadata drifted: %+v", c)
		}
		streamed.WriteString(c.Content)
	}
	if streamed.String() != final.Content {
		t.Fatalf("partials do not rebuild final content")
	}

	msgs := fetchMessages(t, srv, "?session_id=s1")
	if len(msgs) != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", len(msgs))
	}
	if msgs[0].ID != "0" || msgs[0].Role != "user" || msgs[0].Content != "please explain clip" {
		t.Fatalf("unexpected user message: %+v", msgs[0])
	}
	if msgs[1].ID != "1" || msgs[1].Content != final.Content {
		t.Fatalf("unexpected assistant message: %+v", msgs[1])
	}
}

func TestWorkflowGenNodeSearch(t *testing.T) {
	srv := newTestServer(t, httpadapter.Options{})

	w := postWorkflowGen(t, srv, `{"session_id":"s","message":"Node Search for upscalers"}`)
	chunks := readChunks(t, w.Body.Bytes())
	if len(chunks) != 2 {
		t.Fatalf("expected envelope and final only, got %d", len(chunks))
	}
	if chunks[0].Content != `{"existing_nodes":[],"non_existing_nodes":[]}` {
		t.Fatalf("unexpected placeholder %q", chunks[0].Content)
	}
	if chunks[1].Type != "node_search" {
		t.Fatalf("unexpected type %q", chunks[1].Type)
	}
}

func TestWorkflowGenRejectsBadInput(t *testing.T) {
	srv := newTestServer(t, httpadapter.Options{})

	cases := map[string]string{
		"invalid json":    `{"session_id":`,
		"missing session": `{"message":"hello"}`,
		"blank message":   `{"session_id":"s","message":"   "}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := postWorkflowGen(t, srv, body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}

			var resp map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp["error"] == "" {
				t.Fatalf("expected a single error object, got %q", w.Body.String())
			}
		})
	}

	if msgs := fetchMessages(t, srv, "?session_id=s"); len(msgs) != 0 {
		t.Fatalf("rejected requests must not persist, got %d", len(msgs))
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, httpadapter.Options{})

	req := httptest.NewRequest(http.MethodGet, "/workspace/workflow_gen", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/workspace/fetch_messages_by_id", nil)
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, httpadapter.Options{AllowedOrigins: []string{"http://editor.test"}})

	req := httptest.NewRequest(http.MethodOptions, "/workspace/workflow_gen", nil)
	req.Header.Set("Origin", "http://editor.test")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://editor.test" {
		t.Fatalf("unexpected allow-origin %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/workspace/workflow_gen", nil)
	req.Header.Set("Origin", "http://evil.test")
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("foreign origin must not be allowed, got %q", got)
	}
}

func TestMetricsRouteIsOptional(t *testing.T) {
	srv := newTestServer(t, httpadapter.Options{})
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a metrics handler, got %d", w.Code)
	}

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics\n"))
	})
	srv = newTestServer(t, httpadapter.Options{Metrics: metrics})
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || w.Body.String() != "# metrics\n" {
		t.Fatalf("metrics handler not mounted: %d %q", w.Code, w.Body.String())
	}
}

func TestWorkflowGenWebSocket(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t, httpadapter.Options{}))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/workspace/workflow_gen/ws?session_id=ws1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	// A broken frame is answered with an error and the connection stays up.
	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	var errFrame map[string]string
	if err := conn.ReadJSON(&errFrame); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if errFrame["error"] == "" {
		t.Fatalf("expected error frame, got %v", errFrame)
	}

	if err := conn.WriteJSON(map[string]string{"message": "hello"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var chunks []chunk
	whole := 0
	for whole < 2 {
		var c chunk
		if err := conn.ReadJSON(&c); err != nil {
			t.Fatalf("read failed after %d chunks: %v", len(chunks), err)
		}
		chunks = append(chunks, c)
		if !c.IsChunk {
			whole++
		}
	}

	final := chunks[len(chunks)-1]
	if final.ID != "1" || final.Role != "ai" {
		t.Fatalf("unexpected final frame: %+v", final)
	}

	var payload struct {
		AIMessage string `json:"ai_message"`
		Options   []any  `json:"options"`
	}
	if err := json.Unmarshal([]byte(final.Content), &payload); err != nil {
		t.Fatalf("final content is not an options payload: %v", err)
	}
	if len(payload.Options) != 3 {
		t.Fatalf("expected 3 options, got %d", len(payload.Options))
	}
}
