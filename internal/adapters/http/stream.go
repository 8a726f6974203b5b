package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/PabloGalante/graphchat/internal/domain"
)

// ndjsonSink writes one JSON object per line and flushes after each, so the
// client sees characters as they are produced. The status line goes out with
// the first chunk; until then the handler can still answer with an error.
type ndjsonSink struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	started bool
}

func newNDJSONSink(w http.ResponseWriter) *ndjsonSink {
	return &ndjsonSink{
		w:  w,
		rc: http.NewResponseController(w),
	}
}

func (s *ndjsonSink) Send(_ context.Context, chunk domain.Chunk) error {
	if !s.started {
		h := s.w.Header()
		h.Set("Content-Type", "application/json")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Cache-Control", "no-cache")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}

	data, err := json.Marshal(toChunkResponse(chunk))
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if _, err := s.w.Write(data); err != nil {
		return err
	}
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}
