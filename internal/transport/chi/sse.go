package chi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/geosuggest/internal/domain/replica"
	logpkg "github.com/kailas-cloud/geosuggest/internal/logger"
)

// keepAliveInterval spaces SSE comment lines that keep idle proxies from closing the stream.
const keepAliveInterval = 15 * time.Second

// WarmupProgress handles GET /warmup/progress as a server-sent event stream.
// The last published event is replayed first; the stream ends after the done event.
// A replayed done event from an earlier run is skipped while a new run is warming.
func (s *Server) WarmupProgress(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, codeStreamNotSupported, "streaming not supported")
		return
	}

	// The stream outlives the server write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	events, cancel := s.engine.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	log := logpkg.FromContext(r.Context())
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	first := true
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			replayed := first
			first = false
			if replayed && ev.Done && s.engine.Snapshot().State == replica.Warming {
				continue
			}
			if err := writeEvent(w, ev); err != nil {
				log.Debug("Progress stream closed", zap.Error(err))
				return
			}
			flusher.Flush()
			if ev.Done {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, ev replica.ProgressEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	name := "progress"
	if ev.Done {
		name = "done"
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return fmt.Errorf("write progress: %w", err)
	}
	return nil
}
