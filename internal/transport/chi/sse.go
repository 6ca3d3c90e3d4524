package chi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/fraim-dev/contextd/internal/logger"
	deepuc "github.com/fraim-dev/contextd/internal/usecase/deep"
)

// DeepSearch handles POST /api/v1/deep-search. The response is a server-sent
// event stream: one `round` event per completed round, then a final `bundle`
// event, or an `error` event if the gather loop fails.
func (s *Server) DeepSearch(w http.ResponseWriter, r *http.Request) {
	var req deepSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" || req.Project == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "query and project are required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, codeInternalError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := logger.WithProject(r.Context(), req.Project)

	onProgress := func(p deepuc.Progress) {
		writeSSE(w, "round", roundEventDTO{Round: p.Round, ChunkCount: p.ChunkCount})
		flusher.Flush()
	}

	bundle, err := s.deep.DeepSearch(ctx, req.Project, req.Query, onProgress)
	if err != nil {
		// Headers are out the door, so the error travels as an event.
		s.logger.Warn("Deep search failed", zap.String("project", req.Project), zap.Error(err))
		writeSSE(w, "error", errorResponse{Code: codeInternalError, Message: safeDomainMessage(err)})
		flusher.Flush()
		return
	}

	writeSSE(w, "bundle", bundleToDTO(bundle))
	flusher.Flush()
}

func writeSSE(w http.ResponseWriter, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
