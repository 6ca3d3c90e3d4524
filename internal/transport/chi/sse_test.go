package chi

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/fraim-dev/contextd/internal/domain/search/result"
	deepuc "github.com/fraim-dev/contextd/internal/usecase/deep"
)

func TestDeepSearch_StreamsRoundsThenBundle(t *testing.T) {
	f := newFixture(t)
	f.deep.events = []deepuc.Progress{
		{Round: 1, ChunkCount: 4},
		{Round: 2, ChunkCount: 4},
	}
	f.deep.bundle = result.Bundle{
		Results:       []result.ChunkResult{testHit(t, "api.md")},
		Rounds:        2,
		CorpusVersion: 3,
	}

	rr := doJSON(t, f.handler, "POST", "/api/v1/deep-search",
		`{"query": "how does auth work", "project": "acme"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type: got %s, want text/event-stream", ct)
	}

	body := rr.Body.String()
	if strings.Count(body, "event: round") != 2 {
		t.Errorf("expected 2 round events, body:\n%s", body)
	}
	if !strings.Contains(body, `"round":1`) || !strings.Contains(body, `"chunk_count":4`) {
		t.Errorf("round event payload missing, body:\n%s", body)
	}
	if strings.Count(body, "event: bundle") != 1 {
		t.Errorf("expected 1 bundle event, body:\n%s", body)
	}
	if !strings.Contains(body, `"rounds":2`) {
		t.Errorf("bundle payload missing rounds, body:\n%s", body)
	}

	// Bundle must be the final event.
	if strings.Index(body, "event: bundle") < strings.LastIndex(body, "event: round") {
		t.Error("bundle event emitted before last round event")
	}
}

func TestDeepSearch_MissingFields400(t *testing.T) {
	f := newFixture(t)

	for _, body := range []string{`{"query": "q"}`, `{"project": "acme"}`, `{}`} {
		rr := doJSON(t, f.handler, "POST", "/api/v1/deep-search", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %s: got %d, want %d", body, rr.Code, http.StatusBadRequest)
		}
	}
}

func TestDeepSearch_FailureBecomesErrorEvent(t *testing.T) {
	f := newFixture(t)
	f.deep.err = context.DeadlineExceeded

	rr := doJSON(t, f.handler, "POST", "/api/v1/deep-search",
		`{"query": "q", "project": "acme"}`)

	// Stream already started: failure travels in-band.
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusOK)
	}
	if !strings.Contains(rr.Body.String(), "event: error") {
		t.Errorf("expected error event, body:\n%s", rr.Body.String())
	}
}
