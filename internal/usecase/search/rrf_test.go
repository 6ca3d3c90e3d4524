package search

import (
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/fraim-dev/contextd/internal/domain"
	"github.com/fraim-dev/contextd/internal/domain/search/result"
)

const (
	wVec = 0.7
	wLex = 0.3
)

func chunk(path string, ordinal int) result.ChunkResult {
	return result.New(uuid.New(), uuid.New(), "content", 0,
		path, "Title", domain.CategoryDocs, ordinal)
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

func TestFuseRRF_VectorOnlyScores(t *testing.T) {
	vector := []result.ChunkResult{chunk("a.md", 0), chunk("b.md", 0)}

	fused := fuseRRF(vector, nil, wVec, wLex, 10)
	if len(fused) != 2 {
		t.Fatalf("expected 2 results, got %d", len(fused))
	}

	// A hit absent from the lexical branch contributes exactly w_vec/(k+rank).
	if !approxEqual(fused[0].Score(), wVec/61.0) {
		t.Errorf("rank 1 score = %v, want %v", fused[0].Score(), wVec/61.0)
	}
	if !approxEqual(fused[1].Score(), wVec/62.0) {
		t.Errorf("rank 2 score = %v, want %v", fused[1].Score(), wVec/62.0)
	}
}

func TestFuseRRF_BothBranchesSum(t *testing.T) {
	shared := chunk("a.md", 0)
	vector := []result.ChunkResult{shared}
	lexical := []result.ChunkResult{shared}

	fused := fuseRRF(vector, lexical, wVec, wLex, 10)
	if len(fused) != 1 {
		t.Fatalf("expected deduplicated single result, got %d", len(fused))
	}

	want := wVec/61.0 + wLex/61.0
	if !approxEqual(fused[0].Score(), want) {
		t.Errorf("fused score = %v, want %v", fused[0].Score(), want)
	}
}

func TestFuseRRF_DualPresenceBeatsSingleBranch(t *testing.T) {
	shared := chunk("shared.md", 0)
	vectorOnly := chunk("vector-only.md", 0)

	// shared is ranked below vectorOnly in the vector branch but appears in
	// both branches, which should lift it to the top.
	vector := []result.ChunkResult{vectorOnly, shared}
	lexical := []result.ChunkResult{shared}

	fused := fuseRRF(vector, lexical, wVec, wLex, 10)
	if fused[0].ID() != shared.ID() {
		t.Errorf("expected dual-presence hit first, got %s", fused[0].DocumentPath())
	}
}

func TestFuseRRF_BothEmpty(t *testing.T) {
	fused := fuseRRF(nil, nil, wVec, wLex, 10)
	if len(fused) != 0 {
		t.Errorf("expected empty fusion, got %d results", len(fused))
	}
}

func TestFuseRRF_TopKTruncation(t *testing.T) {
	vector := []result.ChunkResult{
		chunk("a.md", 0), chunk("b.md", 0), chunk("c.md", 0), chunk("d.md", 0),
	}

	fused := fuseRRF(vector, nil, wVec, wLex, 2)
	if len(fused) != 2 {
		t.Fatalf("expected topK=2 results, got %d", len(fused))
	}
	if fused[0].DocumentPath() != "a.md" || fused[1].DocumentPath() != "b.md" {
		t.Errorf("expected top ranks preserved, got %s, %s",
			fused[0].DocumentPath(), fused[1].DocumentPath())
	}
}

func TestFuseRRF_TiesBreakByDocumentThenOrdinal(t *testing.T) {
	// Equal weights and mirrored ranks produce identical scores.
	a0 := chunk("a.md", 1)
	b0 := chunk("b.md", 0)

	fused := fuseRRF(
		[]result.ChunkResult{a0, b0},
		[]result.ChunkResult{b0, a0},
		0.5, 0.5, 10,
	)
	if len(fused) != 2 {
		t.Fatalf("expected 2 results, got %d", len(fused))
	}
	if !approxEqual(fused[0].Score(), fused[1].Score()) {
		t.Fatalf("expected tied scores, got %v vs %v", fused[0].Score(), fused[1].Score())
	}
	if fused[0].DocumentPath() != "a.md" {
		t.Errorf("expected a.md first on tie, got %s", fused[0].DocumentPath())
	}
}

func TestFuseRRF_TieWithinDocumentBreaksByOrdinal(t *testing.T) {
	docID := uuid.New()
	c2 := result.New(uuid.New(), docID, "x", 0, "a.md", "T", domain.CategoryDocs, 2)
	c1 := result.New(uuid.New(), docID, "y", 0, "a.md", "T", domain.CategoryDocs, 1)

	fused := fuseRRF(
		[]result.ChunkResult{c2, c1},
		[]result.ChunkResult{c1, c2},
		0.5, 0.5, 10,
	)
	if fused[0].ChunkIndex() != 1 {
		t.Errorf("expected lower ordinal first on tie, got %d", fused[0].ChunkIndex())
	}
}
