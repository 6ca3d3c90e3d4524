// Package mcp exposes the search service as Model Context Protocol tools over
// stdio, so coding agents can query a corpus without the HTTP API.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fraim-dev/contextd/internal/domain"
	"github.com/fraim-dev/contextd/internal/domain/search/request"
	"github.com/fraim-dev/contextd/internal/domain/search/result"
	deepuc "github.com/fraim-dev/contextd/internal/usecase/deep"
)

// Searcher runs the fast search path.
type Searcher interface {
	Search(ctx context.Context, req request.Request) (result.Response, error)
}

// DeepSearcher runs the multi-round deep path.
type DeepSearcher interface {
	DeepSearch(ctx context.Context, slug, query string, onProgress deepuc.ProgressFunc) (result.Bundle, error)
}

// SearchArgs are the arguments of the search tool.
type SearchArgs struct {
	Query       string `json:"query"`
	Project     string `json:"project"`
	TopK        int    `json:"top_k,omitempty"`
	Category    string `json:"category,omitempty"`
	UseReranker bool   `json:"use_reranker,omitempty"`
}

// DeepSearchArgs are the arguments of the deep_search tool.
type DeepSearchArgs struct {
	Query   string `json:"query"`
	Project string `json:"project"`
}

// ChunkResult is one search hit in tool output.
type ChunkResult struct {
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	DocumentPath  string  `json:"document_path"`
	DocumentTitle string  `json:"document_title,omitempty"`
	Category      string  `json:"category"`
	ChunkIndex    int     `json:"chunk_index"`
}

// SearchOutput is the structured result of the search tool.
type SearchOutput struct {
	Results       []ChunkResult `json:"results"`
	TotalFound    int           `json:"total_found"`
	CacheHit      bool          `json:"cache_hit"`
	CorpusVersion int64         `json:"corpus_version"`
}

// DeepSearchOutput is the structured result of the deep_search tool.
type DeepSearchOutput struct {
	Results       []ChunkResult `json:"results"`
	Rounds        int           `json:"rounds"`
	CorpusVersion int64         `json:"corpus_version"`
}

// Server wires the search tools into an MCP server.
type Server struct {
	search Searcher
	deep   DeepSearcher
	logger *zap.Logger
}

// NewServer creates the MCP tool server.
func NewServer(search Searcher, deep DeepSearcher, logger *zap.Logger) *Server {
	return &Server{search: search, deep: deep, logger: logger}
}

// Build registers the tools on a fresh MCP server instance.
func (s *Server) Build(name, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name: "search",
		Description: "Semantic search over a project corpus. Returns the most " +
			"relevant documentation chunks for a natural-language query.",
	}, s.handleSearch)

	mcp.AddTool(server, &mcp.Tool{
		Name: "deep_search",
		Description: "Multi-round context gathering across all context domains " +
			"(api, docs, references, process). Slower than search but assembles " +
			"a broader bundle.",
	}, s.handleDeepSearch)

	return server
}

// Run serves the tools over stdio until the context ends.
func (s *Server) Run(ctx context.Context, name, version string) error {
	server := s.Build(name, version)
	s.logger.Info("Starting MCP server", zap.String("name", name))
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

func (s *Server) handleSearch(
	ctx context.Context, _ *mcp.CallToolRequest, args SearchArgs,
) (*mcp.CallToolResult, SearchOutput, error) {
	req, err := request.New(args.Query, args.Project, args.TopK,
		domain.Category(args.Category), args.UseReranker)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	resp, err := s.search.Search(ctx, req)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	return nil, SearchOutput{
		Results:       chunksToOutput(resp.Results),
		TotalFound:    resp.TotalFound,
		CacheHit:      resp.CacheHit,
		CorpusVersion: resp.CorpusVersion,
	}, nil
}

func (s *Server) handleDeepSearch(
	ctx context.Context, req *mcp.CallToolRequest, args DeepSearchArgs,
) (*mcp.CallToolResult, DeepSearchOutput, error) {
	if args.Query == "" || args.Project == "" {
		return nil, DeepSearchOutput{}, fmt.Errorf("%w: query and project are required", domain.ErrInvalidRequest)
	}

	onProgress := progressNotifier(ctx, req)

	bundle, err := s.deep.DeepSearch(ctx, args.Project, args.Query, onProgress)
	if err != nil {
		return nil, DeepSearchOutput{}, err
	}

	return nil, DeepSearchOutput{
		Results:       chunksToOutput(bundle.Results),
		Rounds:        bundle.Rounds,
		CorpusVersion: bundle.CorpusVersion,
	}, nil
}

// progressNotifier forwards round events as MCP progress notifications when
// the client asked for them by sending a progress token.
func progressNotifier(ctx context.Context, req *mcp.CallToolRequest) deepuc.ProgressFunc {
	if req == nil || req.Session == nil {
		return nil
	}
	token := req.Params.GetProgressToken()
	if token == nil {
		return nil
	}

	return func(p deepuc.Progress) {
		_ = req.Session.NotifyProgress(ctx, &mcp.ProgressNotificationParams{
			ProgressToken: token,
			Progress:      float64(p.Round),
			Total:         float64(deepuc.DefaultMaxRounds),
			Message:       fmt.Sprintf("round %d: %d chunks gathered", p.Round, p.ChunkCount),
		})
	}
}

func chunksToOutput(results []result.ChunkResult) []ChunkResult {
	out := make([]ChunkResult, len(results))
	for i := range results {
		r := &results[i]
		out[i] = ChunkResult{
			Content:       r.Content(),
			Score:         r.Score(),
			DocumentPath:  r.DocumentPath(),
			DocumentTitle: r.DocumentTitle(),
			Category:      r.Category().String(),
			ChunkIndex:    r.ChunkIndex(),
		}
	}
	return out
}
