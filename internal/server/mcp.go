package server

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/spigell/hh-pathfinder/internal/profile"
	"github.com/spigell/hh-pathfinder/internal/recommend"
)

// RecommendParams are the arguments of recommend_vacancies. Zero numeric
// values take the server defaults.
type RecommendParams struct {
	Query        string            `json:"query,omitempty" jsonschema:"Free-text description of the candidate or the wanted position"`
	History      []profile.Message `json:"history,omitempty" jsonschema:"Chat history to build the candidate profile from"`
	TopK         int               `json:"top_k,omitempty" jsonschema:"Number of vacancies to return"`
	TopCareer    int               `json:"top_career,omitempty" jsonschema:"Adjacent positions to follow per skill"`
	MinSkillFreq int               `json:"min_skill_freq,omitempty" jsonschema:"Minimum occurrences for a skill to be suggested"`
	TopSkills    int               `json:"top_skills,omitempty" jsonschema:"Maximum number of suggested skills"`
	Filters      map[string]string `json:"filters,omitempty" jsonschema:"Exact attribute filters such as company or experience"`
}

// SearchParams are the arguments of search_vacancies.
type SearchParams struct {
	Keywords []string `json:"keywords" jsonschema:"Keywords to look for"`
	TopK     int      `json:"top_k,omitempty" jsonschema:"Number of vacancies to return"`
}

type searchOutput struct {
	Hits []recommend.Hit `json:"hits"`
}

func (s *Server) newMCPServer() *sdkmcp.Server {
	impl := &sdkmcp.Implementation{
		Name:    "hh-pathfinder",
		Version: s.opts.Version,
	}
	server := sdkmcp.NewServer(impl, nil)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "recommend_vacancies",
		Description: "Recommend hh.ru vacancies for a candidate, with adjacent career paths and skills worth learning",
	}, s.recommendTool)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "search_vacancies",
		Description: "Find hh.ru vacancies by keywords",
	}, s.searchTool)

	return server
}

func (s *Server) recommendTool(ctx context.Context, _ *sdkmcp.CallToolRequest, params RecommendParams) (*sdkmcp.CallToolResult, recommend.Result, error) {
	opts := s.opts.Defaults
	if params.TopK > 0 {
		opts.TopK = params.TopK
	}
	if params.TopCareer > 0 {
		opts.TopCareer = params.TopCareer
	}
	if params.MinSkillFreq > 0 {
		opts.MinSkillFreq = params.MinSkillFreq
	}
	if params.TopSkills > 0 {
		opts.TopSkills = params.TopSkills
	}
	opts.Filters = params.Filters

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	text, _ := s.queryText(ctx, params.Query, params.History, nil)
	res, err := s.holder.Recommend(ctx, text, opts)
	if err != nil {
		return nil, recommend.Result{}, err
	}
	return nil, *res, nil
}

func (s *Server) searchTool(ctx context.Context, _ *sdkmcp.CallToolRequest, params SearchParams) (*sdkmcp.CallToolResult, searchOutput, error) {
	k := params.TopK
	if k <= 0 {
		k = s.opts.Defaults.TopK
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	hits, err := s.holder.SearchKeywords(ctx, params.Keywords, k)
	if err != nil {
		return nil, searchOutput{}, err
	}
	return nil, searchOutput{Hits: hits}, nil
}
