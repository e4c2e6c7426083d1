package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/rewireapp/rewire-server/internal/domain"
	"github.com/rewireapp/rewire-server/internal/service"
)

func (s *Server) registerEpisodeRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listEpisodes",
		Method:      http.MethodGet,
		Path:        "/api/v1/episodes",
		Summary:     "List episodes",
		Description: "Returns recorded episodes, most recent first",
		Tags:        []string{"Episodes"},
	}, s.handleListEpisodes)

	huma.Register(s.api, huma.Operation{
		OperationID: "episodeCauses",
		Method:      http.MethodGet,
		Path:        "/api/v1/episodes/causes",
		Summary:     "Episode causes",
		Description: "Returns episode counts per cause, most frequent first",
		Tags:        []string{"Episodes"},
	}, s.handleEpisodeCauses)
}

func (s *Server) registerProfileRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getStats",
		Method:      http.MethodGet,
		Path:        "/api/v1/stats",
		Summary:     "Get stats",
		Description: "Returns longest streak, login and weekly counters",
		Tags:        []string{"Profile"},
	}, s.handleGetStats)

	huma.Register(s.api, huma.Operation{
		OperationID: "getProfile",
		Method:      http.MethodGet,
		Path:        "/api/v1/profile",
		Summary:     "Get profile",
		Description: "Returns the profile summary with progress snapshot",
		Tags:        []string{"Profile"},
	}, s.handleGetProfile)

	huma.Register(s.api, huma.Operation{
		OperationID: "markArticleRead",
		Method:      http.MethodPost,
		Path:        "/api/v1/articles/{id}/read",
		Summary:     "Mark article read",
		Description: "Records an article as read. Repeated calls for the same article are no-ops.",
		Tags:        []string{"Profile"},
	}, s.handleMarkArticleRead)
}

// ListEpisodesInput contains parameters for listing episodes.
type ListEpisodesInput struct {
	Limit int `query:"limit" minimum:"0" maximum:"500" doc:"Maximum episodes to return (default 50)"`
}

// EpisodesResponse is a list of episodes.
type EpisodesResponse struct {
	Episodes []*domain.Episode `json:"episodes"`
}

// EpisodesOutput wraps the episodes response for Huma.
type EpisodesOutput struct {
	Body EpisodesResponse
}

// CausesResponse is the per-cause episode breakdown.
type CausesResponse struct {
	Causes []domain.CauseCount `json:"causes"`
}

// CausesOutput wraps the causes response for Huma.
type CausesOutput struct {
	Body CausesResponse
}

// StatsOutput wraps stats for Huma.
type StatsOutput struct {
	Body *domain.UserStats
}

// ProfileOutput wraps the profile summary for Huma.
type ProfileOutput struct {
	Body service.ProfileSummary
}

// ArticleReadInput identifies the article.
type ArticleReadInput struct {
	ID string `path:"id" doc:"Article slug"`
}

// ArticleReadResponse reports the outcome of marking an article read.
type ArticleReadResponse struct {
	ArticleID         string `json:"article_id"`
	Inserted          bool   `json:"inserted" doc:"False when the article had already been read"`
	TotalArticlesRead int    `json:"total_articles_read"`
}

// ArticleReadOutput wraps the article response for Huma.
type ArticleReadOutput struct {
	Body ArticleReadResponse
}

func (s *Server) handleListEpisodes(ctx context.Context, input *ListEpisodesInput) (*EpisodesOutput, error) {
	return &EpisodesOutput{
		Body: EpisodesResponse{Episodes: s.services.Triggers.ListEpisodes(ctx, input.Limit)},
	}, nil
}

func (s *Server) handleEpisodeCauses(ctx context.Context, _ *struct{}) (*CausesOutput, error) {
	return &CausesOutput{
		Body: CausesResponse{Causes: s.services.Triggers.CauseBreakdown(ctx)},
	}, nil
}

func (s *Server) handleGetStats(ctx context.Context, _ *struct{}) (*StatsOutput, error) {
	return &StatsOutput{Body: s.services.Sessions.GetStats(ctx)}, nil
}

func (s *Server) handleGetProfile(ctx context.Context, _ *struct{}) (*ProfileOutput, error) {
	return &ProfileOutput{Body: s.services.Profile.Profile(ctx)}, nil
}

func (s *Server) handleMarkArticleRead(ctx context.Context, input *ArticleReadInput) (*ArticleReadOutput, error) {
	inserted, err := s.services.Profile.MarkArticleRead(ctx, input.ID)
	if err != nil {
		return nil, toHumaError(err)
	}
	return &ArticleReadOutput{
		Body: ArticleReadResponse{
			ArticleID:         input.ID,
			Inserted:          inserted,
			TotalArticlesRead: s.services.Profile.TotalArticlesRead(ctx),
		},
	}, nil
}
