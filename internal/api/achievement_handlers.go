package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/rewireapp/rewire-server/internal/domain"
)

func (s *Server) registerAchievementRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listAchievements",
		Method:      http.MethodGet,
		Path:        "/api/v1/achievements",
		Summary:     "List achievements",
		Description: "Returns the achievement catalog with progress, optionally only unlocked entries",
		Tags:        []string{"Achievements"},
	}, s.handleListAchievements)

	huma.Register(s.api, huma.Operation{
		OperationID: "checkAchievements",
		Method:      http.MethodPost,
		Path:        "/api/v1/achievements/check",
		Summary:     "Check achievements",
		Description: "Evaluates the current progress snapshot and returns anything newly unlocked",
		Tags:        []string{"Achievements"},
	}, s.handleCheckAchievements)

	huma.Register(s.api, huma.Operation{
		OperationID: "showAchievementOverlay",
		Method:      http.MethodPost,
		Path:        "/api/v1/achievements/{id}/overlay",
		Summary:     "Show overlay",
		Description: "Shows the unlock overlay for an achievement immediately",
		Tags:        []string{"Achievements"},
	}, s.handleShowOverlay)

	huma.Register(s.api, huma.Operation{
		OperationID:   "hideAchievementOverlay",
		Method:        http.MethodDelete,
		Path:          "/api/v1/achievements/overlay",
		Summary:       "Hide overlay",
		Description:   "Dismisses the unlock overlay",
		Tags:          []string{"Achievements"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleHideOverlay)
}

// registerTestRoutes adds the manual unlock and reset routes. They are only
// mounted outside production.
func (s *Server) registerTestRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "unlockNextAchievement",
		Method:      http.MethodPost,
		Path:        "/api/v1/achievements/unlock-next",
		Summary:     "Unlock next achievement",
		Description: "Unlocks the first locked achievement in catalog order (testing only)",
		Tags:        []string{"Achievements"},
	}, s.handleUnlockNext)

	huma.Register(s.api, huma.Operation{
		OperationID: "resetAchievements",
		Method:      http.MethodPost,
		Path:        "/api/v1/achievements/reset",
		Summary:     "Reset achievements",
		Description: "Locks every achievement again (testing only)",
		Tags:        []string{"Achievements"},
	}, s.handleResetAchievements)
}

// ListAchievementsInput filters the catalog.
type ListAchievementsInput struct {
	Unlocked bool `query:"unlocked" doc:"Only return unlocked achievements"`
}

// AchievementsResponse is a list of achievements.
type AchievementsResponse struct {
	Achievements []domain.Achievement `json:"achievements"`
}

// AchievementsOutput wraps the achievements response for Huma.
type AchievementsOutput struct {
	Body AchievementsResponse
}

// CheckAchievementsResponse is the result of an unlock pass.
type CheckAchievementsResponse struct {
	Snapshot domain.ProgressSnapshot `json:"snapshot"`
	Unlocked []domain.Achievement    `json:"unlocked"`
}

// CheckAchievementsOutput wraps the check response for Huma.
type CheckAchievementsOutput struct {
	Body CheckAchievementsResponse
}

// AchievementOutput wraps a single achievement for Huma.
type AchievementOutput struct {
	Body domain.Achievement
}

// AchievementIDInput identifies an achievement.
type AchievementIDInput struct {
	ID string `path:"id" doc:"Achievement ID"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// MessageOutput wraps a message for Huma.
type MessageOutput struct {
	Body MessageResponse
}

func (s *Server) handleListAchievements(ctx context.Context, input *ListAchievementsInput) (*AchievementsOutput, error) {
	var list []domain.Achievement
	if input.Unlocked {
		list = s.services.Achievements.UnlockedAchievements(ctx)
	} else {
		list = s.services.Achievements.Achievements(ctx)
	}
	return &AchievementsOutput{Body: AchievementsResponse{Achievements: list}}, nil
}

func (s *Server) handleCheckAchievements(ctx context.Context, _ *struct{}) (*CheckAchievementsOutput, error) {
	snapshot := s.services.Profile.Snapshot(ctx)
	unlocked := s.services.Achievements.CheckAndUnlockAchievements(ctx, snapshot)
	if unlocked == nil {
		unlocked = []domain.Achievement{}
	}
	return &CheckAchievementsOutput{
		Body: CheckAchievementsResponse{Snapshot: snapshot, Unlocked: unlocked},
	}, nil
}

func (s *Server) handleShowOverlay(ctx context.Context, input *AchievementIDInput) (*MessageOutput, error) {
	if err := s.services.Achievements.ShowAchievementOverlay(ctx, input.ID); err != nil {
		return nil, toHumaError(err)
	}
	return &MessageOutput{Body: MessageResponse{Message: "overlay shown"}}, nil
}

func (s *Server) handleHideOverlay(_ context.Context, _ *struct{}) (*struct{}, error) {
	s.services.Achievements.HideAchievementOverlay()
	return nil, nil
}

func (s *Server) handleUnlockNext(ctx context.Context, _ *struct{}) (*AchievementOutput, error) {
	a, err := s.services.Achievements.UnlockNextAchievement(ctx)
	if err != nil {
		return nil, toHumaError(err)
	}
	return &AchievementOutput{Body: a}, nil
}

func (s *Server) handleResetAchievements(ctx context.Context, _ *struct{}) (*MessageOutput, error) {
	s.services.Achievements.ResetAllAchievements(ctx)
	return &MessageOutput{Body: MessageResponse{Message: "achievements reset"}}, nil
}
