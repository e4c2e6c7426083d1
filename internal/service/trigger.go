package service

import (
	"context"
	"log/slog"

	"github.com/rewireapp/rewire-server/internal/clock"
	"github.com/rewireapp/rewire-server/internal/domain"
	domainerrors "github.com/rewireapp/rewire-server/internal/errors"
	"github.com/rewireapp/rewire-server/internal/id"
	"github.com/rewireapp/rewire-server/internal/store"
	"github.com/rewireapp/rewire-server/internal/validation"
)

// defaultEpisodeLimit caps episode listings when no limit is given.
const defaultEpisodeLimit = 50

// RecordTriggerRequest contains the data for logging an episode.
type RecordTriggerRequest struct {
	Cause string `json:"cause,omitempty" validate:"max=64" doc:"Free-form cause, normalised to a tag"`
	Notes string `json:"notes,omitempty" validate:"max=500" doc:"Optional notes"`
}

// RecordTriggerResponse contains the stored episode and the restarted session.
type RecordTriggerResponse struct {
	Episode *domain.Episode     `json:"episode"`
	Session *domain.UserSession `json:"session"`
	Saved   bool                `json:"saved"` // false when the episode only lives in the response
}

// TriggerService records episodes (streak-breaking events) and their causes.
type TriggerService struct {
	sessions  *SessionService
	episodes  store.EpisodeStore
	validator *validation.Validator
	clock     clock.Clock
	logger    *slog.Logger
}

// NewTriggerService creates a new trigger service.
func NewTriggerService(
	sessions *SessionService,
	episodes store.EpisodeStore,
	validator *validation.Validator,
	clk clock.Clock,
	logger *slog.Logger,
) *TriggerService {
	return &TriggerService{
		sessions:  sessions,
		episodes:  episodes,
		validator: validator,
		clock:     clk,
		logger:    logger,
	}
}

// RecordTrigger logs an episode: the streak is reset, the episode is stored
// with the length of the streak it ended, and today is marked as not clean.
func (s *TriggerService) RecordTrigger(ctx context.Context, req RecordTriggerRequest) (*RecordTriggerResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	episodeID, err := id.Generate(id.PrefixEpisode)
	if err != nil {
		return nil, domainerrors.Internal("failed to generate episode id").WithCause(err)
	}

	cause := domain.NormalizeCause(req.Cause)
	reset := s.sessions.ResetSession(ctx, cause)
	userID := s.sessions.CurrentUserID(ctx)
	now := s.clock.Now()

	episode := &domain.Episode{
		ID:            episodeID,
		UserID:        userID,
		Cause:         cause,
		Notes:         req.Notes,
		StreakSeconds: reset.CompletedSeconds,
		OccurredAt:    now,
	}

	saved := true
	if err := s.episodes.CreateEpisode(ctx, episode); err != nil {
		saved = false
		logRemoteFailure(s.logger, "create episode", userID, err)
	}

	s.sessions.UpdateSuccessfulDaysTracking(ctx, domain.DateOf(now), true)

	return &RecordTriggerResponse{
		Episode: episode,
		Session: reset.Session,
		Saved:   saved,
	}, nil
}

// ListEpisodes returns the most recent episodes, newest first.
// A non-positive limit uses the default. Store failures yield an empty list.
func (s *TriggerService) ListEpisodes(ctx context.Context, limit int) []*domain.Episode {
	if limit <= 0 {
		limit = defaultEpisodeLimit
	}
	userID := s.sessions.CurrentUserID(ctx)

	episodes, err := s.episodes.ListEpisodes(ctx, userID, limit)
	if err != nil {
		logRemoteFailure(s.logger, "list episodes", userID, err)
		return []*domain.Episode{}
	}
	if episodes == nil {
		episodes = []*domain.Episode{}
	}
	return episodes
}

// CauseBreakdown counts episodes per cause, most frequent first.
func (s *TriggerService) CauseBreakdown(ctx context.Context) []domain.CauseCount {
	userID := s.sessions.CurrentUserID(ctx)

	counts, err := s.episodes.CountEpisodesByCause(ctx, userID)
	if err != nil {
		logRemoteFailure(s.logger, "count episodes", userID, err)
		return []domain.CauseCount{}
	}
	if counts == nil {
		counts = []domain.CauseCount{}
	}
	return counts
}
