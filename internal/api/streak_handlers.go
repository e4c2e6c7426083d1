package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/rewireapp/rewire-server/internal/domain"
	domainerrors "github.com/rewireapp/rewire-server/internal/errors"
	"github.com/rewireapp/rewire-server/internal/service"
)

func (s *Server) registerSessionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getSession",
		Method:      http.MethodGet,
		Path:        "/api/v1/session",
		Summary:     "Get session",
		Description: "Returns the streak session, re-read from the remote store when reachable",
		Tags:        []string{"Session"},
	}, s.handleGetSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "startSession",
		Method:      http.MethodPost,
		Path:        "/api/v1/session/start",
		Summary:     "Start session",
		Description: "Creates the session on first run and records today's login. Falls back to an offline session when the remote store is unreachable.",
		Tags:        []string{"Session"},
	}, s.handleStartSession)
}

func (s *Server) registerStreakRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getStreak",
		Method:      http.MethodGet,
		Path:        "/api/v1/streak",
		Summary:     "Get streak",
		Description: "Returns the elapsed streak derived from the stored start time",
		Tags:        []string{"Streak"},
	}, s.handleGetStreak)

	huma.Register(s.api, huma.Operation{
		OperationID: "refreshStreak",
		Method:      http.MethodPost,
		Path:        "/api/v1/streak/refresh",
		Summary:     "Refresh streak",
		Description: "Reloads the streak anchor from the remote store",
		Tags:        []string{"Streak"},
	}, s.handleRefreshStreak)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateStreakStartTime",
		Method:      http.MethodPut,
		Path:        "/api/v1/streak/start-time",
		Summary:     "Update streak start time",
		Description: "Moves the streak start. Future times are clamped to now.",
		Tags:        []string{"Streak"},
	}, s.handleUpdateStreakStartTime)

	huma.Register(s.api, huma.Operation{
		OperationID: "syncStreak",
		Method:      http.MethodPost,
		Path:        "/api/v1/streak/sync",
		Summary:     "Sync streak",
		Description: "Writes the current elapsed value back to the remote store immediately",
		Tags:        []string{"Streak"},
	}, s.handleSyncStreak)

	huma.Register(s.api, huma.Operation{
		OperationID:   "resetStreak",
		Method:        http.MethodPost,
		Path:          "/api/v1/streak/reset",
		Summary:       "Reset streak",
		Description:   "Records an episode with its cause and starts a new streak",
		Tags:          []string{"Streak"},
		DefaultStatus: http.StatusCreated,
	}, s.handleResetStreak)
}

// SessionOutput wraps a session for Huma.
type SessionOutput struct {
	Body *domain.UserSession
}

// StreakResponse is the live streak.
type StreakResponse struct {
	ElapsedSeconds int64                  `json:"elapsed_seconds" doc:"Seconds since the streak started"`
	Breakdown      domain.StreakBreakdown `json:"breakdown" doc:"Elapsed time split into days, hours, minutes and seconds"`
	StartTime      *time.Time             `json:"start_time,omitempty" doc:"When the streak started"`
	Offline        bool                   `json:"offline" doc:"True while running on a synthetic offline session"`
}

// StreakOutput wraps the streak response for Huma.
type StreakOutput struct {
	Body StreakResponse
}

// UpdateStartTimeRequest is the body of PUT /streak/start-time.
type UpdateStartTimeRequest struct {
	StartTime time.Time `json:"start_time" doc:"New streak start (RFC 3339)"`
}

// UpdateStartTimeInput wraps the start-time request for Huma.
type UpdateStartTimeInput struct {
	Body UpdateStartTimeRequest
}

// ResetStreakInput wraps the reset request for Huma.
type ResetStreakInput struct {
	Body service.RecordTriggerRequest
}

// ResetStreakOutput wraps the reset response for Huma.
type ResetStreakOutput struct {
	Body *service.RecordTriggerResponse
}

func (s *Server) handleGetSession(ctx context.Context, _ *struct{}) (*SessionOutput, error) {
	sess := s.services.Sessions.GetCurrentSession(ctx)
	if sess == nil {
		sess = s.services.Sessions.CachedSession()
	}
	if sess == nil {
		return nil, domainerrors.NotFound("no session has been started")
	}
	return &SessionOutput{Body: sess}, nil
}

func (s *Server) handleStartSession(ctx context.Context, _ *struct{}) (*SessionOutput, error) {
	sess := s.services.Sessions.StartSession(ctx)
	if s.services.Streak != nil {
		s.services.Streak.RefreshStreakData(ctx)
	}
	return &SessionOutput{Body: sess}, nil
}

func (s *Server) handleGetStreak(ctx context.Context, _ *struct{}) (*StreakOutput, error) {
	return &StreakOutput{Body: s.streakResponse(s.services.Sessions.GetCurrentStreakSeconds(ctx))}, nil
}

func (s *Server) handleRefreshStreak(ctx context.Context, _ *struct{}) (*StreakOutput, error) {
	var elapsed int64
	if s.services.Streak != nil {
		elapsed = s.services.Streak.RefreshStreakData(ctx)
	} else {
		elapsed = s.services.Sessions.Refresh(ctx)
	}
	return &StreakOutput{Body: s.streakResponse(elapsed)}, nil
}

func (s *Server) handleUpdateStreakStartTime(ctx context.Context, input *UpdateStartTimeInput) (*StreakOutput, error) {
	if input.Body.StartTime.IsZero() {
		return nil, domainerrors.ValidationWithDetails("Validation failed", map[string]string{
			"start_time": "start_time is required",
		})
	}

	var err error
	if s.services.Streak != nil {
		_, err = s.services.Streak.UpdateStreakStartTime(ctx, input.Body.StartTime)
	} else {
		_, err = s.services.Sessions.UpdateStreakStartTime(ctx, input.Body.StartTime)
	}
	if err != nil {
		return nil, toHumaError(err)
	}
	return &StreakOutput{Body: s.streakResponse(s.services.Sessions.GetCurrentStreakSeconds(ctx))}, nil
}

func (s *Server) handleSyncStreak(ctx context.Context, _ *struct{}) (*StreakOutput, error) {
	var elapsed int64
	if s.services.Streak != nil {
		elapsed = s.services.Streak.UpdateCurrentStreak(ctx)
	} else {
		elapsed = s.services.Sessions.GetCurrentStreakSeconds(ctx)
		s.services.Sessions.UpdateSession(ctx, elapsed)
	}
	return &StreakOutput{Body: s.streakResponse(elapsed)}, nil
}

func (s *Server) handleResetStreak(ctx context.Context, input *ResetStreakInput) (*ResetStreakOutput, error) {
	resp, err := s.services.Triggers.RecordTrigger(ctx, input.Body)
	if err != nil {
		return nil, toHumaError(err)
	}
	if s.services.Streak != nil {
		s.services.Streak.RefreshStreakData(ctx)
	}
	return &ResetStreakOutput{Body: resp}, nil
}

func (s *Server) streakResponse(elapsed int64) StreakResponse {
	resp := StreakResponse{
		ElapsedSeconds: elapsed,
		Breakdown:      domain.BreakdownSeconds(elapsed),
	}
	if sess := s.services.Sessions.CachedSession(); sess != nil {
		start := sess.StartTime
		resp.StartTime = &start
		resp.Offline = sess.Offline
	}
	return resp
}
