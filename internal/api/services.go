package api

import (
	"github.com/rewireapp/rewire-server/internal/service"
	"github.com/rewireapp/rewire-server/internal/streak"
)

// Services groups the business services used by the API server.
type Services struct {
	Sessions     *service.SessionService
	Achievements *service.AchievementService
	Triggers     *service.TriggerService
	Profile      *service.ProfileService
	Overlay      *service.Overlay
	Streak       *streak.Poller
}
