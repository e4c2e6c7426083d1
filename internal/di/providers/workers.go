package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/rewireapp/rewire-server/internal/config"
	"github.com/rewireapp/rewire-server/internal/logger"
	"github.com/rewireapp/rewire-server/internal/service"
	"github.com/rewireapp/rewire-server/internal/streak"
)

// StreakPollerHandle wraps the streak poller with shutdown capability.
type StreakPollerHandle struct {
	*streak.Poller
}

// Shutdown implements do.Shutdownable. Pending write-backs get a bounded
// window to finish.
func (h *StreakPollerHandle) Shutdown() error {
	return h.Poller.Shutdown()
}

// ProvideStreakPoller provides the 1 Hz streak poller and starts it.
func ProvideStreakPoller(i do.Injector) (*StreakPollerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	sessions := do.MustInvoke[*service.SessionService](i)
	achievements := do.MustInvoke[*AchievementServiceHandle](i)
	profile := do.MustInvoke[*service.ProfileService](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	poller := streak.New(sessions, achievements.AchievementService, profile, sseHandle.Manager, streak.Options{
		TickInterval:   cfg.Streak.TickInterval,
		WriteBackEvery: cfg.Streak.WriteBackSeconds,
		LongestEvery:   cfg.Streak.LongestSeconds,
	}, log.Logger)

	// Loading the achievements before the first tick keeps the seed write off the hot path.
	achievements.Load(context.Background())

	if err := poller.Start(context.Background()); err != nil {
		return nil, err
	}

	return &StreakPollerHandle{Poller: poller}, nil
}
