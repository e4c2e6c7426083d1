package providers

import (
	"github.com/samber/do/v2"

	"github.com/rewireapp/rewire-server/internal/clock"
	"github.com/rewireapp/rewire-server/internal/config"
	"github.com/rewireapp/rewire-server/internal/logger"
	"github.com/rewireapp/rewire-server/internal/service"
	"github.com/rewireapp/rewire-server/internal/validation"
)

// ProvideSessionService provides the streak session service.
func ProvideSessionService(i do.Injector) (*service.SessionService, error) {
	remote := do.MustInvoke[*RemoteStoreHandle](i)
	cache := do.MustInvoke[*CacheHandle](i)
	clk := do.MustInvoke[clock.Clock](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSessionService(remote.RemoteStore, cache.Cache, clk, sseHandle.Manager, log.Logger), nil
}

// ProvideOverlay provides the achievement overlay presenter.
func ProvideOverlay(i do.Injector) (*service.Overlay, error) {
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewOverlay(sseHandle.Manager, log.Logger), nil
}

// AchievementServiceHandle wraps the achievement service with shutdown capability.
type AchievementServiceHandle struct {
	*service.AchievementService
}

// Shutdown implements do.Shutdownable.
func (h *AchievementServiceHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideAchievementService provides the achievement state machine.
func ProvideAchievementService(i do.Injector) (*AchievementServiceHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	remote := do.MustInvoke[*RemoteStoreHandle](i)
	cache := do.MustInvoke[*CacheHandle](i)
	sessions := do.MustInvoke[*service.SessionService](i)
	overlay := do.MustInvoke[*service.Overlay](i)
	clk := do.MustInvoke[clock.Clock](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	svc := service.NewAchievementService(
		remote.RemoteStore,
		cache.Cache,
		sessions,
		overlay,
		clk,
		sseHandle.Manager,
		cfg.Streak.UnlockDisplayDelay,
		log.Logger,
	)
	return &AchievementServiceHandle{AchievementService: svc}, nil
}

// ProvideTriggerService provides the episode service.
func ProvideTriggerService(i do.Injector) (*service.TriggerService, error) {
	sessions := do.MustInvoke[*service.SessionService](i)
	remote := do.MustInvoke[*RemoteStoreHandle](i)
	v := do.MustInvoke[*validation.Validator](i)
	clk := do.MustInvoke[clock.Clock](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewTriggerService(sessions, remote.RemoteStore, v, clk, log.Logger), nil
}

// ProvideProfileService provides the profile and progress snapshot service.
func ProvideProfileService(i do.Injector) (*service.ProfileService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	sessions := do.MustInvoke[*service.SessionService](i)
	achievements := do.MustInvoke[*AchievementServiceHandle](i)
	remote := do.MustInvoke[*RemoteStoreHandle](i)
	v := do.MustInvoke[*validation.Validator](i)
	clk := do.MustInvoke[clock.Clock](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewProfileService(
		sessions,
		achievements.AchievementService,
		remote.RemoteStore,
		v,
		clk,
		cfg.Streak.RewiringTargetDays,
		log.Logger,
	), nil
}
