// Package di provides dependency injection configuration for the Rewire server.
package di

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/rewireapp/rewire-server/internal/clock"
	"github.com/rewireapp/rewire-server/internal/config"
	"github.com/rewireapp/rewire-server/internal/di/providers"
	"github.com/rewireapp/rewire-server/internal/logger"
	"github.com/rewireapp/rewire-server/internal/service"
	"github.com/rewireapp/rewire-server/internal/validation"
)

// bootTimeout bounds the first remote session load.
const bootTimeout = 15 * time.Second

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSlogLogger)
	do.Provide(injector, providers.ProvideClock)
	do.Provide(injector, providers.ProvideValidator)

	// Storage layer
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideRemoteStore)
	do.Provide(injector, providers.ProvideCache)

	// Business services
	do.Provide(injector, providers.ProvideSessionService)
	do.Provide(injector, providers.ProvideOverlay)
	do.Provide(injector, providers.ProvideAchievementService)
	do.Provide(injector, providers.ProvideTriggerService)
	do.Provide(injector, providers.ProvideProfileService)

	// Workers
	do.Provide(injector, providers.ProvideStreakPoller)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services in dependency order.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[clock.Clock](injector)
	_ = do.MustInvoke[*validation.Validator](injector)

	if _, err := do.Invoke[*providers.SSEManagerHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.RemoteStoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.CacheHandle](injector); err != nil {
		return err
	}

	// Business services
	sessions := do.MustInvoke[*service.SessionService](injector)
	_ = do.MustInvoke[*service.Overlay](injector)
	_ = do.MustInvoke[*providers.AchievementServiceHandle](injector)
	_ = do.MustInvoke[*service.TriggerService](injector)
	_ = do.MustInvoke[*service.ProfileService](injector)

	// The session is started before the poller's first refresh so a fresh
	// install gets its anchor at boot.
	log := do.MustInvoke[*logger.Logger](injector)
	ctx, cancel := context.WithTimeout(context.Background(), bootTimeout)
	defer cancel()
	sess := sessions.StartSession(ctx)
	log.WithUser(sess.UserID).Info("Session ready",
		"start_time", sess.StartTime,
		"offline", sess.Offline,
	)

	// Workers
	if _, err := do.Invoke[*providers.StreakPollerHandle](injector); err != nil {
		return err
	}

	// Server
	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return err
	}

	return nil
}
