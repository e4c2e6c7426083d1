package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/rewireapp/rewire-server/internal/api"
	"github.com/rewireapp/rewire-server/internal/config"
	"github.com/rewireapp/rewire-server/internal/logger"
	"github.com/rewireapp/rewire-server/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	handler *api.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	defer h.handler.Close()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server and starts listening.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	remote := do.MustInvoke[*RemoteStoreHandle](i)
	cache := do.MustInvoke[*CacheHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	achievements := do.MustInvoke[*AchievementServiceHandle](i)
	poller := do.MustInvoke[*StreakPollerHandle](i)

	services := &api.Services{
		Sessions:     do.MustInvoke[*service.SessionService](i),
		Achievements: achievements.AchievementService,
		Triggers:     do.MustInvoke[*service.TriggerService](i),
		Profile:      do.MustInvoke[*service.ProfileService](i),
		Overlay:      do.MustInvoke[*service.Overlay](i),
		Streak:       poller.Poller,
	}

	handler := api.NewServer(services, api.HealthChecks{
		Remote: remote.RemoteStore,
		Cache:  cache.Cache,
	}, sseHandle.Manager, api.Options{
		CORSOrigins:      cfg.Server.CORSOrigins,
		RateLimitPerMin:  cfg.Server.RateLimitPerMin,
		RateLimitBurst:   cfg.Server.RateLimitBurst,
		EnableTestRoutes: cfg.Server.EnableTestRoutes,
	}, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	if cfg.Server.EnableTestRoutes {
		log.Warn("Test routes enabled", "routes", []string{"/api/v1/achievements/unlock-next", "/api/v1/achievements/reset"})
	}

	return &HTTPServerHandle{Server: srv, handler: handler}, nil
}
