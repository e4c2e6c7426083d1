package providers

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"

	"github.com/rewireapp/rewire-server/internal/config"
	"github.com/rewireapp/rewire-server/internal/logger"
	"github.com/rewireapp/rewire-server/internal/sse"
	"github.com/rewireapp/rewire-server/internal/store"
	"github.com/rewireapp/rewire-server/internal/store/local"
	"github.com/rewireapp/rewire-server/internal/store/rest"
	"github.com/rewireapp/rewire-server/internal/store/sqlite"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// RemoteStoreHandle wraps the remote store with shutdown capability.
type RemoteStoreHandle struct {
	store.RemoteStore
}

// Shutdown implements do.Shutdownable.
func (h *RemoteStoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideRemoteStore opens the configured remote backend.
func ProvideRemoteStore(i do.Injector) (*RemoteStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	switch cfg.Remote.Backend {
	case config.BackendREST:
		client, err := rest.New(rest.Options{
			BaseURL:           cfg.Remote.URL,
			APIKey:            cfg.Remote.APIKey,
			Timeout:           cfg.Remote.Timeout,
			RequestsPerSecond: cfg.Remote.RequestsPerSecond,
			Burst:             cfg.Remote.Burst,
		}, log.Logger)
		if err != nil {
			return nil, fmt.Errorf("create rest remote: %w", err)
		}

		// An unreachable remote is not fatal; the engine runs offline until it comes back.
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Remote.Timeout)
		defer cancel()
		if err := client.Ping(ctx); err != nil {
			log.Warn("Remote store unreachable at startup", "url", cfg.Remote.URL, "error", err)
		}

		log.Info("Remote store ready", "backend", cfg.Remote.Backend, "url", cfg.Remote.URL)
		return &RemoteStoreHandle{RemoteStore: client}, nil

	default:
		path := cfg.Data.DatabasePath()
		db, err := sqlite.Open(path, log.Logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite remote: %w", err)
		}
		log.Info("Remote store ready", "backend", config.BackendSQLite, "path", path)
		return &RemoteStoreHandle{RemoteStore: db}, nil
	}
}

// CacheHandle wraps the local cache with shutdown capability.
type CacheHandle struct {
	*local.Cache
}

// Shutdown implements do.Shutdownable.
func (h *CacheHandle) Shutdown() error {
	return h.Close()
}

// ProvideCache opens the device-local cache.
func ProvideCache(i do.Injector) (*CacheHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	path := cfg.Data.CachePath()
	cache, err := local.Open(path, log.Logger)
	if err != nil {
		return nil, fmt.Errorf("open local cache: %w", err)
	}

	log.Info("Local cache initialized", "path", path)
	return &CacheHandle{Cache: cache}, nil
}
