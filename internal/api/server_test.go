package api

import (
	"context"
	"encoding/json/v2"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/require"

	"github.com/rewireapp/rewire-server/internal/clock"
	"github.com/rewireapp/rewire-server/internal/domain"
	"github.com/rewireapp/rewire-server/internal/service"
	"github.com/rewireapp/rewire-server/internal/sse"
	"github.com/rewireapp/rewire-server/internal/store"
	"github.com/rewireapp/rewire-server/internal/store/local"
	"github.com/rewireapp/rewire-server/internal/store/sqlite"
	"github.com/rewireapp/rewire-server/internal/streak"
	"github.com/rewireapp/rewire-server/internal/validation"
)

// testStart is a Monday morning.
var testStart = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// switchableRemote fails session writes and pings while down is set.
type switchableRemote struct {
	store.RemoteStore
	down atomic.Bool
}

func (r *switchableRemote) UpsertSession(ctx context.Context, s *domain.UserSession) error {
	if r.down.Load() {
		return store.Unavailable("upsert session", context.DeadlineExceeded)
	}
	return r.RemoteStore.UpsertSession(ctx, s)
}

func (r *switchableRemote) Ping(ctx context.Context) error {
	if r.down.Load() {
		return store.Unavailable("ping", context.DeadlineExceeded)
	}
	return r.RemoteStore.Ping(ctx)
}

type testServer struct {
	*Server
	api      humatest.TestAPI
	remote   *switchableRemote
	clock    *clock.Fake
	services *Services
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "rewire.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cache, err := local.OpenInMemory(logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	manager := sse.NewManager(logger)
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)
	t.Cleanup(cancel)

	remote := &switchableRemote{RemoteStore: db}
	clk := clock.NewFake(testStart)
	v := validation.New()

	overlay := service.NewOverlay(manager, logger)
	sessions := service.NewSessionService(remote, cache, clk, manager, logger)
	achievements := service.NewAchievementService(remote, cache, sessions, overlay, clk, manager, 0, logger)
	t.Cleanup(achievements.Stop)
	triggers := service.NewTriggerService(sessions, remote, v, clk, logger)
	profile := service.NewProfileService(sessions, achievements, remote, v, clk, service.DefaultRewiringTargetDays, logger)
	poller := streak.New(sessions, achievements, profile, manager, streak.Options{}, logger)
	t.Cleanup(poller.Wait)

	services := &Services{
		Sessions:     sessions,
		Achievements: achievements,
		Triggers:     triggers,
		Profile:      profile,
		Overlay:      overlay,
		Streak:       poller,
	}

	srv := NewServer(services, HealthChecks{Remote: remote, Cache: cache}, manager, opts, logger)
	t.Cleanup(srv.Close)

	return &testServer{
		Server:   srv,
		api:      humatest.Wrap(t, srv.API()),
		remote:   remote,
		clock:    clk,
		services: services,
	}
}

// envelope mirrors Envelope with a typed payload.
type envelope[T any] struct {
	Version int  `json:"v"`
	Success bool `json:"success"`
	Data    T    `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env), resp.Body.String())
	return env
}
