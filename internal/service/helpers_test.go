package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rewireapp/rewire-server/internal/clock"
	"github.com/rewireapp/rewire-server/internal/domain"
	"github.com/rewireapp/rewire-server/internal/sse"
	"github.com/rewireapp/rewire-server/internal/store"
	"github.com/rewireapp/rewire-server/internal/store/local"
	"github.com/rewireapp/rewire-server/internal/store/sqlite"
	"github.com/rewireapp/rewire-server/internal/validation"
)

// testStart is a Monday morning.
var testStart = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

var errNetwork = errors.New("connection refused")

// flakyRemote wraps a real store and fails every call while down is set.
type flakyRemote struct {
	store.RemoteStore
	down atomic.Bool
}

func (f *flakyRemote) fail(op string) error {
	if f.down.Load() {
		return store.Unavailable(op, errNetwork)
	}
	return nil
}

func (f *flakyRemote) GetSession(ctx context.Context, userID string) (*domain.UserSession, error) {
	if err := f.fail("get session"); err != nil {
		return nil, err
	}
	return f.RemoteStore.GetSession(ctx, userID)
}

func (f *flakyRemote) UpsertSession(ctx context.Context, s *domain.UserSession) error {
	if err := f.fail("upsert session"); err != nil {
		return err
	}
	return f.RemoteStore.UpsertSession(ctx, s)
}

func (f *flakyRemote) GetStats(ctx context.Context, userID string) (*domain.UserStats, error) {
	if err := f.fail("get stats"); err != nil {
		return nil, err
	}
	return f.RemoteStore.GetStats(ctx, userID)
}

func (f *flakyRemote) UpsertStats(ctx context.Context, s *domain.UserStats) error {
	if err := f.fail("upsert stats"); err != nil {
		return err
	}
	return f.RemoteStore.UpsertStats(ctx, s)
}

func (f *flakyRemote) ListAchievements(ctx context.Context, userID string) ([]domain.Achievement, error) {
	if err := f.fail("list achievements"); err != nil {
		return nil, err
	}
	return f.RemoteStore.ListAchievements(ctx, userID)
}

func (f *flakyRemote) UpsertAchievements(ctx context.Context, userID string, as []domain.Achievement) error {
	if err := f.fail("upsert achievements"); err != nil {
		return err
	}
	return f.RemoteStore.UpsertAchievements(ctx, userID, as)
}

func (f *flakyRemote) CreateEpisode(ctx context.Context, e *domain.Episode) error {
	if err := f.fail("create episode"); err != nil {
		return err
	}
	return f.RemoteStore.CreateEpisode(ctx, e)
}

func (f *flakyRemote) ListEpisodes(ctx context.Context, userID string, limit int) ([]*domain.Episode, error) {
	if err := f.fail("list episodes"); err != nil {
		return nil, err
	}
	return f.RemoteStore.ListEpisodes(ctx, userID, limit)
}

func (f *flakyRemote) CountEpisodesByCause(ctx context.Context, userID string) ([]domain.CauseCount, error) {
	if err := f.fail("count episodes"); err != nil {
		return nil, err
	}
	return f.RemoteStore.CountEpisodesByCause(ctx, userID)
}

func (f *flakyRemote) MarkArticleRead(ctx context.Context, userID, articleID string, at time.Time) (bool, error) {
	if err := f.fail("mark article read"); err != nil {
		return false, err
	}
	return f.RemoteStore.MarkArticleRead(ctx, userID, articleID, at)
}

func (f *flakyRemote) CountArticlesRead(ctx context.Context, userID string) (int, error) {
	if err := f.fail("count articles read"); err != nil {
		return 0, err
	}
	return f.RemoteStore.CountArticlesRead(ctx, userID)
}

// recordingEmitter keeps every emitted SSE event.
type recordingEmitter struct {
	mu     sync.Mutex
	events []sse.Event
}

func (r *recordingEmitter) Emit(event any) {
	evt, ok := event.(sse.Event)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingEmitter) types() []sse.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sse.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// recordingPresenter keeps presented achievement ids.
type recordingPresenter struct {
	mu        sync.Mutex
	presented []string
	dismissed int
}

func (p *recordingPresenter) Present(a domain.Achievement) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.presented = append(p.presented, a.ID)
}

func (p *recordingPresenter) Dismiss() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dismissed++
}

func (p *recordingPresenter) ids() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.presented...)
}

type testEnv struct {
	db           *sqlite.Store
	remote       *flakyRemote
	cache        *local.Cache
	clock        *clock.Fake
	events       *recordingEmitter
	presenter    *recordingPresenter
	sessions     *SessionService
	achievements *AchievementService
	triggers     *TriggerService
	profile      *ProfileService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithDelay(t, 0)
}

func newTestEnvWithDelay(t *testing.T, delay time.Duration) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "rewire.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cache, err := local.OpenInMemory(logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	env := &testEnv{
		db:        db,
		remote:    &flakyRemote{RemoteStore: db},
		cache:     cache,
		clock:     clock.NewFake(testStart),
		events:    &recordingEmitter{},
		presenter: &recordingPresenter{},
	}
	env.build(t, delay)
	return env
}

// build wires fresh services over the env's stores, as a restarted process would.
func (e *testEnv) build(t *testing.T, delay time.Duration) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	v := validation.New()

	e.sessions = NewSessionService(e.remote, e.cache, e.clock, e.events, logger)
	e.achievements = NewAchievementService(e.remote, e.cache, e.sessions, e.presenter, e.clock, e.events, delay, logger)
	e.triggers = NewTriggerService(e.sessions, e.remote, v, e.clock, logger)
	e.profile = NewProfileService(e.sessions, e.achievements, e.remote, v, e.clock, DefaultRewiringTargetDays, logger)
	t.Cleanup(e.achievements.Stop)
}
