package service

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/rewireapp/rewire-server/internal/clock"
	"github.com/rewireapp/rewire-server/internal/domain"
	domainerrors "github.com/rewireapp/rewire-server/internal/errors"
	"github.com/rewireapp/rewire-server/internal/id"
	"github.com/rewireapp/rewire-server/internal/sse"
	"github.com/rewireapp/rewire-server/internal/store"
)

// SessionBackend is the part of the remote store the session service writes to.
type SessionBackend interface {
	store.SessionStore
	store.StatsStore
}

// ResetResult describes a streak that was just ended.
type ResetResult struct {
	Session          *domain.UserSession `json:"session"`
	CompletedSeconds int64               `json:"completed_seconds"`
}

// SessionService owns the streak anchor and the auxiliary stats for the device user.
//
// The anchor (StartTime) is cached in memory so elapsed time can be derived
// every second without touching the network. Every remote mutation goes
// through writeMu, so the order of upserts matches the order of local changes.
type SessionService struct {
	remote SessionBackend
	cache  store.LocalCache
	clock  clock.Clock
	events sse.Emitter
	logger *slog.Logger

	idMu   sync.Mutex
	userID string

	writeMu sync.Mutex

	mu      sync.RWMutex
	session *domain.UserSession
	stats   *domain.UserStats
	dirty   bool // local anchor the remote has not accepted yet
}

// NewSessionService creates a new session service.
func NewSessionService(
	remote SessionBackend,
	cache store.LocalCache,
	clk clock.Clock,
	events sse.Emitter,
	logger *slog.Logger,
) *SessionService {
	if events == nil {
		events = sse.NoopEmitter{}
	}
	return &SessionService{
		remote: remote,
		cache:  cache,
		clock:  clk,
		events: events,
		logger: logger,
	}
}

// CurrentUserID returns the stable per-device user id, creating and persisting it on first use.
// A cache that can't be read or written still yields an id for this process.
func (s *SessionService) CurrentUserID(ctx context.Context) string {
	s.idMu.Lock()
	defer s.idMu.Unlock()

	if s.userID != "" {
		return s.userID
	}

	deviceID, err := s.cache.GetDeviceID(ctx)
	if err != nil {
		s.logger.Warn("failed to read device id", "error", err)
	}

	if deviceID == "" {
		deviceID, err = id.NewDeviceID()
		if err != nil {
			s.logger.Error("failed to generate device id", "error", err)
			deviceID = "device-" + strconv.FormatInt(s.clock.Now().UnixNano(), 36)
		}
		if err := s.cache.SetDeviceID(ctx, deviceID); err != nil {
			s.logger.Warn("device id not persisted", "user_id", deviceID, "error", err)
		} else {
			s.logger.Info("generated device id", "user_id", deviceID)
		}
	}

	s.userID = deviceID
	return s.userID
}

// Today returns the current local calendar date.
func (s *SessionService) Today() domain.CalendarDate {
	return domain.DateOf(s.clock.Now())
}

// StartSession loads or creates the streak session.
//
// An existing session only gets daily-login bookkeeping. When the remote store
// is unreachable a synthetic offline session is returned instead of an error.
func (s *SessionService) StartSession(ctx context.Context) *domain.UserSession {
	userID := s.CurrentUserID(ctx)
	now := s.clock.Now()
	today := domain.DateOf(now)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	existing, err := s.remote.GetSession(ctx, userID)
	if err != nil {
		s.warn("start session", userID, err)
		return s.offlineSessionLocked(userID, now)
	}

	if existing == nil {
		sess := domain.NewUserSession(userID, now)
		sess.LastLoginDate = today

		s.mu.Lock()
		s.session = sess
		s.mu.Unlock()

		if err := s.persistSessionLocked(ctx, "create session"); err != nil {
			out := s.sessionCopy()
			out.Offline = true
			return out
		}

		s.mutateStatsLocked(ctx, "first login", func(st *domain.UserStats) bool {
			login := st.RecordLogin(today)
			outcome := st.RecordDayOutcome(today, false)
			return login || outcome
		})

		s.logger.Info("streak session created",
			slog.String("user_id", userID),
			slog.Time("start_time", now))
		return s.sessionCopy()
	}

	s.adoptRemoteLocked(ctx, existing)
	s.recordDayLocked(ctx, today)
	return s.sessionCopy()
}

// GetCurrentSession re-reads the session from the remote store and refreshes the cached anchor.
// Returns nil when there is no session or the store can't be reached.
func (s *SessionService) GetCurrentSession(ctx context.Context) *domain.UserSession {
	userID := s.CurrentUserID(ctx)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.flushDirtyLocked(ctx)

	sess, err := s.remote.GetSession(ctx, userID)
	if err != nil {
		s.warn("get session", userID, err)
		return nil
	}
	if sess == nil {
		return nil
	}

	s.adoptRemoteLocked(ctx, sess)
	return s.sessionCopy()
}

// CachedSession returns a copy of the in-memory anchor, or nil if none is loaded.
func (s *SessionService) CachedSession() *domain.UserSession {
	return s.sessionCopy()
}

// Refresh reloads the anchor and returns the derived elapsed seconds.
// A missing or offline anchor is (re)started instead.
func (s *SessionService) Refresh(ctx context.Context) int64 {
	cached := s.sessionCopy()
	if cached == nil || cached.Offline {
		s.StartSession(ctx)
	} else if s.GetCurrentSession(ctx) == nil {
		s.logger.Debug("refresh kept cached anchor", "user_id", cached.UserID)
	}
	return s.elapsedNow()
}

// GetCurrentStreakSeconds derives elapsed seconds from the cached anchor.
// The anchor is loaded on first use; with no session at all the result is 0.
func (s *SessionService) GetCurrentStreakSeconds(ctx context.Context) int64 {
	s.mu.RLock()
	loaded := s.session != nil
	s.mu.RUnlock()

	if !loaded {
		s.GetCurrentSession(ctx)
	}
	return s.elapsedNow()
}

// UpdateSession writes the advisory CurrentStreakSeconds cache and reconciles the longest streak.
// Failures are logged and never reach the caller.
func (s *SessionService) UpdateSession(ctx context.Context, seconds int64) {
	s.CurrentUserID(ctx)
	seconds = domain.ClampSeconds(seconds)
	now := s.clock.Now()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	hasSession := s.session != nil
	if hasSession {
		s.session.CurrentStreakSeconds = seconds
		s.session.UpdatedAt = now
	}
	s.mu.Unlock()

	if hasSession {
		_ = s.persistSessionLocked(ctx, "update session")
	}

	s.mutateStatsLocked(ctx, "update current streak", func(st *domain.UserStats) bool {
		changed := st.CurrentStreakSeconds != seconds
		st.CurrentStreakSeconds = seconds
		return st.ObserveStreak(seconds) || changed
	})
}

// UpdateStreakStartTime moves the streak anchor after a user correction.
//
// The new start is clamped to [now-100y, now]. Completed-streak totals are
// untouched. This is the one session operation whose failure is returned:
// if the remote write fails the cached anchor is left as it was.
func (s *SessionService) UpdateStreakStartTime(ctx context.Context, newStart time.Time) (*domain.UserSession, error) {
	userID := s.CurrentUserID(ctx)
	now := s.clock.Now()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	base, err := s.editBaseLocked(ctx, userID, now)
	if err != nil {
		return nil, domainerrors.Unavailable("streak start time could not be saved").WithCause(err)
	}

	next := *base
	next.Offline = false
	next.MoveStart(newStart, now)

	if err := s.remote.UpsertSession(ctx, &next); err != nil {
		s.warn("update start time", userID, err)
		return nil, domainerrors.Unavailable("streak start time could not be saved").WithCause(err)
	}

	s.mu.Lock()
	s.session = &next
	s.dirty = false
	s.mu.Unlock()

	s.logger.Info("streak start time updated",
		slog.String("user_id", userID),
		slog.Time("start_time", next.StartTime))
	s.events.Emit(sse.NewStreakStartTimeUpdatedEvent(next.StartTime, next.CurrentStreakSeconds))

	out := next
	return &out, nil
}

// ResetSession ends the current streak and starts a new one at now.
// The finished streak is folded into the totals and the longest streak.
func (s *SessionService) ResetSession(ctx context.Context, cause string) ResetResult {
	userID := s.CurrentUserID(ctx)
	now := s.clock.Now()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.ensureSessionLocked(ctx, userID, now)

	s.mu.Lock()
	completed := s.session.ElapsedSeconds(now)
	s.session.AddCompleted(completed)
	s.session.Restart(now)
	s.mu.Unlock()

	_ = s.persistSessionLocked(ctx, "reset session")

	s.mutateStatsLocked(ctx, "reset stats", func(st *domain.UserStats) bool {
		st.ApplyReset(completed)
		return true
	})

	s.logger.Info("streak reset",
		slog.String("user_id", userID),
		slog.String("cause", cause),
		slog.Int64("completed_seconds", completed))
	s.events.Emit(sse.NewStreakResetEvent(cause, completed, now))

	return ResetResult{Session: s.sessionCopy(), CompletedSeconds: completed}
}

// UpdateLongestStreakIfNeeded raises the longest streak to seconds if it is larger.
func (s *SessionService) UpdateLongestStreakIfNeeded(ctx context.Context, seconds int64) {
	s.CurrentUserID(ctx)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mutateStatsLocked(ctx, "update longest streak", func(st *domain.UserStats) bool {
		return st.ObserveStreak(seconds)
	})
}

// AddCompletedStreakToTotal adds a finished streak to the session and stats totals.
func (s *SessionService) AddCompletedStreakToTotal(ctx context.Context, seconds int64) {
	if seconds <= 0 {
		return
	}
	userID := s.CurrentUserID(ctx)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	hasSession := s.session != nil
	if hasSession {
		s.session.AddCompleted(seconds)
		s.session.UpdatedAt = s.clock.Now()
	}
	s.mu.Unlock()

	if hasSession {
		_ = s.persistSessionLocked(ctx, "add completed streak")
	} else {
		s.logger.Debug("no cached session for completed streak", "user_id", userID)
	}

	s.mutateStatsLocked(ctx, "add completed streak", func(st *domain.UserStats) bool {
		return st.AddCompleted(seconds)
	})
}

// UpdateDailyLoginTracking counts today as a login day. Repeated calls on the same day are no-ops.
func (s *SessionService) UpdateDailyLoginTracking(ctx context.Context, today domain.CalendarDate) {
	s.CurrentUserID(ctx)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mutateStatsLocked(ctx, "daily login", func(st *domain.UserStats) bool {
		return st.RecordLogin(today)
	})
}

// UpdateSuccessfulDaysTracking records whether today was clean for the weekly counter.
func (s *SessionService) UpdateSuccessfulDaysTracking(ctx context.Context, today domain.CalendarDate, hadEpisode bool) {
	s.CurrentUserID(ctx)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mutateStatsLocked(ctx, "successful days", func(st *domain.UserStats) bool {
		return st.RecordDayOutcome(today, hadEpisode)
	})
}

// RecordDay runs the once-per-day bookkeeping for today: login tracking,
// the clean-day counter and the session's LastLoginDate.
func (s *SessionService) RecordDay(ctx context.Context, today domain.CalendarDate) {
	s.CurrentUserID(ctx)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.recordDayLocked(ctx, today)
}

// GetStats reads the latest stats. On failure the cached copy is returned.
func (s *SessionService) GetStats(ctx context.Context) *domain.UserStats {
	userID := s.CurrentUserID(ctx)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	st, err := s.remote.GetStats(ctx, userID)
	if err != nil {
		s.warn("get stats", userID, err)
		return s.statsCopy(userID)
	}
	if st == nil {
		st = domain.NewUserStats(userID)
	}

	s.mu.Lock()
	s.stats = st
	s.mu.Unlock()
	return s.statsCopy(userID)
}

// CachedStats returns the in-memory stats without a remote read.
func (s *SessionService) CachedStats() *domain.UserStats {
	s.idMu.Lock()
	userID := s.userID
	s.idMu.Unlock()
	return s.statsCopy(userID)
}

func (s *SessionService) recordDayLocked(ctx context.Context, today domain.CalendarDate) {
	s.mu.Lock()
	changed := s.session != nil && s.session.LastLoginDate != today
	if changed {
		s.session.LastLoginDate = today
		s.session.UpdatedAt = s.clock.Now()
	}
	s.mu.Unlock()

	if changed {
		_ = s.persistSessionLocked(ctx, "record login date")
	}

	s.mutateStatsLocked(ctx, "daily login", func(st *domain.UserStats) bool {
		if st.LastLoginDate == today {
			return false
		}
		st.RecordLogin(today)
		st.RecordDayOutcome(today, false)
		return true
	})
}

// adoptRemoteLocked replaces the cached anchor with the remote copy.
// A dirty local anchor wins and is pushed instead.
func (s *SessionService) adoptRemoteLocked(ctx context.Context, remote *domain.UserSession) {
	s.mu.Lock()
	dirty := s.dirty
	if !dirty {
		s.session = remote
	}
	s.mu.Unlock()

	if dirty {
		_ = s.persistSessionLocked(ctx, "push local session")
	}
}

// offlineSessionLocked hands out the cached anchor, or a synthetic one, marked offline.
func (s *SessionService) offlineSessionLocked(userID string, now time.Time) *domain.UserSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		s.session = domain.NewOfflineSession(userID, now)
		s.logger.Warn("using offline session", "user_id", userID)
	}
	out := *s.session
	out.Offline = true
	return &out
}

// ensureSessionLocked makes sure an anchor is cached before a mutation.
func (s *SessionService) ensureSessionLocked(ctx context.Context, userID string, now time.Time) {
	s.mu.RLock()
	loaded := s.session != nil
	s.mu.RUnlock()
	if loaded {
		return
	}

	sess, err := s.remote.GetSession(ctx, userID)
	switch {
	case err != nil:
		s.warn("load session", userID, err)
		sess = domain.NewOfflineSession(userID, now)
	case sess == nil:
		sess = domain.NewUserSession(userID, now)
	}

	s.mu.Lock()
	if s.session == nil {
		s.session = sess
	}
	s.mu.Unlock()
}

// editBaseLocked returns the session a start-time edit applies to.
// An offline anchor is never written over the remote row, so the remote copy is read first.
func (s *SessionService) editBaseLocked(ctx context.Context, userID string, now time.Time) (*domain.UserSession, error) {
	cached := s.sessionCopy()
	if cached != nil && !cached.Offline {
		return cached, nil
	}

	sess, err := s.remote.GetSession(ctx, userID)
	if err != nil {
		s.warn("load session for edit", userID, err)
		return nil, err
	}
	if sess == nil {
		sess = domain.NewUserSession(userID, now)
	}
	return sess, nil
}

// persistSessionLocked upserts the cached anchor. Offline anchors stay local.
func (s *SessionService) persistSessionLocked(ctx context.Context, op string) error {
	s.mu.RLock()
	if s.session == nil || s.session.Offline {
		s.mu.RUnlock()
		return nil
	}
	snapshot := *s.session
	s.mu.RUnlock()

	if err := s.remote.UpsertSession(ctx, &snapshot); err != nil {
		s.warn(op, snapshot.UserID, err)
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
	return nil
}

func (s *SessionService) flushDirtyLocked(ctx context.Context) {
	s.mu.RLock()
	dirty := s.dirty
	s.mu.RUnlock()
	if dirty {
		_ = s.persistSessionLocked(ctx, "push local session")
	}
}

// mutateStatsLocked applies fn to the latest remote stats and writes them back if they changed.
// When the remote can't be read, fn is applied to the cached copy only.
func (s *SessionService) mutateStatsLocked(ctx context.Context, op string, fn func(*domain.UserStats) bool) {
	s.idMu.Lock()
	userID := s.userID
	s.idMu.Unlock()
	now := s.clock.Now()

	latest, err := s.remote.GetStats(ctx, userID)
	if err != nil {
		s.warn(op, userID, err)
		s.mu.Lock()
		if s.stats == nil {
			s.stats = domain.NewUserStats(userID)
		}
		if fn(s.stats) {
			s.stats.UpdatedAt = now
		}
		s.mu.Unlock()
		return
	}

	created := latest == nil
	if created {
		latest = domain.NewUserStats(userID)
	}

	if fn(latest) || created {
		latest.UpdatedAt = now
		if err := s.remote.UpsertStats(ctx, latest); err != nil {
			s.warn(op, userID, err)
		}
	}

	s.mu.Lock()
	s.stats = latest
	s.mu.Unlock()
}

func (s *SessionService) elapsedNow() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return 0
	}
	return s.session.ElapsedSeconds(s.clock.Now())
}

func (s *SessionService) sessionCopy() *domain.UserSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil
	}
	out := *s.session
	return &out
}

func (s *SessionService) statsCopy(userID string) *domain.UserStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stats == nil {
		return domain.NewUserStats(userID)
	}
	out := *s.stats
	return &out
}

func (s *SessionService) warn(op, userID string, err error) {
	logRemoteFailure(s.logger, op, userID, err)
}

// logRemoteFailure records a swallowed remote store error.
func logRemoteFailure(logger *slog.Logger, op, userID string, err error) {
	logger.Warn("remote store operation failed",
		slog.String("op", op),
		slog.String("user_id", userID),
		slog.Any("error", err))
}
