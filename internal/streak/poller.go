// Package streak runs the once-per-second loop that turns the stored streak
// anchor into a live elapsed counter.
//
// Each tick re-derives elapsed seconds from the cached anchor and publishes
// them to subscribers and SSE clients. The same tick feeds the progress
// snapshot into the achievement state machine. Every 60 elapsed seconds the
// value is written back to the store and every 300 the longest streak is
// reconciled. Both writes run detached and are best-effort: a failed write
// is retried by the next boundary.
package streak

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rewireapp/rewire-server/internal/domain"
	"github.com/rewireapp/rewire-server/internal/sse"
)

// Defaults for Options.
const (
	DefaultTickInterval     = time.Second
	DefaultWriteBackEvery   = 60
	DefaultLongestEvery     = 300
	DefaultWriteTimeout     = 10 * time.Second
	subscriberBufferSize    = 1
	defaultShutdownDeadline = 5 * time.Second
)

// ErrAlreadyRunning is returned by Start on a running poller.
var ErrAlreadyRunning = errors.New("streak poller already running")

// Sessions is the session service as the poller uses it.
type Sessions interface {
	Refresh(ctx context.Context) int64
	GetCurrentStreakSeconds(ctx context.Context) int64
	UpdateSession(ctx context.Context, seconds int64)
	UpdateLongestStreakIfNeeded(ctx context.Context, seconds int64)
	UpdateStreakStartTime(ctx context.Context, start time.Time) (*domain.UserSession, error)
	RecordDay(ctx context.Context, today domain.CalendarDate)
	Today() domain.CalendarDate
}

// Achievements receives a progress snapshot on every tick.
type Achievements interface {
	CheckAndUnlockAchievements(ctx context.Context, snapshot domain.ProgressSnapshot) []domain.Achievement
}

// Snapshotter builds the progress snapshot for an elapsed streak.
type Snapshotter interface {
	SnapshotAt(ctx context.Context, elapsed int64) domain.ProgressSnapshot
}

// Options configures a Poller. Zero values take the defaults.
type Options struct {
	TickInterval   time.Duration
	WriteBackEvery int64 // elapsed seconds between advisory write-backs
	LongestEvery   int64 // elapsed seconds between longest-streak reconciliations
	WriteTimeout   time.Duration
}

func (o Options) withDefaults() Options {
	if o.TickInterval <= 0 {
		o.TickInterval = DefaultTickInterval
	}
	if o.WriteBackEvery <= 0 {
		o.WriteBackEvery = DefaultWriteBackEvery
	}
	if o.LongestEvery <= 0 {
		o.LongestEvery = DefaultLongestEvery
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	return o
}

// Poller publishes the live streak and drives periodic write-backs.
type Poller struct {
	sessions     Sessions
	achievements Achievements
	snapshots    Snapshotter
	events       sse.Emitter
	logger       *slog.Logger
	opts         Options

	elapsed atomic.Int64

	// Boundary buckets already written; a write fires when elapsed enters a new one.
	writeBucket   atomic.Int64
	longestBucket atomic.Int64

	mu      sync.Mutex
	day     domain.CalendarDate
	subs    map[int]chan int64
	nextSub int
	cancel  context.CancelFunc
	done    chan struct{}

	writes sync.WaitGroup
}

// New creates a poller. It does nothing until Start.
func New(
	sessions Sessions,
	achievements Achievements,
	snapshots Snapshotter,
	events sse.Emitter,
	opts Options,
	logger *slog.Logger,
) *Poller {
	if events == nil {
		events = sse.NoopEmitter{}
	}
	return &Poller{
		sessions:     sessions,
		achievements: achievements,
		snapshots:    snapshots,
		events:       events,
		logger:       logger,
		opts:         opts.withDefaults(),
		subs:         make(map[int]chan int64),
	}
}

// Start refreshes the streak once and begins ticking.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}
	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	done := p.done
	p.mu.Unlock()

	elapsed := p.RefreshStreakData(loopCtx)
	p.logger.Info("streak poller started",
		slog.Int64("elapsed_seconds", elapsed),
		slog.Duration("tick", p.opts.TickInterval))

	go p.run(loopCtx, done)
	return nil
}

// Stop cancels the ticker and waits for the loop to exit.
// Write-backs already in flight are left to finish on their own.
func (p *Poller) Stop() {
	p.stop()
}

func (p *Poller) stop() bool {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	<-done
	p.logger.Info("streak poller stopped")
	return true
}

// Shutdown stops a running poller, waits a bounded time for in-flight writes,
// then writes the final elapsed value back.
func (p *Poller) Shutdown() error {
	running := p.stop()

	waited := make(chan struct{})
	go func() {
		p.writes.Wait()
		close(waited)
	}()

	select {
	case <-waited:
	case <-time.After(defaultShutdownDeadline):
		p.logger.Warn("streak write-backs still running at shutdown")
	}

	if !running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.opts.WriteTimeout)
	defer cancel()
	elapsed := p.UpdateCurrentStreak(ctx)
	p.logger.Info("final streak written back", slog.Int64("elapsed_seconds", elapsed))
	return nil
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.Tick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Tick runs one poll: derive, publish, check achievements, and fire any due write-backs.
func (p *Poller) Tick(ctx context.Context) int64 {
	elapsed := p.sessions.GetCurrentStreakSeconds(ctx)
	p.publish(elapsed)
	p.events.Emit(sse.NewStreakTickEvent(elapsed))

	p.checkDay()

	if p.snapshots != nil && p.achievements != nil {
		p.achievements.CheckAndUnlockAchievements(ctx, p.snapshots.SnapshotAt(ctx, elapsed))
	}

	if bucket := elapsed / p.opts.WriteBackEvery; p.writeBucket.Swap(bucket) != bucket {
		p.detach("write back streak", func(ctx context.Context) {
			p.sessions.UpdateSession(ctx, elapsed)
		})
	}
	if bucket := elapsed / p.opts.LongestEvery; p.longestBucket.Swap(bucket) != bucket {
		p.detach("reconcile longest streak", func(ctx context.Context) {
			p.sessions.UpdateLongestStreakIfNeeded(ctx, elapsed)
		})
	}
	return elapsed
}

// Elapsed returns the last published elapsed seconds.
func (p *Poller) Elapsed() int64 {
	return p.elapsed.Load()
}

// Subscribe returns a channel that receives every published value.
// Slow readers only see the latest value. Call the returned func to unsubscribe.
func (p *Poller) Subscribe() (<-chan int64, func()) {
	ch := make(chan int64, subscriberBufferSize)

	p.mu.Lock()
	key := p.nextSub
	p.nextSub++
	p.subs[key] = ch
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, key)
			p.mu.Unlock()
		})
	}
}

// RefreshStreakData reloads the anchor from the store and publishes the result.
func (p *Poller) RefreshStreakData(ctx context.Context) int64 {
	elapsed := p.sessions.Refresh(ctx)
	p.resetBuckets(elapsed)
	p.publish(elapsed)
	return elapsed
}

// UpdateStreakStartTime moves the anchor and refreshes. Unlike tick writes this one is awaited.
func (p *Poller) UpdateStreakStartTime(ctx context.Context, start time.Time) (*domain.UserSession, error) {
	sess, err := p.sessions.UpdateStreakStartTime(ctx, start)
	if err != nil {
		return nil, err
	}
	p.RefreshStreakData(ctx)
	return sess, nil
}

// UpdateCurrentStreak writes the current elapsed value back immediately and waits for it.
func (p *Poller) UpdateCurrentStreak(ctx context.Context) int64 {
	elapsed := p.sessions.GetCurrentStreakSeconds(ctx)
	p.sessions.UpdateSession(ctx, elapsed)
	p.publish(elapsed)
	return elapsed
}

// Wait blocks until detached write-backs have finished. Used by tests and shutdown.
func (p *Poller) Wait() {
	p.writes.Wait()
}

func (p *Poller) publish(elapsed int64) {
	p.elapsed.Store(elapsed)

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subs {
		select {
		case ch <- elapsed:
		default:
			// Drop the stale value so the newest one fits.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- elapsed:
			default:
			}
		}
	}
}

// resetBuckets marks the current boundaries as written so a refresh doesn't trigger a write.
func (p *Poller) resetBuckets(elapsed int64) {
	p.writeBucket.Store(elapsed / p.opts.WriteBackEvery)
	p.longestBucket.Store(elapsed / p.opts.LongestEvery)
}

// checkDay runs the daily bookkeeping when the calendar day rolls over.
func (p *Poller) checkDay() {
	today := p.sessions.Today()

	p.mu.Lock()
	previous := p.day
	p.day = today
	p.mu.Unlock()

	if previous == "" || previous == today {
		return
	}
	p.logger.Info("calendar day changed", "from", previous, "to", today)
	p.detach("daily bookkeeping", func(ctx context.Context) {
		p.sessions.RecordDay(ctx, today)
	})
}

// detach runs fn on its own goroutine with a bounded context that outlives the caller's.
func (p *Poller) detach(op string, fn func(ctx context.Context)) {
	p.writes.Add(1)
	go func() {
		defer p.writes.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.opts.WriteTimeout)
		defer cancel()

		start := time.Now()
		fn(ctx)
		p.logger.Debug("streak write finished", "op", op, "duration", time.Since(start))
	}()
}
