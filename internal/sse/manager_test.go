package sse

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewireapp/rewire-server/internal/domain"
)

func newTestManager(t *testing.T) (*Manager, context.CancelFunc) {
	t.Helper()
	m := NewManager(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	go m.Start(ctx)
	t.Cleanup(cancel)
	return m, cancel
}

func TestManager_EmitDeliversToClients(t *testing.T) {
	m, _ := newTestManager(t)

	a, err := m.Connect()
	require.NoError(t, err)
	b, err := m.Connect()
	require.NoError(t, err)
	assert.Equal(t, 2, m.ClientCount())
	assert.True(t, strings.HasPrefix(a.ID, "sse-"))

	m.Emit(NewStreakTickEvent(61))

	for _, c := range []*Client{a, b} {
		select {
		case evt := <-c.Events:
			assert.Equal(t, EventStreakTick, evt.Type)
			data, ok := evt.Data.(StreakTickEventData)
			require.True(t, ok)
			assert.Equal(t, int64(61), data.ElapsedSeconds)
			assert.Equal(t, int64(1), data.Breakdown.Minutes)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case evt := <-c.Events:
		return evt
	case <-time.After(time.Second):
		t.Fatal("no event")
		return Event{}
	}
}

func TestManager_AssignsSequence(t *testing.T) {
	m, _ := newTestManager(t)
	c, err := m.Connect()
	require.NoError(t, err)

	m.Emit(NewStreakTickEvent(1))
	m.Emit(NewStreakTickEvent(2))

	first, second := receive(t, c), receive(t, c)
	assert.Equal(t, first.Seq+1, second.Seq)
	assert.Positive(t, first.Seq)
}

func TestManager_ReplaysLatestStateOnConnect(t *testing.T) {
	m, _ := newTestManager(t)
	watcher, err := m.Connect()
	require.NoError(t, err)

	m.Emit(NewStreakTickEvent(10))
	m.Emit(NewStreakTickEvent(11))
	m.Emit(NewAchievementOverlayShownEvent(domain.Achievement{ID: "sprout"}))
	// The watcher seeing all three means the manager has processed them.
	for range 3 {
		receive(t, watcher)
	}

	late, err := m.Connect()
	require.NoError(t, err)

	tick := receive(t, late)
	assert.Equal(t, EventStreakTick, tick.Type)
	assert.Equal(t, int64(11), tick.Data.(StreakTickEventData).ElapsedSeconds)

	overlay := receive(t, late)
	assert.Equal(t, EventAchievementOverlayShown, overlay.Type)
	assert.Equal(t, "sprout", overlay.Data.(AchievementEventData).Achievement.ID)
}

func TestManager_HiddenOverlayNotReplayed(t *testing.T) {
	m, _ := newTestManager(t)
	watcher, err := m.Connect()
	require.NoError(t, err)

	m.Emit(NewAchievementOverlayShownEvent(domain.Achievement{ID: "sprout"}))
	m.Emit(NewAchievementOverlayHiddenEvent("sprout"))
	receive(t, watcher)
	receive(t, watcher)

	late, err := m.Connect()
	require.NoError(t, err)

	select {
	case evt := <-late.Events:
		t.Fatalf("unexpected replay %v", evt.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestManager_SlowClientDoesNotBlockOthers(t *testing.T) {
	m := NewManager(slog.New(slog.NewTextHandler(io.Discard, nil)), WithClientBuffer(1))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Start(ctx)

	slow, err := m.Connect()
	require.NoError(t, err)
	fast, err := m.Connect()
	require.NoError(t, err)

	for i := range 3 {
		m.Emit(NewStreakTickEvent(int64(i)))
		assert.Equal(t, int64(i), receive(t, fast).Data.(StreakTickEventData).ElapsedSeconds)
	}

	// The slow client kept only what fit in its buffer.
	assert.Len(t, slow.Events, 1)
}

func TestManager_Heartbeat(t *testing.T) {
	m := NewManager(slog.New(slog.NewTextHandler(io.Discard, nil)), WithHeartbeat(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Start(ctx)

	c, err := m.Connect()
	require.NoError(t, err)
	assert.Equal(t, EventHeartbeat, receive(t, c).Type)
}

func TestManager_IgnoresForeignPayloads(t *testing.T) {
	m, _ := newTestManager(t)
	c, err := m.Connect()
	require.NoError(t, err)

	m.Emit("not an event")

	select {
	case evt := <-c.Events:
		t.Fatalf("unexpected event %v", evt.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestManager_Disconnect(t *testing.T) {
	m, _ := newTestManager(t)
	c, err := m.Connect()
	require.NoError(t, err)

	m.Disconnect(c.ID)
	assert.Equal(t, 0, m.ClientCount())

	_, open := <-c.Done
	assert.False(t, open)
	_, open = <-c.Events
	assert.False(t, open)

	// Unknown ids are ignored.
	m.Disconnect("sse-unknown")
}

func TestManager_ShutdownDropsLaterEvents(t *testing.T) {
	m, _ := newTestManager(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))
	assert.True(t, m.IsShutdown())

	// Must not panic on a closed channel.
	m.Emit(NewHeartbeatEvent())
	require.NoError(t, m.Shutdown(ctx))
}

func TestHandler_StreamsEvents(t *testing.T) {
	m, _ := newTestManager(t)
	h := NewHandler(m, slog.New(slog.NewTextHandler(io.Discard, nil)))

	server := httptest.NewServer(h)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: connected\n", line)

	// Wait for registration before emitting.
	require.Eventually(t, func() bool { return m.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	m.Emit(NewAchievementOverlayHiddenEvent("sprout"))

	var sawEvent bool
	for range 6 {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if line == "event: achievement.overlay_hidden\n" {
			sawEvent = true
			break
		}
	}
	assert.True(t, sawEvent)
}

func TestHandler_ShutdownManager(t *testing.T) {
	m, _ := newTestManager(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	h := NewHandler(m, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandler_RejectsNonGet(t *testing.T) {
	m, _ := newTestManager(t)
	h := NewHandler(m, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
