// Package sse implements Server-Sent Events for pushing live streak and achievement updates to the app.
package sse

import (
	"time"

	"github.com/rewireapp/rewire-server/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventStreakTick carries the live elapsed streak, once per poller tick.
	EventStreakTick EventType = "streak.tick"
	// EventStreakReset is sent when a streak ends and a new one starts.
	EventStreakReset EventType = "streak.reset"
	// EventStreakStartTimeUpdated is sent after a user corrects the streak start date.
	EventStreakStartTimeUpdated EventType = "streak.start_time_updated"

	// EventAchievementUnlocked is sent at the moment an achievement crosses its threshold.
	EventAchievementUnlocked EventType = "achievement.unlocked"
	// EventAchievementOverlayShown is sent when the unlock overlay should be displayed.
	EventAchievementOverlayShown EventType = "achievement.overlay_shown"
	// EventAchievementOverlayHidden is sent when the overlay is dismissed.
	EventAchievementOverlayHidden EventType = "achievement.overlay_hidden"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event is one message on the stream. Seq is assigned at delivery and
// increases by one per event, so a client can spot a gap.
type Event struct {
	Seq       uint64    `json:"seq"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Emitter queues events for delivery. Manager implements it.
type Emitter interface {
	Emit(event any)
}

// NoopEmitter discards every event.
type NoopEmitter struct{}

// Emit implements Emitter as a no-op.
func (NoopEmitter) Emit(_ any) {}

// StreakTickEventData is the data payload for tick events.
type StreakTickEventData struct {
	ElapsedSeconds int64                  `json:"elapsed_seconds"`
	Breakdown      domain.StreakBreakdown `json:"breakdown"`
}

// StreakResetEventData is the data payload for reset events.
type StreakResetEventData struct {
	Cause            string    `json:"cause"`
	CompletedSeconds int64     `json:"completed_seconds"`
	StartTime        time.Time `json:"start_time"`
}

// StreakStartTimeUpdatedEventData is the data payload for start-time corrections.
type StreakStartTimeUpdatedEventData struct {
	StartTime      time.Time `json:"start_time"`
	ElapsedSeconds int64     `json:"elapsed_seconds"`
}

// AchievementEventData is the data payload for unlock and overlay-shown events.
type AchievementEventData struct {
	Achievement domain.Achievement `json:"achievement"`
}

// AchievementOverlayHiddenEventData is the data payload for overlay-hidden events.
type AchievementOverlayHiddenEventData struct {
	AchievementID string `json:"achievement_id,omitempty"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewStreakTickEvent creates a tick event for the given elapsed seconds.
func NewStreakTickEvent(elapsed int64) Event {
	return Event{
		Type: EventStreakTick,
		Data: StreakTickEventData{
			ElapsedSeconds: elapsed,
			Breakdown:      domain.BreakdownSeconds(elapsed),
		},
		Timestamp: time.Now(),
	}
}

// NewStreakResetEvent creates a reset event.
func NewStreakResetEvent(cause string, completed int64, start time.Time) Event {
	return Event{
		Type: EventStreakReset,
		Data: StreakResetEventData{
			Cause:            cause,
			CompletedSeconds: completed,
			StartTime:        start,
		},
		Timestamp: time.Now(),
	}
}

// NewStreakStartTimeUpdatedEvent creates a start-time correction event.
func NewStreakStartTimeUpdatedEvent(start time.Time, elapsed int64) Event {
	return Event{
		Type: EventStreakStartTimeUpdated,
		Data: StreakStartTimeUpdatedEventData{
			StartTime:      start,
			ElapsedSeconds: elapsed,
		},
		Timestamp: time.Now(),
	}
}

// NewAchievementUnlockedEvent creates an unlock event.
func NewAchievementUnlockedEvent(a domain.Achievement) Event {
	return Event{
		Type:      EventAchievementUnlocked,
		Data:      AchievementEventData{Achievement: a},
		Timestamp: time.Now(),
	}
}

// NewAchievementOverlayShownEvent creates an overlay-shown event.
func NewAchievementOverlayShownEvent(a domain.Achievement) Event {
	return Event{
		Type:      EventAchievementOverlayShown,
		Data:      AchievementEventData{Achievement: a},
		Timestamp: time.Now(),
	}
}

// NewAchievementOverlayHiddenEvent creates an overlay-hidden event.
func NewAchievementOverlayHiddenEvent(achievementID string) Event {
	return Event{
		Type:      EventAchievementOverlayHidden,
		Data:      AchievementOverlayHiddenEventData{AchievementID: achievementID},
		Timestamp: time.Now(),
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return Event{
		Type: EventHeartbeat,
		Data: HeartbeatEventData{
			ServerTime: time.Now(),
		},
		Timestamp: time.Now(),
	}
}
