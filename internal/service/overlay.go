package service

import (
	"log/slog"
	"sync"

	"github.com/rewireapp/rewire-server/internal/domain"
	"github.com/rewireapp/rewire-server/internal/sse"
)

// OverlayPresenter receives unlock notifications once their display delay has passed.
type OverlayPresenter interface {
	Present(a domain.Achievement)
	Dismiss()
}

// Overlay holds the achievement currently on screen and mirrors changes to SSE clients.
type Overlay struct {
	events sse.Emitter
	logger *slog.Logger

	mu      sync.RWMutex
	current *domain.Achievement
}

var _ OverlayPresenter = (*Overlay)(nil)

// NewOverlay creates an overlay presenter.
func NewOverlay(events sse.Emitter, logger *slog.Logger) *Overlay {
	if events == nil {
		events = sse.NoopEmitter{}
	}
	return &Overlay{events: events, logger: logger}
}

// Present shows a, replacing whatever was on screen.
func (o *Overlay) Present(a domain.Achievement) {
	o.mu.Lock()
	o.current = &a
	o.mu.Unlock()

	o.logger.Debug("achievement overlay shown", "achievement_id", a.ID)
	o.events.Emit(sse.NewAchievementOverlayShownEvent(a))
}

// Dismiss hides the overlay. It is a no-op when nothing is shown.
func (o *Overlay) Dismiss() {
	o.mu.Lock()
	if o.current == nil {
		o.mu.Unlock()
		return
	}
	achievementID := o.current.ID
	o.current = nil
	o.mu.Unlock()

	o.logger.Debug("achievement overlay hidden", "achievement_id", achievementID)
	o.events.Emit(sse.NewAchievementOverlayHiddenEvent(achievementID))
}

// Current returns the achievement on screen, if any.
func (o *Overlay) Current() (domain.Achievement, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.current == nil {
		return domain.Achievement{}, false
	}
	return *o.current, true
}
