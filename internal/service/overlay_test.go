package service

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rewireapp/rewire-server/internal/domain"
	"github.com/rewireapp/rewire-server/internal/sse"
)

func TestOverlay_PresentAndDismiss(t *testing.T) {
	events := &recordingEmitter{}
	o := NewOverlay(events, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, ok := o.Current()
	assert.False(t, ok)

	// Dismissing an empty overlay emits nothing.
	o.Dismiss()
	assert.Empty(t, events.types())

	catalog := domain.DefaultCatalog()
	o.Present(catalog[0])
	o.Present(catalog[1])

	current, ok := o.Current()
	assert.True(t, ok)
	assert.Equal(t, catalog[1].ID, current.ID)

	o.Dismiss()
	_, ok = o.Current()
	assert.False(t, ok)

	assert.Equal(t, []sse.EventType{
		sse.EventAchievementOverlayShown,
		sse.EventAchievementOverlayShown,
		sse.EventAchievementOverlayHidden,
	}, events.types())
}
