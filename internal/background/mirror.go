package background

import (
	"log"

	"github.com/tilevault/tilevault-go/internal/models"
	"github.com/tilevault/tilevault-go/internal/platform"
)

// notificationSlot is the single mutable notification each job owns. Every
// update replaces the content at this slot; nothing accumulates.
const notificationSlot = 0

// progressMirror renders progress snapshots into the notification slot.
// Throttling, if any, is the engine's concern; the mirror tolerates the
// engine's natural emission cadence.
type progressMirror struct {
	notifier platform.Notifier
	title    string
	icon     string
	render   RenderFunc
}

func newProgressMirror(notifier platform.Notifier, cfg JobConfig) *progressMirror {
	return &progressMirror{
		notifier: notifier,
		title:    cfg.NotificationTitle,
		icon:     cfg.NotificationIcon,
		render:   cfg.RenderBody,
	}
}

// onSnapshot overwrites the notification slot with the latest progress.
func (m *progressMirror) onSnapshot(s models.ProgressSnapshot) {
	err := m.notifier.Show(notificationSlot, m.title, m.render(s), s.Attempted, s.Max)
	if err != nil {
		log.Printf("Failed to show progress notification: %v", err)
	}
}

// clear removes the notification. Clearing an empty slot is a no-op.
func (m *progressMirror) clear() {
	if err := m.notifier.Cancel(notificationSlot); err != nil {
		log.Printf("Failed to clear progress notification: %v", err)
	}
}
