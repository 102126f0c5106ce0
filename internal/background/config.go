package background

import (
	"fmt"
	"math"
	"time"

	"github.com/tilevault/tilevault-go/internal/engine"
	"github.com/tilevault/tilevault-go/internal/models"
)

// DefaultNotificationTitle is shown when no override is configured.
const DefaultNotificationTitle = "Downloading Map..."

// RenderFunc turns a progress snapshot into the notification body.
type RenderFunc func(models.ProgressSnapshot) string

// JobConfig configures one supervised background download. The zero value
// is usable; every field has a stated default. A config is treated as
// immutable once the job starts.
type JobConfig struct {
	// Tile provider settings, passed through to the engine.
	Store       string        // default "default"
	URLTemplate string        // tile URL with {z}/{x}/{y} placeholders
	UserAgent   string        // default "tilevault-go"
	Parallelism int           // default 4
	Delay       time.Duration // per-request delay, default none

	// DisableRecovery turns off the engine's crash-recovery bookkeeping.
	DisableRecovery bool

	// DisableNotifications turns off progress mirroring; the job still
	// runs and its snapshots remain observable through the Job handle.
	DisableNotifications bool

	NotificationTitle string     // default DefaultNotificationTitle
	NotificationIcon  string     // default none
	RenderBody        RenderFunc // default "<attempted>/<max> (<pct>%)"

	// Persistent status indicator for the keep-alive lease.
	KeepAliveTitle string // default "tilevault"
	KeepAliveText  string // default "Downloading map tiles in the background"
	KeepAliveIcon  string // default none
}

// withDefaults returns a copy with every unset field resolved.
func (c JobConfig) withDefaults() JobConfig {
	if c.Store == "" {
		c.Store = "default"
	}
	if c.UserAgent == "" {
		c.UserAgent = "tilevault-go"
	}
	if c.Parallelism <= 0 {
		c.Parallelism = 4
	}
	if c.NotificationTitle == "" {
		c.NotificationTitle = DefaultNotificationTitle
	}
	if c.RenderBody == nil {
		c.RenderBody = defaultRenderBody
	}
	if c.KeepAliveTitle == "" {
		c.KeepAliveTitle = "tilevault"
	}
	if c.KeepAliveText == "" {
		c.KeepAliveText = "Downloading map tiles in the background"
	}
	return c
}

func (c JobConfig) engineOptions() engine.Options {
	return engine.Options{
		Store:           c.Store,
		URLTemplate:     c.URLTemplate,
		UserAgent:       c.UserAgent,
		Parallelism:     c.Parallelism,
		Delay:           c.Delay,
		DisableRecovery: c.DisableRecovery,
	}
}

func defaultRenderBody(s models.ProgressSnapshot) string {
	return fmt.Sprintf("%d/%d (%.0f%%)", s.Attempted, s.Max, math.Round(s.Percentage))
}
