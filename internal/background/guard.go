package background

import (
	"sync"

	"github.com/tilevault/tilevault-go/internal/platform"
)

// executionGuard owns the keep-alive lease for the lifetime of one job.
// Acquisition is two ordered steps (initialize the status indicator, then
// enable execution); failure of either is fatal before the job starts.
type executionGuard struct {
	ka   platform.KeepAlive
	mu   sync.Mutex
	held bool
}

func newExecutionGuard(ka platform.KeepAlive) *executionGuard {
	return &executionGuard{ka: ka}
}

// acquire initializes and enables the keep-alive subsystem. On failure
// nothing is left held.
func (g *executionGuard) acquire(cfg JobConfig) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.ka.Initialize(cfg.KeepAliveTitle, cfg.KeepAliveText, cfg.KeepAliveIcon) {
		return ErrLeaseAcquisitionFailed
	}
	if !g.ka.Enable() {
		return ErrLeaseAcquisitionFailed
	}
	g.held = true
	return nil
}

// release disables the keep-alive subsystem only if it is currently
// enabled. Releasing twice, or without a prior acquire, is a no-op.
func (g *executionGuard) release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.held {
		return
	}
	g.held = false
	if g.ka.IsEnabled() {
		g.ka.Disable()
	}
}
