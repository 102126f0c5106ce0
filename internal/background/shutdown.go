package background

import (
	"sync"

	"github.com/tilevault/tilevault-go/internal/progress"
)

// shutdownCoordinator runs the cleanup sequence exactly once when the job's
// stream reaches a terminal state, no matter which exit path got there
// first. The order is deliberate and kept stable: notification, then the
// rendering subscription, then the underlying job, then the lease. Each
// step tolerates already-done state, so duplicate or out-of-order
// termination signals never raise.
type shutdownCoordinator struct {
	once sync.Once

	notificationsOn bool
	mirror          *progressMirror
	renderSub       *progress.Subscription
	cancelJob       func()
	guard           *executionGuard
}

func (c *shutdownCoordinator) run() {
	c.once.Do(func() {
		if c.notificationsOn {
			c.mirror.clear()
		}
		c.renderSub.Cancel()
		c.cancelJob()
		c.guard.release()
	})
}
