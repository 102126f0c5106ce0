// Fake platform bindings so supervisor-dependent code can be tested on any
// OS without touching systemd or the desktop notification daemon.

package testutil

import (
	"sync"

	"github.com/tilevault/tilevault-go/internal/platform"
)

// FakeKeepAlive implements platform.KeepAlive in memory.
type FakeKeepAlive struct {
	mu       sync.Mutex
	enabled  bool
	Disables int
}

func (k *FakeKeepAlive) Initialize(title, text, icon string) bool { return true }

func (k *FakeKeepAlive) Enable() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.enabled = true
	return true
}

func (k *FakeKeepAlive) Disable() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.enabled = false
	k.Disables++
}

func (k *FakeKeepAlive) IsEnabled() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.enabled
}

// FakePermissions reports a fixed permission status.
type FakePermissions struct {
	Result platform.PermissionStatus
}

func (p *FakePermissions) Status(string) platform.PermissionStatus  { return p.Result }
func (p *FakePermissions) Request(string) platform.PermissionStatus { return p.Result }

// FakeNotifier records notifications instead of showing them.
type FakeNotifier struct {
	mu      sync.Mutex
	Shown   []string
	Cancels int
}

func (n *FakeNotifier) Show(slot int, title, body string, progress, max uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Shown = append(n.Shown, body)
	return nil
}

func (n *FakeNotifier) Cancel(slot int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Cancels++
	return nil
}

// NewFakePlatform returns a fully supported platform backed by fakes with
// the notification permission granted.
func NewFakePlatform() *platform.Platform {
	return &platform.Platform{
		Supported:   true,
		KeepAlive:   &FakeKeepAlive{},
		Permissions: &FakePermissions{Result: platform.PermissionGranted},
		Notifier:    &FakeNotifier{},
	}
}
