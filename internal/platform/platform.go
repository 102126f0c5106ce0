// Package platform abstracts the OS facilities the background supervisor
// needs: a keep-alive lease that prevents the system from suspending work,
// a notification permission query, and a desktop notification slot that can
// be overwritten in place. Only Linux provides real implementations; every
// other OS yields an unsupported platform and the supervisor refuses to
// start background jobs there.
package platform

// PermissionStatus mirrors the tri-state the OS reports for a permission.
type PermissionStatus int

const (
	PermissionDenied PermissionStatus = iota
	PermissionGranted
	PermissionLimited
)

func (s PermissionStatus) String() string {
	switch s {
	case PermissionGranted:
		return "granted"
	case PermissionLimited:
		return "limited"
	default:
		return "denied"
	}
}

// PermissionNotifications identifies the notification permission.
const PermissionNotifications = "notifications"

// KeepAlive is the OS keep-alive subsystem. Initialize and Enable report
// success as booleans, matching the underlying OS bridge; the execution
// guard translates failure into a fatal lease error.
type KeepAlive interface {
	Initialize(title, text, icon string) bool
	Enable() bool
	Disable()
	IsEnabled() bool
}

// Permissions is the OS permission subsystem.
type Permissions interface {
	Status(permission string) PermissionStatus
	Request(permission string) PermissionStatus
}

// Notifier is the OS notification subsystem. A slot identifies a single
// mutable notification that Show overwrites in place.
type Notifier interface {
	Show(slot int, title, body string, progress, max uint64) error
	Cancel(slot int) error
}

// Platform bundles the three subsystems. Supported is false on operating
// systems that cannot hold background keep-alive leases.
type Platform struct {
	Supported   bool
	KeepAlive   KeepAlive
	Permissions Permissions
	Notifier    Notifier
}

// New returns the platform bindings for the current OS.
func New() *Platform {
	return newPlatform()
}
