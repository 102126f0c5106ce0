package background

import "errors"

// ErrorCodeUnsupportedPlatform is the fixed code carried by
// ErrUnsupportedPlatform for API consumers.
const ErrorCodeUnsupportedPlatform = "UNSUPPORTED_PLATFORM"

var (
	// ErrUnsupportedPlatform is returned by every entry point on an OS
	// without background keep-alive leases. It is checked before any side
	// effect takes place.
	ErrUnsupportedPlatform = errors.New("background downloads are not supported on this platform (" + ErrorCodeUnsupportedPlatform + ")")

	// ErrLeaseAcquisitionFailed means the keep-alive subsystem could not be
	// initialized or enabled. Fatal for the job; nothing is left held.
	ErrLeaseAcquisitionFailed = errors.New("failed to acquire background execution lease")

	// ErrJobAlreadyRunning is returned when a supervised job is started
	// while another one is still active.
	ErrJobAlreadyRunning = errors.New("a background job is already running")
)
