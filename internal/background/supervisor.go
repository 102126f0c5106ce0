// Package background supervises bulk tile downloads that must outlive the
// application's foreground lifetime. It holds the OS keep-alive lease while
// the engine works, mirrors progress into a single notification slot, and
// guarantees that lease, subscription, notification, and job are all torn
// down exactly once on every exit path.
package background

import (
	"log"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/tilevault/tilevault-go/internal/engine"
	"github.com/tilevault/tilevault-go/internal/models"
	"github.com/tilevault/tilevault-go/internal/platform"
	"github.com/tilevault/tilevault-go/internal/progress"
)

// Engine is the download collaborator. Its stream must support broadcast
// consumption: the supervisor attaches both a rendering listener and a
// cleanup listener to the same production.
type Engine interface {
	Start(region models.Region, opts engine.Options) (*progress.Stream, error)
	Cancel()
}

// Supervisor starts and tracks supervised background jobs. One job runs at
// a time; the supervisor owns its platform handles explicitly so repeated
// invocations cannot interfere through hidden shared state.
type Supervisor struct {
	platform *platform.Platform
	engine   Engine

	mu      sync.Mutex
	current *Job
}

// New creates a Supervisor over the given platform bindings and engine.
func New(p *platform.Platform, e Engine) *Supervisor {
	return &Supervisor{platform: p, engine: e}
}

// QueryOrRequestKeepAlivePermission reports whether the permission backing
// progress notifications is granted. When requestIfDenied is true and the
// current status is denied or limited, the OS is prompted once and the
// resulting status is returned; otherwise the current status is returned
// without prompting. No retries.
func (s *Supervisor) QueryOrRequestKeepAlivePermission(requestIfDenied bool) (bool, error) {
	if s.platform == nil || !s.platform.Supported {
		return false, ErrUnsupportedPlatform
	}

	status := s.platform.Permissions.Status(platform.PermissionNotifications)
	if status == platform.PermissionGranted {
		return true, nil
	}
	if requestIfDenied {
		status = s.platform.Permissions.Request(platform.PermissionNotifications)
	}
	return status == platform.PermissionGranted, nil
}

// StartBackgroundJob acquires the keep-alive lease, starts the engine, and
// wires up progress mirroring and shutdown coordination. It fails fast,
// synchronously, when the platform is unsupported or the lease cannot be
// acquired; afterwards the job proceeds on its own and the returned handle
// is purely observational.
func (s *Supervisor) StartBackgroundJob(region models.Region, cfg JobConfig) (*Job, error) {
	if s.platform == nil || !s.platform.Supported {
		return nil, ErrUnsupportedPlatform
	}
	cfg = cfg.withDefaults()

	// The not-running check, the lease acquisition, the engine start and
	// the slot assignment form one critical section: a concurrent start
	// must never acquire the shared keep-alive while another job holds it,
	// or its failure path would disable that job's lease.
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && !s.current.State().Terminal() {
		return nil, ErrJobAlreadyRunning
	}

	guard := newExecutionGuard(s.platform.KeepAlive)
	if err := guard.acquire(cfg); err != nil {
		return nil, err
	}

	stream, err := s.engine.Start(region, cfg.engineOptions())
	if err != nil {
		guard.release()
		return nil, err
	}

	job := &Job{
		ID:        ksuid.New().String(),
		store:     cfg.Store,
		state:     models.JobRunning,
		startedAt: time.Now(),
		done:      make(chan struct{}),
		cancelFn:  s.engine.Cancel,
	}

	notificationsOn := !cfg.DisableNotifications
	mirror := newProgressMirror(s.platform.Notifier, cfg)

	// Two independent subscriptions to one broadcast: the renderer and the
	// cleanup listener must both see the terminal event without racing for
	// a single consumer slot.
	renderSub := stream.Subscribe()
	terminalSub := stream.Subscribe()

	coordinator := &shutdownCoordinator{
		notificationsOn: notificationsOn,
		mirror:          mirror,
		renderSub:       renderSub,
		cancelJob:       s.engine.Cancel,
		guard:           guard,
	}

	renderDone := make(chan struct{})
	go func() {
		defer close(renderDone)
		for ev := range renderSub.C {
			if ev.Err != nil {
				continue
			}
			job.setSnapshot(ev.Snapshot)
			if notificationsOn {
				mirror.onSnapshot(ev.Snapshot)
			}
		}
	}()

	go func() {
		var terminalErr error
		for ev := range terminalSub.C {
			if ev.Err != nil {
				terminalErr = ev.Err
			}
		}
		// The stream has terminated. Wait for the renderer to drain its
		// last snapshot so the clear below is final, then clean up fully
		// before the job is observably done.
		<-renderDone
		coordinator.run()
		job.finish(terminalErr)
		log.Printf("Background job %s finished: %s", job.ID, job.State())
	}()

	s.current = job

	log.Printf("Background job %s started for store %q", job.ID, cfg.Store)
	return job, nil
}

// Current returns the most recently started job, or nil.
func (s *Supervisor) Current() *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Job is the observational handle for one supervised download.
type Job struct {
	ID    string
	store string

	mu        sync.Mutex
	state     models.JobState
	err       error
	snapshot  models.ProgressSnapshot
	cancelled bool
	startedAt time.Time
	endedAt   time.Time

	done     chan struct{}
	cancelFn func()
}

// Cancel requests the underlying engine stop. Cancellation is cooperative;
// the job reaches the Cancelled state once the stream terminates. Safe to
// call repeatedly and after completion.
func (j *Job) Cancel() {
	j.mu.Lock()
	if j.state.Terminal() {
		j.mu.Unlock()
		return
	}
	j.cancelled = true
	j.mu.Unlock()
	j.cancelFn()
}

// State returns the job's current lifecycle state.
func (j *Job) State() models.JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Err returns the terminal error of a failed job, nil otherwise.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Snapshot returns the latest progress reading.
func (j *Job) Snapshot() models.ProgressSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.snapshot
}

// Done closes once the job has reached a terminal state and all cleanup
// (notification, subscription, lease) has completed.
func (j *Job) Done() <-chan struct{} { return j.done }

// Status snapshots the job for API consumers.
func (j *Job) Status() models.JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	st := models.JobStatus{
		ID:        j.ID,
		Store:     j.store,
		State:     j.state,
		Snapshot:  j.snapshot,
		StartedAt: j.startedAt,
		EndedAt:   j.endedAt,
	}
	if j.err != nil {
		st.Error = j.err.Error()
	}
	return st
}

func (j *Job) setSnapshot(s models.ProgressSnapshot) {
	j.mu.Lock()
	j.snapshot = s
	j.mu.Unlock()
}

// finish moves the job into its terminal state. Failed wins over Cancelled:
// an error that arrives before a requested cancel takes effect is still a
// failure.
func (j *Job) finish(terminalErr error) {
	j.mu.Lock()
	switch {
	case terminalErr != nil:
		j.state = models.JobFailed
		j.err = terminalErr
	case j.cancelled:
		j.state = models.JobCancelled
	default:
		j.state = models.JobCompleted
	}
	j.endedAt = time.Now()
	j.mu.Unlock()
	close(j.done)
}
