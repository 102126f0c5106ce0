package jobs

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/tilevault/tilevault-go/internal/config"
	"github.com/tilevault/tilevault-go/internal/websocket"
)

// JobContext is an interface that provides the necessary dependencies for a
// maintenance job to run. The core.App struct implements this interface.
type JobContext interface {
	DB() *sql.DB
	Config() *config.Config
	WsHub() *websocket.Hub
	JobManager() *JobManager
}

type jobTask func(ctx JobContext)

type JobStatus struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"` // "idle", "running", "success", "failed"
	Message   string    `json:"message"`
	StartTime time.Time `json:"start_time,omitempty"`
	EndTime   time.Time `json:"end_time,omitempty"`
}

// JobManager runs registered maintenance jobs one at a time, whether they
// were triggered by the scheduler or by an API call.
type JobManager struct {
	mu      sync.Mutex
	jobs    map[string]jobTask
	status  map[string]*JobStatus
	running bool
	appCtx  JobContext
}

func NewManager(appCtx JobContext) *JobManager {
	return &JobManager{
		jobs:   make(map[string]jobTask),
		status: make(map[string]*JobStatus),
		appCtx: appCtx,
	}
}

func (jm *JobManager) Register(id, name string, task jobTask) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	jm.jobs[id] = task
	jm.status[id] = &JobStatus{ID: id, Name: name, Status: "idle"}
}

// RunJob starts the named job in the background. Only one job runs at a
// time; a second request while one is active is an error, not a queue.
func (jm *JobManager) RunJob(id string, ctx JobContext) error {
	jm.mu.Lock()
	if jm.running {
		jm.mu.Unlock()
		return fmt.Errorf("a job is already running")
	}

	task, ok := jm.jobs[id]
	if !ok {
		jm.mu.Unlock()
		return fmt.Errorf("job '%s' not found", id)
	}

	jm.running = true
	status := jm.status[id]
	status.Status = "running"
	status.StartTime = time.Now()
	status.Message = "Job started..."
	jm.mu.Unlock()

	log.Printf("Starting job: %s", id)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("Job '%s' panicked: %v", id, r)
				jm.mu.Lock()
				status.Status = "failed"
				status.Message = fmt.Sprintf("Job panicked: %v", r)
				jm.mu.Unlock()
			}

			jm.mu.Lock()
			status.EndTime = time.Now()
			if status.Status == "running" {
				status.Status = "success"
				status.Message = "Job completed successfully."
			}
			jm.running = false
			jm.mu.Unlock()
			log.Printf("Finished job: %s", id)
		}()

		task(ctx)
	}()
	return nil
}

func (jm *JobManager) GetStatus() []*JobStatus {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	var statuses []*JobStatus
	for _, s := range jm.status {
		statuses = append(statuses, s)
	}
	return statuses
}
