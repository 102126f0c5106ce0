package jobs

import (
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/tilevault/tilevault-go/internal/models"
	"github.com/tilevault/tilevault-go/internal/store"
)

// RegisterAll wires the maintenance jobs into the manager. Called once at
// startup, before the scheduler starts.
func RegisterAll(jm *JobManager) {
	jm.Register("recovery-sweep", "Sweep Stale Recovery Entries", RunRecoverySweep)
	jm.Register("store-stats", "Refresh Store Statistics", RunStoreStatsRefresh)
	jm.Register("cache-trim", "Trim Old Cached Tiles", RunCacheTrim)
}

// StartJobs starts the background job scheduler.
func StartJobs(app JobContext) {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	startRecoverySweepJob(s, app)
	startCacheTrimJob(s, app)

	log.Println("Starting background job scheduler...")
	s.StartAsync()
}

func startRecoverySweepJob(s *gocron.Scheduler, app JobContext) {
	interval := app.Config().Recovery.SweepIntervalMinutes
	if interval == 0 {
		log.Println("Recovery sweep interval is 0, scheduled sweep is disabled.")
		return
	}

	jobId := "recovery-sweep"
	log.Printf("Scheduling job: '%s' to run every %d minutes.", jobId, interval)

	_, err := s.Every(interval).Minutes().Do(func() {
		log.Println("Scheduler is triggering job:", jobId)
		// Submit through the manager so a scheduled run cannot overlap a
		// manually triggered one.
		err := app.JobManager().RunJob(jobId, app)
		if err != nil {
			log.Printf("Scheduled job '%s' could not start: %v", jobId, err)
		}
	})
	if err != nil {
		log.Printf("Error scheduling '%s' job: %v", jobId, err)
	}
}

func startCacheTrimJob(s *gocron.Scheduler, app JobContext) {
	if app.Config().Cache.TrimAfterDays == 0 {
		log.Println("Cache trim age is 0, scheduled trim is disabled.")
		return
	}
	interval := app.Config().Cache.TrimIntervalMinutes
	if interval == 0 {
		interval = 1440
	}

	jobId := "cache-trim"
	log.Printf("Scheduling job: '%s' to run every %d minutes.", jobId, interval)

	_, err := s.Every(interval).Minutes().Do(func() {
		log.Println("Scheduler is triggering job:", jobId)
		err := app.JobManager().RunJob(jobId, app)
		if err != nil {
			log.Printf("Scheduled job '%s' could not start: %v", jobId, err)
		}
	})
	if err != nil {
		log.Printf("Error scheduling '%s' job: %v", jobId, err)
	}
}

// RunCacheTrim deletes tiles older than the configured age from every
// store. Disabled when no age is configured; a trimmed tile is simply
// re-fetched by the next download that covers it.
func RunCacheTrim(app JobContext) {
	days := app.Config().Cache.TrimAfterDays
	if days <= 0 {
		broadcastJobUpdate(app, "cache-trim", "Cache trimming is disabled.", 100, true)
		return
	}
	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)

	broadcastJobUpdate(app, "cache-trim", "Trimming old cached tiles...", 0, false)

	st := store.New(app.DB())
	stores, err := st.ListStores()
	if err != nil {
		log.Printf("Cache trim failed: %v", err)
		broadcastJobUpdate(app, "cache-trim", fmt.Sprintf("Trim failed: %v", err), 100, true)
		return
	}

	var removed int64
	for _, cs := range stores {
		n, err := st.DeleteTilesOlderThan(cs.Name, cutoff)
		if err != nil {
			log.Printf("Failed to trim store %q: %v", cs.Name, err)
			continue
		}
		removed += n
	}

	msg := fmt.Sprintf("Removed %d tiles older than %d days.", removed, days)
	log.Println(msg)
	broadcastJobUpdate(app, "cache-trim", msg, 100, true)
}

// RunRecoverySweep deletes recovery entries that have not been touched for
// the configured number of hours. Their downloads are considered abandoned;
// the tiles they already fetched stay cached.
func RunRecoverySweep(app JobContext) {
	staleAfter := app.Config().Recovery.StaleAfterHours
	if staleAfter <= 0 {
		staleAfter = 72
	}
	cutoff := time.Now().Add(-time.Duration(staleAfter) * time.Hour)

	broadcastJobUpdate(app, "recovery-sweep", "Sweeping stale recovery entries...", 0, false)

	st := store.New(app.DB())
	removed, err := st.SweepStaleRecoveryEntries(cutoff)
	if err != nil {
		log.Printf("Recovery sweep failed: %v", err)
		broadcastJobUpdate(app, "recovery-sweep", fmt.Sprintf("Sweep failed: %v", err), 100, true)
		return
	}

	msg := fmt.Sprintf("Removed %d stale recovery entries.", removed)
	log.Println(msg)
	broadcastJobUpdate(app, "recovery-sweep", msg, 100, true)
}

// RunStoreStatsRefresh recomputes per-store tile counts and sizes and
// broadcasts them to connected clients.
func RunStoreStatsRefresh(app JobContext) {
	st := store.New(app.DB())
	stores, err := st.ListStores()
	if err != nil {
		log.Printf("Store stats refresh failed: %v", err)
		broadcastJobUpdate(app, "store-stats", fmt.Sprintf("Refresh failed: %v", err), 100, true)
		return
	}

	for i, cs := range stores {
		stats, err := st.GetStoreStats(cs.Name)
		if err != nil {
			log.Printf("Failed to compute stats for store %q: %v", cs.Name, err)
			continue
		}
		app.WsHub().BroadcastJSON(stats)
		pct := float64(i+1) / float64(len(stores)) * 100
		broadcastJobUpdate(app, "store-stats", fmt.Sprintf("Refreshed %d/%d stores", i+1, len(stores)), pct, false)
	}

	broadcastJobUpdate(app, "store-stats", fmt.Sprintf("Refreshed stats for %d stores.", len(stores)), 100, true)
}

func broadcastJobUpdate(app JobContext, jobID, message string, progress float64, done bool) {
	status := "running"
	if done {
		status = "completed"
	}
	app.WsHub().BroadcastJSON(models.ProgressUpdate{
		JobID:    jobID,
		Message:  message,
		Progress: progress,
		Status:   status,
		Done:     done,
	})
}
