// Shared value types passed between the engine, the background supervisor,
// the store and the API layer.

package models

import "time"

// Region describes a rectangular geographic area and a zoom range to
// download. It is owned by the caller and never mutated once a job starts.
type Region struct {
	MinLat  float64 `json:"min_lat"`
	MinLon  float64 `json:"min_lon"`
	MaxLat  float64 `json:"max_lat"`
	MaxLon  float64 `json:"max_lon"`
	MinZoom int     `json:"min_zoom"`
	MaxZoom int     `json:"max_zoom"`
}

// Tile is a single slippy-map tile address.
type Tile struct {
	Z int `json:"z"`
	X int `json:"x"`
	Y int `json:"y"`
}

// ProgressSnapshot is a point-in-time progress reading. Each snapshot
// supersedes the previous one; no history is retained.
type ProgressSnapshot struct {
	Attempted  uint64  `json:"attempted"`
	Max        uint64  `json:"max"`
	Percentage float64 `json:"percentage"`
}

// JobState tracks a supervised download job through its lifecycle.
type JobState string

const (
	JobNotStarted JobState = "not_started"
	JobRunning    JobState = "running"
	JobCompleted  JobState = "completed"
	JobCancelled  JobState = "cancelled"
	JobFailed     JobState = "failed"
)

// Terminal reports whether the state admits no further transitions.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobCancelled || s == JobFailed
}

// JobStatus is the API-facing view of a supervised job.
type JobStatus struct {
	ID        string           `json:"id"`
	Store     string           `json:"store"`
	State     JobState         `json:"state"`
	Snapshot  ProgressSnapshot `json:"snapshot"`
	Error     string           `json:"error,omitempty"`
	StartedAt time.Time        `json:"started_at,omitempty"`
	EndedAt   time.Time        `json:"ended_at,omitempty"`
}

// ProgressUpdate is the payload broadcast to websocket clients.
type ProgressUpdate struct {
	JobID    string  `json:"jobId"`
	Message  string  `json:"message"`
	Progress float64 `json:"progress"`
	Status   string  `json:"status"` // e.g. "running", "completed", "failed"
	Done     bool    `json:"done"`
}

// CacheStore is a named tile collection inside the cache database.
type CacheStore struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// StoreStats summarises the contents of a cache store.
type StoreStats struct {
	Store     string `json:"store"`
	TileCount int64  `json:"tile_count"`
	SizeBytes int64  `json:"size_bytes"`
}

// RecoveryEntry is the crash-recovery bookkeeping row for an unfinished
// bulk download. It lets a restarted job skip tiles that already landed.
type RecoveryEntry struct {
	ID        string    `json:"id"`
	Store     string    `json:"store"`
	Region    Region    `json:"region"`
	Attempted uint64    `json:"attempted"`
	MaxTiles  uint64    `json:"max_tiles"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
