// Package engine implements the bulk tile-download engine: a worker pool
// that fetches XYZ tiles over HTTP into the cache store while publishing
// progress snapshots on a broadcast stream. The engine is deliberately
// unaware of notifications and keep-alive leases; the background supervisor
// layers those on top.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/tilevault/tilevault-go/internal/geo"
	"github.com/tilevault/tilevault-go/internal/models"
	"github.com/tilevault/tilevault-go/internal/progress"
	"github.com/tilevault/tilevault-go/internal/store"
)

var (
	// ErrJobRunning indicates the engine already has an active job.
	ErrJobRunning = errors.New("a download job is already running")

	// ErrInvalidRegion indicates the region's bounds or zoom range are
	// inconsistent.
	ErrInvalidRegion = errors.New("invalid region")
)

// How often the crash-recovery row is flushed while a job runs.
const recoveryFlushEvery = 32

// Options configures a single download job.
type Options struct {
	Store           string
	URLTemplate     string
	UserAgent       string
	Parallelism     int
	Delay           time.Duration
	DisableRecovery bool
}

// Engine downloads tiles for one region at a time.
type Engine struct {
	st     *store.Store
	client *http.Client

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	jobID   string
}

// New creates an Engine backed by the given store. A nil client falls back
// to a default with a sensible timeout.
func New(st *store.Store, client *http.Client) *Engine {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Engine{st: st, client: client}
}

// JobID returns the identifier of the active (or last) job.
func (e *Engine) JobID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.jobID
}

// Start validates the region, sets up recovery bookkeeping, and launches
// the worker pool. The returned stream supports any number of subscribers;
// it terminates on completion, cancellation, or a fatal storage error. Only
// one job may run per engine at a time.
func (e *Engine) Start(region models.Region, opts Options) (*progress.Stream, error) {
	if err := validateRegion(region); err != nil {
		return nil, err
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 4
	}
	if opts.Store == "" {
		opts.Store = "default"
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, ErrJobRunning
	}
	e.running = true
	e.mu.Unlock()

	fail := func(err error) (*progress.Stream, error) {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		return nil, err
	}

	if _, err := e.st.CreateStore(opts.Store); err != nil {
		return fail(fmt.Errorf("failed to prepare store %q: %w", opts.Store, err))
	}

	maxTiles := geo.CountTiles(region)

	// Resume an unfinished job over the same region unless recovery
	// bookkeeping is disabled.
	jobID := ksuid.New().String()
	resuming := false
	if !opts.DisableRecovery {
		entry, err := e.st.FindRecoveryEntry(opts.Store, region)
		if err != nil {
			return fail(fmt.Errorf("failed to check recovery state: %w", err))
		}
		if entry != nil {
			jobID = entry.ID
			resuming = true
			log.Printf("Resuming download job %s (%d/%d tiles done)", jobID, entry.Attempted, entry.MaxTiles)
		} else if err := e.st.CreateRecoveryEntry(jobID, opts.Store, region, maxTiles); err != nil {
			return fail(fmt.Errorf("failed to create recovery entry: %w", err))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	stream := progress.NewStream()

	e.mu.Lock()
	e.cancel = cancel
	e.jobID = jobID
	e.mu.Unlock()

	go e.run(ctx, cancel, region, opts, stream, jobID, maxTiles, resuming)
	return stream, nil
}

// Cancel requests the active job stop. Cancellation is cooperative:
// in-flight tile fetches finish, no new ones start, and the stream
// terminates shortly after. Safe to call when no job is running.
func (e *Engine) Cancel() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (e *Engine) run(ctx context.Context, cancel context.CancelFunc, region models.Region, opts Options, stream *progress.Stream, jobID string, maxTiles uint64, resuming bool) {
	defer cancel()

	tiles := make(chan models.Tile)
	go func() {
		defer close(tiles)
		geo.ForEachTile(region, func(t models.Tile) bool {
			select {
			case tiles <- t:
				return true
			case <-ctx.Done():
				return false
			}
		})
	}()

	var (
		attempted atomic.Uint64
		fatalOnce sync.Once
		fatalErr  error
	)
	abort := func(err error) {
		fatalOnce.Do(func() {
			fatalErr = err
			cancel()
		})
	}

	var wg sync.WaitGroup
	for i := 0; i < opts.Parallelism; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for tile := range tiles {
				if ctx.Err() != nil {
					return
				}
				if err := e.processTile(ctx, tile, opts, resuming); err != nil {
					if errors.Is(err, context.Canceled) {
						return
					}
					if isFatal(err) {
						abort(err)
						return
					}
					// Individual tile failures are tolerated; the bulk
					// job carries on.
					log.Printf("Tile %d/%d/%d failed: %v", tile.Z, tile.X, tile.Y, err)
				}

				n := attempted.Add(1)
				stream.Publish(snapshot(n, maxTiles))
				if !opts.DisableRecovery && n%recoveryFlushEvery == 0 {
					if err := e.st.UpdateRecoveryProgress(jobID, n); err != nil {
						abort(fmt.Errorf("failed to update recovery progress: %w", err))
						return
					}
				}
			}
		}()
	}
	wg.Wait()

	e.finish(region, opts, stream, jobID, attempted.Load(), maxTiles, fatalErr)

	e.mu.Lock()
	e.running = false
	e.cancel = nil
	e.mu.Unlock()
}

// finish settles recovery bookkeeping and closes the stream with the job's
// terminal outcome.
func (e *Engine) finish(region models.Region, opts Options, stream *progress.Stream, jobID string, attempted, maxTiles uint64, fatalErr error) {
	completed := fatalErr == nil && attempted >= maxTiles

	if !opts.DisableRecovery {
		if completed {
			if err := e.st.DeleteRecoveryEntry(jobID); err != nil {
				log.Printf("Failed to delete recovery entry %s: %v", jobID, err)
			}
		} else {
			// Keep the row so a later job over the same region resumes.
			if err := e.st.UpdateRecoveryProgress(jobID, attempted); err != nil {
				log.Printf("Failed to flush recovery progress for %s: %v", jobID, err)
			}
		}
	}

	if completed {
		e.generateThumbnail(region, opts.Store)
	}

	stream.Close(fatalErr)
}

// generateThumbnail previews the region from its centre tile. Best-effort;
// a missing or undecodable tile is not an error.
func (e *Engine) generateThumbnail(region models.Region, storeName string) {
	data, err := e.st.GetTile(storeName, geo.CenterTile(region))
	if err != nil || data == nil {
		return
	}
	thumb, err := store.GenerateThumbnail(data)
	if err != nil {
		log.Printf("Failed to generate thumbnail for store %s: %v", storeName, err)
		return
	}
	if err := e.st.SetStoreThumbnail(storeName, thumb); err != nil {
		log.Printf("Failed to save thumbnail for store %s: %v", storeName, err)
	}
}

// processTile fetches and stores a single tile. When resuming, tiles that
// are already cached are skipped (but still counted as attempted).
func (e *Engine) processTile(ctx context.Context, tile models.Tile, opts Options, resuming bool) error {
	if resuming {
		has, err := e.st.HasTile(opts.Store, tile)
		if err != nil {
			return storageError(err)
		}
		if has {
			return nil
		}
	}

	if opts.Delay > 0 {
		select {
		case <-time.After(opts.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tileURL(opts.URLTemplate, tile), nil)
	if err != nil {
		return err
	}
	if opts.UserAgent != "" {
		req.Header.Set("User-Agent", opts.UserAgent)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d for tile %d/%d/%d", resp.StatusCode, tile.Z, tile.X, tile.Y)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if err := e.st.PutTile(opts.Store, tile, data); err != nil {
		return storageError(err)
	}
	return nil
}

// fatalError wraps storage failures, which abort the whole job rather than
// being tolerated like a single bad tile fetch.
type fatalError struct{ err error }

func (f *fatalError) Error() string { return f.err.Error() }
func (f *fatalError) Unwrap() error { return f.err }

func storageError(err error) error { return &fatalError{err: err} }

func isFatal(err error) bool {
	var f *fatalError
	return errors.As(err, &f)
}

func tileURL(template string, tile models.Tile) string {
	r := strings.NewReplacer(
		"{z}", strconv.Itoa(tile.Z),
		"{x}", strconv.Itoa(tile.X),
		"{y}", strconv.Itoa(tile.Y),
	)
	return r.Replace(template)
}

func snapshot(attempted, max uint64) models.ProgressSnapshot {
	pct := 0.0
	if max > 0 {
		pct = float64(attempted) / float64(max) * 100
	}
	return models.ProgressSnapshot{Attempted: attempted, Max: max, Percentage: pct}
}

func validateRegion(r models.Region) error {
	switch {
	case r.MinZoom < 0 || r.MaxZoom < r.MinZoom:
		return fmt.Errorf("%w: zoom range %d..%d", ErrInvalidRegion, r.MinZoom, r.MaxZoom)
	case r.MaxLat < r.MinLat:
		return fmt.Errorf("%w: latitude bounds inverted", ErrInvalidRegion)
	case r.MaxLon < r.MinLon:
		return fmt.Errorf("%w: longitude bounds inverted", ErrInvalidRegion)
	}
	return nil
}
