package engine_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tilevault/tilevault-go/internal/engine"
	"github.com/tilevault/tilevault-go/internal/geo"
	"github.com/tilevault/tilevault-go/internal/models"
	"github.com/tilevault/tilevault-go/internal/progress"
	"github.com/tilevault/tilevault-go/internal/store"
	"github.com/tilevault/tilevault-go/internal/testutil"
)

var testRegion = models.Region{
	MinLat: -60, MinLon: -120, MaxLat: 60, MaxLon: 120,
	MinZoom: 0, MaxZoom: 2,
}

func tileServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	tile := buf.Bytes()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.Write(tile)
	}))
}

func drain(t *testing.T, stream *progress.Stream) []progress.Event {
	t.Helper()
	sub := stream.Subscribe()
	var events []progress.Event
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("stream did not terminate in time")
		}
	}
}

func TestEngine_DownloadsRegion(t *testing.T) {
	srv := tileServer(t, nil)
	defer srv.Close()

	st := store.New(testutil.SetupTestDB(t))
	e := engine.New(st, srv.Client())

	stream, err := e.Start(testRegion, engine.Options{
		Store:       "osm",
		URLTemplate: srv.URL + "/{z}/{x}/{y}.png",
		Parallelism: 3,
	})
	require.NoError(t, err)

	events := drain(t, stream)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	require.NoError(t, last.Err)

	want := geo.CountTiles(testRegion)
	assert.Equal(t, want, last.Snapshot.Attempted)
	assert.Equal(t, want, last.Snapshot.Max)
	assert.InDelta(t, 100.0, last.Snapshot.Percentage, 0.001)

	stats, err := st.GetStoreStats("osm")
	require.NoError(t, err)
	assert.Equal(t, int64(want), stats.TileCount)

	// Clean completion removes the recovery row and leaves a thumbnail.
	entry, err := st.FindRecoveryEntry("osm", testRegion)
	require.NoError(t, err)
	assert.Nil(t, entry)

	thumb, err := st.GetStoreThumbnail("osm")
	require.NoError(t, err)
	assert.NotEmpty(t, thumb)
}

func TestEngine_SecondStartWhileRunning(t *testing.T) {
	srv := tileServer(t, nil)
	defer srv.Close()

	st := store.New(testutil.SetupTestDB(t))
	e := engine.New(st, srv.Client())

	stream, err := e.Start(testRegion, engine.Options{
		Store:       "osm",
		URLTemplate: srv.URL + "/{z}/{x}/{y}.png",
		Delay:       5 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = e.Start(testRegion, engine.Options{Store: "osm", URLTemplate: srv.URL})
	assert.ErrorIs(t, err, engine.ErrJobRunning)

	e.Cancel()
	drain(t, stream)
}

func TestEngine_CancelThenResume(t *testing.T) {
	var hits atomic.Int64
	srv := tileServer(t, &hits)
	defer srv.Close()

	st := store.New(testutil.SetupTestDB(t))
	e := engine.New(st, srv.Client())

	opts := engine.Options{
		Store:       "osm",
		URLTemplate: srv.URL + "/{z}/{x}/{y}.png",
		Parallelism: 1,
		Delay:       10 * time.Millisecond,
	}

	stream, err := e.Start(testRegion, opts)
	require.NoError(t, err)
	firstJobID := e.JobID()

	sub := stream.Subscribe()
	// Wait for the first snapshot, then cancel.
	select {
	case <-sub.C:
	case <-time.After(5 * time.Second):
		t.Fatal("no progress before cancel")
	}
	e.Cancel()
	drain(t, stream)
	require.NoError(t, stream.Err(), "cancellation is not a stream failure")

	// The recovery row survives a cancelled job.
	entry, err := st.FindRecoveryEntry("osm", testRegion)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, firstJobID, entry.ID)

	fetchedBefore := hits.Load()
	require.Less(t, fetchedBefore, int64(geo.CountTiles(testRegion)))

	// The resumed job reuses the recovery row and skips cached tiles.
	stream, err = e.Start(testRegion, opts)
	require.NoError(t, err)
	assert.Equal(t, firstJobID, e.JobID())
	events := drain(t, stream)
	require.NoError(t, events[len(events)-1].Err)

	// At least one tile was fully stored before the cancel (the first
	// snapshot had been published), so the resumed job must skip it.
	assert.Less(t, hits.Load(), fetchedBefore+int64(geo.CountTiles(testRegion)),
		"already cached tiles should not be fetched again")

	entry, err = st.FindRecoveryEntry("osm", testRegion)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestEngine_DisableRecovery(t *testing.T) {
	srv := tileServer(t, nil)
	defer srv.Close()

	st := store.New(testutil.SetupTestDB(t))
	e := engine.New(st, srv.Client())

	stream, err := e.Start(testRegion, engine.Options{
		Store:           "osm",
		URLTemplate:     srv.URL + "/{z}/{x}/{y}.png",
		Delay:           5 * time.Millisecond,
		DisableRecovery: true,
	})
	require.NoError(t, err)

	sub := stream.Subscribe()
	select {
	case <-sub.C:
	case <-time.After(5 * time.Second):
		t.Fatal("no progress")
	}
	e.Cancel()
	drain(t, stream)

	entry, err := st.FindRecoveryEntry("osm", testRegion)
	require.NoError(t, err)
	assert.Nil(t, entry, "no bookkeeping should exist with recovery disabled")
}

func TestEngine_ToleratesTileFailures(t *testing.T) {
	var served atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Every other tile request fails.
		if served.Add(1)%2 == 0 {
			http.Error(w, "upstream sad", http.StatusBadGateway)
			return
		}
		w.Write([]byte("tile-bytes"))
	}))
	defer srv.Close()

	st := store.New(testutil.SetupTestDB(t))
	e := engine.New(st, srv.Client())

	stream, err := e.Start(testRegion, engine.Options{
		Store:       "osm",
		URLTemplate: srv.URL + "/{z}/{x}/{y}.png",
		Parallelism: 2,
	})
	require.NoError(t, err)

	events := drain(t, stream)
	last := events[len(events)-1]
	require.NoError(t, last.Err, "individual tile failures must not fail the job")
	assert.Equal(t, geo.CountTiles(testRegion), last.Snapshot.Attempted)

	stats, err := st.GetStoreStats("osm")
	require.NoError(t, err)
	assert.Less(t, stats.TileCount, int64(geo.CountTiles(testRegion)))
	assert.Positive(t, stats.TileCount)
}

func TestEngine_InvalidRegion(t *testing.T) {
	st := store.New(testutil.SetupTestDB(t))
	e := engine.New(st, nil)

	_, err := e.Start(models.Region{MinZoom: 5, MaxZoom: 2}, engine.Options{})
	assert.ErrorIs(t, err, engine.ErrInvalidRegion)

	_, err = e.Start(models.Region{MinLat: 10, MaxLat: -10, MaxZoom: 1}, engine.Options{})
	assert.ErrorIs(t, err, engine.ErrInvalidRegion)
}

func TestEngine_CancelWithoutJobIsSafe(t *testing.T) {
	st := store.New(testutil.SetupTestDB(t))
	e := engine.New(st, nil)
	e.Cancel()
}
