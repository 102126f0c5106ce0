package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tilevault/tilevault-go/internal/api"
	"github.com/tilevault/tilevault-go/internal/models"
	"github.com/tilevault/tilevault-go/internal/testutil"
)

func startPayload(store string, maxZoom int) []byte {
	payload, _ := json.Marshal(api.BackgroundDownloadPayload{
		Store: store,
		Region: models.Region{
			MinLat: -40, MinLon: -40, MaxLat: 40, MaxLon: 40,
			MinZoom: 0, MaxZoom: maxZoom,
		},
	})
	return payload
}

func TestBackgroundDownloadLifecycle(t *testing.T) {
	tiles := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tile"))
	}))
	defer tiles.Close()

	app := testutil.SetupTestApp(t)
	app.Config().Provider.URLTemplate = tiles.URL + "/{z}/{x}/{y}.png"
	router := api.NewServer(app).Router()

	// Nothing running yet
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/api/downloads/background", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("POST", "/api/downloads/background", bytes.NewReader(startPayload("lifecycle", 1))))
	require.Equal(t, http.StatusAccepted, rr.Code)

	var status models.JobStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	assert.NotEmpty(t, status.ID)

	job := app.Supervisor().Current()
	require.NotNil(t, job)
	select {
	case <-job.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("background download did not finish")
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/api/downloads/background", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	assert.Equal(t, models.JobCompleted, status.State)
	assert.Equal(t, status.Snapshot.Max, status.Snapshot.Attempted)
}

func TestBackgroundDownloadConflictAndCancel(t *testing.T) {
	tiles := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte("tile"))
	}))
	defer tiles.Close()

	app := testutil.SetupTestApp(t)
	app.Config().Provider.URLTemplate = tiles.URL + "/{z}/{x}/{y}.png"
	router := api.NewServer(app).Router()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("POST", "/api/downloads/background", bytes.NewReader(startPayload("conflict", 4))))
	require.Equal(t, http.StatusAccepted, rr.Code)

	// A second start while the first is running is rejected
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("POST", "/api/downloads/background", bytes.NewReader(startPayload("conflict", 4))))
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("POST", "/api/downloads/background/cancel", nil))
	assert.Equal(t, http.StatusAccepted, rr.Code)

	job := app.Supervisor().Current()
	require.NotNil(t, job)
	select {
	case <-job.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("cancelled download did not finish")
	}
	assert.Equal(t, models.JobCancelled, job.State())
}

func TestBackgroundDownloadInvalidPayload(t *testing.T) {
	app := testutil.SetupTestApp(t)
	router := api.NewServer(app).Router()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("POST", "/api/downloads/background", bytes.NewReader([]byte("not json"))))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// Inverted bounds are rejected before anything starts
	payload, _ := json.Marshal(api.BackgroundDownloadPayload{
		Store:  "bad",
		Region: models.Region{MinLat: 10, MaxLat: -10, MinZoom: 0, MaxZoom: 1},
	})
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("POST", "/api/downloads/background", bytes.NewReader(payload)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDownloadPermissionEndpoint(t *testing.T) {
	server, _ := testutil.SetupTestServer(t)
	router := server.Router()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/api/downloads/permission", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]bool
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp["granted"])
}
