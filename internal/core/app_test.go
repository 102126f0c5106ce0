package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tilevault/tilevault-go/internal/testutil"
)

func TestAppWiring(t *testing.T) {
	app := testutil.SetupTestApp(t)

	require.NotNil(t, app.DB())
	require.NotNil(t, app.Store())
	require.NotNil(t, app.Engine())
	require.NotNil(t, app.Supervisor())
	require.NotNil(t, app.WsHub())
	require.NotNil(t, app.JobManager())
	assert.Equal(t, "test", app.Version())

	// The maintenance jobs are registered at construction time.
	statuses := app.JobManager().GetStatus()
	ids := make(map[string]bool)
	for _, s := range statuses {
		ids[s.ID] = true
	}
	assert.True(t, ids["recovery-sweep"])
	assert.True(t, ids["store-stats"])
	assert.True(t, ids["cache-trim"])
}
